// Package sequence hands out unique, increasing int64 identifiers for rows
// inserted into legacy tables.
//
// An Allocator reserves a contiguous block of identifiers from a shared
// counter row (the "hi" part) inside one store transaction, then serves
// identifiers from that block in memory (the "lo" part) until it runs out.
//
// # Guarantees
//
//   - Uniqueness: a block is committed to the counter store before any value
//     from it is returned, so two allocators (in one process or many) never
//     hold overlapping blocks.
//   - Monotonicity: one Allocator returns strictly increasing values for its
//     whole lifetime.
//   - Gaps are allowed: values left in a block at shutdown are never reused.
//
// A failed refill leaves the in-memory state untouched and returns the error;
// the next call attempts the refill again. Retrying is the caller's choice
// (see NextIDWithRetry).
package sequence
