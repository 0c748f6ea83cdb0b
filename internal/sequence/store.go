package sequence

import "context"

// Block is the counter row for one sequence as read inside a transaction:
// Start is the first identifier no allocator has reserved yet, Size is how
// many identifiers one reservation claims.
type Block struct {
	Start int64
	Size  int64
}

// End returns the first identifier after the block. The caller checks that
// Start+Size does not overflow.
func (b Block) End() int64 {
	return b.Start + b.Size
}

// Counter is a durable counter row.
type Counter struct {
	Name           string
	NextBlockStart int64
	BlockSize      int64
}

// CounterTx is the read-then-advance pair a refill performs. Both calls run
// inside the same store transaction.
type CounterTx interface {
	// ReadBlock reads the row for name. Returns an error wrapping
	// ErrSequenceNotFound if no row exists.
	ReadBlock(ctx context.Context, name string) (Block, error)

	// AdvanceBlock sets the row's next block start. The new value must not be
	// visible to other transactions before commit.
	AdvanceBlock(ctx context.Context, name string, nextBlockStart int64) error
}

// CounterStore runs refill transactions.
//
// Implementations must make ReadBlock followed by AdvanceBlock for one name
// atomic with respect to other transactions on the same name (serializable
// isolation, a row lock taken on read, or an exclusive write lock), so that
// two concurrent refills never observe the same block start.
type CounterStore interface {
	// WithinTx begins a transaction, calls fn, and commits if fn returns nil.
	// If fn or the commit fails the transaction is rolled back and the stored
	// row is unchanged.
	WithinTx(ctx context.Context, fn func(tx CounterTx) error) error
}

// IDSource is what write paths depend on to obtain primary keys.
type IDSource interface {
	NextID(ctx context.Context) (int64, error)
}
