// Package store provides the SQL-backed counter store for block-allocated
// sequences.
//
// Each sequence is one row of sequence_counters:
//
//	name              unique sequence name
//	next_block_start  first identifier not yet reserved by any allocator
//	block_size        identifiers granted per reservation (> 0)
//	updated_seq       number of committed reservations
//
// # Reservation Transactions
//
// Store.WithinTx implements sequence.CounterStore. ReadBlock and
// AdvanceBlock run in one database transaction, and the read already holds
// the lock that keeps other reservations for the same row out:
//
//   - SQLite: connections use _txlock=immediate, so BEGIN takes the
//     database write lock. Processes sharing the file queue on busy_timeout.
//   - MySQL (InnoDB): the read is SELECT ... FOR UPDATE, a row lock.
//
// AdvanceBlock only moves next_block_start forward and requires exactly one
// affected row; anything else aborts the transaction.
//
// # Provisioning
//
// Rows are created by Provision, never by a reservation. Provision is
// idempotent and never lowers next_block_start.
//
// # Database Configuration (SQLite)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
