package sequence

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Allocator hands out identifiers for one named sequence.
//
// Create one Allocator per sequence name and share it between all write
// paths in the process. More than one Allocator for the same name is still
// correct (blocks are reserved in the store) but each one holds its own
// block, so more identifiers are skipped on shutdown.
//
// Thread-safety: NextID is safe for concurrent use. Callers are serialized by
// a per-instance lock; allocators for different names never block each other.
type Allocator struct {
	name       string
	store      CounterStore
	instanceID string
	logger     *slog.Logger
	metrics    *Metrics

	// lock is a one-slot semaphore rather than a sync.Mutex so that waiting
	// for it can be abandoned when the caller's context ends.
	lock *semaphore.Weighted

	// Guarded by lock.
	next      int64 // last identifier returned; the next one is next+1
	remaining int64 // <= 0 means the next call must refill
	reserved  bool  // a block has been adopted; next is a floor for later blocks
}

// Option configures an Allocator.
type Option func(*Allocator)

// WithLogger sets the logger used for refill events.
// Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Allocator) {
		a.logger = logger
	}
}

// WithMetrics records issued identifiers and refills on m.
func WithMetrics(m *Metrics) Option {
	return func(a *Allocator) {
		a.metrics = m
	}
}

// WithInstanceID overrides the identifier used to tell allocators apart in
// logs. Default: a fresh UUIDv7.
func WithInstanceID(id string) Option {
	return func(a *Allocator) {
		a.instanceID = id
	}
}

// NewAllocator binds a new Allocator to the counter row name in store.
//
// No I/O happens here: the allocator starts empty and the first NextID call
// reserves the first block.
func NewAllocator(name string, store CounterStore, opts ...Option) *Allocator {
	a := &Allocator{
		name:  name,
		store: store,
		lock:  semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.instanceID == "" {
		a.instanceID = uuid.Must(uuid.NewV7()).String()
	}
	return a
}

// Name returns the sequence name the allocator is bound to.
func (a *Allocator) Name() string {
	return a.name
}

// Logger returns the logger the allocator reports refills to.
func (a *Allocator) Logger() *slog.Logger {
	return a.logger
}

// InstanceID returns the identifier of this allocator instance.
func (a *Allocator) InstanceID() string {
	return a.instanceID
}

// NextID returns the next identifier of the sequence.
//
// If the held block is exhausted (always the case on the first call) a new
// block is reserved in the counter store before any value is returned. A
// failed refill returns an *Error and changes nothing; the next call tries
// the refill again.
//
// ctx bounds both the wait for the allocator lock (LOCK_TIMEOUT) and the
// refill transaction (TX_FAILED).
func (a *Allocator) NextID(ctx context.Context) (int64, error) {
	if err := a.lock.Acquire(ctx, 1); err != nil {
		return 0, &Error{
			Code:     ErrCodeLockTimeout,
			Sequence: a.name,
			Message:  "gave up waiting for allocator lock",
			Err:      err,
		}
	}
	defer a.lock.Release(1)

	// Decrementing first folds "is there room" and "take one" into a single
	// update: remaining <= 0 here means the value about to be issued is not
	// covered by the held block.
	a.remaining--
	if a.remaining <= 0 {
		if err := a.refill(ctx); err != nil {
			return 0, err
		}
	}

	a.next++
	a.metrics.issued(a.name)
	return a.next, nil
}

// refill reserves the next block from the store. Must hold a.lock.
// In-memory state is only replaced after the transaction commits.
func (a *Allocator) refill(ctx context.Context) error {
	start := time.Now()

	var reserved Block
	err := a.store.WithinTx(ctx, func(tx CounterTx) error {
		blk, err := tx.ReadBlock(ctx, a.name)
		if err != nil {
			return err
		}
		if blk.Size <= 0 || blk.Start > math.MaxInt64-blk.Size || (a.reserved && blk.Start <= a.next) {
			return &invalidBlockError{block: blk, floor: a.next}
		}
		if err := tx.AdvanceBlock(ctx, a.name, blk.End()); err != nil {
			return err
		}
		reserved = blk
		return nil
	})
	a.metrics.refilled(a.name, err, time.Since(start))
	if err != nil {
		a.logger.Warn("sequence refill failed",
			"sequence", a.name,
			"instance", a.instanceID,
			"error", err,
		)
		return newRefillError(a.name, err)
	}

	// next+1 must equal the block start so the increment in NextID serves
	// both paths.
	a.next = reserved.Start - 1
	a.remaining = reserved.Size
	a.reserved = true

	a.logger.Debug("sequence block reserved",
		"sequence", a.name,
		"instance", a.instanceID,
		"block_start", reserved.Start,
		"block_size", reserved.Size,
	)
	return nil
}

// State returns the identifier the next call would return without a refill
// and how many identifiers are left in the held block. Available is 0 when
// the next call will refill.
func (a *Allocator) State() (next, available int64) {
	// Diagnostics only: wait without a deadline.
	_ = a.lock.Acquire(context.Background(), 1)
	defer a.lock.Release(1)

	available = a.remaining - 1
	if available < 0 {
		available = 0
	}
	return a.next + 1, available
}
