package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/legacyid/internal/sequence"
)

// Op names a step of a counter store transaction for fault injection.
type Op string

const (
	OpBegin   Op = "begin"
	OpRead    Op = "read"
	OpAdvance Op = "advance"
	OpCommit  Op = "commit"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("injected fault")

// FakeCounterStore is an in-memory sequence.CounterStore for tests.
//
// Transactions are fully serialized (one at a time), writes are staged and
// only become visible on commit, and any error rolls the transaction back.
// Faults can be queued per step with FailNext.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeCounterStore struct {
	txMu sync.Mutex // held for the duration of a transaction

	mu        sync.Mutex
	rows      map[string]sequence.Counter
	faults    map[Op][]error
	reads     map[string]int
	commits   int
	rollbacks int
	beginHook func(ctx context.Context) error
}

var _ sequence.CounterStore = (*FakeCounterStore)(nil)

// NewFakeCounterStore creates a store holding the given rows.
func NewFakeCounterStore(rows ...sequence.Counter) *FakeCounterStore {
	s := &FakeCounterStore{
		rows:   make(map[string]sequence.Counter),
		faults: make(map[Op][]error),
		reads:  make(map[string]int),
	}
	for _, row := range rows {
		s.rows[row.Name] = row
	}
	return s
}

// Put inserts or replaces a committed row.
func (s *FakeCounterStore) Put(row sequence.Counter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[row.Name] = row
}

// Row returns the committed row for name.
func (s *FakeCounterStore) Row(name string) (sequence.Counter, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[name]
	return row, ok
}

// FailNext makes the next call of op fail with err (ErrInjected if nil).
// Multiple calls queue faults in order.
func (s *FakeCounterStore) FailNext(op Op, err error) {
	if err == nil {
		err = ErrInjected
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = append(s.faults[op], err)
}

// OnBegin installs a hook called at the start of every transaction, after
// the transaction lock is taken. A non-nil error aborts the transaction.
func (s *FakeCounterStore) OnBegin(hook func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beginHook = hook
}

// Reads returns how many ReadBlock calls were made for name, including
// failed ones.
func (s *FakeCounterStore) Reads(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads[name]
}

// Commits returns the number of committed transactions.
func (s *FakeCounterStore) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

// Rollbacks returns the number of rolled back transactions.
func (s *FakeCounterStore) Rollbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbacks
}

func (s *FakeCounterStore) takeFault(op Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.faults[op]
	if len(queue) == 0 {
		return nil
	}
	s.faults[op] = queue[1:]
	return queue[0]
}

// WithinTx implements sequence.CounterStore.
func (s *FakeCounterStore) WithinTx(ctx context.Context, fn func(tx sequence.CounterTx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	hook := s.beginHook
	s.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return s.rollback(fmt.Errorf("begin tx: %w", err))
		}
	}
	if err := s.takeFault(OpBegin); err != nil {
		return s.rollback(fmt.Errorf("begin tx: %w", err))
	}
	if err := ctx.Err(); err != nil {
		return s.rollback(fmt.Errorf("begin tx: %w", err))
	}

	tx := &fakeTx{store: s, staged: make(map[string]int64)}
	if err := fn(tx); err != nil {
		return s.rollback(err)
	}
	if err := s.takeFault(OpCommit); err != nil {
		return s.rollback(fmt.Errorf("commit: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, next := range tx.staged {
		row := s.rows[name]
		row.NextBlockStart = next
		s.rows[name] = row
	}
	s.commits++
	return nil
}

func (s *FakeCounterStore) rollback(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollbacks++
	return err
}

type fakeTx struct {
	store  *FakeCounterStore
	staged map[string]int64
}

func (tx *fakeTx) ReadBlock(ctx context.Context, name string) (sequence.Block, error) {
	s := tx.store
	s.mu.Lock()
	s.reads[name]++
	s.mu.Unlock()

	if err := s.takeFault(OpRead); err != nil {
		return sequence.Block{}, fmt.Errorf("read block: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[name]
	if !ok {
		return sequence.Block{}, fmt.Errorf("read block %q: %w", name, sequence.ErrSequenceNotFound)
	}
	start := row.NextBlockStart
	if next, ok := tx.staged[name]; ok {
		start = next
	}
	return sequence.Block{Start: start, Size: row.BlockSize}, nil
}

func (tx *fakeTx) AdvanceBlock(ctx context.Context, name string, nextBlockStart int64) error {
	s := tx.store
	if err := s.takeFault(OpAdvance); err != nil {
		return fmt.Errorf("advance block: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[name]; !ok {
		return fmt.Errorf("advance block %q: %w", name, sequence.ErrSequenceNotFound)
	}
	tx.staged[name] = nextBlockStart
	return nil
}
