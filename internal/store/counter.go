package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/legacyid/internal/sequence"
)

// ErrStaleAdvance is returned when AdvanceBlock would not move the counter
// forward (or the row vanished). The reservation is rolled back.
var ErrStaleAdvance = errors.New("counter advance did not move next_block_start forward")

var _ sequence.CounterStore = (*Store)(nil)

// WithinTx implements sequence.CounterStore. fn runs inside one database
// transaction that is committed only if fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(tx sequence.CounterTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("counter tx: begin: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(&counterTx{tx: tx, q: &s.q}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("counter tx: commit: %w", err)
	}
	return nil
}

type counterTx struct {
	tx *sql.Tx
	q  *queries
}

// ReadBlock implements sequence.CounterTx.
func (c *counterTx) ReadBlock(ctx context.Context, name string) (sequence.Block, error) {
	var blk sequence.Block
	err := c.tx.QueryRowContext(ctx, c.q.readBlock, name).Scan(&blk.Start, &blk.Size)
	if errors.Is(err, sql.ErrNoRows) {
		return sequence.Block{}, fmt.Errorf("read block %q: %w", name, sequence.ErrSequenceNotFound)
	}
	if err != nil {
		return sequence.Block{}, fmt.Errorf("read block %q: %w", name, err)
	}
	return blk, nil
}

// AdvanceBlock implements sequence.CounterTx.
func (c *counterTx) AdvanceBlock(ctx context.Context, name string, nextBlockStart int64) error {
	result, err := c.tx.ExecContext(ctx, c.q.advance, nextBlockStart, name, nextBlockStart)
	if err != nil {
		return fmt.Errorf("advance block %q: %w", name, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance block %q: rows affected: %w", name, err)
	}
	if rowsAffected != 1 {
		return fmt.Errorf("advance block %q to %d: %w", name, nextBlockStart, ErrStaleAdvance)
	}
	return nil
}
