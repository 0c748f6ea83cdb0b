package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/legacyid/internal/sequence"
)

// CounterRow is a counter row together with its reservation count.
type CounterRow struct {
	sequence.Counter
	// Advances is the number of committed block reservations.
	Advances int64
}

// Provision creates the counter row if it does not exist yet.
// An existing row is left untouched, so provisioning can be re-run safely
// and never moves next_block_start backwards. Returns whether a row was
// created.
func (s *Store) Provision(ctx context.Context, c sequence.Counter) (created bool, err error) {
	if c.Name == "" {
		return false, fmt.Errorf("provision: empty sequence name")
	}
	if c.NextBlockStart < 1 {
		return false, fmt.Errorf("provision %q: start must be >= 1, got %d", c.Name, c.NextBlockStart)
	}
	if c.BlockSize <= 0 {
		return false, fmt.Errorf("provision %q: block size must be positive, got %d", c.Name, c.BlockSize)
	}

	result, err := s.db.ExecContext(ctx, s.q.insertIfNew, c.Name, c.NextBlockStart, c.BlockSize)
	if err != nil {
		return false, fmt.Errorf("provision %q: %w", c.Name, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("provision %q: rows affected: %w", c.Name, err)
	}
	return rowsAffected > 0, nil
}

// SetBlockSize changes the reservation size for future refills. Blocks
// already held by running allocators are not affected.
func (s *Store) SetBlockSize(ctx context.Context, name string, size int64) error {
	if size <= 0 {
		return fmt.Errorf("set block size %q: must be positive, got %d", name, size)
	}
	result, err := s.db.ExecContext(ctx, s.q.setSize, size, name)
	if err != nil {
		return fmt.Errorf("set block size %q: %w", name, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set block size %q: rows affected: %w", name, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("set block size %q: %w", name, sequence.ErrSequenceNotFound)
	}
	return nil
}

// Get returns the committed row for name.
// Returns an error wrapping sequence.ErrSequenceNotFound if it does not exist.
func (s *Store) Get(ctx context.Context, name string) (CounterRow, error) {
	row, err := scanCounterRow(s.db.QueryRowContext(ctx, s.q.get, name))
	if errors.Is(err, sql.ErrNoRows) {
		return CounterRow{}, fmt.Errorf("get %q: %w", name, sequence.ErrSequenceNotFound)
	}
	if err != nil {
		return CounterRow{}, fmt.Errorf("get %q: %w", name, err)
	}
	return row, nil
}

// List returns all counter rows ordered by name.
// Returns an empty slice (not nil) if no rows exist.
func (s *Store) List(ctx context.Context) ([]CounterRow, error) {
	rows, err := s.db.QueryContext(ctx, s.q.list)
	if err != nil {
		return nil, fmt.Errorf("list counters: %w", err)
	}
	defer rows.Close()

	counters := []CounterRow{}
	for rows.Next() {
		row, err := scanCounterRow(rows)
		if err != nil {
			return nil, fmt.Errorf("list counters: %w", err)
		}
		counters = append(counters, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counters: %w", err)
	}
	return counters, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCounterRow(sc scanner) (CounterRow, error) {
	var row CounterRow
	err := sc.Scan(&row.Name, &row.NextBlockStart, &row.BlockSize, &row.Advances)
	return row, err
}
