package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/legacyid/internal/sequence"
)

func reserve(ctx context.Context, s *FakeCounterStore, name string) (sequence.Block, error) {
	var blk sequence.Block
	err := s.WithinTx(ctx, func(tx sequence.CounterTx) error {
		var err error
		blk, err = tx.ReadBlock(ctx, name)
		if err != nil {
			return err
		}
		return tx.AdvanceBlock(ctx, name, blk.End())
	})
	return blk, err
}

func TestFakeCounterStore_CommitAdvancesRow(t *testing.T) {
	ctx := context.Background()
	s := NewFakeCounterStore(sequence.Counter{Name: "review_id_seq", NextBlockStart: 500, BlockSize: 5})

	blk, err := reserve(ctx, s, "review_id_seq")
	require.NoError(t, err)
	assert.Equal(t, sequence.Block{Start: 500, Size: 5}, blk)

	row, ok := s.Row("review_id_seq")
	require.True(t, ok)
	assert.Equal(t, int64(505), row.NextBlockStart)
	assert.Equal(t, 1, s.Commits())
	assert.Equal(t, 0, s.Rollbacks())
	assert.Equal(t, 1, s.Reads("review_id_seq"))
}

func TestFakeCounterStore_ReadSeesStagedWrite(t *testing.T) {
	ctx := context.Background()
	s := NewFakeCounterStore(sequence.Counter{Name: "a", NextBlockStart: 1, BlockSize: 10})

	err := s.WithinTx(ctx, func(tx sequence.CounterTx) error {
		require.NoError(t, tx.AdvanceBlock(ctx, "a", 11))
		blk, err := tx.ReadBlock(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, int64(11), blk.Start)
		return nil
	})
	require.NoError(t, err)
}

func TestFakeCounterStore_ErrorRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewFakeCounterStore(sequence.Counter{Name: "a", NextBlockStart: 1, BlockSize: 10})
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(tx sequence.CounterTx) error {
		require.NoError(t, tx.AdvanceBlock(ctx, "a", 11))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	row, _ := s.Row("a")
	assert.Equal(t, int64(1), row.NextBlockStart)
	assert.Equal(t, 0, s.Commits())
	assert.Equal(t, 1, s.Rollbacks())
}

func TestFakeCounterStore_MissingRow(t *testing.T) {
	ctx := context.Background()
	s := NewFakeCounterStore()

	_, err := reserve(ctx, s, "missing")
	assert.ErrorIs(t, err, sequence.ErrSequenceNotFound)

	err = s.WithinTx(ctx, func(tx sequence.CounterTx) error {
		return tx.AdvanceBlock(ctx, "missing", 2)
	})
	assert.ErrorIs(t, err, sequence.ErrSequenceNotFound)
}

func TestFakeCounterStore_FailNext(t *testing.T) {
	for _, op := range []Op{OpBegin, OpRead, OpAdvance, OpCommit} {
		t.Run(string(op), func(t *testing.T) {
			ctx := context.Background()
			s := NewFakeCounterStore(sequence.Counter{Name: "a", NextBlockStart: 1, BlockSize: 10})
			s.FailNext(op, nil)

			_, err := reserve(ctx, s, "a")
			assert.ErrorIs(t, err, ErrInjected)

			row, _ := s.Row("a")
			assert.Equal(t, int64(1), row.NextBlockStart)
			assert.Equal(t, 1, s.Rollbacks())

			// The fault is consumed.
			blk, err := reserve(ctx, s, "a")
			require.NoError(t, err)
			assert.Equal(t, int64(1), blk.Start)
		})
	}
}

func TestFakeCounterStore_FailNextQueuesInOrder(t *testing.T) {
	ctx := context.Background()
	s := NewFakeCounterStore(sequence.Counter{Name: "a", NextBlockStart: 1, BlockSize: 1})
	first := errors.New("first")
	second := errors.New("second")
	s.FailNext(OpCommit, first)
	s.FailNext(OpCommit, second)

	_, err := reserve(ctx, s, "a")
	assert.ErrorIs(t, err, first)
	_, err = reserve(ctx, s, "a")
	assert.ErrorIs(t, err, second)
	_, err = reserve(ctx, s, "a")
	assert.NoError(t, err)
}

func TestFakeCounterStore_OnBegin(t *testing.T) {
	ctx := context.Background()
	s := NewFakeCounterStore(sequence.Counter{Name: "a", NextBlockStart: 1, BlockSize: 1})
	hookErr := errors.New("hook")
	s.OnBegin(func(context.Context) error { return hookErr })

	_, err := reserve(ctx, s, "a")
	assert.ErrorIs(t, err, hookErr)
	assert.Equal(t, 0, s.Reads("a"))

	s.OnBegin(nil)
	_, err = reserve(ctx, s, "a")
	assert.NoError(t, err)
}

func TestFakeCounterStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewFakeCounterStore(sequence.Counter{Name: "a", NextBlockStart: 1, BlockSize: 1})

	_, err := reserve(ctx, s, "a")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, s.Reads("a"))
}
