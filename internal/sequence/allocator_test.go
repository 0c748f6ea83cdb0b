package sequence_test

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/legacyid/internal/sequence"
	"github.com/roach88/legacyid/internal/testutil"
)

func newStore(name string, start, size int64) *testutil.FakeCounterStore {
	return testutil.NewFakeCounterStore(sequence.Counter{
		Name:           name,
		NextBlockStart: start,
		BlockSize:      size,
	})
}

func TestAllocator_ReviewSequenceScenario(t *testing.T) {
	ctx := context.Background()
	st := newStore("review_id_seq", 500, 5)
	a := sequence.NewAllocator("review_id_seq", st)

	id, err := a.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(500), id)
	row, _ := st.Row("review_id_seq")
	assert.Equal(t, int64(505), row.NextBlockStart)
	assert.Equal(t, 1, st.Reads("review_id_seq"))

	for _, want := range []int64{501, 502, 503, 504} {
		id, err := a.NextID(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
	// No store traffic while the block lasts
	assert.Equal(t, 1, st.Reads("review_id_seq"))
	assert.Equal(t, 1, st.Commits())

	id, err = a.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(505), id)
	assert.Equal(t, 2, st.Reads("review_id_seq"))
	row, _ = st.Row("review_id_seq")
	assert.Equal(t, int64(510), row.NextBlockStart)
}

func TestAllocator_BlockContainment(t *testing.T) {
	ctx := context.Background()
	st := newStore("seq", 100, 10)
	a := sequence.NewAllocator("seq", st)

	for want := int64(100); want < 110; want++ {
		id, err := a.NextID(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, id)

		// The whole block was reserved before the first value came back
		row, _ := st.Row("seq")
		assert.Equal(t, int64(110), row.NextBlockStart)
	}
	assert.Equal(t, 1, st.Reads("seq"))
}

func TestAllocator_BlockSizeOne(t *testing.T) {
	ctx := context.Background()
	st := newStore("seq", 1, 1)
	a := sequence.NewAllocator("seq", st)

	for want := int64(1); want <= 4; want++ {
		id, err := a.NextID(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
	assert.Equal(t, 4, st.Reads("seq"))
	row, _ := st.Row("seq")
	assert.Equal(t, int64(5), row.NextBlockStart)
}

func TestAllocator_NoStoreAccessOnConstruction(t *testing.T) {
	st := newStore("seq", 1, 10)
	a := sequence.NewAllocator("seq", st)

	assert.Equal(t, "seq", a.Name())
	assert.NotEmpty(t, a.InstanceID())
	assert.Equal(t, 0, st.Reads("seq"))

	next, available := a.State()
	assert.Equal(t, int64(1), next)
	assert.Equal(t, int64(0), available)
}

func TestAllocator_State(t *testing.T) {
	ctx := context.Background()
	st := newStore("seq", 100, 10)
	a := sequence.NewAllocator("seq", st, sequence.WithInstanceID("worker-1"))
	assert.Equal(t, "worker-1", a.InstanceID())

	_, err := a.NextID(ctx)
	require.NoError(t, err)

	next, available := a.State()
	assert.Equal(t, int64(101), next)
	assert.Equal(t, int64(9), available)
}

func TestAllocator_MissingRowIsConfigurationError(t *testing.T) {
	st := testutil.NewFakeCounterStore()
	a := sequence.NewAllocator("missing_seq", st)

	id, err := a.NextID(context.Background())
	require.Error(t, err)
	assert.Zero(t, id)
	assert.True(t, sequence.IsConfigurationError(err))
	assert.False(t, sequence.IsTransactionError(err))
	assert.ErrorIs(t, err, sequence.ErrSequenceNotFound)

	var se *sequence.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, sequence.ErrCodeNotProvisioned, se.Code)
	assert.Equal(t, "missing_seq", se.Sequence)
	assert.Contains(t, err.Error(), "SEQUENCE_NOT_PROVISIONED")
}

func TestAllocator_InvalidBlockSize(t *testing.T) {
	st := newStore("seq", 10, 0)
	a := sequence.NewAllocator("seq", st)

	_, err := a.NextID(context.Background())
	require.Error(t, err)
	assert.True(t, sequence.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "block size must be positive")

	// Nothing was reserved
	row, _ := st.Row("seq")
	assert.Equal(t, int64(10), row.NextBlockStart)
	assert.Equal(t, 1, st.Rollbacks())
}

func TestAllocator_RejectsBlockBelowIssuedIDs(t *testing.T) {
	ctx := context.Background()
	st := newStore("seq", 100, 2)
	a := sequence.NewAllocator("seq", st)

	for i := 0; i < 2; i++ {
		_, err := a.NextID(ctx)
		require.NoError(t, err)
	}

	// Someone rewound the counter row
	st.Put(sequence.Counter{Name: "seq", NextBlockStart: 50, BlockSize: 2})

	_, err := a.NextID(ctx)
	require.Error(t, err)
	assert.True(t, sequence.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "not above last issued id 101")
}

func TestAllocator_RejectsBlockPastMaxInt64(t *testing.T) {
	ctx := context.Background()
	st := newStore("seq", math.MaxInt64-2, 5)
	a := sequence.NewAllocator("seq", st)

	_, err := a.NextID(ctx)
	require.Error(t, err)
	assert.True(t, sequence.IsConfigurationError(err))
	assert.False(t, sequence.IsTransactionError(err))
	assert.Contains(t, err.Error(), "overflows int64")

	row, _ := st.Row("seq")
	assert.Equal(t, int64(math.MaxInt64-2), row.NextBlockStart)
	assert.Equal(t, 0, st.Commits())
}

func TestAllocator_LastBlockBelowMaxInt64(t *testing.T) {
	ctx := context.Background()
	st := newStore("seq", math.MaxInt64-3, 3)
	a := sequence.NewAllocator("seq", st)

	for _, want := range []int64{math.MaxInt64 - 3, math.MaxInt64 - 2, math.MaxInt64 - 1} {
		id, err := a.NextID(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
	row, _ := st.Row("seq")
	assert.Equal(t, int64(math.MaxInt64), row.NextBlockStart)

	// The next block would run past the maximum.
	_, err := a.NextID(ctx)
	require.Error(t, err)
	assert.True(t, sequence.IsConfigurationError(err))
}

func TestAllocator_AcceptsZeroStartOnFirstBlock(t *testing.T) {
	ctx := context.Background()
	st := newStore("seq", 0, 2)
	a := sequence.NewAllocator("seq", st)

	for _, want := range []int64{0, 1, 2} {
		id, err := a.NextID(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
	row, _ := st.Row("seq")
	assert.Equal(t, int64(4), row.NextBlockStart)
}

func TestAllocator_FailedRefillLeavesStateUntouched(t *testing.T) {
	for _, op := range []testutil.Op{testutil.OpBegin, testutil.OpRead, testutil.OpAdvance, testutil.OpCommit} {
		t.Run(string(op), func(t *testing.T) {
			ctx := context.Background()
			st := newStore("seq", 100, 3)
			a := sequence.NewAllocator("seq", st)

			st.FailNext(op, nil)
			id, err := a.NextID(ctx)
			require.Error(t, err)
			assert.Zero(t, id)
			assert.True(t, sequence.IsTransactionError(err))
			assert.ErrorIs(t, err, testutil.ErrInjected)

			// Row unchanged, allocator still empty
			row, _ := st.Row("seq")
			assert.Equal(t, int64(100), row.NextBlockStart)
			_, available := a.State()
			assert.Equal(t, int64(0), available)

			readsBefore := st.Reads("seq")
			id, err = a.NextID(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(100), id)
			assert.Equal(t, readsBefore+1, st.Reads("seq"), "second call must refill again")

			row, _ = st.Row("seq")
			assert.Equal(t, int64(103), row.NextBlockStart)
		})
	}
}

func TestAllocator_FailedSecondRefillKeepsMonotonicity(t *testing.T) {
	ctx := context.Background()
	st := newStore("seq", 1, 2)
	a := sequence.NewAllocator("seq", st)

	got := make([]int64, 0, 6)
	for i := 0; i < 2; i++ {
		id, err := a.NextID(ctx)
		require.NoError(t, err)
		got = append(got, id)
	}

	st.FailNext(testutil.OpCommit, nil)
	st.FailNext(testutil.OpCommit, nil)
	for i := 0; i < 2; i++ {
		_, err := a.NextID(ctx)
		require.Error(t, err)
	}

	for i := 0; i < 4; i++ {
		id, err := a.NextID(ctx)
		require.NoError(t, err)
		got = append(got, id)
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, got)
}

func TestAllocator_ContextCancelledDuringRefill(t *testing.T) {
	st := newStore("seq", 1, 10)
	a := sequence.NewAllocator("seq", st)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.NextID(ctx)
	require.Error(t, err)
	// Either the lock wait or the transaction notices the cancellation
	assert.True(t, sequence.IsLockTimeout(err) || sequence.IsTransactionError(err))
	assert.ErrorIs(t, err, context.Canceled)

	row, _ := st.Row("seq")
	assert.Equal(t, int64(1), row.NextBlockStart)
}

func TestAllocator_LockTimeout(t *testing.T) {
	st := newStore("seq", 1, 10)
	a := sequence.NewAllocator("seq", st)

	entered := make(chan struct{})
	release := make(chan struct{})
	st.OnBegin(func(ctx context.Context) error {
		close(entered)
		<-release
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(1)
	var firstID int64
	var firstErr error
	go func() {
		defer wg.Done()
		firstID, firstErr = a.NextID(context.Background())
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := a.NextID(ctx)
	require.Error(t, err)
	assert.True(t, sequence.IsLockTimeout(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	st.OnBegin(nil)
	close(release)
	wg.Wait()
	require.NoError(t, firstErr)
	assert.Equal(t, int64(1), firstID)

	// The abandoned call consumed nothing
	id, err := a.NextID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
}

func TestAllocator_ConcurrentCallersGetUniqueIDs(t *testing.T) {
	const (
		workers   = 16
		perWorker = 250
	)
	st := newStore("seq", 1000, 7)
	a := sequence.NewAllocator("seq", st)

	results := make([][]int64, workers)
	g, ctx := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			ids := make([]int64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				id, err := a.NextID(ctx)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			results[w] = ids
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[int64]bool, workers*perWorker)
	for _, ids := range results {
		// Each caller observes its own values in increasing order
		assert.True(t, sort.SliceIsSorted(ids, func(i, j int) bool { return ids[i] < ids[j] }))
		for _, id := range ids {
			assert.False(t, seen[id], "duplicate id %d", id)
			seen[id] = true
		}
	}
	assert.Len(t, seen, workers*perWorker)

	// Single instance, no failures: the ids are dense from the first block
	for id := int64(1000); id < 1000+workers*perWorker; id++ {
		assert.True(t, seen[id], "missing id %d", id)
	}
}

func TestAllocator_SequentialCallsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	st := newStore("seq", 1, 3)
	a := sequence.NewAllocator("seq", st)

	prev := int64(0)
	for i := 0; i < 100; i++ {
		id, err := a.NextID(ctx)
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestAllocator_InstancesSharingStoreAreDisjoint(t *testing.T) {
	const perInstance = 500
	st := newStore("seq", 1, 8)
	a := sequence.NewAllocator("seq", st)
	b := sequence.NewAllocator("seq", st)

	var idsA, idsB []int64
	g, ctx := errgroup.WithContext(context.Background())
	collect := func(alloc *sequence.Allocator, out *[]int64) func() error {
		return func() error {
			for i := 0; i < perInstance; i++ {
				id, err := alloc.NextID(ctx)
				if err != nil {
					return err
				}
				*out = append(*out, id)
			}
			return nil
		}
	}
	g.Go(collect(a, &idsA))
	g.Go(collect(b, &idsB))
	require.NoError(t, g.Wait())

	inA := make(map[int64]bool, perInstance)
	for _, id := range idsA {
		inA[id] = true
	}
	for _, id := range idsB {
		assert.False(t, inA[id], "id %d returned by both instances", id)
	}

	row, _ := st.Row("seq")
	assert.GreaterOrEqual(t, row.NextBlockStart, int64(2*perInstance+1))
}

func TestAllocator_DifferentSequencesAreIndependent(t *testing.T) {
	ctx := context.Background()
	st := testutil.NewFakeCounterStore(
		sequence.Counter{Name: "review_id_seq", NextBlockStart: 500, BlockSize: 5},
		sequence.Counter{Name: "submission_id_seq", NextBlockStart: 9000, BlockSize: 100},
	)
	reviews := sequence.NewAllocator("review_id_seq", st)
	submissions := sequence.NewAllocator("submission_id_seq", st)

	r, err := reviews.NextID(ctx)
	require.NoError(t, err)
	s, err := submissions.NextID(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(500), r)
	assert.Equal(t, int64(9000), s)

	row, _ := st.Row("submission_id_seq")
	assert.Equal(t, int64(9100), row.NextBlockStart)
}
