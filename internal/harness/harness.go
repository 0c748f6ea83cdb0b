package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/legacyid/internal/sequence"
	"github.com/roach88/legacyid/internal/testutil"
)

const defaultInstance = "default"

// Harness executes one scenario against a fresh in-memory counter store.
type Harness struct {
	store      *testutil.FakeCounterStore
	allocators map[string]*sequence.Allocator
	logger     *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Provision the scenario's counters in a fresh FakeCounterStore
// 2. Execute flow steps, injecting faults and validating expect clauses
// 3. Evaluate assertions against the trace and the committed rows
//
// The returned error is reserved for harness failures; scenario mismatches
// are reported in Result.Errors.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	if scenario == nil {
		return nil, fmt.Errorf("nil scenario")
	}

	st := testutil.NewFakeCounterStore()
	for _, c := range scenario.Counters {
		st.Put(sequence.Counter{Name: c.Name, NextBlockStart: c.Start, BlockSize: c.BlockSize})
	}

	h := &Harness{
		store:      st,
		allocators: make(map[string]*sequence.Allocator),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	result := NewResult()
	for i, step := range scenario.Flow {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("flow[%d]: %w", i, err)
		}
		h.executeStep(ctx, i, step, result)
	}

	for _, a := range scenario.Assertions {
		if msg := h.evaluate(a, result); msg != "" {
			result.AddError(msg)
		}
	}
	return result, nil
}

// allocator returns the allocator for an instance label and sequence,
// creating it on first use.
func (h *Harness) allocator(instance, name string) *sequence.Allocator {
	key := instance + "/" + name
	a, ok := h.allocators[key]
	if !ok {
		a = sequence.NewAllocator(name, h.store,
			sequence.WithInstanceID(instance),
			sequence.WithLogger(h.logger),
		)
		h.allocators[key] = a
	}
	return a
}

func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) {
	instance := step.Instance
	if instance == "" {
		instance = defaultInstance
	}
	count := step.Count
	if count == 0 {
		count = 1
	}

	if step.Resize > 0 {
		if row, ok := h.store.Row(step.Next); ok {
			row.BlockSize = step.Resize
			h.store.Put(row)
		}
	}
	if step.Fail != "" {
		h.store.FailNext(testutil.Op(step.Fail), nil)
	}

	a := h.allocator(instance, step.Next)
	var ids []int64
	var code string
	for n := 0; n < count; n++ {
		id, err := a.NextID(ctx)
		if err != nil {
			code = errorCode(err)
			result.addFailed(step.Next, instance, code)
			break
		}
		ids = append(ids, id)
		result.addIssued(step.Next, instance, id)
	}

	expect := step.Expect
	if expect == nil {
		if code != "" {
			result.AddError(fmt.Sprintf("flow[%d]: unexpected error %s", index, code))
		}
		return
	}
	if expect.IDs != nil && !slices.Equal(ids, expect.IDs) {
		result.AddError(fmt.Sprintf("flow[%d]: ids = %v, want %v", index, ids, expect.IDs))
	}
	if code != expect.Error {
		result.AddError(fmt.Sprintf("flow[%d]: error = %q, want %q", index, code, expect.Error))
	}
}

func (h *Harness) evaluate(a Assertion, result *Result) string {
	switch a.Type {
	case AssertFinalState:
		row, ok := h.store.Row(a.Sequence)
		if !ok {
			return fmt.Sprintf("final_state: sequence %q not provisioned", a.Sequence)
		}
		if row.NextBlockStart != a.NextBlockStart {
			return fmt.Sprintf("final_state: %s next_block_start = %d, want %d",
				a.Sequence, row.NextBlockStart, a.NextBlockStart)
		}
	case AssertUniqueIDs:
		seen := make(map[string]map[int64]bool)
		for _, ev := range result.Trace {
			if ev.Error != "" || (a.Sequence != "" && ev.Sequence != a.Sequence) {
				continue
			}
			if seen[ev.Sequence] == nil {
				seen[ev.Sequence] = make(map[int64]bool)
			}
			if seen[ev.Sequence][ev.ID] {
				return fmt.Sprintf("unique_ids: %s issued %d twice", ev.Sequence, ev.ID)
			}
			seen[ev.Sequence][ev.ID] = true
		}
	case AssertIssuedCount:
		if got := len(result.Issued(a.Sequence)); got != a.Count {
			return fmt.Sprintf("issued_count: %s issued %d ids, want %d", a.Sequence, got, a.Count)
		}
	case AssertReadCount:
		if got := h.store.Reads(a.Sequence); got != a.Count {
			return fmt.Sprintf("read_count: %s read %d times, want %d", a.Sequence, got, a.Count)
		}
	}
	return ""
}

// errorCode returns the sequence.ErrorCode carried by err, or "UNKNOWN".
func errorCode(err error) string {
	var seqErr *sequence.Error
	if errors.As(err, &seqErr) {
		return string(seqErr.Code)
	}
	return "UNKNOWN"
}
