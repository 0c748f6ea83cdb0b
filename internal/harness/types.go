package harness

// TraceEvent records the outcome of a single allocation.
type TraceEvent struct {
	Seq      int64  `json:"seq"`
	Sequence string `json:"sequence"`
	Instance string `json:"instance"`
	ID       int64  `json:"id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion matched.
	Pass bool `json:"pass"`

	// Trace contains every allocation attempt in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addIssued(sequence, instance string, id int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:      int64(len(r.Trace) + 1),
		Sequence: sequence,
		Instance: instance,
		ID:       id,
	})
}

func (r *Result) addFailed(sequence, instance, code string) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:      int64(len(r.Trace) + 1),
		Sequence: sequence,
		Instance: instance,
		Error:    code,
	})
}

// Issued returns the ids issued for sequence, in trace order.
func (r *Result) Issued(sequence string) []int64 {
	var ids []int64
	for _, ev := range r.Trace {
		if ev.Sequence == sequence && ev.Error == "" {
			ids = append(ids, ev.ID)
		}
	}
	return ids
}
