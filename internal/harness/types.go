package harness

import "github.com/tcclabs/exodus/internal/kernel"

// Step outcome values recorded in the trace.
const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"
)

// TraceEvent records one scenario step: the operation attempted, whether the
// kernel applied or rejected it, and the kernel state after the step.
//
// For rejected steps State equals the state before the step (a rejection
// mutates nothing), Error carries the protocol error code, and Fingerprint
// is empty.
type TraceEvent struct {
	Seq         int          `json:"seq"` // 1-based scenario step number
	Op          string       `json:"op"`
	Outcome     string       `json:"outcome"`
	Error       string       `json:"error,omitempty"`
	Fingerprint string       `json:"fingerprint,omitempty"`
	State       kernel.State `json:"state"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace contains one event per scenario step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the kernel state after the last step.
	Final kernel.State `json:"final"`

	// Step is the kernel step cursor after the last step.
	Step int `json:"step"`

	// Terminal reports whether the run reached the terminal state.
	Terminal bool `json:"terminal"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
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

// AddApplied adds an applied transition to the trace.
func (r *Result) AddApplied(seq int, tr kernel.Transition) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:         seq,
		Op:          string(tr.Op),
		Outcome:     OutcomeApplied,
		Fingerprint: tr.Fingerprint,
		State:       tr.To,
	})
}

// AddRejected adds a rejected operation to the trace.
// The state is the kernel state the rejection left untouched.
func (r *Result) AddRejected(seq int, op kernel.Op, code string, state kernel.State) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:     seq,
		Op:      string(op),
		Outcome: OutcomeRejected,
		Error:   code,
		State:   state,
	})
}
