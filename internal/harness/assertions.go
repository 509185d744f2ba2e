package harness

import (
	"fmt"
	"strings"

	"github.com/tcclabs/exodus/internal/kernel"
)

// AssertionError reports one failed assertion along with the full trace,
// so a scenario failure can be read without re-running it.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			if event.Error != "" {
				fmt.Fprintf(&buf, "  [%d] %s %s (%s)\n", event.Seq, event.Op, event.Outcome, event.Error)
			} else {
				fmt.Fprintf(&buf, "  [%d] %s %s\n", event.Seq, event.Op, event.Outcome)
			}
		}
	}

	return buf.String()
}

// matchEvent reports whether the event satisfies the assertion's filters.
// Absent filters match anything.
func matchEvent(event TraceEvent, assertion Assertion) bool {
	if event.Op != assertion.Op {
		return false
	}
	if assertion.Outcome != "" && event.Outcome != assertion.Outcome {
		return false
	}
	if assertion.Error != "" && event.Error != assertion.Error {
		return false
	}
	return true
}

// describeEventFilter renders an event filter for failure messages.
func describeEventFilter(assertion Assertion) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "op %s", assertion.Op)
	if assertion.Outcome != "" {
		fmt.Fprintf(&buf, " outcome=%s", assertion.Outcome)
	}
	if assertion.Error != "" {
		fmt.Fprintf(&buf, " error=%s", assertion.Error)
	}
	return buf.String()
}

// assertTraceContains requires at least one trace event matching the op
// and any outcome/error filters.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matchEvent(event, assertion) {
			return nil
		}
	}

	return &AssertionError{
		Type:     "trace_contains",
		Expected: describeEventFilter(assertion),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder requires the named ops to have been applied as a
// subsequence of the trace: each must appear, and in the given order, but
// other steps may sit between them. Rejected attempts do not establish a
// position.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	// First applied position of each expected op.
	positions := make(map[string]int)

	for _, event := range trace {
		if event.Outcome != OutcomeApplied {
			continue
		}
		for _, expectedOp := range assertion.Ops {
			if event.Op == expectedOp && positions[expectedOp] == 0 {
				positions[expectedOp] = event.Seq
			}
		}
	}

	for _, op := range assertion.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     "trace_order",
				Expected: fmt.Sprintf("all ops applied: %v", assertion.Ops),
				Actual:   fmt.Sprintf("op never applied: %s", op),
				Trace:    trace,
			}
		}
	}

	// Positions must be strictly increasing along the expected order.
	for i := 1; i < len(assertion.Ops); i++ {
		prev := assertion.Ops[i-1]
		curr := assertion.Ops[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     "trace_order",
				Expected: fmt.Sprintf("ops in order: %v", assertion.Ops),
				Actual: fmt.Sprintf("%s (step %d) should be before %s (step %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount requires the op to appear an exact number of times.
// An outcome filter narrows the count to applied or rejected events;
// without one every attempt counts.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0

	for _, event := range trace {
		if event.Op != assertion.Op {
			continue
		}
		if assertion.Outcome != "" && event.Outcome != assertion.Outcome {
			continue
		}
		count++
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     "trace_count",
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, describeEventFilter(assertion)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState compares the named fields of the final kernel state.
// Fields the assertion leaves out are unchecked.
func assertFinalState(actx *AssertionContext, assertion Assertion) error {
	if assertion.Phase != "" && string(actx.State.Phase) != assertion.Phase {
		return &AssertionError{
			Type:     "final_state",
			Expected: fmt.Sprintf("phase %q", assertion.Phase),
			Actual:   fmt.Sprintf("phase %q", actx.State.Phase),
		}
	}

	if assertion.Rewrite != "" && string(actx.State.Rewrite) != assertion.Rewrite {
		return &AssertionError{
			Type:     "final_state",
			Expected: fmt.Sprintf("rewrite %q", assertion.Rewrite),
			Actual:   fmt.Sprintf("rewrite %q", actx.State.Rewrite),
		}
	}

	if assertion.Payload != "" && string(actx.State.Payload) != assertion.Payload {
		return &AssertionError{
			Type:     "final_state",
			Expected: fmt.Sprintf("payload %q", assertion.Payload),
			Actual:   fmt.Sprintf("payload %q", actx.State.Payload),
		}
	}

	if assertion.Stable != nil && actx.State.Stable != *assertion.Stable {
		return &AssertionError{
			Type:     "final_state",
			Expected: fmt.Sprintf("stable %t", *assertion.Stable),
			Actual:   fmt.Sprintf("stable %t", actx.State.Stable),
		}
	}

	if assertion.Terminal != nil && actx.Terminal != *assertion.Terminal {
		return &AssertionError{
			Type:     "final_state",
			Expected: fmt.Sprintf("terminal %t", *assertion.Terminal),
			Actual:   fmt.Sprintf("terminal %t", actx.Terminal),
		}
	}

	return nil
}

// AssertionContext carries the final kernel position for final_state checks.
type AssertionContext struct {
	State    kernel.State
	Step     int
	Terminal bool
}

// EvaluateAssertions runs every assertion and collects the failure
// messages. An empty slice means the scenario's assertions all held.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires state context", i)
			} else {
				err = assertFinalState(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
