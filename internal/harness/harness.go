package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/tcclabs/exodus/internal/journal"
	"github.com/tcclabs/exodus/internal/kernel"
	"github.com/tcclabs/exodus/internal/testutil"
)

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh kernel and a fresh in-memory journal
// for isolation.
//
// Execution flow:
//  1. Build the seal (canonical constants plus any scenario overrides)
//  2. Open an in-memory journal and begin a run under the fixed token
//  3. Attempt each step; journal applied transitions, trace every step
//  4. Enforce expect clauses
//  5. Replay the journal (untampered scenarios only) and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	jrn, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer jrn.Close()

	runSeal := scenario.BuildSeal()
	tokenGen := testutil.NewFixedTokenGenerator(scenario.RunToken)
	token := tokenGen.Generate()

	ctx := context.Background()
	if err := jrn.Begin(ctx, token, runSeal); err != nil {
		return nil, fmt.Errorf("failed to begin journal run: %w", err)
	}

	k := kernel.New(kernel.WithSeal(runSeal))
	result := NewResult()

	if err := executeSteps(ctx, k, jrn, token, scenario, result); err != nil {
		return nil, err
	}

	result.Final = k.State()
	result.Step = k.Step()
	result.Terminal = k.Terminal()

	// The journal must replay to exactly the state the kernel reached.
	// Tamper scenarios are excluded: a forged snapshot cannot replay.
	if !scenario.Tampered() {
		if _, err := jrn.Replay(ctx, token); err != nil {
			result.AddError(fmt.Sprintf("journal replay diverged: %v", err))
		}
	}

	actx := &AssertionContext{
		State:    result.Final,
		Step:     result.Step,
		Terminal: result.Terminal,
	}
	assertionErrors := EvaluateAssertions(result, scenario.Assertions, actx)
	for _, msg := range assertionErrors {
		result.AddError(msg)
	}

	return result, nil
}

// executeSteps attempts every scenario step against the kernel,
// journaling applied transitions and enforcing expect clauses.
func executeSteps(ctx context.Context, k *kernel.Kernel, jrn *journal.Journal, token string, scenario *Scenario, result *Result) error {
	for i, step := range scenario.Steps {
		seq := i + 1

		op, err := kernel.ParseOp(step.Op)
		if err != nil {
			return fmt.Errorf("step %d: %w", seq, err)
		}

		tr, applyErr := k.Apply(op)

		var outcome, code string
		if applyErr == nil {
			outcome = OutcomeApplied
			if err := jrn.Append(ctx, token, tr); err != nil {
				return fmt.Errorf("step %d: failed to journal transition: %w", seq, err)
			}
			result.AddApplied(seq, tr)
		} else {
			outcome = OutcomeRejected
			var perr *kernel.ProtocolError
			if errors.As(applyErr, &perr) {
				code = string(perr.Code)
			}
			result.AddRejected(seq, op, code, k.State())
		}

		if step.Expect == nil {
			continue
		}
		if step.Expect.Outcome != outcome {
			result.AddError(fmt.Sprintf("step %d (%s): expected outcome %q, got %q",
				seq, op, step.Expect.Outcome, outcome))
			continue
		}
		if step.Expect.Error != "" && step.Expect.Error != code {
			result.AddError(fmt.Sprintf("step %d (%s): expected error code %q, got %q",
				seq, op, step.Expect.Error, code))
		}
	}

	return nil
}
