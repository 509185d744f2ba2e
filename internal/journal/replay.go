package journal

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tcclabs/exodus/internal/kernel"
	"github.com/tcclabs/exodus/internal/seal"
)

// ReplayResult describes the state re-derived from a run's journaled
// transitions.
type ReplayResult struct {
	Token       string
	State       kernel.State
	Step        int
	Terminal    bool
	Fingerprint string
	Transitions []kernel.Transition
}

// Replay rebuilds a fresh kernel from a run's journaled transitions and
// verifies the record against it step by step.
//
// Verification covers, in order:
//  1. the seal snapshot taken at Begin matches the canonical seal
//  2. journaled seqs form the contiguous series 1..n
//  3. each journaled source state matches the kernel before the op
//  4. each journaled op applies cleanly
//  5. each journaled result state and fingerprint match the kernel after
//
// Any divergence returns an integrity violation naming the offending seq.
// Returns sql.ErrNoRows (wrapped) if the run is not journaled.
func (j *Journal) Replay(ctx context.Context, token string) (ReplayResult, error) {
	res, _, err := j.replay(ctx, token)
	return res, err
}

// Resume replays a run and returns the live kernel positioned after its last
// journaled transition, ready for the next operation.
func (j *Journal) Resume(ctx context.Context, token string) (*kernel.Kernel, error) {
	_, k, err := j.replay(ctx, token)
	return k, err
}

func (j *Journal) replay(ctx context.Context, token string) (ReplayResult, *kernel.Kernel, error) {
	run, err := j.ReadRun(ctx, token)
	if err != nil {
		return ReplayResult{}, nil, fmt.Errorf("replay run %s: %w", token, err)
	}

	// A tampered snapshot must fail even for a run with no transitions.
	canonical := seal.Canonical()
	if !run.Seal.Equal(canonical) {
		return ReplayResult{}, nil, fmt.Errorf("replay run %s: %w", token,
			kernel.NewIntegrityError("run seal snapshot", canonical.String(), run.Seal.String()))
	}

	transitions, err := j.ReadTransitions(ctx, token)
	if err != nil {
		return ReplayResult{}, nil, fmt.Errorf("replay run %s: %w", token, err)
	}

	k := kernel.New(kernel.WithSeal(run.Seal))
	for i, rec := range transitions {
		if rec.Seq != i+1 {
			return ReplayResult{}, nil, fmt.Errorf("replay run %s: %w", token,
				kernel.NewIntegrityError("journaled transition seq",
					strconv.Itoa(i+1), strconv.Itoa(rec.Seq)))
		}

		if rec.From != k.State() {
			return ReplayResult{}, nil, fmt.Errorf("replay run %s: %w", token,
				kernel.NewIntegrityError(
					fmt.Sprintf("transition %d source state", rec.Seq),
					stateString(k.State()), stateString(rec.From)))
		}

		derived, err := k.Apply(rec.Op)
		if err != nil {
			return ReplayResult{}, nil, fmt.Errorf("replay run %s: seq %d: %w", token, rec.Seq, err)
		}

		if rec.To != derived.To {
			return ReplayResult{}, nil, fmt.Errorf("replay run %s: %w", token,
				kernel.NewIntegrityError(
					fmt.Sprintf("transition %d result state", rec.Seq),
					stateString(derived.To), stateString(rec.To)))
		}

		if rec.Fingerprint != derived.Fingerprint {
			return ReplayResult{}, nil, fmt.Errorf("replay run %s: %w", token,
				kernel.NewIntegrityError(
					fmt.Sprintf("transition %d fingerprint", rec.Seq),
					derived.Fingerprint, rec.Fingerprint))
		}
	}

	res := ReplayResult{
		Token:       token,
		State:       k.State(),
		Step:        k.Step(),
		Terminal:    k.Terminal(),
		Fingerprint: k.Fingerprint(),
		Transitions: transitions,
	}
	return res, k, nil
}

// VerifyAll replays every journaled run and returns the results in run token
// order. Verification stops at the first divergent run.
func (j *Journal) VerifyAll(ctx context.Context) ([]ReplayResult, error) {
	tokens, err := j.ListRuns(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]ReplayResult, 0, len(tokens))
	for _, token := range tokens {
		res, err := j.Replay(ctx, token)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	return results, nil
}

// stateString renders a state in the fingerprint vocabulary for error text.
func stateString(s kernel.State) string {
	return fmt.Sprintf("phase=%s rewrite=%s payload=%s stable=%t",
		s.Phase, s.Rewrite, s.Payload, s.Stable)
}
