package kernel

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/tcclabs/exodus/internal/seal"
)

// Transition records one applied operation. Rejected operations produce
// no Transition.
type Transition struct {
	// Seq is the step cursor after application (1..4).
	Seq int `json:"seq"`

	// Op is the operation that was applied.
	Op Op `json:"op"`

	// From is the state before the operation.
	From State `json:"from"`

	// To is the state after the operation.
	To State `json:"to"`

	// Fingerprint is the kernel attestation taken after application.
	Fingerprint string `json:"fingerprint"`
}

// Kernel is the phase-locked transition sequencer.
//
// A kernel starts at the initial state with the step cursor at zero and
// accepts exactly one call order: detach, rewrite, elevate, stabilize.
// Every operation runs the full integrity check before anything else,
// then its state-field guard, then the cursor check. Any failure returns
// a ProtocolError and mutates nothing.
//
// Thread-safety: all operations and accessors serialize on a per-instance
// mutex, so a single kernel may be shared. The protocol itself remains
// strictly sequential; the mutex buys safety, not concurrency.
type Kernel struct {
	mu sync.Mutex

	seal   seal.Seal
	state  State
	step   int
	sealed bool // set by New; a zero-value Kernel fails every integrity check
}

// Option configures a Kernel at construction.
type Option func(*Kernel)

// WithSeal overrides the kernel's seal copy.
//
// This is a diagnostic injection point for conformance scenarios: a kernel
// built with a non-canonical seal fails every operation with
// INTEGRITY_VIOLATION, forever.
func WithSeal(s seal.Seal) Option {
	return func(k *Kernel) { k.seal = s }
}

// New creates a kernel at the initial state carrying the canonical seal.
func New(opts ...Option) *Kernel {
	k := &Kernel{
		seal:   seal.Canonical(),
		state:  InitialState(),
		sealed: true,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Apply executes one protocol operation.
//
// On success the returned Transition records the step number, the states
// on both sides of the operation, and the post-application fingerprint.
// On failure the kernel is byte-for-byte unchanged and the error is a
// *ProtocolError carrying the rejection category.
func (k *Kernel) Apply(op Op) (Transition, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if !op.Valid() {
		return Transition{}, fmt.Errorf("unknown operation %q", op)
	}

	if err := k.integrityCheck(); err != nil {
		slog.Debug("operation rejected", "op", op, "step", k.step, "code", ErrCodeIntegrity)
		return Transition{}, err
	}

	if err := k.checkGuard(op); err != nil {
		slog.Debug("operation rejected", "op", op, "step", k.step, "code", err.Code)
		return Transition{}, err
	}

	// Strict cursor: the op at position k requires exactly k-1 prior
	// applications. Field guards alone would let rewrite, elevate, and
	// stabilize repeat once their one-way fields have flipped.
	if want := op.position() - 1; k.step != want {
		err := NewPhaseOrderError(op, fmt.Sprintf("step %d", want), fmt.Sprintf("step %d", k.step))
		slog.Debug("operation rejected", "op", op, "step", k.step, "code", err.Code)
		return Transition{}, err
	}

	from := k.state
	to := from
	switch op {
	case OpDetach:
		to.Phase = PhaseIntermediate
	case OpRewrite:
		to.Rewrite = RewriteDone
	case OpElevate:
		to.Payload = PayloadElevated
	case OpStabilize:
		to.Stable = true
		to.Phase = PhaseFinal
	}

	k.state = to
	k.step++

	tr := Transition{
		Seq:         k.step,
		Op:          op,
		From:        from,
		To:          to,
		Fingerprint: k.fingerprint(),
	}

	slog.Info("operation applied",
		"op", op,
		"seq", tr.Seq,
		"phase", to.Phase,
		"rewrite", to.Rewrite,
		"payload", to.Payload,
		"stable", to.Stable,
	)

	return tr, nil
}

// Detach executes position 1: leave the initial phase.
// Requires phase "initial"; violation is a phase order error.
func (k *Kernel) Detach() (Transition, error) {
	return k.Apply(OpDetach)
}

// Rewrite executes position 2: mark the script rewrite done.
// Requires phase "intermediate"; violation is a phase order error.
func (k *Kernel) Rewrite() (Transition, error) {
	return k.Apply(OpRewrite)
}

// Elevate executes position 3: raise the payload out of the base state.
// Requires rewrite "done"; violation is a precondition failure.
func (k *Kernel) Elevate() (Transition, error) {
	return k.Apply(OpElevate)
}

// Stabilize executes position 4: set stable and lock the final phase.
// Requires payload "elevated"; violation is a precondition failure.
func (k *Kernel) Stabilize() (Transition, error) {
	return k.Apply(OpStabilize)
}

// State returns a copy of the current state.
func (k *Kernel) State() State {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state
}

// Step returns the current step cursor (0..4).
func (k *Kernel) Step() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.step
}

// Seal returns a copy of the kernel's seal.
func (k *Kernel) Seal() seal.Seal {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.seal
}

// Terminal reports whether the kernel has reached the terminal state.
func (k *Kernel) Terminal() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.state.Terminal()
}

// Fingerprint returns the deterministic attestation line for the current
// seal, state, and cursor position.
func (k *Kernel) Fingerprint() string {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.fingerprint()
}

// fingerprint formats the attestation line. Callers must hold mu.
func (k *Kernel) fingerprint() string {
	return fmt.Sprintf("%s::law=%d::constant=%d::phase=%s::rewrite=%s::payload=%s::stable=%t::step=%d",
		k.seal.ProtocolID, k.seal.Law, k.seal.Constant,
		k.state.Phase, k.state.Rewrite, k.state.Payload, k.state.Stable, k.step)
}

// checkGuard enforces the per-operation state-field guard. Guards are
// checked before the cursor so a wrong-state call reports the error kind
// tied to its guard rather than a generic ordering failure.
func (k *Kernel) checkGuard(op Op) *ProtocolError {
	switch op {
	case OpDetach:
		if k.state.Phase != PhaseInitial {
			return NewPhaseOrderError(op, `phase "initial"`, fmt.Sprintf("phase %q", k.state.Phase))
		}
	case OpRewrite:
		if k.state.Phase != PhaseIntermediate {
			return NewPhaseOrderError(op, `phase "intermediate"`, fmt.Sprintf("phase %q", k.state.Phase))
		}
	case OpElevate:
		if k.state.Rewrite != RewriteDone {
			return NewPreconditionError(op, `rewrite "done"`, fmt.Sprintf("rewrite %q", k.state.Rewrite))
		}
	case OpStabilize:
		if k.state.Payload != PayloadElevated {
			return NewPreconditionError(op, `payload "elevated"`, fmt.Sprintf("payload %q", k.state.Payload))
		}
	}
	return nil
}

// integrityCheck validates the whole kernel before an operation proceeds.
// Checks run in a fixed order: construction flag, seal equality against
// the canonical seal, state value spaces, stable/phase coherence, cursor
// range. The first failure wins.
func (k *Kernel) integrityCheck() error {
	if !k.sealed {
		return NewIntegrityError("construction", "kernel built by New", "zero-value kernel")
	}

	canonical := seal.Canonical()
	if !k.seal.Equal(canonical) {
		return NewIntegrityError("seal", canonical.String(), k.seal.String())
	}

	if !k.state.Phase.Valid() {
		return NewIntegrityError("phase value", "one of initial, intermediate, final", string(k.state.Phase))
	}
	if !k.state.Rewrite.Valid() {
		return NewIntegrityError("rewrite value", "one of pending, done", string(k.state.Rewrite))
	}
	if !k.state.Payload.Valid() {
		return NewIntegrityError("payload value", "one of base, elevated", string(k.state.Payload))
	}

	if k.state.Stable && k.state.Phase != PhaseFinal {
		return NewIntegrityError("stable coherence", `stable only in phase "final"`, fmt.Sprintf("stable in phase %q", k.state.Phase))
	}

	if k.step < 0 || k.step > len(Ops()) {
		return NewIntegrityError("step range", fmt.Sprintf("0..%d", len(Ops())), fmt.Sprintf("%d", k.step))
	}

	return nil
}
