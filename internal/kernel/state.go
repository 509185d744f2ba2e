package kernel

// Phase is the coarse position of a run within the protocol.
type Phase string

const (
	// PhaseInitial is the phase every kernel starts in.
	PhaseInitial Phase = "initial"

	// PhaseIntermediate is entered by the detach operation and left by
	// the stabilize operation.
	PhaseIntermediate Phase = "intermediate"

	// PhaseFinal is the terminal phase. No operation leaves it.
	PhaseFinal Phase = "final"
)

// Valid reports whether the phase is inside its value space.
func (p Phase) Valid() bool {
	switch p {
	case PhaseInitial, PhaseIntermediate, PhaseFinal:
		return true
	}
	return false
}

// RewriteStatus tracks whether the script rewrite has been performed.
type RewriteStatus string

const (
	RewritePending RewriteStatus = "pending"
	RewriteDone    RewriteStatus = "done"
)

// Valid reports whether the status is inside its value space.
func (r RewriteStatus) Valid() bool {
	return r == RewritePending || r == RewriteDone
}

// PayloadState tracks whether the payload has been elevated.
type PayloadState string

const (
	PayloadBase     PayloadState = "base"
	PayloadElevated PayloadState = "elevated"
)

// Valid reports whether the payload state is inside its value space.
func (p PayloadState) Valid() bool {
	return p == PayloadBase || p == PayloadElevated
}

// State is the full protocol state record. All fields move in one
// direction only; no operation ever moves a field back.
type State struct {
	Phase   Phase         `json:"phase"`
	Rewrite RewriteStatus `json:"rewrite"`
	Payload PayloadState  `json:"payload"`
	Stable  bool          `json:"stable"`
}

// InitialState returns the state every kernel starts in.
func InitialState() State {
	return State{
		Phase:   PhaseInitial,
		Rewrite: RewritePending,
		Payload: PayloadBase,
		Stable:  false,
	}
}

// Valid reports whether every field is inside its value space.
func (s State) Valid() bool {
	return s.Phase.Valid() && s.Rewrite.Valid() && s.Payload.Valid()
}

// Terminal reports whether the state is the terminal state reached by the
// full protocol order.
func (s State) Terminal() bool {
	return s.Phase == PhaseFinal && s.Stable
}
