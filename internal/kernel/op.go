package kernel

import "fmt"

// Op identifies one protocol operation. The wire form is the lowercase
// name used in journals, scenario files, and the CLI.
type Op string

const (
	// OpDetach leaves the initial phase. Position 1.
	OpDetach Op = "detach"

	// OpRewrite marks the script rewrite done. Position 2.
	OpRewrite Op = "rewrite"

	// OpElevate raises the payload out of the base state. Position 3.
	OpElevate Op = "elevate"

	// OpStabilize locks the terminal phase. Position 4.
	OpStabilize Op = "stabilize"
)

// Ops returns the four operations in protocol order.
func Ops() []Op {
	return []Op{OpDetach, OpRewrite, OpElevate, OpStabilize}
}

// Valid reports whether the op is one of the four protocol operations.
func (o Op) Valid() bool {
	return o.position() != 0
}

// position returns the 1-based protocol position of the op, or 0 for an
// unknown op.
func (o Op) position() int {
	switch o {
	case OpDetach:
		return 1
	case OpRewrite:
		return 2
	case OpElevate:
		return 3
	case OpStabilize:
		return 4
	}
	return 0
}

// ParseOp converts a wire-form operation name to an Op.
func ParseOp(s string) (Op, error) {
	op := Op(s)
	if !op.Valid() {
		return "", fmt.Errorf("unknown operation %q (valid: detach, rewrite, elevate, stabilize)", s)
	}
	return op, nil
}
