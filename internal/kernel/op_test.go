package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOp(t *testing.T) {
	tests := []struct {
		input string
		want  Op
	}{
		{"detach", OpDetach},
		{"rewrite", OpRewrite},
		{"elevate", OpElevate},
		{"stabilize", OpStabilize},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			op, err := ParseOp(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, op)
		})
	}
}

func TestParseOp_Unknown(t *testing.T) {
	for _, input := range []string{"", "Detach", "detach ", "broadcast"} {
		_, err := ParseOp(input)
		assert.Error(t, err, "input %q should not parse", input)
	}
}

func TestOps_ProtocolOrder(t *testing.T) {
	ops := Ops()
	require.Len(t, ops, 4)

	for i, op := range ops {
		assert.Equal(t, i+1, op.position(), "op %s at index %d", op, i)
	}
}

func TestState_ValueSpaces(t *testing.T) {
	assert.True(t, InitialState().Valid())
	assert.False(t, InitialState().Terminal())

	assert.False(t, Phase("").Valid())
	assert.False(t, RewriteStatus("maybe").Valid())
	assert.False(t, PayloadState("ascended").Valid())

	terminal := State{Phase: PhaseFinal, Rewrite: RewriteDone, Payload: PayloadElevated, Stable: true}
	assert.True(t, terminal.Valid())
	assert.True(t, terminal.Terminal())

	// Stable alone is not terminal; the phase must be final too.
	assert.False(t, State{Phase: PhaseIntermediate, Rewrite: RewriteDone, Payload: PayloadElevated, Stable: true}.Terminal())
}
