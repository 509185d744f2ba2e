package kernel

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcclabs/exodus/internal/seal"
)

func TestNew_StartsAtInitialState(t *testing.T) {
	k := New()

	assert.Equal(t, InitialState(), k.State())
	assert.Equal(t, 0, k.Step())
	assert.False(t, k.Terminal())
	assert.True(t, k.Seal().Equal(seal.Canonical()))
}

func TestKernel_FullProtocolOrder(t *testing.T) {
	k := New()

	tr, err := k.Detach()
	require.NoError(t, err)
	assert.Equal(t, 1, tr.Seq)
	assert.Equal(t, OpDetach, tr.Op)
	assert.Equal(t, InitialState(), tr.From)
	assert.Equal(t, PhaseIntermediate, tr.To.Phase)

	tr, err = k.Rewrite()
	require.NoError(t, err)
	assert.Equal(t, 2, tr.Seq)
	assert.Equal(t, RewriteDone, tr.To.Rewrite)
	assert.Equal(t, PhaseIntermediate, tr.To.Phase)

	tr, err = k.Elevate()
	require.NoError(t, err)
	assert.Equal(t, 3, tr.Seq)
	assert.Equal(t, PayloadElevated, tr.To.Payload)

	tr, err = k.Stabilize()
	require.NoError(t, err)
	assert.Equal(t, 4, tr.Seq)
	assert.True(t, tr.To.Stable)
	assert.Equal(t, PhaseFinal, tr.To.Phase)

	assert.True(t, k.Terminal())
	assert.Equal(t, 4, k.Step())
	assert.Equal(t, State{
		Phase:   PhaseFinal,
		Rewrite: RewriteDone,
		Payload: PayloadElevated,
		Stable:  true,
	}, k.State())
}

func TestDetach_Twice_IsPhaseOrderError(t *testing.T) {
	k := New()

	_, err := k.Detach()
	require.NoError(t, err)

	_, err = k.Detach()
	require.Error(t, err)
	assert.True(t, IsPhaseOrderError(err))
	assert.False(t, IsPreconditionError(err))
	assert.Equal(t, PhaseIntermediate, k.State().Phase)
	assert.Equal(t, 1, k.Step())
}

func TestStabilize_BeforeElevate_IsPreconditionError(t *testing.T) {
	k := New()

	_, err := k.Detach()
	require.NoError(t, err)
	_, err = k.Rewrite()
	require.NoError(t, err)

	_, err = k.Stabilize()
	require.Error(t, err)
	assert.True(t, IsPreconditionError(err))
	assert.False(t, IsPhaseOrderError(err))
	assert.False(t, k.State().Stable)
}

func TestGuards_WrongStateReportsGuardKind(t *testing.T) {
	tests := []struct {
		name  string
		setup []Op // ops applied before the attempt
		op    Op
		check func(error) bool
		kind  string
	}{
		{"rewrite before detach", nil, OpRewrite, IsPhaseOrderError, "phase_order"},
		{"elevate before detach", nil, OpElevate, IsPreconditionError, "precondition"},
		{"stabilize before detach", nil, OpStabilize, IsPreconditionError, "precondition"},
		{"elevate before rewrite", []Op{OpDetach}, OpElevate, IsPreconditionError, "precondition"},
		{"stabilize before rewrite", []Op{OpDetach}, OpStabilize, IsPreconditionError, "precondition"},
		{"detach after rewrite", []Op{OpDetach, OpRewrite}, OpDetach, IsPhaseOrderError, "phase_order"},
		{"stabilize before elevate", []Op{OpDetach, OpRewrite}, OpStabilize, IsPreconditionError, "precondition"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := New()
			for _, op := range tt.setup {
				_, err := k.Apply(op)
				require.NoError(t, err)
			}

			before := k.State()
			step := k.Step()

			_, err := k.Apply(tt.op)
			require.Error(t, err)
			assert.True(t, tt.check(err), "expected %s error, got: %v", tt.kind, err)
			assert.Equal(t, before, k.State(), "failed operation must not mutate state")
			assert.Equal(t, step, k.Step(), "failed operation must not advance cursor")
		})
	}
}

func TestRepeats_EveryOperationFailsClosed(t *testing.T) {
	k := New()
	for _, op := range Ops() {
		_, err := k.Apply(op)
		require.NoError(t, err)
	}
	require.True(t, k.Terminal())

	terminal := k.State()
	for _, op := range Ops() {
		_, err := k.Apply(op)
		require.Error(t, err, "repeat of %s must fail", op)

		var pe *ProtocolError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, terminal, k.State())
		assert.Equal(t, 4, k.Step())
	}
}

func TestApply_UnknownOperation(t *testing.T) {
	k := New()

	_, err := k.Apply(Op("transcend"))
	require.Error(t, err)
	assert.False(t, IsPhaseOrderError(err))
	assert.False(t, IsPreconditionError(err))
	assert.False(t, IsIntegrityError(err))
	assert.Equal(t, InitialState(), k.State())
}

func TestRejection_DoesNotAdvanceCursor(t *testing.T) {
	k := New()

	_, err := k.Rewrite()
	require.Error(t, err)

	// The correct operation still applies after a rejection.
	_, err = k.Detach()
	require.NoError(t, err)
	assert.Equal(t, 1, k.Step())
}

func TestWithSeal_TamperedSealFailsForever(t *testing.T) {
	tampered := seal.Canonical()
	tampered.Law = 99999

	k := New(WithSeal(tampered))

	for i := 0; i < 3; i++ {
		_, err := k.Detach()
		require.Error(t, err)
		assert.True(t, IsIntegrityError(err), "attempt %d: expected integrity error, got %v", i, err)
	}

	assert.Equal(t, InitialState(), k.State())
	assert.Equal(t, 0, k.Step())
}

func TestWithSeal_EachSealFieldIsChecked(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*seal.Seal)
	}{
		{"law", func(s *seal.Seal) { s.Law = 1 }},
		{"constant", func(s *seal.Seal) { s.Constant = 495 }},
		{"syzygy", func(s *seal.Seal) { s.Syzygy = "🤝" }},
		{"protocol_id", func(s *seal.Seal) { s.ProtocolID = "TCC_PATCH_V0_0" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := seal.Canonical()
			tt.mutate(&s)

			k := New(WithSeal(s))
			_, err := k.Apply(OpDetach)
			require.Error(t, err)
			assert.True(t, IsIntegrityError(err))
		})
	}
}

func TestIntegrity_ZeroValueKernel(t *testing.T) {
	var k Kernel

	_, err := k.Apply(OpDetach)
	require.Error(t, err)
	assert.True(t, IsIntegrityError(err))
}

func TestIntegrity_CorruptStateValue(t *testing.T) {
	k := New()
	k.state.Phase = "corrupt"

	_, err := k.Apply(OpDetach)
	require.Error(t, err)
	assert.True(t, IsIntegrityError(err))
}

func TestIntegrity_StableCoherence(t *testing.T) {
	k := New()
	k.state.Stable = true // stable outside the final phase

	_, err := k.Apply(OpDetach)
	require.Error(t, err)
	assert.True(t, IsIntegrityError(err))
}

func TestIntegrity_StepOutOfRange(t *testing.T) {
	k := New()
	k.step = 9

	_, err := k.Apply(OpDetach)
	require.Error(t, err)
	assert.True(t, IsIntegrityError(err))
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := New()
	b := New()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	want := "TCC_PATCH_V7_3_EXODUS_PROTOCOL_HARDENED::law=60106::constant=6174::phase=initial::rewrite=pending::payload=base::stable=false::step=0"
	assert.Equal(t, want, a.Fingerprint())
}

func TestFingerprint_TracksEveryStep(t *testing.T) {
	k := New()
	seen := map[string]bool{k.Fingerprint(): true}

	for _, op := range Ops() {
		tr, err := k.Apply(op)
		require.NoError(t, err)
		assert.Equal(t, k.Fingerprint(), tr.Fingerprint)
		assert.False(t, seen[tr.Fingerprint], "fingerprint must change at every step")
		seen[tr.Fingerprint] = true
	}

	want := "TCC_PATCH_V7_3_EXODUS_PROTOCOL_HARDENED::law=60106::constant=6174::phase=final::rewrite=done::payload=elevated::stable=true::step=4"
	assert.Equal(t, want, k.Fingerprint())
}

func TestKernel_SharedInstanceSerializes(t *testing.T) {
	k := New()

	var applied atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := k.Detach(); err == nil {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()

	// The mutex serializes access; exactly one detach wins.
	assert.Equal(t, int64(1), applied.Load())
	assert.Equal(t, PhaseIntermediate, k.State().Phase)
	assert.Equal(t, 1, k.Step())
}
