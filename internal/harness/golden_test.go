package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden scenarios live in testdata/scenarios, their expected traces in
// testdata/golden. Regenerate with: go test ./internal/harness -update
func TestRunWithGolden(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"full-protocol-run", "testdata/scenarios/full-protocol-run.yaml"},
		{"out-of-order-rejected", "testdata/scenarios/out-of-order-rejected.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario, err := LoadScenario(tt.path)
			require.NoError(t, err)
			require.Equal(t, tt.name, scenario.Name)

			require.NoError(t, RunWithGolden(t, scenario))
		})
	}
}

func TestMarshalTrace_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/full-protocol-run.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)

	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		RunToken:     scenario.RunToken,
		Trace:        result.Trace,
		Final:        result.Final,
		Step:         result.Step,
		Terminal:     result.Terminal,
	}

	first, err := MarshalTrace(snapshot)
	require.NoError(t, err)
	second, err := MarshalTrace(snapshot)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMarshalTrace_NoHTMLEscaping(t *testing.T) {
	snapshot := TraceSnapshot{
		ScenarioName: "escape-check",
		RunToken:     "a<b>&c",
		Trace:        []TraceEvent{},
	}

	out, err := MarshalTrace(snapshot)
	require.NoError(t, err)

	assert.Contains(t, string(out), `"a<b>&c"`)
	assert.NotContains(t, string(out), "u003c")
}
