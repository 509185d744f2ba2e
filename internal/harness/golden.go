package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/tcclabs/exodus/internal/kernel"
)

// TraceSnapshot is the golden-file form of a scenario execution: the full
// step trace plus the final kernel position. Fields marshal in declaration
// order, so the output is stable across runs.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	RunToken     string       `json:"run_token,omitempty"`
	Trace        []TraceEvent `json:"trace"`
	Final        kernel.State `json:"final"`
	Step         int          `json:"step"`
	Terminal     bool         `json:"terminal"`
}

// MarshalTrace serializes a snapshot as two-space indented JSON with HTML
// escaping off, so fingerprints and glyphs appear verbatim.
func MarshalTrace(snapshot TraceSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshot); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares its trace snapshot against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	traceJSON, err := MarshalTrace(TraceSnapshot{
		ScenarioName: scenario.Name,
		RunToken:     scenario.RunToken,
		Trace:        result.Trace,
		Final:        result.Final,
		Step:         result.Step,
		Terminal:     result.Terminal,
	})
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)

	return nil
}
