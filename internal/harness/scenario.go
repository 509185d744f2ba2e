package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tcclabs/exodus/internal/kernel"
	"github.com/tcclabs/exodus/internal/seal"
)

// Scenario is a declarative conformance case: a scripted operation
// sequence with per-step expectations, plus assertions over the trace and
// the final kernel state.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description is the one-line intent of the scenario.
	Description string `yaml:"description"`

	// RunToken is an optional fixed run token for deterministic tests.
	// If empty, defaults to "test-run-default" for golden file comparison.
	RunToken string `yaml:"run_token,omitempty"`

	// Seal optionally overrides seal fields before the run (tamper injection).
	// Omitted fields keep their canonical values. If nil, the run uses the
	// canonical seal.
	Seal *SealClause `yaml:"seal,omitempty"`

	// Steps contains the operations to attempt, in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after every step has run.
	Assertions []Assertion `yaml:"assertions"`
}

// SealClause overrides individual seal fields for tamper scenarios.
// Pointer fields distinguish "absent" from "override to zero value".
type SealClause struct {
	ProtocolID *string `yaml:"protocol_id,omitempty"`
	Law        *int64  `yaml:"law,omitempty"`
	Constant   *int64  `yaml:"constant,omitempty"`
	Syzygy     *string `yaml:"syzygy,omitempty"`
}

// Step is a single operation attempt.
type Step struct {
	// Op is the operation name: detach, rewrite, elevate, or stabilize.
	Op string `yaml:"op"`

	// Expect specifies the expected step outcome.
	// If nil, no validation is performed on this step.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Outcome is "applied" or "rejected".
	Outcome string `yaml:"outcome"`

	// Error is the expected protocol error code for rejected steps
	// (e.g. "PHASE_ORDER_VIOLATION"). If empty, any rejection matches.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the final kernel state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count,
	// final_state.
	Type string `yaml:"type"`

	// Op is the operation name (used by trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Outcome filters trace events by outcome (trace_contains, trace_count).
	Outcome string `yaml:"outcome,omitempty"`

	// Error filters trace events by error code (trace_contains).
	Error string `yaml:"error,omitempty"`

	// Ops is the expected operation order (used by trace_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is the exact occurrence count required by trace_count.
	Count int `yaml:"count,omitempty"`

	// Final-state fields (used by final_state). Absent fields are not checked.
	Phase    string `yaml:"phase,omitempty"`
	Rewrite  string `yaml:"rewrite,omitempty"`
	Payload  string `yaml:"payload,omitempty"`
	Stable   *bool  `yaml:"stable,omitempty"`
	Terminal *bool  `yaml:"terminal,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// BuildSeal returns the seal the scenario runs under: the canonical seal
// with any overrides applied.
func (s *Scenario) BuildSeal() seal.Seal {
	out := seal.Canonical()
	if s.Seal == nil {
		return out
	}
	if s.Seal.ProtocolID != nil {
		out.ProtocolID = *s.Seal.ProtocolID
	}
	if s.Seal.Law != nil {
		out.Law = *s.Seal.Law
	}
	if s.Seal.Constant != nil {
		out.Constant = *s.Seal.Constant
	}
	if s.Seal.Syzygy != nil {
		out.Syzygy = *s.Seal.Syzygy
	}
	return out
}

// Tampered reports whether the scenario overrides any seal field.
func (s *Scenario) Tampered() bool {
	return s.Seal != nil
}

// LoadScenario reads and validates one scenario YAML file. Unknown keys
// are rejected, so a typo in a scenario fails loudly instead of silently
// skipping a check.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// knownErrorCodes are the protocol error codes an expect clause may name.
var knownErrorCodes = map[string]bool{
	string(kernel.ErrCodeIntegrity):    true,
	string(kernel.ErrCodePhaseOrder):   true,
	string(kernel.ErrCodePrecondition): true,
}

// validateScenario checks required fields and value spaces up front.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Op == "" {
			return fmt.Errorf("steps[%d]: op is required", i)
		}
		if _, err := kernel.ParseOp(step.Op); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if step.Expect != nil {
			if err := validateExpect(i, step.Expect); err != nil {
				return err
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateExpect validates a step expect clause.
func validateExpect(index int, e *ExpectClause) error {
	switch e.Outcome {
	case OutcomeApplied, OutcomeRejected:
	case "":
		return fmt.Errorf("steps[%d].expect: outcome is required", index)
	default:
		return fmt.Errorf("steps[%d].expect: outcome must be %q or %q, got %q",
			index, OutcomeApplied, OutcomeRejected, e.Outcome)
	}

	if e.Error != "" {
		if e.Outcome != OutcomeRejected {
			return fmt.Errorf("steps[%d].expect: error is only valid with outcome %q", index, OutcomeRejected)
		}
		if !knownErrorCodes[e.Error] {
			return fmt.Errorf("steps[%d].expect: unknown error code %q", index, e.Error)
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
		if _, err := kernel.ParseOp(a.Op); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Error != "" && !knownErrorCodes[a.Error] {
			return fmt.Errorf("assertions[%d]: unknown error code %q", index, a.Error)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
		for _, op := range a.Ops {
			if _, err := kernel.ParseOp(op); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if _, err := kernel.ParseOp(a.Op); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Phase == "" && a.Rewrite == "" && a.Payload == "" && a.Stable == nil && a.Terminal == nil {
			return fmt.Errorf("assertions[%d]: final_state requires at least one state field", index)
		}
		if a.Phase != "" && !kernel.Phase(a.Phase).Valid() {
			return fmt.Errorf("assertions[%d]: unknown phase %q", index, a.Phase)
		}
		if a.Rewrite != "" && !kernel.RewriteStatus(a.Rewrite).Valid() {
			return fmt.Errorf("assertions[%d]: unknown rewrite status %q", index, a.Rewrite)
		}
		if a.Payload != "" && !kernel.PayloadState(a.Payload).Valid() {
			return fmt.Errorf("assertions[%d]: unknown payload state %q", index, a.Payload)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
