// Package harness runs declarative conformance scenarios against the
// protocol kernel: YAML files scripting an operation sequence, checked
// step by step and then against trace and final-state assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	run_token: "test-run-00000000-0000-0000-0000-000000000001"
//	seal:
//	  law: 424242
//	steps:
//	  - op: detach
//	    expect:
//	      outcome: applied
//	  - op: detach
//	    expect:
//	      outcome: rejected
//	      error: PHASE_ORDER_VIOLATION
//	assertions:
//	  - type: trace_contains
//	    op: detach
//	    outcome: applied
//	  - type: final_state
//	    phase: intermediate
//	    stable: false
//
// The optional seal block overrides individual seal fields before the run,
// for tamper scenarios. Omitted fields keep their canonical values.
//
// # Assertion Types
//
//   - trace_contains: an operation appears in the trace, optionally
//     narrowed by outcome and error code
//   - trace_order: the named operations were applied in the given order
//   - trace_count: an operation appears an exact number of times
//   - final_state: fields of the kernel state after the last step
//
// # Deterministic Testing
//
// All scenarios execute against a fresh kernel and a fresh in-memory journal,
// with a fixed run token (from run_token, or "test-run-default"). The trace
// is a pure function of the scenario, so golden snapshot comparison is
// byte-stable across runs.
//
// Applied transitions are journaled during the run; for untampered scenarios
// the journal is replayed afterwards and any divergence fails the result.
//
// # Usage
//
// Load a scenario:
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/full_order.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Execute it:
//
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
