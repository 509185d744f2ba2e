package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tcclabs/exodus/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // glob over scenario base names
}

// ScenarioResult is the reported outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult aggregates a harness run over a scenario directory.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test [scenarios-dir]",
		Short: "Run the scenario harness",
		Long: `Run conformance scenarios against the protocol kernel.

Each scenario drives a fresh kernel and an in-memory journal through a
scripted operation sequence, checks per-step expectations, evaluates
trace and final-state assertions, and cross-checks the journal by
replay. The directory defaults to ./scenarios.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  exodus test
  exodus test ./scenarios --filter "tampered-*"
  exodus test ./scenarios --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "scenarios"
			if len(args) == 1 {
				dir = args[0]
			}
			return runTests(opts, dir, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	files, err := harness.ListScenarios(scenariosDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list scenarios", err)
	}
	files, err = filterScenarioFiles(files, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter pattern", err)
	}

	textOut := cmd.OutOrStdout()
	if opts.Format == "json" {
		textOut = io.Discard // per-scenario lines would corrupt the envelope
	}

	if len(files) == 0 {
		if opts.Format == "json" {
			return emitTestResult(cmd, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(textOut, "No scenarios found.")
		return nil
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, path := range files {
		sr := runScenarioFile(path, textOut)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return emitTestResult(cmd, result)
	}

	fmt.Fprintln(textOut)
	fmt.Fprintf(textOut, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	fmt.Fprintln(textOut, "✓ All scenarios passed")
	return nil
}

// filterScenarioFiles narrows scenario paths to those whose base name
// (without extension) matches the glob pattern.
func filterScenarioFiles(files []string, filter string) ([]string, error) {
	if filter == "" {
		return files, nil
	}

	matched := make([]string, 0, len(files))
	for _, path := range files {
		base := filepath.Base(path)
		name := strings.TrimSuffix(base, filepath.Ext(base))
		ok, err := filepath.Match(filter, name)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, path)
		}
	}
	return matched, nil
}

// runScenarioFile loads and executes one scenario, printing its line to w.
func runScenarioFile(path string, w io.Writer) ScenarioResult {
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		fmt.Fprintf(w, "✗ %s\n", filepath.Base(path))
		fmt.Fprintf(w, "  Load error: %v\n", err)
		return ScenarioResult{
			Name:   filepath.Base(path),
			Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)},
		}
	}

	result, err := harness.Run(scenario)
	if err != nil {
		fmt.Fprintf(w, "✗ %s\n", scenario.Name)
		fmt.Fprintf(w, "  Execution error: %v\n", err)
		return ScenarioResult{
			Name:   scenario.Name,
			Errors: []string{fmt.Sprintf("execution failed: %v", err)},
		}
	}

	if !result.Pass {
		fmt.Fprintf(w, "✗ %s\n", scenario.Name)
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return ScenarioResult{Name: scenario.Name, Errors: result.Errors}
	}

	fmt.Fprintf(w, "✓ %s\n", scenario.Name)
	return ScenarioResult{Name: scenario.Name, Pass: true}
}

// emitTestResult writes the JSON envelope and maps failures to exit 1.
func emitTestResult(cmd *cobra.Command, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}
