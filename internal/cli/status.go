package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tcclabs/exodus/internal/journal"
	"github.com/tcclabs/exodus/internal/kernel"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Database string
	Token    string
}

// StatusResult holds the replayed position of a run.
type StatusResult struct {
	Token       string              `json:"token"`
	State       kernel.State        `json:"state"`
	Step        int                 `json:"step"`
	Terminal    bool                `json:"terminal"`
	Fingerprint string              `json:"fingerprint"`
	Transitions []kernel.Transition `json:"transitions"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the replayed position of a run",
		Long: `Replay a run's journaled transitions and print where it stands.

The state is re-derived from the journal, never read from a cache, so
status doubles as a verification pass: a journal that does not replay
cleanly is reported as corrupt.

Exit codes:
  0 - Run replayed cleanly
  1 - Journal verification failed
  2 - Command error (run not found, etc.)

Examples:
  exodus status --db ./exodus.db --token release-7
  exodus status --db ./exodus.db --token release-7 --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Token, "token", "", "run token (required)")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	jrn, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer jrn.Close()

	res, err := jrn.Replay(ctx, opts.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return WrapExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.Token), err)
		}
		return WrapExitError(ExitFailure, "journal verification failed", err)
	}

	result := StatusResult{
		Token:       res.Token,
		State:       res.State,
		Step:        res.Step,
		Terminal:    res.Terminal,
		Fingerprint: res.Fingerprint,
		Transitions: res.Transitions,
	}

	if opts.Format == "json" {
		return outputStatusJSON(cmd, result)
	}
	return outputStatusText(cmd, result, opts.Verbose)
}

// outputStatusJSON outputs the run position as JSON.
func outputStatusJSON(cmd *cobra.Command, result StatusResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputStatusText outputs the run position as text.
func outputStatusText(cmd *cobra.Command, result StatusResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Run: %s\n", result.Token)
	fmt.Fprintf(w, "Phase: %s\n", result.State.Phase)
	fmt.Fprintf(w, "Rewrite: %s\n", result.State.Rewrite)
	fmt.Fprintf(w, "Payload: %s\n", result.State.Payload)
	fmt.Fprintf(w, "Stable: %t\n", result.State.Stable)
	fmt.Fprintf(w, "Step: %d\n", result.Step)
	fmt.Fprintf(w, "Terminal: %t\n", result.Terminal)
	fmt.Fprintf(w, "Fingerprint: %s\n", result.Fingerprint)

	if verbose && len(result.Transitions) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Transitions:")
		for _, tr := range result.Transitions {
			fmt.Fprintf(w, "  [%d] %s: %s -> %s\n", tr.Seq, tr.Op, describeState(tr.From), describeState(tr.To))
		}
	}

	return nil
}
