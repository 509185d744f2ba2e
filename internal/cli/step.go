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

// StepOptions holds flags for the step command.
type StepOptions struct {
	*RootOptions
	Database string
	Token    string
}

// StepResult holds one applied transition.
type StepResult struct {
	Token       string       `json:"token"`
	Seq         int          `json:"seq"`
	Op          kernel.Op    `json:"op"`
	From        kernel.State `json:"from"`
	To          kernel.State `json:"to"`
	Fingerprint string       `json:"fingerprint"`
	Terminal    bool         `json:"terminal"`
}

// NewStepCommand creates the step command.
func NewStepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "step <op>",
		Short: "Apply one operation to a journaled run",
		Long: `Apply a single named operation to a run and journal the transition.

The run is replayed to its current position first, so a corrupted journal
is rejected before any operation is attempted. Operations must arrive in
protocol order: detach, rewrite, elevate, stabilize.

Exit codes:
  0 - Operation applied
  1 - Operation rejected or journal verification failed
  2 - Command error (unknown operation, run not found, etc.)

Examples:
  exodus step detach --db ./exodus.db --token release-7
  exodus step rewrite --db ./exodus.db --token release-7 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStep(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Token, "token", "", "run token (required)")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func runStep(opts *StepOptions, opName string, cmd *cobra.Command) error {
	ctx := context.Background()

	op, err := kernel.ParseOp(opName)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid operation", err)
	}

	jrn, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer jrn.Close()

	k, err := jrn.Resume(ctx, opts.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return WrapExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.Token), err)
		}
		return WrapExitError(ExitFailure, "journal verification failed", err)
	}

	tr, err := k.Apply(op)
	if err != nil {
		var perr *kernel.ProtocolError
		if errors.As(err, &perr) {
			formatter := &OutputFormatter{
				Format:  opts.Format,
				Writer:  cmd.OutOrStdout(),
				Verbose: opts.Verbose,
			}
			if ferr := formatter.Error(string(perr.Code), err.Error(), nil); ferr != nil {
				return ferr
			}
			return NewExitError(ExitFailure, fmt.Sprintf("operation %s rejected", op))
		}
		return WrapExitError(ExitFailure, "operation failed", err)
	}

	if err := jrn.Append(ctx, opts.Token, tr); err != nil {
		return WrapExitError(ExitCommandError, "failed to journal transition", err)
	}

	result := StepResult{
		Token:       opts.Token,
		Seq:         tr.Seq,
		Op:          tr.Op,
		From:        tr.From,
		To:          tr.To,
		Fingerprint: tr.Fingerprint,
		Terminal:    k.Terminal(),
	}

	if opts.Format == "json" {
		return outputStepJSON(cmd, result)
	}
	return outputStepText(cmd, result)
}

// outputStepJSON outputs the applied transition as JSON.
func outputStepJSON(cmd *cobra.Command, result StepResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputStepText outputs the applied transition as text.
func outputStepText(cmd *cobra.Command, result StepResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "✓ %s applied (step %d)\n", result.Op, result.Seq)
	fmt.Fprintf(w, "State: %s\n", describeState(result.To))
	fmt.Fprintf(w, "Fingerprint: %s\n", result.Fingerprint)
	if result.Terminal {
		fmt.Fprintln(w, "Terminal state reached.")
	}
	return nil
}
