package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tcclabs/exodus/internal/journal"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	Database string
	Token    string // optional - specific run only
}

// VerifyRunResult holds the verification outcome for a single run.
type VerifyRunResult struct {
	Token    string `json:"token"`
	Verified bool   `json:"verified"`
	Steps    int    `json:"steps"`
	Terminal bool   `json:"terminal"`
	Error    string `json:"error,omitempty"`
}

// VerifyResult holds the overall verification outcome.
type VerifyResult struct {
	Runs        []VerifyRunResult `json:"runs"`
	TotalRuns   int               `json:"total_runs"`
	AllVerified bool              `json:"all_verified"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Replay journaled runs and verify integrity",
		Long: `Replay every journaled run from its seal snapshot and verify the
record against a fresh kernel, step by step.

Verification catches tampered seal snapshots, edited states or
fingerprints, reordered operations, and gaps in the journaled sequence.
Each run is reported independently; one corrupt run does not stop the
others from being checked.

Exit codes:
  0 - All runs verified
  1 - One or more runs failed verification
  2 - Command error (run not found, etc.)

Examples:
  exodus verify --db ./exodus.db
  exodus verify --db ./exodus.db --token release-7
  exodus verify --db ./exodus.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Token, "token", "", "verify specific run only")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	jrn, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer jrn.Close()

	// Collect run tokens to verify
	var tokens []string
	if opts.Token != "" {
		tokens = []string{opts.Token}
	} else {
		tokens, err = jrn.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
	}

	if len(tokens) == 0 {
		if opts.Format == "json" {
			result := VerifyResult{
				Runs:        []VerifyRunResult{},
				TotalRuns:   0,
				AllVerified: true,
			}
			return outputVerifyJSON(cmd, result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No runs found in journal.")
		return nil
	}

	result := VerifyResult{
		Runs:        make([]VerifyRunResult, 0, len(tokens)),
		TotalRuns:   len(tokens),
		AllVerified: true,
	}

	for _, token := range tokens {
		res, err := jrn.Replay(ctx, token)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return WrapExitError(ExitCommandError, fmt.Sprintf("run not found: %s", token), err)
			}
			result.Runs = append(result.Runs, VerifyRunResult{
				Token: token,
				Error: err.Error(),
			})
			result.AllVerified = false
			continue
		}

		result.Runs = append(result.Runs, VerifyRunResult{
			Token:    token,
			Verified: true,
			Steps:    res.Step,
			Terminal: res.Terminal,
		})
	}

	if opts.Format == "json" {
		return outputVerifyJSON(cmd, result)
	}
	return outputVerifyText(cmd, result)
}

// outputVerifyJSON outputs the verification result as JSON.
func outputVerifyJSON(cmd *cobra.Command, result VerifyResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllVerified {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_VERIFICATION",
			Message: "journal verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllVerified {
		// Verification failure = exit code 1
		return NewExitError(ExitFailure, "journal verification failed")
	}
	return nil
}

// outputVerifyText outputs the verification result as text.
func outputVerifyText(cmd *cobra.Command, result VerifyResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Verify Summary: %d run(s)\n", result.TotalRuns)
	fmt.Fprintln(w)

	for _, run := range result.Runs {
		if run.Verified {
			fmt.Fprintf(w, "✓ Run: %s\n", run.Token)
			fmt.Fprintf(w, "  Steps: %d\n", run.Steps)
			fmt.Fprintf(w, "  Terminal: %t\n", run.Terminal)
		} else {
			fmt.Fprintf(w, "✗ Run: %s\n", run.Token)
			fmt.Fprintf(w, "  %s\n", run.Error)
		}
		fmt.Fprintln(w)
	}

	if result.AllVerified {
		fmt.Fprintln(w, "✓ All runs verified")
		return nil
	}

	fmt.Fprintln(w, "✗ Journal verification failed")
	// Verification failure = exit code 1
	return NewExitError(ExitFailure, "journal verification failed")
}
