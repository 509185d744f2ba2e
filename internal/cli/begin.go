package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tcclabs/exodus/internal/journal"
	"github.com/tcclabs/exodus/internal/kernel"
	"github.com/tcclabs/exodus/internal/seal"
)

// BeginOptions holds flags for the begin command.
type BeginOptions struct {
	*RootOptions
	Database string
	Token    string

	// TokenGen allows overriding the run token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	TokenGen journal.TokenGenerator
}

// BeginResult holds the created run.
type BeginResult struct {
	Token       string       `json:"token"`
	State       kernel.State `json:"state"`
	Step        int          `json:"step"`
	Fingerprint string       `json:"fingerprint"`
}

// NewBeginCommand creates the begin command.
func NewBeginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BeginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "begin",
		Short: "Create a journaled run at the initial state",
		Long: `Create a new run in the journal, sealed under the canonical constants.

The run starts at the initial state with the step cursor at zero. A run
token is generated unless --token provides one; the token names the run
for step, status, and verify.

Examples:
  exodus begin --db ./exodus.db
  exodus begin --db ./exodus.db --token release-7`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBegin(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Token, "token", "", "run token (generated if omitted)")

	return cmd
}

func runBegin(opts *BeginOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	jrn, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer jrn.Close()

	token := opts.Token
	if token == "" {
		gen := opts.TokenGen
		if gen == nil {
			gen = journal.UUIDv7Generator{}
		}
		token = gen.Generate()
	}

	if err := jrn.Begin(ctx, token, seal.Canonical()); err != nil {
		if errors.Is(err, journal.ErrRunExists) {
			return WrapExitError(ExitCommandError, fmt.Sprintf("run %q already exists", token), err)
		}
		return WrapExitError(ExitCommandError, "failed to create run", err)
	}

	// A fresh kernel gives the run's starting state and fingerprint.
	k := kernel.New()
	result := BeginResult{
		Token:       token,
		State:       k.State(),
		Step:        k.Step(),
		Fingerprint: k.Fingerprint(),
	}

	if opts.Format == "json" {
		return outputBeginJSON(cmd, result)
	}
	return outputBeginText(cmd, result)
}

// outputBeginJSON outputs the created run as JSON.
func outputBeginJSON(cmd *cobra.Command, result BeginResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputBeginText outputs the created run as text.
func outputBeginText(cmd *cobra.Command, result BeginResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Run created: %s\n", result.Token)
	fmt.Fprintf(w, "State: %s\n", describeState(result.State))
	fmt.Fprintf(w, "Fingerprint: %s\n", result.Fingerprint)
	return nil
}
