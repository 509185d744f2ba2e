package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tcclabs/exodus/internal/journal"
	"github.com/tcclabs/exodus/internal/kernel"
	"github.com/tcclabs/exodus/internal/manifest"
	"github.com/tcclabs/exodus/internal/seal"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Token    string
	Manifest string

	// TokenGen allows overriding the run token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	TokenGen journal.TokenGenerator
}

// RunResult holds a completed protocol run.
type RunResult struct {
	Token       string              `json:"token"`
	Transitions []kernel.Transition `json:"transitions"`
	Final       kernel.State        `json:"final"`
	Step        int                 `json:"step"`
	Terminal    bool                `json:"terminal"`
	Fingerprint string              `json:"fingerprint"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive a full protocol run to the terminal state",
		Long: `Create a run and apply the whole protocol order, journaling every
transition: detach, rewrite, elevate, stabilize.

With --manifest, the deployment manifest is verified against the
compiled-in seal before the run starts; a mismatched manifest refuses
to run.

Exit codes:
  0 - Run reached the terminal state
  1 - Protocol or manifest verification failure
  2 - Command error (journal not writable, duplicate token, etc.)

Examples:
  exodus run --db ./exodus.db
  exodus run --db ./exodus.db --token release-7 --manifest ./deploy.cue`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProtocol(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Token, "token", "", "run token (generated if omitted)")
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "deployment manifest to verify before running")

	return cmd
}

func runProtocol(opts *RunOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	if opts.Manifest != "" {
		m, err := manifest.Load(opts.Manifest)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load manifest", err)
		}
		if err := m.Verify(); err != nil {
			return WrapExitError(ExitFailure, "manifest verification failed", err)
		}
		slog.Info("manifest verified", "path", opts.Manifest)
	}

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

	slog.Info("run starting", "token", token, "db", opts.Database)

	k := kernel.New()
	transitions := make([]kernel.Transition, 0, len(kernel.Ops()))
	for _, op := range kernel.Ops() {
		tr, err := k.Apply(op)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("operation %s rejected", op), err)
		}
		if err := jrn.Append(ctx, token, tr); err != nil {
			return WrapExitError(ExitCommandError, "failed to journal transition", err)
		}
		transitions = append(transitions, tr)
	}

	slog.Info("run complete", "token", token, "step", k.Step(), "terminal", k.Terminal())

	result := RunResult{
		Token:       token,
		Transitions: transitions,
		Final:       k.State(),
		Step:        k.Step(),
		Terminal:    k.Terminal(),
		Fingerprint: k.Fingerprint(),
	}

	if opts.Format == "json" {
		return outputRunJSON(cmd, result)
	}
	return outputRunText(cmd, result)
}

// outputRunJSON outputs the completed run as JSON.
func outputRunJSON(cmd *cobra.Command, result RunResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputRunText outputs the completed run as text.
func outputRunText(cmd *cobra.Command, result RunResult) error {
	w := cmd.OutOrStdout()

	for _, tr := range result.Transitions {
		fmt.Fprintf(w, "✓ %s applied (step %d)\n", tr.Op, tr.Seq)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run complete: %s\n", result.Token)
	fmt.Fprintf(w, "State: %s\n", describeState(result.Final))
	fmt.Fprintf(w, "Fingerprint: %s\n", result.Fingerprint)
	return nil
}
