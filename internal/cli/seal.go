package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tcclabs/exodus/internal/kernel"
	"github.com/tcclabs/exodus/internal/manifest"
	"github.com/tcclabs/exodus/internal/seal"
)

// SealOptions holds flags for the seal command.
type SealOptions struct {
	*RootOptions
	Manifest string
}

// SealInfo holds the canonical seal for display.
type SealInfo struct {
	Seal        seal.Seal `json:"seal"`
	Fingerprint string    `json:"fingerprint"`
}

// ManifestCheck holds the outcome of verifying a deployment manifest.
type ManifestCheck struct {
	Manifest string    `json:"manifest"`
	Verified bool      `json:"verified"`
	Seal     seal.Seal `json:"seal"`
}

// NewSealCommand creates the seal command.
func NewSealCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SealOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seal",
		Short: "Print the canonical seal or verify a manifest against it",
		Long: `Print the compiled-in protocol seal and the initial-state fingerprint.

With --manifest, load a CUE deployment manifest and verify its declared
constants against the compiled-in seal instead. The first mismatched
field is reported as an integrity violation.

Exit codes:
  0 - Seal printed, or manifest verified
  1 - Manifest does not match the compiled-in seal
  2 - Command error (manifest not found, malformed CUE, etc.)

Examples:
  exodus seal
  exodus seal --manifest ./deploy.cue
  exodus seal --manifest ./deploy.cue --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "deployment manifest to verify")

	return cmd
}

func runSeal(opts *SealOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	canonical := seal.Canonical()

	if opts.Manifest == "" {
		return outputSealInfo(formatter, SealInfo{
			Seal:        canonical,
			Fingerprint: kernel.New().Fingerprint(),
		})
	}

	m, err := manifest.Load(opts.Manifest)
	if err != nil {
		var loadErr *manifest.LoadError
		if errors.As(err, &loadErr) {
			return outputSealError(formatter, loadErr.Code, loadErr.Message, ExitCommandError)
		}
		return WrapExitError(ExitCommandError, "failed to load manifest", err)
	}
	formatter.VerboseLog("Loaded manifest from %s", m.Path)

	if err := m.Verify(); err != nil {
		var perr *kernel.ProtocolError
		if errors.As(err, &perr) {
			return outputSealError(formatter, string(perr.Code), err.Error(), ExitFailure)
		}
		return WrapExitError(ExitFailure, "manifest verification failed", err)
	}

	return outputManifestVerified(formatter, ManifestCheck{
		Manifest: m.Path,
		Verified: true,
		Seal:     canonical,
	})
}

// outputSealInfo outputs the canonical seal.
func outputSealInfo(formatter *OutputFormatter, info SealInfo) error {
	if formatter.Format == "json" {
		return formatter.Success(info)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Protocol: %s\n", info.Seal.ProtocolID)
	fmt.Fprintf(w, "Law: %d\n", info.Seal.Law)
	fmt.Fprintf(w, "Constant: %d\n", info.Seal.Constant)
	fmt.Fprintf(w, "Syzygy: %s\n", info.Seal.Syzygy)
	fmt.Fprintf(w, "Fingerprint: %s\n", info.Fingerprint)
	return nil
}

// outputManifestVerified outputs a successful manifest check.
func outputManifestVerified(formatter *OutputFormatter, check ManifestCheck) error {
	if formatter.Format == "json" {
		return formatter.Success(check)
	}

	fmt.Fprintf(formatter.Writer, "✓ Manifest verified: %s\n", check.Manifest)
	return nil
}

// outputSealError prints a seal or manifest error and maps it to an exit code.
func outputSealError(formatter *OutputFormatter, code, message string, exitCode int) error {
	_ = formatter.Error(code, message, nil)
	return NewExitError(exitCode, fmt.Sprintf("%s: %s", code, message))
}
