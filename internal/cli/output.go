package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tcclabs/exodus/internal/kernel"
)

// Exit codes. Protocol and verification failures are distinguishable from
// plain command mistakes so scripts can react to each.
const (
	ExitSuccess      = 0 // command succeeded
	ExitFailure      = 1 // rejected operation, corrupt journal, failed scenarios
	ExitCommandError = 2 // bad flags, unknown run token, unreadable paths
)

// ExitError carries an exit code alongside the error it reports.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError builds an ExitError without an underlying cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code and message to an underlying error.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps an error to a process exit code. Errors that are not
// ExitErrors count as failures, not command mistakes.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter renders command results as text or as the JSON envelope.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostic output; Writer is used when unset
	Verbose   bool
}

// CLIResponse is the JSON envelope every command emits in json format.
type CLIResponse struct {
	Status string      `json:"status"` // "ok" | "error"
	Data   interface{} `json:"data,omitempty"`
	Error  *CLIError   `json:"error,omitempty"`
}

// CLIError is the error half of the envelope.
type CLIError struct {
	Code    string      `json:"code"` // protocol or loader error code
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Success renders a successful result.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error renders a coded error.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog prints a diagnostic line when verbose mode is on. It prefers
// ErrWriter so json output on Writer stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// describeState renders a state in the fingerprint vocabulary for text output.
func describeState(s kernel.State) string {
	return fmt.Sprintf("phase=%s rewrite=%s payload=%s stable=%t", s.Phase, s.Rewrite, s.Payload, s.Stable)
}
