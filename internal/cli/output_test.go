package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcclabs/exodus/internal/kernel"
)

func TestExitError_Message(t *testing.T) {
	err := NewExitError(ExitFailure, "operation rejected")
	assert.Equal(t, "operation rejected", err.Error())
	assert.Equal(t, ExitFailure, err.Code)
}

func TestExitError_Wrapped(t *testing.T) {
	inner := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "failed to open journal", inner)

	assert.Equal(t, "failed to open journal: disk full", err.Error())
	assert.ErrorIs(t, err, inner)
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"exit_error_failure", NewExitError(ExitFailure, "rejected"), ExitFailure},
		{"exit_error_command", NewExitError(ExitCommandError, "not found"), ExitCommandError},
		{"wrapped_exit_error", fmt.Errorf("context: %w", NewExitError(ExitCommandError, "bad path")), ExitCommandError},
		{"plain_error", errors.New("boom"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("PHASE_ORDER_VIOLATION", "operation called out of protocol order", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, "PHASE_ORDER_VIOLATION", resp.Error.Code)
	assert.Equal(t, "operation called out of protocol order", resp.Error.Message)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("Manifest verified")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Manifest verified")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("INTEGRITY_VIOLATION", "seal mismatch", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [INTEGRITY_VIOLATION]")
	assert.Contains(t, buf.String(), "seal mismatch")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"want": "60106", "got": "1"}
	err := formatter.Error("INTEGRITY_VIOLATION", "seal mismatch", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [INTEGRITY_VIOLATION]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Loaded manifest from %s", "deploy.cue")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Loaded manifest from deploy.cue")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestOutputFormatter_VerboseLogPrefersErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:    "json",
		Writer:    out,
		ErrWriter: errOut,
		Verbose:   true,
	}

	formatter.VerboseLog("diagnostic")

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "diagnostic")
}

func TestDescribeState(t *testing.T) {
	s := kernel.InitialState()
	assert.Equal(t, "phase=initial rewrite=pending payload=base stable=false", describeState(s))
}
