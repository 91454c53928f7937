package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"sql": "SELECT 1"}
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

	err := formatter.Error("Q203", "unbound parameter", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "Q203", resp.Error.Code)
	assert.Equal(t, "unbound parameter", resp.Error.Message)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Error("Q100", "query must start with from()", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [Q100]")
	assert.Contains(t, buf.String(), "query must start with from()")
}

func TestOutputFormatter_TextErrorVerboseDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	details := map[string]string{"table": "users"}
	err := formatter.Error("Q400", "context not configured", details)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [Q400]")
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
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: errOut,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("compiling %s", "query.json")
			if tt.wantLog {
				assert.Contains(t, errOut.String(), "compiling query.json")
			} else {
				assert.Empty(t, errOut.String())
			}
			// Diagnostics never land on the primary writer.
			assert.Empty(t, out.String())
		})
	}
}

func TestExitError(t *testing.T) {
	err := NewExitError(ExitCommandError, "unknown dialect")
	assert.Equal(t, "unknown dialect", err.Error())
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestExitErrorWrapped(t *testing.T) {
	inner := errors.New("open query.json: no such file")
	err := &ExitError{Code: ExitCommandError, Message: "reading query", Err: inner}
	assert.Contains(t, err.Error(), "no such file")
	assert.True(t, errors.Is(err, inner))

	wrapped := fmt.Errorf("compile: %w", err)
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
}

func TestGetExitCodePlainError(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
}
