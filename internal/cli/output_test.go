package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitErrorMessage(t *testing.T) {
	err := NewExitError(ExitFailure, "2 run(s) failed")
	assert.Equal(t, "2 run(s) failed", err.Error())
	assert.Equal(t, ExitFailure, err.Code)
	assert.Nil(t, err.Unwrap())
}

func TestExitErrorWrapped(t *testing.T) {
	cause := errors.New("no such file")
	err := WrapExitError(ExitCommandError, "failed to load configuration", cause)
	assert.Equal(t, "failed to load configuration: no such file", err.Error())
	assert.Equal(t, cause, err.Unwrap())
	assert.ErrorIs(t, err, cause)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))
	assert.Equal(t, ExitFailure, GetExitCode(NewExitError(ExitFailure, "run failed")))

	// Plain errors default to the run-failure code.
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("boom")))
}

func TestGetExitCodeUnwrapsChain(t *testing.T) {
	inner := NewExitError(ExitCommandError, "unreadable journal")
	wrapped := errors.Join(errors.New("outer"), inner)
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))
}

func TestCLIResponse_JSON(t *testing.T) {
	resp := CLIResponse{
		Status: "ok",
		Data:   map[string]int{"count": 42},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded CLIResponse
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "ok", decoded.Status)
}

func TestCLIError_JSON(t *testing.T) {
	cliErr := CLIError{
		Code:    "E_RUN_FAILED",
		Message: "2 run(s) failed",
		Details: []string{"numpy on manylinux1"},
	}

	data, err := json.Marshal(cliErr)
	require.NoError(t, err)

	var decoded CLIError
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)
	assert.Equal(t, "E_RUN_FAILED", decoded.Code)
	assert.Equal(t, "2 run(s) failed", decoded.Message)
}

func TestWriteJSONEnvelope(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)

	err := writeJSON(cmd, CLIResponse{
		Status: "error",
		Error:  &CLIError{Code: "E_CONFIG_INVALID", Message: "duplicate priority"},
	})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_CONFIG_INVALID", resp.Error.Code)

	// Indented output, and the empty data field stays out of the wire.
	assert.Contains(t, buf.String(), "\n  ")
	assert.NotContains(t, buf.String(), `"data"`)
}
