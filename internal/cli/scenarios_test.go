package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenariosText(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewScenariosCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(nil)

	require.NoError(t, cmd.Execute())

	out := buf.String()
	for _, name := range []string{"numpy", "pure", "executable", "deps-linked", "deps-headers", "rpath"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "pure-python wheel")
	// Wheel filenames only appear under --verbose.
	assert.NotContains(t, out, ".whl")
}

func TestScenariosVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewScenariosCommand(&RootOptions{Format: "text", Verbose: true})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(nil)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "wheel: six-1.11.0-py2.py3-none-any.whl")
	assert.Contains(t, buf.String(), "wheel: numpy-1.11.0-cp35-cp35m-linux_x86_64.whl")
}

func TestScenariosJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewScenariosCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(nil)

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string         `json:"status"`
		Data   []ScenarioInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 6)

	byName := map[string]ScenarioInfo{}
	for _, info := range resp.Data {
		byName[info.Name] = info
	}
	assert.True(t, byName["pure"].Cacheable)
	assert.False(t, byName["pure"].Consumer)
	assert.True(t, byName["numpy"].Consumer)
	assert.True(t, byName["deps-linked"].Matrix)
	assert.False(t, byName["rpath"].Matrix)
}

func TestScenariosFollowConfiguredABI(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "wheelwright.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("python_abi: cp36-cp36m\n"), 0o644))

	buf := &bytes.Buffer{}
	cmd := NewScenariosCommand(&RootOptions{Format: "text", Verbose: true, Config: cfgPath})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(nil)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "numpy-1.11.0-cp36-cp36m-linux_x86_64.whl")
}
