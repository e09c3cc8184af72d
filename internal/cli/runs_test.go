package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wheelwright/internal/journal"
)

const (
	passingRunID = "0191c2aa-7000-7000-8000-000000000001"
	failingRunID = "0191c2aa-7000-7000-8000-000000000002"
)

// seedJournal writes one passing and one failing run, each with a
// command and a check, and returns the journal path.
func seedJournal(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := journal.Open(path)
	require.NoError(t, err)
	defer j.Close()

	ctx := context.Background()
	started := time.Date(2019, 4, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, j.CreateRun(ctx, journal.Run{
		ID: passingRunID, Scenario: "pure", Policy: "manylinux1",
		State: "building", StartedAt: started,
	}))
	require.NoError(t, j.AppendCommand(ctx, journal.CommandRecord{
		RunID: passingRunID, Seq: 1, Stage: "building",
		Container: "wheelwright-producer-" + passingRunID,
		Command:   `{"argv":["pip","wheel","-w","/io","--no-binary=:all:","six==1.11.0"]}`,
		Output:    "Collecting six==1.11.0\nSaved /io/six-1.11.0-py2.py3-none-any.whl\n",
	}))
	require.NoError(t, j.AppendCheck(ctx, journal.CheckRecord{
		RunID: passingRunID, Seq: 1, Stage: "building",
		Name: "build produced the original wheel", OK: true,
		Detail: "six-1.11.0-py2.py3-none-any.whl",
	}))
	require.NoError(t, j.FinishRun(ctx, passingRunID, "done", true,
		started.Add(2*time.Second), "", journal.Detail{"cache": "miss"}))

	require.NoError(t, j.CreateRun(ctx, journal.Run{
		ID: failingRunID, Scenario: "deps-linked", Policy: "manylinux2010",
		State: "building", StartedAt: started.Add(10 * time.Second),
	}))
	require.NoError(t, j.AppendCommand(ctx, journal.CommandRecord{
		RunID: failingRunID, Seq: 1, Stage: "repairing",
		Container: "wheelwright-producer-" + failingRunID,
		Command:   `{"argv":["auditwheel","-v","repair","--plat","manylinux1_x86_64","-w","/io","/io/testdependencies-0.0.1-cp35-cp35m-linux_x86_64.whl"]}`,
		ExitCode:  1, Expected: true,
		Output: "cannot repair to a more compatible policy\n",
	}))
	require.NoError(t, j.AppendCheck(ctx, journal.CheckRecord{
		RunID: failingRunID, Seq: 1, Stage: "repairing",
		Name: "repair to older policy manylinux1 refused", OK: false,
		Detail: `expected "non-zero exit for --plat manylinux1_x86_64", got "exit status 0"`,
	}))
	require.NoError(t, j.FinishRun(ctx, failingRunID, "repairing", false,
		started.Add(14*time.Second),
		`repair to older policy manylinux1 refused: expected "non-zero exit for --plat manylinux1_x86_64", got "exit status 0"`,
		nil))

	return path
}

func runsCommand(format string) (*bytes.Buffer, func(args ...string) error) {
	out := &bytes.Buffer{}
	cmd := NewRunsCommand(&RootOptions{Format: format})
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	return out, func(args ...string) error {
		cmd.SetArgs(args)
		return cmd.Execute()
	}
}

func TestRunsListText(t *testing.T) {
	path := seedJournal(t)
	out, execute := runsCommand("text")

	require.NoError(t, execute("--journal", path))

	lines := out.String()
	// Newest first: the failing run leads.
	failIdx := strings.Index(lines, failingRunID)
	passIdx := strings.Index(lines, passingRunID)
	require.GreaterOrEqual(t, failIdx, 0)
	require.GreaterOrEqual(t, passIdx, 0)
	assert.Less(t, failIdx, passIdx)

	assert.Contains(t, lines, "✓ "+passingRunID+"  pure on manylinux1 (done) started 2019-04-02T10:00:00Z")
	assert.Contains(t, lines, "✗ "+failingRunID+"  deps-linked on manylinux2010 (repairing) started 2019-04-02T10:00:10Z")
	assert.Contains(t, lines, "  repair to older policy manylinux1 refused")
}

func TestRunsListFailedOnly(t *testing.T) {
	path := seedJournal(t)
	out, execute := runsCommand("text")

	require.NoError(t, execute("--journal", path, "--failed"))

	assert.Contains(t, out.String(), failingRunID)
	assert.NotContains(t, out.String(), passingRunID)
}

func TestRunsListScenarioFilter(t *testing.T) {
	path := seedJournal(t)
	out, execute := runsCommand("text")

	require.NoError(t, execute("--journal", path, "--scenario", "pure"))

	assert.Contains(t, out.String(), passingRunID)
	assert.NotContains(t, out.String(), failingRunID)
}

func TestRunsListEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	out, execute := runsCommand("text")

	require.NoError(t, execute("--journal", path))
	assert.Equal(t, "No runs recorded.\n", out.String())
}

func TestRunsListJSON(t *testing.T) {
	path := seedJournal(t)
	out, execute := runsCommand("json")

	require.NoError(t, execute("--journal", path))

	var resp struct {
		Status string    `json:"status"`
		Data   []RunInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, failingRunID, resp.Data[0].ID)
	assert.False(t, resp.Data[0].Pass)
	require.NotNil(t, resp.Data[0].Finished)
	assert.Equal(t, passingRunID, resp.Data[1].ID)
	assert.Equal(t, map[string]string{"cache": "miss"}, resp.Data[1].Detail)
}

func TestRunsShowText(t *testing.T) {
	path := seedJournal(t)
	out, execute := runsCommand("text")

	require.NoError(t, execute("show", failingRunID, "--journal", path))

	text := out.String()
	assert.Contains(t, text, "Run: "+failingRunID)
	assert.Contains(t, text, "Scenario: deps-linked on manylinux2010")
	assert.Contains(t, text, "State: repairing (failed)")
	assert.Contains(t, text, "Error: repair to older policy manylinux1 refused")
	assert.Contains(t, text, "Started: 2019-04-02T10:00:10Z")
	assert.Contains(t, text, "Finished: 2019-04-02T10:00:14Z")

	assert.Contains(t, text, "=== Commands ===")
	assert.Contains(t, text, "[1] repairing wheelwright-producer-"+failingRunID+" exit 1 (expected)")
	assert.Contains(t, text, `"--plat","manylinux1_x86_64"`)
	assert.Contains(t, text, "      | cannot repair to a more compatible policy")

	assert.Contains(t, text, "=== Checks ===")
	assert.Contains(t, text, "✗ repair to older policy manylinux1 refused")
	assert.Contains(t, text, `expected "non-zero exit for --plat manylinux1_x86_64"`)
}

func TestRunsShowPassingRun(t *testing.T) {
	path := seedJournal(t)
	out, execute := runsCommand("text")

	require.NoError(t, execute("show", passingRunID, "--journal", path))

	text := out.String()
	assert.Contains(t, text, "State: done (passed)")
	assert.NotContains(t, text, "Error:")
	assert.Contains(t, text, "cache: miss")
	assert.Contains(t, text, "✓ build produced the original wheel")
}

func TestRunsShowJSON(t *testing.T) {
	path := seedJournal(t)
	out, execute := runsCommand("json")

	require.NoError(t, execute("show", failingRunID, "--journal", path))

	var resp struct {
		Status string    `json:"status"`
		Data   RunDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, failingRunID, resp.Data.Run.ID)
	require.Len(t, resp.Data.Commands, 1)
	assert.Equal(t, 1, resp.Data.Commands[0].ExitCode)
	assert.True(t, resp.Data.Commands[0].Expected)
	require.Len(t, resp.Data.Checks, 1)
	assert.False(t, resp.Data.Checks[0].OK)
}

func TestRunsShowUnknownID(t *testing.T) {
	path := seedJournal(t)
	_, execute := runsCommand("text")

	err := execute("show", "0191c2aa-dead-dead-8000-000000000000", "--journal", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
