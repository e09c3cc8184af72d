package docker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func producerSpec() StartSpec {
	return StartSpec{
		Name:   "wheelwright-numpy-producer-1",
		Image:  "quay.io/pypa/manylinux1_x86_64",
		Mounts: []Mount{{Host: "/tmp/io", Container: "/io"}},
	}
}

func TestAcquire(t *testing.T) {
	runner := &scriptedRunner{}
	mgr := NewManager(NewClientWithRunner(runner, testLogger()), false, testLogger())

	env, err := mgr.Acquire(context.Background(), producerSpec())
	require.NoError(t, err)
	assert.Equal(t, "wheelwright-numpy-producer-1", env.Name())

	// Pull precedes start, every time.
	require.Len(t, runner.calls, 2)
	assert.Equal(t, []string{"pull", "quay.io/pypa/manylinux1_x86_64"}, runner.calls[0])
	assert.Equal(t, "run", runner.calls[1][0])
}

func TestAcquirePullFailure(t *testing.T) {
	runner := &scriptedRunner{replies: []reply{
		{out: "manifest unknown", code: 1},
	}}
	mgr := NewManager(NewClientWithRunner(runner, testLogger()), false, testLogger())

	_, err := mgr.Acquire(context.Background(), producerSpec())

	var perr *ProvisionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "pull", perr.Op)
	assert.Len(t, runner.calls, 1, "a failed pull must not attempt a start")
}

func TestAcquireStartFailureRemovesContainer(t *testing.T) {
	runner := &scriptedRunner{replies: []reply{
		{}, // pull
		{out: "conflict", code: 125}, // run
	}}
	mgr := NewManager(NewClientWithRunner(runner, testLogger()), false, testLogger())

	_, err := mgr.Acquire(context.Background(), producerSpec())
	require.Error(t, err)

	require.Len(t, runner.calls, 3)
	assert.Equal(t, []string{"rm", "-f", "wheelwright-numpy-producer-1"}, runner.calls[2])
}

func TestReleaseIdempotent(t *testing.T) {
	runner := &scriptedRunner{}
	mgr := NewManager(NewClientWithRunner(runner, testLogger()), false, testLogger())

	env, err := mgr.Acquire(context.Background(), producerSpec())
	require.NoError(t, err)

	mgr.Release(context.Background(), env)
	mgr.Release(context.Background(), env)

	// pull, run, then exactly one rm.
	require.Len(t, runner.calls, 3)
	assert.Equal(t, []string{"rm", "-f", "wheelwright-numpy-producer-1"}, runner.calls[2])
}

func TestReleaseNil(t *testing.T) {
	mgr := NewManager(NewClientWithRunner(&scriptedRunner{}, testLogger()), false, testLogger())
	mgr.Release(context.Background(), nil)
}

func TestReleaseKeepsEnvironments(t *testing.T) {
	runner := &scriptedRunner{}
	mgr := NewManager(NewClientWithRunner(runner, testLogger()), true, testLogger())

	env, err := mgr.Acquire(context.Background(), producerSpec())
	require.NoError(t, err)

	mgr.Release(context.Background(), env)
	assert.Len(t, runner.calls, 2, "keep mode must not remove the container")
}

func TestReleaseSwallowsRemoveFailure(t *testing.T) {
	runner := &scriptedRunner{replies: []reply{
		{}, // pull
		{}, // run
		{out: "device busy", code: 1}, // rm
	}}
	mgr := NewManager(NewClientWithRunner(runner, testLogger()), false, testLogger())

	env, err := mgr.Acquire(context.Background(), producerSpec())
	require.NoError(t, err)

	mgr.Release(context.Background(), env)
	assert.Len(t, runner.calls, 3)
}
