package container

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusLive(t *testing.T) {
	assert.True(t, StatusRunning.Live())
	assert.True(t, StatusCreated.Live())

	for _, s := range []Status{StatusPaused, StatusRestarting, StatusRemoving, StatusExited, StatusDead, StatusUnknown} {
		assert.False(t, s.Live(), "status %s must not be live", s)
	}
}

func TestMountBind(t *testing.T) {
	assert.Equal(t, "/etc/localtime:/etc/localtime:ro", Mount{Source: "/etc/localtime", Target: "/etc/localtime", ReadOnly: true}.Bind())
	assert.Equal(t, "dc-TORONTO_type-CONFIG_replSet-CFG_dcid-0:/data/db", Mount{Source: "dc-TORONTO_type-CONFIG_replSet-CFG_dcid-0", Target: "/data/db"}.Bind())
}

func TestFakeRuntimeLookupNotFound(t *testing.T) {
	rt := NewFakeRuntime()
	_, err := rt.Lookup(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestFakeRuntimeLifecycle(t *testing.T) {
	ctx := context.Background()
	rt := NewFakeRuntime()

	inst, err := rt.Create(ctx, Spec{Name: "node", Mounts: []Mount{{Source: "node", Target: "/data/db"}}})
	require.NoError(t, err)
	assert.True(t, rt.HasVolume("node"))

	status, err := rt.Inspect(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, status)

	require.NoError(t, rt.Start(ctx, inst.ID))
	status, _ = rt.Inspect(ctx, inst.ID)
	assert.Equal(t, StatusRunning, status)

	assert.Error(t, rt.Remove(ctx, inst.ID, false))
	require.NoError(t, rt.Remove(ctx, inst.ID, true))
	require.NoError(t, rt.RemoveVolume(ctx, "node"))

	assert.Equal(t, 0, rt.Count())
	assert.False(t, rt.HasVolume("node"))
	assert.Equal(t, []string{"create node", "start node", "remove node", "remove-volume node"}, rt.History())
}
