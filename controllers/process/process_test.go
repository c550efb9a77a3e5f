package process

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mongodb/mongodb-dc-topology/pkg/admin"
	"github.com/mongodb/mongodb-dc-topology/pkg/container"
)

func init() {
	logger, _ := zap.NewDevelopment()
	zap.ReplaceGlobals(logger)
}

func testEnv() (Environment, *container.FakeRuntime, *admin.FakeCluster) {
	rt := container.NewFakeRuntime()
	cluster := admin.NewFakeCluster()
	return Environment{
		Runtime:      rt,
		Connector:    cluster,
		Image:        "mongo:7.0",
		ExternalHost: "localhost",
	}, rt, cluster
}

func TestShardServerArgs(t *testing.T) {
	env, _, _ := testEnv()
	s := NewShardServer(env, "dc-ONTARIO_type-SHARD_replSet-ONTARIO_dcid-0", 27020, "ONTARIO")

	assert.Equal(t, []string{
		"mongod", "--shardsvr", "--replSet", "ONTARIO", "--dbpath", "/data/db", "--port", "27017", "--bind_ip_all",
	}, s.Args())
	assert.Equal(t, RoleShardServer, s.Role())
	assert.Equal(t, "ONTARIO", s.ReplicaSetName())
	assert.Equal(t, "dc-ONTARIO_type-SHARD_replSet-ONTARIO_dcid-0:27017", s.InternalHost())
	assert.Equal(t, "localhost:27020", s.Address().String())
}

func TestConfigServerArgs(t *testing.T) {
	env, _, _ := testEnv()
	s := NewConfigServer(env, "cfg0", 27021, "cfg")

	assert.Equal(t, []string{
		"mongod", "--configsvr", "--replSet", "cfg", "--dbpath", "/data/db", "--port", "27017", "--bind_ip_all",
	}, s.Args())
	assert.True(t, s.HasDataVolume())
	assert.Equal(t, "cfg0", s.DataVolumeName())
}

func TestRouterArgs(t *testing.T) {
	env, _, _ := testEnv()
	r, err := NewRouter(env, "router0", 27020, "cfg", []string{"cfg0:27017", "cfg1:27017"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"mongos", "--configdb", "cfg/cfg0:27017,cfg1:27017", "--port", "27017", "--bind_ip_all",
	}, r.Args())
	assert.False(t, r.HasDataVolume())
	assert.Empty(t, r.DataVolumeName())
	assert.Equal(t, "mongodb://localhost:27020", r.MongoURL())
}

func TestRouterWithoutConfigServers(t *testing.T) {
	env, _, _ := testEnv()
	_, err := NewRouter(env, "router0", 27020, "cfg", nil)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestSpec(t *testing.T) {
	env, _, _ := testEnv()
	s := NewShardServer(env, "shard0", 27020, "rs")
	spec := s.Spec()

	assert.Equal(t, "shard0", spec.Name)
	assert.Equal(t, "mongo:7.0", spec.Image)
	assert.Equal(t, "fake-network", spec.Network)
	assert.Equal(t, map[string]string{"TERM": "xterm"}, spec.Env)
	assert.Equal(t, []container.PortMapping{{Internal: 27017, External: 27020}}, spec.Ports)
	assert.Equal(t, []container.Mount{
		{Source: "/etc/localtime", Target: "/etc/localtime", ReadOnly: true},
		{Source: "shard0", Target: "/data/db"},
	}, spec.Mounts)
}

func TestEnsureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	env, rt, _ := testEnv()
	s := NewShardServer(env, "shard0", 27020, "rs")

	require.NoError(t, s.Ensure(ctx))
	require.NoError(t, s.Ensure(ctx))
	assert.Equal(t, 1, rt.Count())

	// a second process with the same name attaches instead of creating
	other := NewShardServer(env, "shard0", 27020, "rs")
	require.NoError(t, other.Ensure(ctx))
	assert.Equal(t, 1, rt.Count())

	inst, ok := rt.Get("shard0")
	require.True(t, ok)
	assert.Equal(t, container.StatusRunning, inst.Status)
	assert.Equal(t, 3, inst.Starts)
}

func TestEnsureAttachOnly(t *testing.T) {
	env, rt, _ := testEnv()
	env.AttachOnly = true
	s := NewShardServer(env, "shard0", 27020, "rs")

	err := s.Ensure(context.Background())
	assert.True(t, container.IsNotFound(err))
	assert.Equal(t, 0, rt.Count())
}

func TestShutdownAndStartup(t *testing.T) {
	ctx := context.Background()
	env, rt, _ := testEnv()
	s := NewShardServer(env, "shard0", 27020, "rs")
	require.NoError(t, s.Ensure(ctx))

	require.NoError(t, s.Shutdown(ctx))
	status, err := s.RuntimeStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, container.StatusExited, status)
	assert.False(t, s.Healthy(ctx))

	require.NoError(t, s.Startup(ctx))
	assert.True(t, s.Healthy(ctx))
	assert.True(t, rt.HasVolume("shard0"))
}

func TestLifecycleOnUnknownServer(t *testing.T) {
	ctx := context.Background()
	env, _, _ := testEnv()
	s := NewShardServer(env, "ghost", 27020, "rs")

	assert.True(t, container.IsNotFound(s.Shutdown(ctx)))
	assert.True(t, container.IsNotFound(s.Startup(ctx)))
	assert.NoError(t, s.Destroy(ctx))
}

func TestDestroyRemovesVolume(t *testing.T) {
	ctx := context.Background()
	env, rt, _ := testEnv()
	s := NewShardServer(env, "shard0", 27020, "rs")
	require.NoError(t, s.Ensure(ctx))

	require.NoError(t, s.Destroy(ctx))
	assert.Equal(t, 0, rt.Count())
	assert.False(t, rt.HasVolume("shard0"))
	assert.Equal(t, []string{"lookup shard0", "create shard0", "start shard0", "remove shard0", "remove-volume shard0"}, rt.History())

	// destroyed servers are created again by Ensure
	require.NoError(t, s.Ensure(ctx))
	assert.Equal(t, 1, rt.Count())
}

func TestHealthy(t *testing.T) {
	ctx := context.Background()

	t.Run("Not created", func(t *testing.T) {
		env, _, cluster := testEnv()
		s := NewShardServer(env, "shard0", 27020, "rs")
		assert.False(t, s.Healthy(ctx))
		assert.Equal(t, 0, cluster.Calls("ping"))
	})
	t.Run("Running and reachable", func(t *testing.T) {
		env, _, cluster := testEnv()
		s := NewShardServer(env, "shard0", 27020, "rs")
		require.NoError(t, s.Ensure(ctx))
		assert.True(t, s.Healthy(ctx))
		assert.Equal(t, 0, cluster.OpenConnections())
	})
	t.Run("Created but not started counts as live", func(t *testing.T) {
		env, rt, _ := testEnv()
		s := NewShardServer(env, "shard0", 27020, "rs")
		require.NoError(t, s.Ensure(ctx))
		rt.SetStatus("shard0", container.StatusCreated)
		assert.True(t, s.Healthy(ctx))
	})
	t.Run("Dead instance is not pinged", func(t *testing.T) {
		env, rt, cluster := testEnv()
		s := NewShardServer(env, "shard0", 27020, "rs")
		require.NoError(t, s.Ensure(ctx))
		for _, st := range []container.Status{container.StatusExited, container.StatusDead, container.StatusPaused, container.StatusRestarting} {
			rt.SetStatus("shard0", st)
			assert.False(t, s.Healthy(ctx), st)
		}
		assert.Equal(t, 0, cluster.Calls("ping"))
	})
	t.Run("Unreachable database", func(t *testing.T) {
		env, _, cluster := testEnv()
		s := NewShardServer(env, "shard0", 27020, "rs")
		require.NoError(t, s.Ensure(ctx))
		cluster.SetReachable(s.Address(), false)
		assert.False(t, s.Healthy(ctx))
		assert.Equal(t, 0, cluster.OpenConnections())
	})
	t.Run("Connect failure", func(t *testing.T) {
		env, _, cluster := testEnv()
		s := NewShardServer(env, "shard0", 27020, "rs")
		require.NoError(t, s.Ensure(ctx))
		cluster.ConnectErr = assert.AnError
		assert.False(t, s.Healthy(ctx))
	})
}
