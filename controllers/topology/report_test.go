package topology

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongodb/mongodb-dc-topology/controllers/process"
	"github.com/mongodb/mongodb-dc-topology/pkg/container"
)

const (
	torontoConfig = "dc-TORONTO_type-CONFIG_replSet-CFG_dcid-0"
	quebecPrimary = "dc-MONTREAL_type-SHARD_replSet-QUEBEC_dcid-2"
)

// appliedAndAttached applies the topology, then returns an attach-only Orchestrator built from the same document.
func appliedAndAttached(t *testing.T) (fixture, *Orchestrator) {
	ctx := context.Background()
	f := newFixture(t)
	require.True(t, f.orchestrator(false, time.Second).Apply(ctx).IsOK())

	o := f.orchestrator(true, time.Second)
	require.NoError(t, o.Build(ctx))
	return f, o
}

func TestBuildAttachesWithoutCreating(t *testing.T) {
	f, o := appliedAndAttached(t)

	creates := 0
	for _, h := range f.rt.History() {
		if strings.HasPrefix(h, "create ") {
			creates++
		}
	}
	assert.Equal(t, 15, creates)
	assert.Len(t, o.Routers(), 3)
	assert.Len(t, o.Shards(), 3)
	assert.Equal(t, "cfg", o.ConfigServers().Name())

	s, ok := o.Server(quebecPrimary)
	require.True(t, ok)
	assert.Equal(t, process.RoleShardServer, s.Role())
	assert.Equal(t, 27044, s.ExternalPort())
}

func TestBuildAttachOnlyOnEmptyRuntime(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := f.orchestrator(true, time.Second)
	require.NoError(t, o.Build(ctx))
	assert.Zero(t, f.rt.Count())

	report := o.Report(ctx)
	require.Len(t, report, 15)
	for _, st := range report {
		assert.Equal(t, container.StatusUnknown, st.Runtime)
		assert.False(t, st.Healthy)
		assert.NotEmpty(t, st.Error)
	}
}

func TestShutdownStartupDestroy(t *testing.T) {
	ctx := context.Background()
	f, o := appliedAndAttached(t)

	require.NoError(t, o.Shutdown(ctx, quebecPrimary))
	inst, ok := f.rt.Get(quebecPrimary)
	require.True(t, ok)
	assert.Equal(t, container.StatusExited, inst.Status)

	require.NoError(t, o.Startup(ctx, quebecPrimary))
	inst, _ = f.rt.Get(quebecPrimary)
	assert.Equal(t, container.StatusRunning, inst.Status)

	require.NoError(t, o.Destroy(ctx, quebecPrimary))
	_, ok = f.rt.Get(quebecPrimary)
	assert.False(t, ok)
	assert.False(t, f.rt.HasVolume(quebecPrimary))
	assert.Equal(t, 14, f.rt.Count())
}

func TestLifecycleReportsEveryUnknownName(t *testing.T) {
	ctx := context.Background()
	f, o := appliedAndAttached(t)

	err := o.Shutdown(ctx, "nope", torontoConfig, "dc-MARS_type-ROUTER_dcid-0")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownServer)
	assert.Contains(t, err.Error(), "nope")
	assert.Contains(t, err.Error(), "dc-MARS_type-ROUTER_dcid-0")

	// the known name in between was still stopped
	inst, _ := f.rt.Get(torontoConfig)
	assert.Equal(t, container.StatusExited, inst.Status)
}

func TestReport(t *testing.T) {
	ctx := context.Background()
	f, o := appliedAndAttached(t)
	f.rt.SetStatus(quebecPrimary, container.StatusExited)

	report := o.Report(ctx)
	require.Len(t, report, 15)
	assert.Equal(t, ServerStatus{
		Name:       torontoConfig,
		DataCentre: "toronto",
		Role:       process.RoleConfigServer,
		ReplicaSet: "cfg",
		Port:       27020,
		Runtime:    container.StatusRunning,
		Healthy:    true,
	}, report[0])
	assert.Equal(t, ServerStatus{
		Name:       "dc-TORONTO_type-ROUTER_dcid-0",
		DataCentre: "toronto",
		Role:       process.RoleRouter,
		Port:       27021,
		Runtime:    container.StatusRunning,
		Healthy:    true,
	}, report[1])

	last := report[len(report)-1]
	assert.Equal(t, quebecPrimary, last.Name)
	assert.Equal(t, container.StatusExited, last.Runtime)
	assert.False(t, last.Healthy)
}

func TestCountPerShard(t *testing.T) {
	ctx := context.Background()
	f, o := appliedAndAttached(t)
	f.cluster.SetCount(localhost(27022), weatherNamespace, 2)
	f.cluster.SetCount(localhost(27044), weatherNamespace, 1)

	counts, err := o.CountPerShard(ctx, weatherNamespace)
	require.NoError(t, err)
	assert.Equal(t, []ShardCount{
		{Shard: "ONTARIO", Server: "dc-TORONTO_type-SHARD_replSet-ONTARIO_dcid-0", Count: 2},
		{Shard: "MANITOBA", Server: "dc-WINNIPEG_type-SHARD_replSet-MANITOBA_dcid-1", Count: 0},
		{Shard: "QUEBEC", Server: quebecPrimary, Count: 1},
	}, counts)
	assert.Zero(t, f.cluster.OpenConnections())

	_, err = o.CountPerShard(ctx, "weather")
	assert.ErrorIs(t, err, process.ErrInvalidConfiguration)
}
