package replicaset

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongodb/mongodb-dc-topology/controllers/datacentre"
	"github.com/mongodb/mongodb-dc-topology/controllers/process"
	"github.com/mongodb/mongodb-dc-topology/pkg/admin"
	"github.com/mongodb/mongodb-dc-topology/pkg/container"
	"github.com/mongodb/mongodb-dc-topology/pkg/wait"
)

type fixture struct {
	rt      *container.FakeRuntime
	cluster *admin.FakeCluster
	dcs     []*datacentre.DataCentre
}

func newFixture(t *testing.T) fixture {
	f := fixture{rt: container.NewFakeRuntime(), cluster: admin.NewFakeCluster()}
	env := process.Environment{Runtime: f.rt, Connector: f.cluster, Image: "mongo:7.0"}
	for i, loc := range []string{"toronto", "winnipeg", "montreal"} {
		dc, err := datacentre.New(loc, 27020+10*i, env)
		require.NoError(t, err)
		f.dcs = append(f.dcs, dc)
	}
	return f
}

func TestAddServer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rs := NewShardServerReplicaSet("MANITOBA", nil)

	_, err := rs.AddServer(ctx, f.dcs[0], false)
	require.NoError(t, err)
	primary, err := rs.AddServer(ctx, f.dcs[1], true)
	require.NoError(t, err)
	_, err = rs.AddServer(ctx, f.dcs[2], false)
	require.NoError(t, err)

	p, ok := rs.PreferredPrimary()
	require.True(t, ok)
	assert.Same(t, primary, p)
	assert.Equal(t, "MANITOBA", p.ReplicaSetName())
	assert.Equal(t, []string{
		"dc-TORONTO_type-SHARD_replSet-MANITOBA_dcid-0:27017",
		"dc-WINNIPEG_type-SHARD_replSet-MANITOBA_dcid-0:27017",
		"dc-MONTREAL_type-SHARD_replSet-MANITOBA_dcid-0:27017",
	}, rs.Hosts())
}

func TestSecondPreferredPrimaryIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rs := NewConfigServerReplicaSet("cfg", nil)

	first, err := rs.AddServer(ctx, f.dcs[0], true)
	require.NoError(t, err)

	_, err = rs.AddServer(ctx, f.dcs[1], true)
	assert.ErrorIs(t, err, ErrPreferredPrimaryAlreadySet)
	assert.ErrorIs(t, err, process.ErrInvalidConfiguration)

	p, _ := rs.PreferredPrimary()
	assert.Same(t, first, p)
	assert.Len(t, rs.Members(), 1)
	// nothing was created for the rejected member
	assert.Equal(t, 1, f.rt.Count())
	assert.Equal(t, 27030, f.dcs[1].NextPort())
}

func TestInitiateWithoutPreferredPrimary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rs := NewShardServerReplicaSet("ONTARIO", nil)
	_, err := rs.AddServer(ctx, f.dcs[0], false)
	require.NoError(t, err)

	_, err = rs.InitiateReplicaSet(ctx)
	assert.ErrorIs(t, err, ErrNoPreferredPrimary)
	assert.Equal(t, 0, f.cluster.Calls("replSetInitiate"))
}

func TestInitiateReplicaSet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rs := NewShardServerReplicaSet("QUEBEC", nil)
	for i, dc := range f.dcs {
		_, err := rs.AddServer(ctx, dc, i == 2)
		require.NoError(t, err)
	}

	_, err := rs.InitiateReplicaSet(ctx)
	require.NoError(t, err)

	cfg, ok := f.cluster.ReplSet("QUEBEC")
	require.True(t, ok)
	require.Len(t, cfg.Members, 3)
	assert.Equal(t, admin.ReplSetMember{ID: 0, Host: "dc-MONTREAL_type-SHARD_replSet-QUEBEC_dcid-0:27017", Priority: 1}, cfg.Members[0])
	assert.Equal(t, "dc-TORONTO_type-SHARD_replSet-QUEBEC_dcid-0:27017", cfg.Members[1].Host)
	assert.Equal(t, "dc-WINNIPEG_type-SHARD_replSet-QUEBEC_dcid-0:27017", cfg.Members[2].Host)
	assert.False(t, cfg.ConfigSvr)

	// a second initiation is reported as already initialized, never as a generic failure
	_, err = rs.InitiateReplicaSet(ctx)
	assert.True(t, admin.IsAlreadyInitialized(err))
}

func TestConfigServerReplicaSetIsMarked(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rs := NewConfigServerReplicaSet("cfg", nil)
	_, err := rs.AddServer(ctx, f.dcs[0], true)
	require.NoError(t, err)

	_, err = rs.InitiateReplicaSet(ctx)
	require.NoError(t, err)
	cfg, _ := f.cluster.ReplSet("cfg")
	assert.True(t, cfg.ConfigSvr)
}

func TestWaitUntilHealthy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rs := NewShardServerReplicaSet("ONTARIO", nil)
	for i, dc := range f.dcs {
		_, err := rs.AddServer(ctx, dc, i == 0)
		require.NoError(t, err)
	}
	opts := wait.WithTimeout(wait.Fixed(5*time.Millisecond), 200*time.Millisecond)

	require.NoError(t, rs.WaitUntilHealthy(ctx, opts))

	members := rs.Members()
	f.rt.SetStatus(members[1].Name(), container.StatusExited)
	f.cluster.SetReachable(members[2].Address(), false)

	err := rs.WaitUntilHealthy(ctx, wait.WithTimeout(wait.Fixed(5*time.Millisecond), 50*time.Millisecond))
	var unhealthy *wait.UnhealthyError
	require.True(t, errors.As(err, &unhealthy))
	// sorted by name: montreal before winnipeg
	assert.Equal(t, []string{members[2].Name(), members[1].Name()}, unhealthy.Members)
	assert.ErrorIs(t, err, wait.ErrTimeout)
}

func TestWaitUntilHealthyRecovers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rs := NewShardServerReplicaSet("ONTARIO", nil)
	m, err := rs.AddServer(ctx, f.dcs[0], true)
	require.NoError(t, err)
	f.cluster.SetReachable(m.Address(), false)

	go func() {
		time.Sleep(30 * time.Millisecond)
		f.cluster.SetReachable(m.Address(), true)
	}()
	assert.NoError(t, rs.WaitUntilHealthy(ctx, wait.WithTimeout(wait.Fixed(5*time.Millisecond), 5*time.Second)))
}

func TestWaitUntilHealthyHonoursCancellation(t *testing.T) {
	f := newFixture(t)
	rs := NewShardServerReplicaSet("ONTARIO", nil)
	m, err := rs.AddServer(context.Background(), f.dcs[0], true)
	require.NoError(t, err)
	f.rt.SetStatus(m.Name(), container.StatusDead)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err = rs.WaitUntilHealthy(ctx, wait.Forever(wait.Fixed(5*time.Millisecond)))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
