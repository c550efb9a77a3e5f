// Package replicaset groups servers of one role under a replica set name, gates on their health and initiates
// the set through its preferred primary.
package replicaset

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/mongodb/mongodb-dc-topology/controllers/datacentre"
	"github.com/mongodb/mongodb-dc-topology/controllers/process"
	"github.com/mongodb/mongodb-dc-topology/pkg/telemetry"
	"github.com/mongodb/mongodb-dc-topology/pkg/wait"
)

var (
	// ErrPreferredPrimaryAlreadySet is returned when a second member is flagged as preferred primary.
	ErrPreferredPrimaryAlreadySet = xerrors.Errorf("preferred primary already set: %w", process.ErrInvalidConfiguration)

	// ErrNoPreferredPrimary is returned when a set without preferred primary is initiated.
	ErrNoPreferredPrimary = xerrors.Errorf("no preferred primary: %w", process.ErrInvalidConfiguration)
)

// Member is what a replica set needs from the servers it groups.
type Member interface {
	process.Server
	InternalHost() string
	ReplicaSetName() string
	InitiateReplicaSet(ctx context.Context, others []process.Member) (bson.M, error)
}

// addFunc creates a member in a data centre.
type addFunc[M Member] func(ctx context.Context, dc *datacentre.DataCentre, replicaSetName string) (M, error)

// ReplicaSet is a named group of same-role servers with at most one preferred primary. It references its members,
// the data centres own them.
type ReplicaSet[M Member] struct {
	name string
	add  addFunc[M]
	log  *zap.SugaredLogger

	mu      sync.RWMutex
	members []M
	primary int
}

// ConfigServerReplicaSet holds the cluster metadata.
type ConfigServerReplicaSet = ReplicaSet[*process.ConfigServer]

// ShardServerReplicaSet holds one partition of the data.
type ShardServerReplicaSet = ReplicaSet[*process.ShardServer]

func NewConfigServerReplicaSet(name string, log *zap.SugaredLogger) *ConfigServerReplicaSet {
	return newReplicaSet[*process.ConfigServer](name, func(ctx context.Context, dc *datacentre.DataCentre, rs string) (*process.ConfigServer, error) {
		return dc.AddConfigServer(ctx, rs)
	}, log)
}

func NewShardServerReplicaSet(name string, log *zap.SugaredLogger) *ShardServerReplicaSet {
	return newReplicaSet[*process.ShardServer](name, func(ctx context.Context, dc *datacentre.DataCentre, rs string) (*process.ShardServer, error) {
		return dc.AddShardServer(ctx, rs)
	}, log)
}

func newReplicaSet[M Member](name string, add addFunc[M], log *zap.SugaredLogger) *ReplicaSet[M] {
	if log == nil {
		log = zap.S()
	}
	return &ReplicaSet[M]{name: name, add: add, log: log.With("replicaSet", name), primary: -1}
}

func (r *ReplicaSet[M]) Name() string {
	return r.name
}

// ReplicaSetName is the name the database knows the set by.
func (r *ReplicaSet[M]) ReplicaSetName() string {
	return r.name
}

// AddServer has the data centre create a member and appends it to the set. Flagging a second preferred primary is
// rejected before anything is created and leaves the set unchanged.
func (r *ReplicaSet[M]) AddServer(ctx context.Context, dc *datacentre.DataCentre, preferredPrimary bool) (M, error) {
	var zero M
	r.mu.Lock()
	defer r.mu.Unlock()

	if preferredPrimary && r.primary >= 0 {
		return zero, xerrors.Errorf("replica set %s already prefers %s: %w", r.name, r.members[r.primary].Name(), ErrPreferredPrimaryAlreadySet)
	}
	m, err := r.add(ctx, dc, r.name)
	if err != nil {
		return zero, xerrors.Errorf("failed to add member to replica set %s in %s: %w", r.name, dc.Location(), err)
	}
	r.members = append(r.members, m)
	if preferredPrimary {
		r.primary = len(r.members) - 1
	}
	r.log.Debugw("Member added", "server", m.Name(), "preferredPrimary", preferredPrimary)
	return m, nil
}

// Members returns the members in the order they were added.
func (r *ReplicaSet[M]) Members() []M {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]M(nil), r.members...)
}

// PreferredPrimary returns the member flagged as preferred primary.
func (r *ReplicaSet[M]) PreferredPrimary() (M, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.primary < 0 {
		var zero M
		return zero, false
	}
	return r.members[r.primary], true
}

// Hosts returns the internal host of every member.
func (r *ReplicaSet[M]) Hosts() []string {
	members := r.Members()
	hosts := make([]string, 0, len(members))
	for _, m := range members {
		hosts = append(hosts, m.InternalHost())
	}
	return hosts
}

// Probes returns one health probe per member.
func (r *ReplicaSet[M]) Probes() []wait.Probe {
	members := r.Members()
	probes := make([]wait.Probe, 0, len(members))
	for _, m := range members {
		probes = append(probes, wait.Probe{Name: m.Name(), Check: m.Healthy})
	}
	return probes
}

// WaitUntilHealthy blocks until every member is healthy. Members are probed in parallel. When opts carries a
// timeout, the returned *wait.UnhealthyError names each member that never became healthy.
func (r *ReplicaSet[M]) WaitUntilHealthy(ctx context.Context, opts wait.Options) error {
	start := time.Now()
	r.log.Infow("Waiting for members to become healthy", "members", len(r.Members()))
	err := wait.ForAll(ctx, opts, r.Probes()...)
	telemetry.HealthWaitSeconds.WithLabelValues(r.name).Observe(time.Since(start).Seconds())
	if err != nil {
		return xerrors.Errorf("replica set %s is not healthy: %w", r.name, err)
	}
	r.log.Info("All members healthy")
	return nil
}

// InitiateReplicaSet initiates the set through the preferred primary, passing every other member.
func (r *ReplicaSet[M]) InitiateReplicaSet(ctx context.Context) (bson.M, error) {
	primary, ok := r.PreferredPrimary()
	if !ok {
		return nil, xerrors.Errorf("cannot initiate replica set %s: %w", r.name, ErrNoPreferredPrimary)
	}
	var others []process.Member
	for _, m := range r.Members() {
		if m.Name() != primary.Name() {
			others = append(others, m)
		}
	}
	return primary.InitiateReplicaSet(ctx, others)
}
