// Package topology drives a topology document to a running cluster: it creates the data centres and their servers,
// gates every replica set on health, initiates the sets, registers the shards with the routers and partitions the
// sharded collection into zones.
package topology

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.mongodb.org/mongo-driver/bson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/mongodb/mongodb-dc-topology/api/v1/status"
	topologyv1 "github.com/mongodb/mongodb-dc-topology/api/v1/topology"
	"github.com/mongodb/mongodb-dc-topology/controllers/datacentre"
	"github.com/mongodb/mongodb-dc-topology/controllers/process"
	"github.com/mongodb/mongodb-dc-topology/controllers/replicaset"
	"github.com/mongodb/mongodb-dc-topology/controllers/workflow"
	"github.com/mongodb/mongodb-dc-topology/controllers/zone"
	"github.com/mongodb/mongodb-dc-topology/pkg/admin"
	"github.com/mongodb/mongodb-dc-topology/pkg/telemetry"
	"github.com/mongodb/mongodb-dc-topology/pkg/wait"
)

const routersHealthGroup = "routers"

// ErrAlreadyBuilt is returned when Apply or Build is called a second time on the same Orchestrator.
var ErrAlreadyBuilt = errors.New("orchestrator already built its servers")

// Orchestrator owns the data centres, replica sets and routers of one topology. Servers are registered once per
// Orchestrator, in document order, so that a fresh Orchestrator replaying the same document resolves the same
// names and ports.
type Orchestrator struct {
	topology topologyv1.Topology
	env      process.Environment
	waitOpts wait.Options
	log      *zap.SugaredLogger

	mu            sync.RWMutex
	built         bool
	dataCentres   []*datacentre.DataCentre
	configServers *replicaset.ConfigServerReplicaSet
	shards        []*replicaset.ShardServerReplicaSet
	routers       []*process.Router
}

func New(t topologyv1.Topology, env process.Environment, waitOpts wait.Options, log *zap.SugaredLogger) *Orchestrator {
	if log == nil {
		log = zap.S()
	}
	if env.Log == nil {
		env.Log = log
	}
	return &Orchestrator{
		topology: t,
		env:      env,
		waitOpts: waitOpts,
		log:      log,
	}
}

// Apply runs the whole orchestration. Every step is safe to repeat against servers an earlier run created, so a
// failed or pending Apply is resumed by running a fresh Orchestrator with the same document.
func (o *Orchestrator) Apply(ctx context.Context) workflow.Status {
	o.mu.Lock()
	if o.built {
		o.mu.Unlock()
		return workflow.Failed(ErrAlreadyBuilt)
	}
	o.built = true
	o.mu.Unlock()

	runID := uuid.NewString()
	log := o.log.With("run", runID)
	ctx, span := telemetry.StartSpan(ctx, "topology.Apply", attribute.String("run", runID))
	defer span.End()

	log.Infow("Applying topology", "dataCentres", len(o.topology.DataCentres), "shards", len(o.topology.Shards), "routers", len(o.topology.Routers))
	start := time.Now()

	result := workflow.RunInGivenOrder(true,
		o.step(ctx, "validate", func(context.Context) workflow.Status {
			return o.validate()
		}),
		o.step(ctx, "dataCentres", func(context.Context) workflow.Status {
			return o.ensureDataCentres(log)
		}),
		o.step(ctx, "configServers", func(ctx context.Context) workflow.Status {
			return o.reconcileConfigServers(ctx, log).OnErrorPrepend("Failed to reconcile config servers:")
		}),
		o.step(ctx, "routers", func(ctx context.Context) workflow.Status {
			return o.reconcileRouters(ctx, log).OnErrorPrepend("Failed to reconcile routers:")
		}),
		o.step(ctx, "shards", func(ctx context.Context) workflow.Status {
			return o.reconcileShards(ctx, log).OnErrorPrepend("Failed to reconcile shards:")
		}),
		o.step(ctx, "collection", func(ctx context.Context) workflow.Status {
			return o.reconcileCollection(ctx, log).OnErrorPrepend("Failed to set up the sharded collection:")
		}),
	)

	recordStatus(span, result)
	if result.IsOK() {
		log.Infow("Topology applied", "duration", time.Since(start).String())
	} else {
		result.Log(log)
	}
	return result
}

// Build registers every server of the document without waiting for health or issuing any administrative command.
// With an attach-only environment nothing is created: the servers resolve to the instances an earlier Apply made.
func (o *Orchestrator) Build(ctx context.Context) error {
	o.mu.Lock()
	if o.built {
		o.mu.Unlock()
		return ErrAlreadyBuilt
	}
	o.built = true
	o.mu.Unlock()

	if s := o.validate(); !s.IsOK() {
		return s.Err()
	}
	if s := o.ensureDataCentres(o.log); !s.IsOK() {
		return s.Err()
	}
	if err := o.addConfigServers(ctx); err != nil {
		return err
	}
	if err := o.addRouters(ctx); err != nil {
		return err
	}
	return o.addShardServers(ctx)
}

// ApplyZones (re)creates the collection indexes and the zone partitioning. The Orchestrator must have been built.
func (o *Orchestrator) ApplyZones(ctx context.Context) workflow.Status {
	log := o.log.With("run", uuid.NewString())
	ctx, span := telemetry.StartSpan(ctx, "topology.ApplyZones")
	defer span.End()
	result := o.reconcileCollection(ctx, log).OnErrorPrepend("Failed to set up the sharded collection:")
	recordStatus(span, result)
	result.Log(log)
	return result
}

func (o *Orchestrator) step(ctx context.Context, name string, f func(ctx context.Context) workflow.Status) func() workflow.Status {
	return func() workflow.Status {
		ctx, span := telemetry.StartSpan(ctx, "topology."+name)
		defer span.End()
		s := f(ctx)
		recordStatus(span, s)
		return s
	}
}

func recordStatus(span trace.Span, s workflow.Status) {
	if s.IsOK() {
		return
	}
	err := s.Err()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// statusFromError tells configuration problems and health timeouts apart from other failures.
func statusFromError(err error) workflow.Status {
	if err == nil {
		return workflow.OK()
	}
	if errors.Is(err, process.ErrInvalidConfiguration) || errors.Is(err, topologyv1.ErrInvalid) || errors.Is(err, zone.ErrInvalidRanges) {
		return workflow.Invalid("%s", err.Error()).WithCause(err)
	}
	var unhealthy *wait.UnhealthyError
	if errors.As(err, &unhealthy) {
		return workflow.Pending("%s", err.Error()).WithNotReady(unhealthy.Members...)
	}
	return workflow.Failed(err)
}

func okWithWarnings(warnings ...string) workflow.Status {
	var w status.Warnings
	for _, msg := range warnings {
		w = w.AddIfNotExists(status.Warning(msg))
	}
	return workflow.OK().WithWarnings(w)
}

func (o *Orchestrator) validate() workflow.Status {
	return statusFromError(o.topology.Validate())
}

func (o *Orchestrator) ensureDataCentres(log *zap.SugaredLogger) workflow.Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.dataCentres != nil {
		return workflow.OK()
	}
	dcs := make([]*datacentre.DataCentre, 0, len(o.topology.DataCentres))
	for _, d := range o.topology.DataCentres {
		dc, err := datacentre.New(d.Location, d.StartPort, o.env)
		if err != nil {
			return statusFromError(err)
		}
		dcs = append(dcs, dc)
	}
	o.dataCentres = dcs
	o.configServers = replicaset.NewConfigServerReplicaSet(o.topology.ConfigServer.Name, log)
	o.shards = make([]*replicaset.ShardServerReplicaSet, 0, len(o.topology.Shards))
	for _, s := range o.topology.Shards {
		o.shards = append(o.shards, replicaset.NewShardServerReplicaSet(s.Name, log))
	}
	log.Debugw("Data centres created", "count", len(dcs))
	return workflow.OK()
}

// DataCentre returns the data centre at location. It is only known once the Orchestrator is built.
func (o *Orchestrator) DataCentre(location string) (*datacentre.DataCentre, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, dc := range o.dataCentres {
		if dc.Location() == location {
			return dc, true
		}
	}
	return nil, false
}

func (o *Orchestrator) dataCentre(location string) (*datacentre.DataCentre, error) {
	dc, ok := o.DataCentre(location)
	if !ok {
		return nil, xerrors.Errorf("unknown data centre %q: %w", location, process.ErrInvalidConfiguration)
	}
	return dc, nil
}

func addMembers[M replicaset.Member](ctx context.Context, o *Orchestrator, rs *replicaset.ReplicaSet[M], spec topologyv1.ReplicaSet) error {
	if len(rs.Members()) > 0 {
		return nil
	}
	for _, m := range spec.Members {
		dc, err := o.dataCentre(m.DataCentre)
		if err != nil {
			return err
		}
		if _, err := rs.AddServer(ctx, dc, m.PreferredPrimary); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) addConfigServers(ctx context.Context) error {
	return addMembers(ctx, o, o.configServers, o.topology.ConfigServer)
}

func (o *Orchestrator) addRouters(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.routers) > 0 {
		return nil
	}
	hosts := o.configServers.Hosts()
	for _, r := range o.topology.Routers {
		dc, err := o.dataCentreLocked(r.DataCentre)
		if err != nil {
			return err
		}
		router, err := dc.AddRouter(ctx, o.configServers.ReplicaSetName(), hosts)
		if err != nil {
			return err
		}
		o.routers = append(o.routers, router)
	}
	return nil
}

func (o *Orchestrator) dataCentreLocked(location string) (*datacentre.DataCentre, error) {
	for _, dc := range o.dataCentres {
		if dc.Location() == location {
			return dc, nil
		}
	}
	return nil, xerrors.Errorf("unknown data centre %q: %w", location, process.ErrInvalidConfiguration)
}

func (o *Orchestrator) addShardServers(ctx context.Context) error {
	for i, spec := range o.topology.Shards {
		if err := addMembers(ctx, o, o.shards[i], spec); err != nil {
			return err
		}
	}
	return nil
}

// initiate tolerates a set that an earlier run already initiated.
func initiate[M replicaset.Member](ctx context.Context, rs *replicaset.ReplicaSet[M], log *zap.SugaredLogger) error {
	resp, err := rs.InitiateReplicaSet(ctx)
	if admin.IsAlreadyInitialized(err) {
		log.Infow("Replica set already initiated", "replicaSet", rs.Name())
		return nil
	}
	if err != nil {
		return err
	}
	log.Infow("Replica set initiated", "replicaSet", rs.Name(), "response", resp)
	return nil
}

func (o *Orchestrator) reconcileConfigServers(ctx context.Context, log *zap.SugaredLogger) workflow.Status {
	if err := o.addConfigServers(ctx); err != nil {
		return statusFromError(err)
	}
	if err := o.configServers.WaitUntilHealthy(ctx, o.waitOpts); err != nil {
		return statusFromError(err)
	}
	return statusFromError(initiate(ctx, o.configServers, log))
}

func (o *Orchestrator) reconcileRouters(ctx context.Context, log *zap.SugaredLogger) workflow.Status {
	if err := o.addRouters(ctx); err != nil {
		return statusFromError(err)
	}
	routers := o.Routers()
	probes := make([]wait.Probe, 0, len(routers))
	for _, r := range routers {
		probes = append(probes, wait.Probe{Name: r.Name(), Check: r.Healthy})
	}
	log.Infow("Waiting for routers to become healthy", "routers", len(routers))
	start := time.Now()
	err := wait.ForAll(ctx, o.waitOpts, probes...)
	telemetry.HealthWaitSeconds.WithLabelValues(routersHealthGroup).Observe(time.Since(start).Seconds())
	if err != nil {
		return statusFromError(xerrors.Errorf("routers are not healthy: %w", err))
	}
	return workflow.OK()
}

// reconcileShards waits for every shard replica set in parallel, then initiates them and registers them with the
// cluster. A shard already known to the cluster is not added again.
func (o *Orchestrator) reconcileShards(ctx context.Context, log *zap.SugaredLogger) workflow.Status {
	if err := o.addShardServers(ctx); err != nil {
		return statusFromError(err)
	}
	if err := o.waitForShards(ctx); err != nil {
		return statusFromError(err)
	}

	router, err := o.healthyRouter(ctx)
	if err != nil {
		return workflow.Failed(err)
	}
	var warnings []string
	for _, rs := range o.shards {
		if err := initiate(ctx, rs, log); err != nil {
			return statusFromError(err)
		}
		has, err := router.HasShard(ctx, rs)
		if err != nil {
			return workflow.Failed(err)
		}
		if has {
			log.Debugw("Shard already registered", "shard", rs.Name())
			continue
		}
		if _, err := router.AddShard(ctx, rs); err != nil {
			return workflow.Failed(err)
		}
	}
	if len(o.shards) == 0 {
		warnings = append(warnings, "topology has no shards")
	}
	return okWithWarnings(warnings...)
}

func (o *Orchestrator) waitForShards(ctx context.Context) error {
	var (
		mu      sync.Mutex
		failed  []string
		results *multierror.Error
	)
	var wg sync.WaitGroup
	for _, rs := range o.shards {
		rs := rs
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rs.WaitUntilHealthy(ctx, o.waitOpts); err != nil {
				mu.Lock()
				defer mu.Unlock()
				results = multierror.Append(results, err)
				var unhealthy *wait.UnhealthyError
				if errors.As(err, &unhealthy) {
					failed = append(failed, unhealthy.Members...)
				}
			}
		}()
	}
	wg.Wait()
	if results.ErrorOrNil() == nil {
		return nil
	}
	if len(failed) == 0 {
		return results.ErrorOrNil()
	}
	sort.Strings(failed)
	return &wait.UnhealthyError{Members: failed, Cause: results.ErrorOrNil()}
}

// reconcileCollection creates the collection indexes and pins the shard key ranges to their zones through a
// healthy router.
func (o *Orchestrator) reconcileCollection(ctx context.Context, log *zap.SugaredLogger) workflow.Status {
	sharding := o.topology.Sharding
	if sharding.Database == "" || sharding.Collection == "" {
		return okWithWarnings("no sharded collection configured")
	}
	indexes := make([]bson.D, 0, len(sharding.Indexes))
	for _, idx := range sharding.Indexes {
		keys, err := zone.IndexKeys(idx.Field, idx.Type)
		if err != nil {
			return workflow.Invalid("%s", err.Error()).WithCause(err)
		}
		indexes = append(indexes, keys)
	}

	var spec *zone.Spec
	if len(sharding.Zones) > 0 {
		ranges, err := zone.Partition(sharding.Zones, sharding.Boundaries)
		if err != nil {
			return statusFromError(err)
		}
		spec = &zone.Spec{Database: sharding.Database, Collection: sharding.Collection, Key: sharding.Key, Ranges: ranges}
	}

	router, err := o.healthyRouter(ctx)
	if err != nil {
		return workflow.Failed(err)
	}
	err = router.WithClient(ctx, func(c admin.Client) error {
		if err := zone.EnsureIndexes(ctx, c, sharding.Database, sharding.Collection, indexes, log); err != nil {
			return err
		}
		if spec == nil {
			return nil
		}
		return zone.Apply(ctx, c, *spec, log)
	})
	if err != nil {
		return statusFromError(err)
	}
	if spec == nil {
		return okWithWarnings("no zones configured, " + sharding.Namespace() + " is not sharded")
	}
	return workflow.OK()
}
