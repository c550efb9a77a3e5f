package topology

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/xerrors"

	"github.com/mongodb/mongodb-dc-topology/controllers/process"
	"github.com/mongodb/mongodb-dc-topology/controllers/replicaset"
	"github.com/mongodb/mongodb-dc-topology/pkg/weather"
)

// ErrUnknownServer is returned for a server name no data centre knows.
var ErrUnknownServer = xerrors.New("unknown server")

var _ weather.RouterLocator = &Orchestrator{}

// Routers returns the routers in document order.
func (o *Orchestrator) Routers() []*process.Router {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]*process.Router(nil), o.routers...)
}

// ConfigServers returns the config server replica set, nil before the Orchestrator is built.
func (o *Orchestrator) ConfigServers() *replicaset.ConfigServerReplicaSet {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.configServers
}

// Shards returns the shard replica sets in document order.
func (o *Orchestrator) Shards() []*replicaset.ShardServerReplicaSet {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]*replicaset.ShardServerReplicaSet(nil), o.shards...)
}

// Server finds a server by name in any data centre.
func (o *Orchestrator) Server(name string) (process.Server, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, dc := range o.dataCentres {
		if s, ok := dc.Server(name); ok {
			return s, true
		}
	}
	return nil, false
}

// healthyRouter returns the first healthy router in document order.
func (o *Orchestrator) healthyRouter(ctx context.Context) (*process.Router, error) {
	for _, r := range o.Routers() {
		if r.Healthy(ctx) {
			return r, nil
		}
		o.log.Debugw("Router is not healthy", "router", r.Name())
	}
	return nil, weather.ErrNoHealthyRouter
}

// HealthyRouter returns the endpoint of the first healthy router. Routers are tried in document order.
func (o *Orchestrator) HealthyRouter(ctx context.Context) (weather.Endpoint, error) {
	r, err := o.healthyRouter(ctx)
	if err != nil {
		return weather.Endpoint{}, err
	}
	return weather.Endpoint{Name: r.Name(), URL: r.MongoURL()}, nil
}

// Shutdown stops the named servers. Every name is attempted, the failures are returned together.
func (o *Orchestrator) Shutdown(ctx context.Context, names ...string) error {
	return o.forEachServer(names, func(s process.Server) error {
		return s.Shutdown(ctx)
	})
}

// Startup starts the named servers again.
func (o *Orchestrator) Startup(ctx context.Context, names ...string) error {
	return o.forEachServer(names, func(s process.Server) error {
		return s.Startup(ctx)
	})
}

// Destroy removes the named servers together with their data volumes. Destroyed servers stay registered: their
// names and ports are not reused.
func (o *Orchestrator) Destroy(ctx context.Context, names ...string) error {
	return o.forEachServer(names, func(s process.Server) error {
		return s.Destroy(ctx)
	})
}

func (o *Orchestrator) forEachServer(names []string, f func(process.Server) error) error {
	var result *multierror.Error
	for _, name := range names {
		s, ok := o.Server(name)
		if !ok {
			result = multierror.Append(result, xerrors.Errorf("%s: %w", name, ErrUnknownServer))
			continue
		}
		if err := f(s); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (o *Orchestrator) String() string {
	return fmt.Sprintf("Orchestrator{dataCentres: %d, shards: %d, routers: %d}", len(o.topology.DataCentres), len(o.topology.Shards), len(o.topology.Routers))
}
