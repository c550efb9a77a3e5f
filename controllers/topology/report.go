package topology

import (
	"context"
	"strings"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/mongodb/mongodb-dc-topology/controllers/process"
	"github.com/mongodb/mongodb-dc-topology/pkg/container"
)

// ServerStatus is one line of the cluster status report.
type ServerStatus struct {
	Name       string
	DataCentre string
	Role       process.Role
	ReplicaSet string
	Port       int
	Runtime    container.Status
	Healthy    bool
	// Error is why the runtime status could not be read
	Error string
}

// ShardCount is the number of documents one shard member holds for a namespace.
type ShardCount struct {
	Shard  string
	Server string
	Count  int64
}

type replicaSetNamer interface {
	ReplicaSetName() string
}

// Report returns the status of every server, grouped by data centre in document order and by port within a data
// centre. Servers are probed in parallel.
func (o *Orchestrator) Report(ctx context.Context) []ServerStatus {
	o.mu.RLock()
	var servers []process.Server
	var locations []string
	for _, dc := range o.dataCentres {
		for _, s := range dc.Servers() {
			servers = append(servers, s)
			locations = append(locations, dc.Location())
		}
	}
	o.mu.RUnlock()

	report := make([]ServerStatus, len(servers))
	g := errgroup.Group{}
	g.SetLimit(8)
	for i, s := range servers {
		i, s := i, s
		g.Go(func() error {
			st := ServerStatus{
				Name:       s.Name(),
				DataCentre: locations[i],
				Role:       s.Role(),
				Port:       s.ExternalPort(),
			}
			if rs, ok := s.(replicaSetNamer); ok {
				st.ReplicaSet = rs.ReplicaSetName()
			}
			runtime, err := s.RuntimeStatus(ctx)
			if err != nil {
				st.Runtime = container.StatusUnknown
				st.Error = err.Error()
			} else {
				st.Runtime = runtime
				st.Healthy = s.Healthy(ctx)
			}
			report[i] = st
			return nil
		})
	}
	_ = g.Wait()
	return report
}

// CountPerShard counts the documents of namespace ("database.collection") on the preferred primary of every shard,
// talking to each member directly instead of through a router. Shards that cannot be counted are reported in the
// returned error; the counts of the others are still returned.
func (o *Orchestrator) CountPerShard(ctx context.Context, namespace string) ([]ShardCount, error) {
	database, collection, ok := strings.Cut(namespace, ".")
	if !ok || database == "" || collection == "" {
		return nil, xerrors.Errorf("namespace %q must be database.collection: %w", namespace, process.ErrInvalidConfiguration)
	}

	var counts []ShardCount
	var result *multierror.Error
	for _, rs := range o.Shards() {
		primary, ok := rs.PreferredPrimary()
		if !ok {
			result = multierror.Append(result, xerrors.Errorf("shard %s has no preferred primary", rs.Name()))
			continue
		}
		n, err := countOn(ctx, primary, database, collection)
		if err != nil {
			result = multierror.Append(result, xerrors.Errorf("failed to count %s on %s: %w", namespace, primary.Name(), err))
			continue
		}
		counts = append(counts, ShardCount{Shard: rs.Name(), Server: primary.Name(), Count: n})
	}
	return counts, result.ErrorOrNil()
}

func countOn(ctx context.Context, s process.Server, database, collection string) (int64, error) {
	client, err := s.Connect(ctx, true)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = client.Close(ctx)
	}()
	return client.CountDocuments(ctx, database, collection)
}
