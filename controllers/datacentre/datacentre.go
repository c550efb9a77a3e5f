// Package datacentre allocates names and ports for servers placed in one simulated data centre and keeps track of
// what it created.
package datacentre

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-memdb"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/mongodb/mongodb-dc-topology/controllers/process"
)

const (
	tableServers = "servers"
	indexID      = "id"
	indexRole    = "role"
	indexPort    = "port"
)

// entry is a registry row.
type entry struct {
	Name   string
	Role   string
	Seq    int
	Port   int
	Server process.Server
}

// DataCentre creates servers of every role. Names are fully determined by location, role, replica set name and
// the number of servers of that role created before, so replaying the same creation order yields the same names.
// Ports are handed out from a counter that never goes back, even when servers are destroyed.
type DataCentre struct {
	location string
	env      process.Environment
	log      *zap.SugaredLogger

	mu       sync.Mutex
	nextPort int
	db       *memdb.MemDB
}

func New(location string, startPort int, env process.Environment) (*DataCentre, error) {
	if location == "" {
		return nil, xerrors.Errorf("data centre location must not be empty: %w", process.ErrInvalidConfiguration)
	}
	db, err := memdb.NewMemDB(&memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableServers: {
				Name: tableServers,
				Indexes: map[string]*memdb.IndexSchema{
					indexID: {
						Name:    indexID,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Name"},
					},
					indexRole: {
						Name:    indexRole,
						Indexer: &memdb.StringFieldIndex{Field: "Role"},
					},
					indexPort: {
						Name:    indexPort,
						Unique:  true,
						Indexer: &memdb.IntFieldIndex{Field: "Port"},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to create server registry for %s: %w", location, err)
	}
	log := env.Log
	if log == nil {
		log = zap.S()
	}
	return &DataCentre{
		location: location,
		env:      env,
		log:      log.With("dataCentre", location),
		nextPort: startPort,
		db:       db,
	}, nil
}

func (dc *DataCentre) Location() string {
	return dc.location
}

// NextPort is the port the next server will get.
func (dc *DataCentre) NextPort() int {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	return dc.nextPort
}

// RouterName is the name of the seq-th router of a data centre.
func RouterName(location string, seq int) string {
	return fmt.Sprintf("dc-%s_type-%s_dcid-%d", strings.ToUpper(location), process.RoleRouter, seq)
}

// ReplicaSetServerName is the name of the seq-th config or shard server of a data centre.
func ReplicaSetServerName(location string, role process.Role, replicaSetName string, seq int) string {
	return fmt.Sprintf("dc-%s_type-%s_replSet-%s_dcid-%d", strings.ToUpper(location), role, strings.ToUpper(replicaSetName), seq)
}

// register allocates the next sequence number and port for the role, builds the server and records it. The whole
// allocation happens under the data centre lock so concurrent callers never share a port or a name.
func (dc *DataCentre) register(role process.Role, build func(seq, port int) (process.Server, error)) (process.Server, error) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	txn := dc.db.Txn(true)
	defer txn.Abort()

	seq, err := countRole(txn, role)
	if err != nil {
		return nil, err
	}
	port := dc.nextPort
	server, err := build(seq, port)
	if err != nil {
		return nil, err
	}
	if existing, err := txn.First(tableServers, indexID, server.Name()); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, xerrors.Errorf("server %s already exists in data centre %s", server.Name(), dc.location)
	}
	if err := txn.Insert(tableServers, entry{Name: server.Name(), Role: string(role), Seq: seq, Port: port, Server: server}); err != nil {
		return nil, xerrors.Errorf("failed to register server %s: %w", server.Name(), err)
	}
	txn.Commit()
	dc.nextPort++
	return server, nil
}

func countRole(txn *memdb.Txn, role process.Role) (int, error) {
	iter, err := txn.Get(tableServers, indexRole, string(role))
	if err != nil {
		return 0, err
	}
	n := 0
	for res := iter.Next(); res != nil; res = iter.Next() {
		n++
	}
	return n, nil
}

// ensure brings the instance up unless the environment only attaches to existing servers.
func (dc *DataCentre) ensure(ctx context.Context, s process.Server) error {
	if dc.env.AttachOnly {
		return nil
	}
	return s.Ensure(ctx)
}

// AddRouter creates a router bound to the config server replica set.
func (dc *DataCentre) AddRouter(ctx context.Context, configReplicaSet string, configHosts []string) (*process.Router, error) {
	s, err := dc.register(process.RoleRouter, func(seq, port int) (process.Server, error) {
		return process.NewRouter(dc.env, RouterName(dc.location, seq), port, configReplicaSet, configHosts)
	})
	if err != nil {
		return nil, err
	}
	dc.log.Debugw("Router registered", "server", s.Name(), "port", s.ExternalPort())
	if err := dc.ensure(ctx, s); err != nil {
		return nil, err
	}
	return s.(*process.Router), nil
}

// AddConfigServer creates a member of the config server replica set.
func (dc *DataCentre) AddConfigServer(ctx context.Context, replicaSetName string) (*process.ConfigServer, error) {
	s, err := dc.register(process.RoleConfigServer, func(seq, port int) (process.Server, error) {
		name := ReplicaSetServerName(dc.location, process.RoleConfigServer, replicaSetName, seq)
		return process.NewConfigServer(dc.env, name, port, replicaSetName), nil
	})
	if err != nil {
		return nil, err
	}
	dc.log.Debugw("Config server registered", "server", s.Name(), "port", s.ExternalPort())
	if err := dc.ensure(ctx, s); err != nil {
		return nil, err
	}
	return s.(*process.ConfigServer), nil
}

// AddShardServer creates a member of a shard replica set.
func (dc *DataCentre) AddShardServer(ctx context.Context, replicaSetName string) (*process.ShardServer, error) {
	s, err := dc.register(process.RoleShardServer, func(seq, port int) (process.Server, error) {
		name := ReplicaSetServerName(dc.location, process.RoleShardServer, replicaSetName, seq)
		return process.NewShardServer(dc.env, name, port, replicaSetName), nil
	})
	if err != nil {
		return nil, err
	}
	dc.log.Debugw("Shard server registered", "server", s.Name(), "port", s.ExternalPort())
	if err := dc.ensure(ctx, s); err != nil {
		return nil, err
	}
	return s.(*process.ShardServer), nil
}

// byRole returns the servers of the role in creation order.
func (dc *DataCentre) byRole(role process.Role) []entry {
	txn := dc.db.Txn(false)
	defer txn.Abort()

	iter, err := txn.Get(tableServers, indexRole, string(role))
	if err != nil {
		dc.log.Errorw("Failed to read server registry", "error", err)
		return nil
	}
	var entries []entry
	for res := iter.Next(); res != nil; res = iter.Next() {
		entries = append(entries, res.(entry))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	return entries
}

func (dc *DataCentre) Routers() []*process.Router {
	var out []*process.Router
	for _, e := range dc.byRole(process.RoleRouter) {
		out = append(out, e.Server.(*process.Router))
	}
	return out
}

func (dc *DataCentre) ConfigServers() []*process.ConfigServer {
	var out []*process.ConfigServer
	for _, e := range dc.byRole(process.RoleConfigServer) {
		out = append(out, e.Server.(*process.ConfigServer))
	}
	return out
}

func (dc *DataCentre) ShardServers() []*process.ShardServer {
	var out []*process.ShardServer
	for _, e := range dc.byRole(process.RoleShardServer) {
		out = append(out, e.Server.(*process.ShardServer))
	}
	return out
}

// Servers returns every server of the data centre ordered by port, which is creation order.
func (dc *DataCentre) Servers() []process.Server {
	var entries []entry
	for _, role := range []process.Role{process.RoleConfigServer, process.RoleRouter, process.RoleShardServer} {
		entries = append(entries, dc.byRole(role)...)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Port < entries[j].Port })
	out := make([]process.Server, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Server)
	}
	return out
}

// Server looks a server up by name.
func (dc *DataCentre) Server(name string) (process.Server, bool) {
	txn := dc.db.Txn(false)
	defer txn.Abort()
	res, err := txn.First(tableServers, indexID, name)
	if err != nil || res == nil {
		return nil, false
	}
	return res.(entry).Server, true
}
