package process

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"golang.org/x/xerrors"

	"github.com/mongodb/mongodb-dc-topology/pkg/admin"
	"github.com/mongodb/mongodb-dc-topology/pkg/util"
)

// Member is a replica set member as seen by its peers.
type Member interface {
	Name() string
	InternalHost() string
}

// ShardSource is what a router needs to register a shard.
type ShardSource interface {
	ReplicaSetName() string
	Hosts() []string
}

// withClient runs f against a direct connection to the process and always closes it.
func (p *Process) withClient(ctx context.Context, f func(admin.Client) error) error {
	client, err := p.Connect(ctx, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(context.Background()); err != nil {
			p.log.Debugw("Failed to close connection", "error", err)
		}
	}()
	return f(client)
}

type replicaSetMember struct {
	*Process
	replicaSetName string
	configServer   bool
}

func (m *replicaSetMember) ReplicaSetName() string {
	return m.replicaSetName
}

// InitiateReplicaSet initiates the replica set through this node with itself first, so it becomes the preferred
// primary, followed by the other members. A set that is already initiated is reported with an *admin.Error
// carrying AlreadyInitializedCode.
func (m *replicaSetMember) InitiateReplicaSet(ctx context.Context, others []Member) (bson.M, error) {
	hosts := make([]string, 0, len(others)+1)
	hosts = append(hosts, m.InternalHost())
	for _, o := range others {
		hosts = append(hosts, o.InternalHost())
	}
	cfg := BuildReplSetConfig(m.replicaSetName, m.configServer, hosts)

	var resp bson.M
	err := m.withClient(ctx, func(c admin.Client) error {
		var err error
		resp, err = c.ReplSetInitiate(ctx, cfg)
		return err
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to initiate replica set %s from %s: %w", m.replicaSetName, m.name, err)
	}
	m.log.Infow("Replica set initiated", "replicaSet", m.replicaSetName, "members", hosts)
	return resp, nil
}

// ConfigServer is a mongod holding cluster metadata.
type ConfigServer struct {
	replicaSetMember
}

func NewConfigServer(env Environment, name string, externalPort int, replicaSetName string) *ConfigServer {
	args := []string{
		util.MongodBinary, util.ConfigServerFlag,
		util.ReplSetFlag, replicaSetName,
		util.DbPathFlag, util.DataVolumePath,
		util.PortFlag, fmt.Sprint(util.MongoDbDefaultPort),
		util.BindIpAllFlag,
	}
	return &ConfigServer{replicaSetMember{
		Process:        newProcess(env, name, RoleConfigServer, externalPort, true, args),
		replicaSetName: replicaSetName,
		configServer:   true,
	}}
}

// ShardServer is a mongod holding a partition of the data.
type ShardServer struct {
	replicaSetMember
}

func NewShardServer(env Environment, name string, externalPort int, replicaSetName string) *ShardServer {
	args := []string{
		util.MongodBinary, util.ShardServerFlag,
		util.ReplSetFlag, replicaSetName,
		util.DbPathFlag, util.DataVolumePath,
		util.PortFlag, fmt.Sprint(util.MongoDbDefaultPort),
		util.BindIpAllFlag,
	}
	return &ShardServer{replicaSetMember{
		Process:        newProcess(env, name, RoleShardServer, externalPort, true, args),
		replicaSetName: replicaSetName,
	}}
}

// Router is a mongos. It has no data volume; its only state is the config server replica set it points at.
type Router struct {
	*Process
}

// NewRouter creates a router bound to the config server replica set reachable at configHosts.
func NewRouter(env Environment, name string, externalPort int, configReplicaSet string, configHosts []string) (*Router, error) {
	if configReplicaSet == "" || len(configHosts) == 0 {
		return nil, xerrors.Errorf("router %s needs at least one config server: %w", name, ErrInvalidConfiguration)
	}
	configDB := fmt.Sprintf("%s/%s", configReplicaSet, strings.Join(configHosts, ","))
	args := []string{
		util.MongosBinary,
		util.ConfigDbFlag, configDB,
		util.PortFlag, fmt.Sprint(util.MongoDbDefaultPort),
		util.BindIpAllFlag,
	}
	return &Router{Process: newProcess(env, name, RoleRouter, externalPort, false, args)}, nil
}

// MongoURL is the client connection string of the router from the orchestrator's point of view.
func (r *Router) MongoURL() string {
	return fmt.Sprintf("mongodb://%s", r.Address())
}

// ShardHostSpec is the addShard argument for a replica set: "name/host1,host2".
func ShardHostSpec(shard ShardSource) string {
	return fmt.Sprintf("%s/%s", shard.ReplicaSetName(), strings.Join(shard.Hosts(), ","))
}

// AddShard registers the shard replica set with the cluster.
func (r *Router) AddShard(ctx context.Context, shard ShardSource) (bson.M, error) {
	spec := ShardHostSpec(shard)
	var resp bson.M
	err := r.withClient(ctx, func(c admin.Client) error {
		var err error
		resp, err = c.AddShard(ctx, spec)
		return err
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to add shard %s through %s: %w", spec, r.name, err)
	}
	r.log.Infow("Shard added", "shard", spec)
	return resp, nil
}

// ListShards returns the shards registered with the cluster.
func (r *Router) ListShards(ctx context.Context) ([]admin.Shard, error) {
	var shards []admin.Shard
	err := r.withClient(ctx, func(c admin.Client) error {
		var err error
		shards, err = c.ListShards(ctx)
		return err
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to list shards through %s: %w", r.name, err)
	}
	return shards, nil
}

// HasShard reports whether a shard with the replica set's name is registered.
func (r *Router) HasShard(ctx context.Context, shard ShardSource) (bool, error) {
	shards, err := r.ListShards(ctx)
	if err != nil {
		return false, err
	}
	for _, s := range shards {
		if s.ID == shard.ReplicaSetName() {
			return true, nil
		}
	}
	return false, nil
}

// WithClient runs f against a direct connection to the router.
func (r *Router) WithClient(ctx context.Context, f func(admin.Client) error) error {
	return r.withClient(ctx, f)
}
