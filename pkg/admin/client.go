// Package admin is the administrative command surface of the database: replica-set initiation, shard
// registration, zone management and index creation, issued against one node at a time.
package admin

import (
	"context"
	"net"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
)

// Address is an externally reachable host:port of a single node.
type Address struct {
	Host string
	Port int
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// ReplSetConfig is the document passed to replSetInitiate.
type ReplSetConfig struct {
	ID        string          `bson:"_id"`
	ConfigSvr bool            `bson:"configsvr,omitempty"`
	Members   []ReplSetMember `bson:"members"`
}

// ReplSetMember is one entry of ReplSetConfig.Members.
type ReplSetMember struct {
	ID       int     `bson:"_id"`
	Host     string  `bson:"host"`
	Priority float64 `bson:"priority"`
}

// Shard is one entry of the listShards answer.
type Shard struct {
	ID    string   `bson:"_id"`
	Host  string   `bson:"host"`
	State int      `bson:"state,omitempty"`
	Tags  []string `bson:"tags,omitempty"`
}

// Client is a connection to a single node. Every command returns the raw response document on success; failures
// are returned as *Error.
type Client interface {
	Ping(ctx context.Context) error
	ReplSetInitiate(ctx context.Context, cfg ReplSetConfig) (bson.M, error)
	AddShard(ctx context.Context, hostSpec string) (bson.M, error)
	ListShards(ctx context.Context) ([]Shard, error)
	ShardCollection(ctx context.Context, namespace string, key bson.D) (bson.M, error)
	AddShardToZone(ctx context.Context, shard, zone string) (bson.M, error)
	UpdateZoneKeyRange(ctx context.Context, namespace string, min, max bson.D, zone string) (bson.M, error)
	CreateIndex(ctx context.Context, database, collection string, keys bson.D) (string, error)
	CountDocuments(ctx context.Context, database, collection string) (int64, error)
	Close(ctx context.Context) error
}

// Connector opens Clients. 'direct' bypasses topology discovery so that commands reach exactly the addressed node.
type Connector interface {
	Connect(ctx context.Context, addr Address, direct bool) (Client, error)
}
