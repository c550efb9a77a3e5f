package admin

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mongodb/mongodb-dc-topology/pkg/telemetry"
)

const adminDatabase = "admin"

// MongoConnector opens driver connections. Timeout bounds server selection, connection establishment and every
// single command round-trip.
type MongoConnector struct {
	Timeout time.Duration
	Log     *zap.SugaredLogger
}

var _ Connector = &MongoConnector{}

func NewMongoConnector(timeout time.Duration, log *zap.SugaredLogger) *MongoConnector {
	return &MongoConnector{Timeout: timeout, Log: log}
}

func (m *MongoConnector) Connect(ctx context.Context, addr Address, direct bool) (Client, error) {
	opts := options.Client().
		SetHosts([]string{addr.String()}).
		SetDirect(direct).
		SetAppName("mongodb-dc-topology")
	if m.Timeout > 0 {
		opts.SetServerSelectionTimeout(m.Timeout).
			SetConnectTimeout(m.Timeout).
			SetTimeout(m.Timeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, New("connect", err)
	}
	return &mongoClient{client: client, addr: addr, log: m.Log}, nil
}

type mongoClient struct {
	client *mongo.Client
	addr   Address
	log    *zap.SugaredLogger
}

func (c *mongoClient) run(ctx context.Context, name string, cmd bson.D) (bson.M, error) {
	var resp bson.M
	err := c.client.Database(adminDatabase).RunCommand(ctx, cmd).Decode(&resp)
	telemetry.AdminCommands.WithLabelValues(name, telemetry.Result(err)).Inc()
	if err != nil {
		c.log.Debugw("Administrative command failed", "command", name, "node", c.addr.String(), "error", err)
		return nil, New(name, err)
	}
	return resp, nil
}

func (c *mongoClient) Ping(ctx context.Context) error {
	_, err := c.run(ctx, "ping", bson.D{{Key: "ping", Value: 1}})
	return err
}

func (c *mongoClient) ReplSetInitiate(ctx context.Context, cfg ReplSetConfig) (bson.M, error) {
	return c.run(ctx, "replSetInitiate", bson.D{{Key: "replSetInitiate", Value: cfg}})
}

func (c *mongoClient) AddShard(ctx context.Context, hostSpec string) (bson.M, error) {
	return c.run(ctx, "addShard", bson.D{{Key: "addShard", Value: hostSpec}})
}

func (c *mongoClient) ListShards(ctx context.Context) ([]Shard, error) {
	var resp struct {
		Shards []Shard `bson:"shards"`
	}
	err := c.client.Database(adminDatabase).RunCommand(ctx, bson.D{{Key: "listShards", Value: 1}}).Decode(&resp)
	telemetry.AdminCommands.WithLabelValues("listShards", telemetry.Result(err)).Inc()
	if err != nil {
		return nil, New("listShards", err)
	}
	return resp.Shards, nil
}

func (c *mongoClient) ShardCollection(ctx context.Context, namespace string, key bson.D) (bson.M, error) {
	return c.run(ctx, "shardCollection", bson.D{
		{Key: "shardCollection", Value: namespace},
		{Key: "key", Value: key},
	})
}

func (c *mongoClient) AddShardToZone(ctx context.Context, shard, zone string) (bson.M, error) {
	return c.run(ctx, "addShardToZone", bson.D{
		{Key: "addShardToZone", Value: shard},
		{Key: "zone", Value: zone},
	})
}

func (c *mongoClient) UpdateZoneKeyRange(ctx context.Context, namespace string, min, max bson.D, zone string) (bson.M, error) {
	return c.run(ctx, "updateZoneKeyRange", bson.D{
		{Key: "updateZoneKeyRange", Value: namespace},
		{Key: "min", Value: min},
		{Key: "max", Value: max},
		{Key: "zone", Value: zone},
	})
}

func (c *mongoClient) CreateIndex(ctx context.Context, database, collection string, keys bson.D) (string, error) {
	name, err := c.client.Database(database).Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys})
	telemetry.AdminCommands.WithLabelValues("createIndexes", telemetry.Result(err)).Inc()
	if err != nil {
		return "", New("createIndexes", err)
	}
	return name, nil
}

func (c *mongoClient) CountDocuments(ctx context.Context, database, collection string) (int64, error) {
	n, err := c.client.Database(database).Collection(collection).CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, New("count", err)
	}
	return n, nil
}

func (c *mongoClient) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
