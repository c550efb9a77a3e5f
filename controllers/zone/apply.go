package zone

import (
	"context"

	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/mongodb/mongodb-dc-topology/pkg/admin"
)

// Spec describes the sharded collection and how its key space is pinned to shards. Zone names equal shard
// replica set names.
type Spec struct {
	Database   string
	Collection string
	Key        string
	Ranges     []Range
}

func (s Spec) Namespace() string {
	return s.Database + "." + s.Collection
}

// IndexKeys builds the key document of a single field index. "1" and "-1" are ascending and descending, anything
// else ("2dsphere", "hashed") is an index type.
func IndexKeys(field, indexType string) (bson.D, error) {
	if field == "" || indexType == "" {
		return nil, xerrors.Errorf("index needs a field and a type")
	}
	if n, err := cast.ToInt32E(indexType); err == nil {
		if n != 1 && n != -1 {
			return nil, xerrors.Errorf("index direction on %s must be 1 or -1, got %d", field, n)
		}
		return bson.D{{Key: field, Value: n}}, nil
	}
	return bson.D{{Key: field, Value: indexType}}, nil
}

// EnsureIndexes creates the indexes on the collection. Creating an existing index is a no-op for the database.
func EnsureIndexes(ctx context.Context, client admin.Client, database, collection string, indexes []bson.D, log *zap.SugaredLogger) error {
	for _, keys := range indexes {
		name, err := client.CreateIndex(ctx, database, collection, keys)
		if err != nil {
			return xerrors.Errorf("failed to create index %v on %s.%s: %w", keys, database, collection, err)
		}
		log.Infow("Index created", "namespace", database+"."+collection, "index", name)
	}
	return nil
}

// Apply shards the collection on the key and pins every range to its zone. The shard key index is created first.
// Every command is safe to repeat with the same arguments, so Apply can be re-run against a cluster it already
// partitioned. The data migration the ranges trigger is left to the database and not awaited.
func Apply(ctx context.Context, client admin.Client, spec Spec, log *zap.SugaredLogger) error {
	if err := Validate(spec.Ranges); err != nil {
		return err
	}
	ns := spec.Namespace()
	key := bson.D{{Key: spec.Key, Value: int32(1)}}

	if err := EnsureIndexes(ctx, client, spec.Database, spec.Collection, []bson.D{key}, log); err != nil {
		return err
	}
	if _, err := client.ShardCollection(ctx, ns, key); err != nil {
		return xerrors.Errorf("failed to shard %s on %s: %w", ns, spec.Key, err)
	}
	log.Infow("Collection sharded", "namespace", ns, "key", spec.Key)

	for _, r := range spec.Ranges {
		if _, err := client.AddShardToZone(ctx, r.Zone, r.Zone); err != nil {
			return xerrors.Errorf("failed to add shard %s to its zone: %w", r.Zone, err)
		}
	}
	for _, r := range spec.Ranges {
		min := bson.D{{Key: spec.Key, Value: r.Min.BSON()}}
		max := bson.D{{Key: spec.Key, Value: r.Max.BSON()}}
		if _, err := client.UpdateZoneKeyRange(ctx, ns, min, max, r.Zone); err != nil {
			return xerrors.Errorf("failed to pin %s: %w", r, err)
		}
		log.Infow("Zone range pinned", "namespace", ns, "range", r.String())
	}
	return nil
}
