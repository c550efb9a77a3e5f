package admin

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FakeCluster is an in-memory stand-in for a whole sharded cluster. All Clients it hands out share the same
// metadata, which is enough to exercise the orchestration rules: initiation is accepted once per replica set,
// shards are registered once, zone ranges must not overlap.
type FakeCluster struct {
	mu          sync.Mutex
	unreachable map[string]bool
	replSets    map[string]ReplSetConfig
	shards      []Shard
	sharded     map[string]bson.D
	shardZones  map[string][]string
	ranges      []FakeZoneRange
	indexes     map[string][]bson.D
	counts      map[string]int64
	calls       map[string]int
	open        int
	// ConnectErr, when set, fails every Connect
	ConnectErr error
}

// FakeZoneRange is a recorded updateZoneKeyRange.
type FakeZoneRange struct {
	Namespace string
	Zone      string
	Min       bson.D
	Max       bson.D
}

var _ Connector = &FakeCluster{}

func NewFakeCluster() *FakeCluster {
	return &FakeCluster{
		unreachable: map[string]bool{},
		replSets:    map[string]ReplSetConfig{},
		sharded:     map[string]bson.D{},
		shardZones:  map[string][]string{},
		indexes:     map[string][]bson.D{},
		counts:      map[string]int64{},
		calls:       map[string]int{},
	}
}

func (f *FakeCluster) Connect(_ context.Context, addr Address, _ bool) (Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConnectErr != nil {
		return nil, New("connect", f.ConnectErr)
	}
	f.open++
	return &fakeClient{cluster: f, addr: addr.String()}, nil
}

// SetReachable toggles whether ping succeeds against the address.
func (f *FakeCluster) SetReachable(addr Address, reachable bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unreachable[addr.String()] = !reachable
}

// SetCount sets the document count reported by a node for a namespace.
func (f *FakeCluster) SetCount(addr Address, namespace string, n int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[addr.String()+"/"+namespace] = n
}

// Calls returns how many times the command was issued.
func (f *FakeCluster) Calls(command string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[command]
}

// OpenConnections returns the number of Clients not closed yet.
func (f *FakeCluster) OpenConnections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// ReplSet returns the configuration the set was initiated with.
func (f *FakeCluster) ReplSet(name string) (ReplSetConfig, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.replSets[name]
	return cfg, ok
}

// Shards returns the registered shards.
func (f *FakeCluster) Shards() []Shard {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Shard(nil), f.shards...)
}

// ShardKey returns the shard key a namespace was sharded with.
func (f *FakeCluster) ShardKey(namespace string) (bson.D, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.sharded[namespace]
	return k, ok
}

// ZoneRanges returns the recorded zone ranges in the order they were added.
func (f *FakeCluster) ZoneRanges() []FakeZoneRange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeZoneRange(nil), f.ranges...)
}

// ShardZones returns the zones a shard was added to.
func (f *FakeCluster) ShardZones(shard string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.shardZones[shard]...)
}

// Indexes returns the index keys created on a namespace.
func (f *FakeCluster) Indexes(namespace string) []bson.D {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bson.D(nil), f.indexes[namespace]...)
}

type fakeClient struct {
	cluster *FakeCluster
	addr    string
	closed  bool
}

func okResponse() bson.M {
	return bson.M{"ok": 1.0}
}

func (c *fakeClient) enter(command string) func() {
	c.cluster.mu.Lock()
	c.cluster.calls[command]++
	return c.cluster.mu.Unlock
}

func (c *fakeClient) Ping(_ context.Context) error {
	defer c.enter("ping")()
	if c.cluster.unreachable[c.addr] {
		return New("ping", errors.New("server selection error: context deadline exceeded"))
	}
	return nil
}

func (c *fakeClient) ReplSetInitiate(_ context.Context, cfg ReplSetConfig) (bson.M, error) {
	defer c.enter("replSetInitiate")()
	if _, exists := c.cluster.replSets[cfg.ID]; exists {
		return nil, NewErrorWithCode("replSetInitiate", AlreadyInitializedCode, AlreadyInitializedName, "already initialized")
	}
	if len(cfg.Members) == 0 {
		return nil, NewErrorWithCode("replSetInitiate", BadValueCode, "InvalidReplicaSetConfig", "replica set configuration has no members")
	}
	c.cluster.replSets[cfg.ID] = cfg
	return okResponse(), nil
}

func (c *fakeClient) AddShard(_ context.Context, hostSpec string) (bson.M, error) {
	defer c.enter("addShard")()
	name, hosts, found := strings.Cut(hostSpec, "/")
	if !found || name == "" || hosts == "" {
		return nil, NewErrorWithCode("addShard", BadValueCode, "FailedToParse", "invalid shard host spec "+hostSpec)
	}
	for _, s := range c.cluster.shards {
		if s.ID == name {
			return nil, NewErrorWithCode("addShard", OperationFailedCode, "OperationFailed", "shard "+name+" already exists")
		}
	}
	c.cluster.shards = append(c.cluster.shards, Shard{ID: name, Host: hostSpec, State: 1})
	return bson.M{"ok": 1.0, "shardAdded": name}, nil
}

func (c *fakeClient) ListShards(_ context.Context) ([]Shard, error) {
	defer c.enter("listShards")()
	return append([]Shard(nil), c.cluster.shards...), nil
}

func (c *fakeClient) ShardCollection(_ context.Context, namespace string, key bson.D) (bson.M, error) {
	defer c.enter("shardCollection")()
	if existing, ok := c.cluster.sharded[namespace]; ok {
		if len(existing) != len(key) || existing[0].Key != key[0].Key {
			return nil, NewErrorWithCode("shardCollection", IllegalOperationCode, "IllegalOperation", "namespace already sharded with a different key")
		}
		return okResponse(), nil
	}
	c.cluster.sharded[namespace] = key
	return bson.M{"ok": 1.0, "collectionsharded": namespace}, nil
}

func (c *fakeClient) AddShardToZone(_ context.Context, shard, zone string) (bson.M, error) {
	defer c.enter("addShardToZone")()
	found := false
	for _, s := range c.cluster.shards {
		if s.ID == shard {
			found = true
		}
	}
	if !found {
		return nil, NewErrorWithCode("addShardToZone", ShardNotFoundCode, "ShardNotFound", "shard "+shard+" not found")
	}
	for _, z := range c.cluster.shardZones[shard] {
		if z == zone {
			return okResponse(), nil
		}
	}
	c.cluster.shardZones[shard] = append(c.cluster.shardZones[shard], zone)
	return okResponse(), nil
}

func (c *fakeClient) UpdateZoneKeyRange(_ context.Context, namespace string, min, max bson.D, zone string) (bson.M, error) {
	defer c.enter("updateZoneKeyRange")()
	if _, ok := c.cluster.sharded[namespace]; !ok {
		return nil, NewErrorWithCode("updateZoneKeyRange", NamespaceNotShardedCode, "NamespaceNotSharded", namespace+" is not sharded")
	}
	if compareBounds(first(min), first(max)) >= 0 {
		return nil, NewErrorWithCode("updateZoneKeyRange", BadValueCode, "BadValue", "min must be less than max")
	}
	for _, r := range c.cluster.ranges {
		if r.Namespace != namespace {
			continue
		}
		if compareBounds(first(r.Min), first(min)) == 0 && compareBounds(first(r.Max), first(max)) == 0 && r.Zone == zone {
			return okResponse(), nil
		}
		if compareBounds(first(min), first(r.Max)) < 0 && compareBounds(first(r.Min), first(max)) < 0 {
			return nil, NewErrorWithCode("updateZoneKeyRange", BadValueCode, "BadValue", "zone range overlaps with range of zone "+r.Zone)
		}
	}
	c.cluster.ranges = append(c.cluster.ranges, FakeZoneRange{Namespace: namespace, Zone: zone, Min: min, Max: max})
	return okResponse(), nil
}

func (c *fakeClient) CreateIndex(_ context.Context, database, collection string, keys bson.D) (string, error) {
	defer c.enter("createIndexes")()
	ns := database + "." + collection
	c.cluster.indexes[ns] = append(c.cluster.indexes[ns], keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k.Key+"_"+toString(k.Value))
	}
	return strings.Join(parts, "_"), nil
}

func (c *fakeClient) CountDocuments(_ context.Context, database, collection string) (int64, error) {
	defer c.enter("count")()
	return c.cluster.counts[c.addr+"/"+database+"."+collection], nil
}

func (c *fakeClient) Close(_ context.Context) error {
	c.cluster.mu.Lock()
	defer c.cluster.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.cluster.open--
	}
	return nil
}

func first(d bson.D) interface{} {
	if len(d) == 0 {
		return nil
	}
	return d[0].Value
}

// compareBounds orders MinKey < numbers < MaxKey.
func compareBounds(a, b interface{}) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	if ra != 1 {
		return 0
	}
	fa, fb := toFloat(a), toFloat(b)
	switch {
	case fa < fb:
		return -1
	case fa > fb:
		return 1
	}
	return 0
}

func rank(v interface{}) int {
	switch v.(type) {
	case primitive.MinKey:
		return 0
	case primitive.MaxKey:
		return 2
	}
	return 1
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func toString(v interface{}) string {
	return cast.ToString(v)
}
