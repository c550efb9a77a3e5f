// Package topology defines the declarative document describing the cluster: data centres, the config server
// replica set, routers, shard replica sets and the partitioning of the sharded collection.
package topology

import (
	"os"
	"strings"

	"github.com/imdario/mergo"
	"golang.org/x/xerrors"
	"sigs.k8s.io/yaml"

	"github.com/mongodb/mongodb-dc-topology/pkg/util"
)

// Topology is the whole cluster. The order of data centres, members, routers and shards is significant: server
// names and ports are derived from creation order, so replaying the same document attaches to the same servers.
// New entries must be appended for a document to grow an existing cluster.
type Topology struct {
	// Network is the runtime network every server joins
	Network string `json:"network,omitempty"`
	// Image is the database image every server is created from
	Image        string        `json:"image,omitempty"`
	DataCentres  []DataCentre  `json:"dataCentres"`
	ConfigServer ReplicaSet    `json:"configServer"`
	Routers      []RouterEntry `json:"routers,omitempty"`
	Shards       []ReplicaSet  `json:"shards,omitempty"`
	Sharding     Sharding      `json:"sharding,omitempty"`
}

type DataCentre struct {
	Location  string `json:"location"`
	StartPort int    `json:"startPort"`
}

type ReplicaSet struct {
	Name    string   `json:"name"`
	Members []Member `json:"members"`
}

type Member struct {
	DataCentre       string `json:"dataCentre"`
	PreferredPrimary bool   `json:"preferredPrimary,omitempty"`
}

type RouterEntry struct {
	DataCentre string `json:"dataCentre"`
}

// Sharding describes the sharded collection and its zones.
type Sharding struct {
	Database   string `json:"database,omitempty"`
	Collection string `json:"collection,omitempty"`
	// Key is the single numeric shard key field
	Key string `json:"key,omitempty"`
	// Zones are shard replica set names ordered along the shard key
	Zones []string `json:"zones,omitempty"`
	// Boundaries split the key space between consecutive zones, len(Zones)-1 ascending values
	Boundaries []float64 `json:"boundaries,omitempty"`
	// Indexes are created on the collection next to the shard key index
	Indexes []Index `json:"indexes,omitempty"`
}

// Index is a single field index. Type is "1", "-1" or a special index type such as "2dsphere".
type Index struct {
	Field string `json:"field"`
	Type  string `json:"type"`
}

// Namespace is "database.collection".
func (s Sharding) Namespace() string {
	return s.Database + "." + s.Collection
}

// Default returns the values used for everything a document leaves out.
func Default() Topology {
	return Topology{
		Network: util.DefaultNetworkName,
		Image:   util.DefaultMongoImage,
		Sharding: Sharding{
			Database:   util.WeatherDatabase,
			Collection: util.WeatherCollection,
			Key:        util.StationLongitudeField,
			Indexes: []Index{
				{Field: util.GeolocationField, Type: "2dsphere"},
				{Field: util.TimestampField, Type: "-1"},
			},
		},
	}
}

// Parse reads a YAML document and fills in defaults. It does not validate.
func Parse(data []byte) (Topology, error) {
	var t Topology
	if err := yaml.UnmarshalStrict(data, &t); err != nil {
		return Topology{}, xerrors.Errorf("failed to parse topology: %w", err)
	}
	if err := mergo.Merge(&t, Default()); err != nil {
		return Topology{}, xerrors.Errorf("failed to apply topology defaults: %w", err)
	}
	return t, nil
}

// Load reads and validates the topology file.
func Load(path string) (Topology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Topology{}, xerrors.Errorf("failed to read topology file %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return Topology{}, err
	}
	if err := t.Validate(); err != nil {
		return Topology{}, err
	}
	return t, nil
}

// DataCentre returns the data centre with the location given.
func (t Topology) DataCentre(location string) (DataCentre, bool) {
	for _, dc := range t.DataCentres {
		if strings.EqualFold(dc.Location, location) {
			return dc, true
		}
	}
	return DataCentre{}, false
}

// Shard returns the shard replica set with the name given.
func (t Topology) Shard(name string) (ReplicaSet, bool) {
	for _, rs := range t.Shards {
		if rs.Name == name {
			return rs, true
		}
	}
	return ReplicaSet{}, false
}

// ServersIn returns how many servers of any role the document places in the data centre.
func (t Topology) ServersIn(location string) int {
	n := 0
	for _, m := range t.ConfigServer.Members {
		if strings.EqualFold(m.DataCentre, location) {
			n++
		}
	}
	for _, r := range t.Routers {
		if strings.EqualFold(r.DataCentre, location) {
			n++
		}
	}
	for _, rs := range t.Shards {
		for _, m := range rs.Members {
			if strings.EqualFold(m.DataCentre, location) {
				n++
			}
		}
	}
	return n
}

// PreferredPrimary returns the index of the preferred primary member, -1 if none is flagged.
func (rs ReplicaSet) PreferredPrimary() int {
	for i, m := range rs.Members {
		if m.PreferredPrimary {
			return i
		}
	}
	return -1
}

// ImageTag returns the tag of the image reference, empty if it has none.
func (t Topology) ImageTag() string {
	ref := t.Image
	if i := strings.LastIndex(ref, "@"); i >= 0 {
		ref = ref[:i]
	}
	slash := strings.LastIndex(ref, "/")
	if i := strings.LastIndex(ref, ":"); i > slash {
		return ref[i+1:]
	}
	return ""
}
