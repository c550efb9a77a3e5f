package topology

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/xerrors"

	"github.com/mongodb/mongodb-dc-topology/pkg/util"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = xerrors.New("invalid topology")

// Validate checks the document as a whole and reports every problem found.
func (t Topology) Validate() error {
	var errs *multierror.Error
	add := func(format string, args ...interface{}) {
		errs = multierror.Append(errs, xerrors.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalid))
	}

	if t.Network == "" {
		add("network must not be empty")
	}
	if err := t.validateImage(); err != nil {
		errs = multierror.Append(errs, err)
	}

	locations := map[string]bool{}
	for _, dc := range t.DataCentres {
		key := strings.ToLower(dc.Location)
		switch {
		case dc.Location == "":
			add("data centre location must not be empty")
		case locations[key]:
			add("data centre %s is declared twice", dc.Location)
		}
		locations[key] = true
		if dc.StartPort <= 0 || dc.StartPort > 65535 {
			add("data centre %s has invalid start port %d", dc.Location, dc.StartPort)
		}
	}
	if len(t.DataCentres) == 0 {
		add("at least one data centre is required")
	}
	t.validatePortRanges(add)

	checkMembers := func(kind string, rs ReplicaSet) {
		if rs.Name == "" {
			add("%s replica set must have a name", kind)
		}
		if strings.ContainsAny(rs.Name, "/,.$ ") {
			add("%s replica set name %q contains invalid characters", kind, rs.Name)
		}
		if len(rs.Members) == 0 {
			add("%s replica set %s has no members", kind, rs.Name)
		}
		primaries := 0
		for _, m := range rs.Members {
			if !locations[strings.ToLower(m.DataCentre)] {
				add("%s replica set %s references unknown data centre %q", kind, rs.Name, m.DataCentre)
			}
			if m.PreferredPrimary {
				primaries++
			}
		}
		if primaries != 1 {
			add("%s replica set %s must have exactly one preferred primary, has %d", kind, rs.Name, primaries)
		}
	}

	checkMembers("config server", t.ConfigServer)

	for _, r := range t.Routers {
		if !locations[strings.ToLower(r.DataCentre)] {
			add("router references unknown data centre %q", r.DataCentre)
		}
	}
	if len(t.Shards) > 0 && len(t.Routers) == 0 {
		add("shards need at least one router")
	}

	shardNames := map[string]bool{t.ConfigServer.Name: true}
	for _, rs := range t.Shards {
		checkMembers("shard", rs)
		if shardNames[rs.Name] {
			add("replica set name %s is used twice", rs.Name)
		}
		shardNames[rs.Name] = true
	}

	if err := t.Sharding.validate(t); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

func (t Topology) validateImage() error {
	if t.Image == "" {
		return xerrors.Errorf("image must not be empty: %w", ErrInvalid)
	}
	tag := t.ImageTag()
	if tag == "" || tag == "latest" {
		return nil
	}
	// tags like "7.0-jammy" carry a suffix after the version
	version, err := semver.NewVersion(strings.SplitN(tag, "-", 2)[0])
	if err != nil {
		zap.S().Debugf("Image tag %s doesn't seem to be a valid version, skipping version check", tag)
		return nil
	}
	constraint, _ := semver.NewConstraint(util.MinimumMongoVersion)
	if !constraint.Check(version) {
		return xerrors.Errorf("image %s is older than the minimum supported version (%s): %w", t.Image, util.MinimumMongoVersion, ErrInvalid)
	}
	return nil
}

// validatePortRanges checks that the ports the data centres allocate from do not collide on the host.
func (t Topology) validatePortRanges(add func(format string, args ...interface{})) {
	type portRange struct {
		location   string
		start, end int
	}
	var ranges []portRange
	for _, dc := range t.DataCentres {
		n := t.ServersIn(dc.Location)
		if n == 0 {
			continue
		}
		ranges = append(ranges, portRange{location: dc.Location, start: dc.StartPort, end: dc.StartPort + n})
		if dc.StartPort+n-1 > 65535 {
			add("data centre %s runs out of ports", dc.Location)
		}
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })
	for i := 1; i < len(ranges); i++ {
		if ranges[i].start < ranges[i-1].end {
			add("ports of data centres %s and %s overlap", ranges[i-1].location, ranges[i].location)
		}
	}
}

func (s Sharding) validate(t Topology) error {
	var errs *multierror.Error
	add := func(format string, args ...interface{}) {
		errs = multierror.Append(errs, xerrors.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalid))
	}
	if s.Database == "" || s.Collection == "" {
		add("sharded collection namespace must not be empty")
	}
	if len(s.Zones) > 0 && s.Key == "" {
		add("zones need a shard key")
	}
	seen := map[string]bool{}
	for _, z := range s.Zones {
		if _, ok := t.Shard(z); !ok {
			add("zone %s does not name a shard replica set", z)
		}
		if seen[z] {
			add("zone %s is listed twice", z)
		}
		seen[z] = true
	}
	if len(s.Zones) > 0 && len(s.Boundaries) != len(s.Zones)-1 {
		add("%d zones need %d boundaries, got %d", len(s.Zones), len(s.Zones)-1, len(s.Boundaries))
	}
	if len(s.Zones) == 0 && len(s.Boundaries) > 0 {
		add("boundaries given without zones")
	}
	for i := 1; i < len(s.Boundaries); i++ {
		if s.Boundaries[i] <= s.Boundaries[i-1] {
			add("boundaries must be strictly ascending, %v follows %v", s.Boundaries[i], s.Boundaries[i-1])
		}
	}
	for _, idx := range s.Indexes {
		if idx.Field == "" || idx.Type == "" {
			add("index needs a field and a type")
		}
	}
	return errs.ErrorOrNil()
}
