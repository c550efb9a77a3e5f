// Package zone computes the key ranges pinning a sharded collection's data to shards and applies them through a
// router.
package zone

import (
	"fmt"
	"strconv"

	"github.com/hashicorp/go-multierror"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/xerrors"
)

// ErrInvalidRanges is wrapped by every range validation failure.
var ErrInvalidRanges = xerrors.New("invalid zone ranges")

type boundKind int

const (
	minKey boundKind = iota
	value
	maxKey
)

// Bound is one end of a key range: a number, or one of the sentinels below and above every number.
type Bound struct {
	kind  boundKind
	value float64
}

func MinKey() Bound {
	return Bound{kind: minKey}
}

func MaxKey() Bound {
	return Bound{kind: maxKey}
}

func Value(v float64) Bound {
	return Bound{kind: value, value: v}
}

// Compare orders MinKey before every value and MaxKey after every value.
func (b Bound) Compare(o Bound) int {
	if b.kind != o.kind {
		return int(b.kind) - int(o.kind)
	}
	if b.kind != value {
		return 0
	}
	switch {
	case b.value < o.value:
		return -1
	case b.value > o.value:
		return 1
	}
	return 0
}

// BSON is the bound as sent to the database.
func (b Bound) BSON() interface{} {
	switch b.kind {
	case minKey:
		return primitive.MinKey{}
	case maxKey:
		return primitive.MaxKey{}
	}
	return b.value
}

func (b Bound) String() string {
	switch b.kind {
	case minKey:
		return "MinKey"
	case maxKey:
		return "MaxKey"
	}
	return strconv.FormatFloat(b.value, 'f', -1, 64)
}

// Range is the half-open interval [Min, Max) of shard key values pinned to a zone.
type Range struct {
	Zone string
	Min  Bound
	Max  Bound
}

func (r Range) String() string {
	return fmt.Sprintf("%s [%s, %s)", r.Zone, r.Min, r.Max)
}

// Partition splits the whole key space between zones ordered along the key. The first range is unbounded below,
// the last unbounded above and every boundary ends one range and starts the next.
func Partition(zones []string, boundaries []float64) ([]Range, error) {
	if len(zones) == 0 {
		return nil, nil
	}
	if len(boundaries) != len(zones)-1 {
		return nil, xerrors.Errorf("%d zones need %d boundaries, got %d: %w", len(zones), len(zones)-1, len(boundaries), ErrInvalidRanges)
	}
	ranges := make([]Range, 0, len(zones))
	lower := MinKey()
	for i, z := range zones {
		upper := MaxKey()
		if i < len(boundaries) {
			upper = Value(boundaries[i])
		}
		ranges = append(ranges, Range{Zone: z, Min: lower, Max: upper})
		lower = upper
	}
	if err := Validate(ranges); err != nil {
		return nil, err
	}
	return ranges, nil
}

// Validate checks that ranges are non-empty, pairwise disjoint and, in the given order, cover the key space from
// MinKey to MaxKey without gaps.
func Validate(ranges []Range) error {
	var errs *multierror.Error
	add := func(format string, args ...interface{}) {
		errs = multierror.Append(errs, xerrors.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidRanges))
	}
	if len(ranges) == 0 {
		return nil
	}
	for i, r := range ranges {
		if r.Zone == "" {
			add("range %s has no zone", r)
		}
		if r.Min.Compare(r.Max) >= 0 {
			add("range %s is empty", r)
		}
		for _, o := range ranges[i+1:] {
			if r.Min.Compare(o.Max) < 0 && o.Min.Compare(r.Max) < 0 {
				add("range %s overlaps %s", r, o)
			}
		}
	}
	if ranges[0].Min.Compare(MinKey()) != 0 {
		add("first range %s must start at MinKey", ranges[0])
	}
	if last := ranges[len(ranges)-1]; last.Max.Compare(MaxKey()) != 0 {
		add("last range %s must end at MaxKey", last)
	}
	for i := 1; i < len(ranges); i++ {
		if ranges[i].Min.Compare(ranges[i-1].Max) != 0 {
			add("range %s does not start where %s ends", ranges[i], ranges[i-1])
		}
	}
	return errs.ErrorOrNil()
}
