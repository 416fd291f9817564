package domain

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// TagDimension is one independently aggregated route attribute.
type TagDimension string

const (
	DimensionSurface      TagDimension = "surface"
	DimensionIllumination TagDimension = "illumination"
	DimensionBicycleClass TagDimension = "bicycle-class"
)

// Dimensions lists every tag dimension in display order.
var Dimensions = []TagDimension{DimensionSurface, DimensionIllumination, DimensionBicycleClass}

// Key is the OSM tag key the dimension is read from.
func (d TagDimension) Key() string {
	switch d {
	case DimensionSurface:
		return "surface"
	case DimensionIllumination:
		return "lit"
	case DimensionBicycleClass:
		return "class:bicycle"
	}
	return ""
}

// Default is assigned to edges whose way is unknown or untagged.
func (d TagDimension) Default() string {
	if d == DimensionBicycleClass {
		return "0"
	}
	return "unknown"
}

// ParseTagDimension accepts both dimension names and OSM tag keys.
func ParseTagDimension(s string) (TagDimension, error) {
	for _, d := range Dimensions {
		if s == string(d) || s == d.Key() {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown tag dimension %q", s)
}

// TaggedEdge is one route edge between consecutive route nodes with its
// resolved tag value for a single dimension.
type TaggedEdge struct {
	From     osm.NodeID
	To       osm.NodeID
	Distance float64
	Value    string
}

// SegmentGroup collects every edge of one tag value. Each chain is a maximal
// run of contiguous edges sharing that value.
type SegmentGroup struct {
	Value    string
	Distance float64
	Chains   []orb.LineString
}

// RouteSegments holds the groups for every resolved dimension, each sorted
// ascending by distance.
type RouteSegments map[TagDimension][]SegmentGroup

// Total sums the group distances of one dimension.
func (rs RouteSegments) Total(d TagDimension) float64 {
	total := 0.0
	for _, g := range rs[d] {
		total += g.Distance
	}
	return total
}

// MapElements is raw map data covering a set of route nodes.
type MapElements struct {
	Nodes osm.Nodes
	Ways  osm.Ways
}
