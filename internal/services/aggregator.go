package services

import (
	"cycle-nav-service/internal/domain"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

type groupAcc struct {
	group domain.SegmentGroup
	// index of the chain extended most recently
	last int
}

// Aggregate folds the tagged edges of one dimension into per-value totals
// and merged polyline chains. An edge extends the value's most recently
// extended chain when it starts where that chain ends; otherwise it starts a
// new chain.
//
// Every edge's distance counts towards its value's total even when a node
// coordinate is missing and no geometry can be drawn for it, so totals
// always partition the route's edge distance.
//
// Groups are sorted ascending by distance, ties by value.
func Aggregate(edges []domain.TaggedEdge, coords map[osm.NodeID]orb.Point) []domain.SegmentGroup {
	byValue := make(map[string]*groupAcc)
	order := make([]string, 0)

	for _, e := range edges {
		acc, ok := byValue[e.Value]
		if !ok {
			acc = &groupAcc{group: domain.SegmentGroup{Value: e.Value}, last: -1}
			byValue[e.Value] = acc
			order = append(order, e.Value)
		}
		acc.group.Distance += e.Distance

		from, okFrom := coords[e.From]
		to, okTo := coords[e.To]
		if !okFrom || !okTo {
			continue
		}

		if acc.last >= 0 {
			chain := acc.group.Chains[acc.last]
			if chain[len(chain)-1] == from {
				acc.group.Chains[acc.last] = append(chain, to)
				continue
			}
		}
		acc.group.Chains = append(acc.group.Chains, orb.LineString{from, to})
		acc.last = len(acc.group.Chains) - 1
	}

	out := make([]domain.SegmentGroup, 0, len(order))
	for _, v := range order {
		out = append(out, byValue[v].group)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Value < out[j].Value
	})

	return out
}
