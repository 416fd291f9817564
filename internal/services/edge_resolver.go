package services

import (
	"cycle-nav-service/internal/domain"

	"github.com/paulmach/osm"
)

type nodePair struct{ a, b osm.NodeID }

func newNodePair(a, b osm.NodeID) nodePair {
	if b < a {
		a, b = b, a
	}
	return nodePair{a, b}
}

// EdgeResolver maps consecutive route node pairs to the way that connects
// them. A way connects a and b when the first positions of a and b in its
// node list differ by exactly one, so the closing edge of a ring or an edge
// back to a revisited node does not count.
//
// When several ways connect the same pair the first one in element order
// wins. Such overlaps are counted, not reported as errors.
type EdgeResolver struct {
	ways      map[nodePair]*osm.Way
	ambiguous int
}

func NewEdgeResolver(ways osm.Ways) *EdgeResolver {
	r := &EdgeResolver{ways: make(map[nodePair]*osm.Way)}

	for _, w := range ways {
		for _, k := range adjacentPairs(w) {
			if prev, ok := r.ways[k]; ok {
				if prev.ID != w.ID {
					r.ambiguous++
				}
				continue
			}
			r.ways[k] = w
		}
	}

	return r
}

// adjacentPairs lists the node pairs of w whose first positions are
// neighbours.
func adjacentPairs(w *osm.Way) []nodePair {
	seen := make(map[osm.NodeID]struct{}, len(w.Nodes))
	// firstAt[i] is true when position i holds its node's first occurrence
	firstAt := make([]bool, len(w.Nodes))
	for i, n := range w.Nodes {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		firstAt[i] = true
	}

	var pairs []nodePair
	for i := 1; i < len(w.Nodes); i++ {
		if firstAt[i-1] && firstAt[i] {
			pairs = append(pairs, newNodePair(w.Nodes[i-1].ID, w.Nodes[i].ID))
		}
	}
	return pairs
}

// Way returns the way connecting a and b, in either direction.
func (r *EdgeResolver) Way(a, b osm.NodeID) (*osm.Way, bool) {
	w, ok := r.ways[newNodePair(a, b)]
	return w, ok
}

// Ambiguous reports how many node pairs were connected by more than one way.
func (r *EdgeResolver) Ambiguous() int { return r.ambiguous }

// Resolve tags every edge of the node sequence for dimension d. Edges
// without a connecting way, or whose way lacks the tag, get the dimension's
// default value.
func (r *EdgeResolver) Resolve(nodeIDs []osm.NodeID, distances []float64, d domain.TagDimension) []domain.TaggedEdge {
	if len(nodeIDs) < 2 {
		return nil
	}

	edges := make([]domain.TaggedEdge, 0, len(nodeIDs)-1)
	for i := 1; i < len(nodeIDs); i++ {
		e := domain.TaggedEdge{
			From:  nodeIDs[i-1],
			To:    nodeIDs[i],
			Value: d.Default(),
		}
		if i-1 < len(distances) {
			e.Distance = distances[i-1]
		}
		if w, ok := r.Way(e.From, e.To); ok {
			if v := w.Tags.Find(d.Key()); v != "" {
				e.Value = v
			}
		}
		edges = append(edges, e)
	}

	return edges
}
