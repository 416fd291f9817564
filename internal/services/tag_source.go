package services

import (
	"context"
	"cycle-nav-service/internal/domain"
	"cycle-nav-service/internal/geometry"
	"cycle-nav-service/internal/ports"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"go.uber.org/zap"
)

// LocalTagSource resolves route segments from raw map elements: it matches
// route edges to ways and aggregates each tag dimension independently.
type LocalTagSource struct {
	elements ports.ElementSource
	log      *zap.Logger
}

func NewLocalTagSource(elements ports.ElementSource, log *zap.Logger) *LocalTagSource {
	return &LocalTagSource{elements: elements, log: log}
}

// Segments resolves a route. The route starts and ends mid-edge, so the
// coordinates of its first and last node are replaced by the route's own
// endpoints.
func (s *LocalTagSource) Segments(ctx context.Context, route *domain.Route) (domain.RouteSegments, error) {
	if len(route.NodeIDs) < 2 {
		return domain.RouteSegments{}, nil
	}

	els, err := s.elements.Elements(ctx, route.NodeIDs)
	if err != nil {
		return nil, fmt.Errorf("local tag source: %w: %w", domain.ErrTagResolution, err)
	}

	coords := coordinatesByNode(els.Nodes)
	coords[route.NodeIDs[0]] = route.Start()
	coords[route.NodeIDs[len(route.NodeIDs)-1]] = route.End()

	return s.segments(els, route.NodeIDs, route.EdgeDistances, coords), nil
}

// SegmentsForNodes resolves a bare node sequence. Edge distances are the
// great-circle distances between the stored node coordinates.
func (s *LocalTagSource) SegmentsForNodes(ctx context.Context, nodeIDs []osm.NodeID) (domain.RouteSegments, error) {
	if len(nodeIDs) < 2 {
		return domain.RouteSegments{}, nil
	}

	els, err := s.elements.Elements(ctx, nodeIDs)
	if err != nil {
		return nil, fmt.Errorf("local tag source: %w: %w", domain.ErrTagResolution, err)
	}

	coords := coordinatesByNode(els.Nodes)
	var missing []error
	for _, id := range nodeIDs {
		if _, ok := coords[id]; !ok {
			missing = append(missing, fmt.Errorf("node %d not found", id))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("local tag source: %w: %w", domain.ErrTagResolution, errors.Join(missing...))
	}

	distances := make([]float64, 0, len(nodeIDs)-1)
	for i := 1; i < len(nodeIDs); i++ {
		distances = append(distances, geometry.Distance(coords[nodeIDs[i-1]], coords[nodeIDs[i]]))
	}

	return s.segments(els, nodeIDs, distances, coords), nil
}

func (s *LocalTagSource) segments(
	els *domain.MapElements,
	nodeIDs []osm.NodeID,
	distances []float64,
	coords map[osm.NodeID]orb.Point,
) domain.RouteSegments {
	resolver := NewEdgeResolver(els.Ways)
	if n := resolver.Ambiguous(); n > 0 {
		s.log.Debug("node pairs connected by several ways, using first match",
			zap.Int("pairs", n),
		)
	}

	out := make(domain.RouteSegments, len(domain.Dimensions))
	for _, d := range domain.Dimensions {
		edges := resolver.Resolve(nodeIDs, distances, d)
		out[d] = Aggregate(edges, coords)
	}
	return out
}

func coordinatesByNode(nodes osm.Nodes) map[osm.NodeID]orb.Point {
	coords := make(map[osm.NodeID]orb.Point, len(nodes))
	for _, n := range nodes {
		coords[n.ID] = n.Point()
	}
	return coords
}
