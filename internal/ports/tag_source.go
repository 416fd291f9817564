package ports

import (
	"context"
	"cycle-nav-service/internal/domain"

	"github.com/paulmach/osm"
)

// Contract for classifying a route into tag-labeled segments, one group
// collection per tag dimension.
type TagSource interface {
	// Failures wrap domain.ErrTagResolution.
	Segments(ctx context.Context, route *domain.Route) (domain.RouteSegments, error)
}

// Port: raw map nodes and ways covering a set of route nodes.
type ElementSource interface {
	// Return every node in nodeIDs, every way referencing one of them and the
	// nodes of those ways. Ways are returned in element order.
	Elements(ctx context.Context, nodeIDs []osm.NodeID) (*domain.MapElements, error)
}

type SegmentCache interface {
	GetSegments(ctx context.Context, key string) (domain.RouteSegments, bool, error)
	PutSegments(ctx context.Context, key string, segments domain.RouteSegments) error
}

// Port: tag segments for a bare list of route nodes, without route geometry.
type NodeSegmenter interface {
	SegmentsForNodes(ctx context.Context, nodeIDs []osm.NodeID) (domain.RouteSegments, error)
}
