package ports

import (
	"context"
	"cycle-nav-service/internal/domain"
)

// Contract for retrieving a precomputed route between two points.
type RouteProvider interface {
	// Return the route from start to end. Failures wrap domain.ErrRouteUnavailable
	// or domain.ErrMalformedRoute.
	GetRoute(ctx context.Context, start, end domain.Coordinates) (*domain.Route, error)
}

// Port: persistent storage of fetched routes keyed by their endpoints.
type RouteCache interface {
	GetRoute(ctx context.Context, key string) (*domain.Route, bool, error)
	PutRoute(ctx context.Context, key string, route *domain.Route) error
}
