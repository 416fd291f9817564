package routing

import (
	"context"
	"cycle-nav-service/internal/domain"
	"fmt"
	"sync"
)

// MockRouteProvider serves canned routes keyed by their endpoints.
type MockRouteProvider struct {
	mu     sync.Mutex
	routes map[string]*domain.Route
	calls  int
}

func NewMockRouteProvider() *MockRouteProvider {
	return &MockRouteProvider{routes: make(map[string]*domain.Route)}
}

// Add registers the route returned for start -> end.
func (p *MockRouteProvider) Add(start, end domain.Coordinates, route *domain.Route) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[EndpointKey(start, end)] = route
}

func (p *MockRouteProvider) GetRoute(ctx context.Context, start, end domain.Coordinates) (*domain.Route, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRouteUnavailable, err)
	}

	r, ok := p.routes[EndpointKey(start, end)]
	if !ok {
		return nil, fmt.Errorf("%w: no route %v -> %v", domain.ErrRouteUnavailable, start, end)
	}
	return r, nil
}

// Calls reports how many routes were requested.
func (p *MockRouteProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// EndpointKey identifies a route by its endpoints rounded to 1e-6 degrees.
func EndpointKey(start, end domain.Coordinates) string {
	return fmt.Sprintf("%.6f,%.6f;%.6f,%.6f", start.Lon, start.Lat, end.Lon, end.Lat)
}
