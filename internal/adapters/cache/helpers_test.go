package cache

import (
	"context"
	"cycle-nav-service/internal/domain"
	"errors"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/require"
)

var (
	start = domain.Coordinates{Lon: 11.5, Lat: 48.1}
	end   = domain.Coordinates{Lon: 11.5, Lat: 48.101}

	errBroken = errors.New("cache backend down")
)

// testRoute is a 200m route due north from start with a turn halfway.
func testRoute(t *testing.T) *domain.Route {
	t.Helper()

	a := start.Point()
	b := geo.PointAtBearingAndDistance(a, 0, 100)
	c := geo.PointAtBearingAndDistance(a, 0, 200)
	d1, d2 := geo.DistanceHaversine(a, b), geo.DistanceHaversine(b, c)

	r, err := domain.NewRoute(
		orb.LineString{a, b, c},
		[]domain.Step{
			{Distance: d1, Duration: 20, Name: "Ludwigstraße",
				Maneuver: domain.Maneuver{Type: domain.ManeuverTurn, Modifier: domain.ModifierSlightRight}},
			{Distance: d2, Duration: 20,
				Maneuver: domain.Maneuver{Type: domain.ManeuverArrive, Modifier: domain.ModifierNone}},
		},
		[]osm.NodeID{1, 2, 3},
		[]float64{d1, d2},
		40,
	)
	require.NoError(t, err)
	return r
}

type memoryRouteCache struct {
	mu      sync.Mutex
	routes  map[string]*domain.Route
	failGet bool
	failPut bool
}

func newMemoryRouteCache() *memoryRouteCache {
	return &memoryRouteCache{routes: make(map[string]*domain.Route)}
}

func (m *memoryRouteCache) GetRoute(ctx context.Context, key string) (*domain.Route, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, false, errBroken
	}
	r, ok := m.routes[key]
	return r, ok, nil
}

func (m *memoryRouteCache) PutRoute(ctx context.Context, key string, route *domain.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return errBroken
	}
	m.routes[key] = route
	return nil
}

type countingTagSource struct {
	calls int
	segs  domain.RouteSegments
	err   error
}

func (c *countingTagSource) Segments(ctx context.Context, route *domain.Route) (domain.RouteSegments, error) {
	c.calls++
	return c.segs, c.err
}
