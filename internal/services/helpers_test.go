package services

import (
	"context"
	"cycle-nav-service/internal/domain"
	"cycle-nav-service/internal/geometry"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/require"
)

// northRoute builds a route heading due north from start with one step per
// leg. Legs are in meters; node i sits at the start of leg i.
func northRoute(t *testing.T, start orb.Point, legs ...float64) *domain.Route {
	t.Helper()

	line := orb.LineString{start}
	steps := make([]domain.Step, 0, len(legs))
	nodes := []osm.NodeID{1}
	along := 0.0
	for i, leg := range legs {
		along += leg
		line = append(line, geo.PointAtBearingAndDistance(start, 0, along))
		nodes = append(nodes, osm.NodeID(i+2))

		m := domain.Maneuver{Type: domain.ManeuverTurn, Modifier: domain.ModifierLeft}
		if i == len(legs)-1 {
			m = domain.Maneuver{Type: domain.ManeuverArrive, Modifier: domain.ModifierNone}
		}
		steps = append(steps, domain.Step{
			Distance: geometry.Distance(line[i], line[i+1]),
			Duration: leg / 5,
			Maneuver: m,
		})
	}

	r, err := domain.NewRoute(line, steps, nodes, legs, along/5)
	require.NoError(t, err)
	return r
}

var (
	origin = orb.Point{13.4, 52.5}
	coordA = domain.Coordinates{Lon: 13.4, Lat: 52.5}
	coordB = domain.Coordinates{Lon: 13.41, Lat: 52.51}
	coordC = domain.Coordinates{Lon: 13.42, Lat: 52.52}
)

type tagSourceFunc func(ctx context.Context, route *domain.Route) (domain.RouteSegments, error)

func (f tagSourceFunc) Segments(ctx context.Context, route *domain.Route) (domain.RouteSegments, error) {
	return f(ctx, route)
}

type elementSourceFunc func(ctx context.Context, ids []osm.NodeID) (*domain.MapElements, error)

func (f elementSourceFunc) Elements(ctx context.Context, ids []osm.NodeID) (*domain.MapElements, error) {
	return f(ctx, ids)
}

// chanSource relays fixes pushed to In until the subscriber cancels.
type chanSource struct {
	In chan domain.Position

	mu        sync.Mutex
	cancelled <-chan struct{}
}

func newChanSource() *chanSource {
	return &chanSource{In: make(chan domain.Position)}
}

func (s *chanSource) Subscribe(ctx context.Context) (<-chan domain.Position, error) {
	s.mu.Lock()
	s.cancelled = ctx.Done()
	s.mu.Unlock()

	out := make(chan domain.Position)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case p, ok := <-s.In:
				if !ok {
					return
				}
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *chanSource) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled == nil {
		return false
	}
	select {
	case <-s.cancelled:
		return true
	default:
		return false
	}
}

func fixAt(p orb.Point) domain.Position {
	return domain.Position{Lat: p.Lat(), Lon: p.Lon()}
}

func float(v float64) *float64 { return &v }
