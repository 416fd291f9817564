package routing

import (
	"context"
	"cycle-nav-service/internal/adapters/httpclient"
	"cycle-nav-service/internal/domain"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb/geo"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	start = domain.Coordinates{Lon: 13.4, Lat: 52.5}
	end   = domain.Coordinates{Lon: 13.4, Lat: 52.509}
)

// osrmFixture returns an OSRM response for a straight route due north with a
// left turn after 500m and arrival after another 500m.
func osrmFixture() map[string]any {
	a := start.Point()
	b := geo.PointAtBearingAndDistance(a, 0, 500)
	c := geo.PointAtBearingAndDistance(a, 0, 1000)
	d1 := geo.DistanceHaversine(a, b)
	d2 := geo.DistanceHaversine(b, c)

	return map[string]any{
		"code": "Ok",
		"routes": []any{map[string]any{
			"distance": d1 + d2,
			"duration": 200.0,
			"geometry": map[string]any{
				"type":        "LineString",
				"coordinates": [][]float64{{a.Lon(), a.Lat()}, {b.Lon(), b.Lat()}, {c.Lon(), c.Lat()}},
			},
			"legs": []any{map[string]any{
				"steps": []any{
					map[string]any{"distance": d1, "duration": 100.0, "name": "Hauptstraße",
						"maneuver": map[string]any{"type": "depart"}},
					map[string]any{"distance": d2, "duration": 100.0, "name": "Nebenweg",
						"maneuver": map[string]any{"type": "turn", "modifier": "sharp left"}},
					map[string]any{"distance": 0.0, "duration": 0.0, "name": "Nebenweg",
						"maneuver": map[string]any{"type": "arrive"}},
				},
				"annotation": map[string]any{
					"nodes":    []int64{101, 102, 103},
					"distance": []float64{d1, d2},
				},
			}},
		}},
	}
}

func newTestProvider(t *testing.T, h http.HandlerFunc) *OSRMRouteProvider {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	client := httpclient.New("cycle-nav-test", httpclient.WithBackoff(time.Millisecond), httpclient.WithMaxAttempts(2))
	p, err := NewOSRMRouteProvider(srv.URL+"/", "bike", client, zap.NewNop())
	require.NoError(t, err)
	return p
}

func TestOSRMGetRoute(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/route/v1/bike/13.400000,52.500000;13.400000,52.509000", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "full", q.Get("overview"))
		assert.Equal(t, "true", q.Get("steps"))
		assert.Equal(t, "geojson", q.Get("geometries"))
		assert.Equal(t, "true", q.Get("annotations"))
		json.NewEncoder(w).Encode(osrmFixture())
	})

	route, err := p.GetRoute(context.Background(), start, end)
	require.NoError(t, err)

	assert.Len(t, route.Geometry, 3)
	assert.Equal(t, []osm.NodeID{101, 102, 103}, route.NodeIDs)
	assert.InDelta(t, 1000, route.Length(), 1e-6)
	assert.InDelta(t, route.Length(), route.EdgeDistance(), 1e-9)
	assert.Equal(t, 200.0, route.Duration)

	require.Len(t, route.Steps, 2)
	assert.Equal(t, domain.Maneuver{Type: domain.ManeuverTurn, Modifier: domain.ModifierLeft}, route.Steps[0].Maneuver)
	assert.Equal(t, "Hauptstraße", route.Steps[0].Name)
	assert.Equal(t, domain.ManeuverArrive, route.Steps[1].Maneuver.Type)
	assert.Equal(t, 100.0, route.Steps[1].Duration)
}

func TestOSRMGetRouteNoRoute(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"NoRoute","message":"Impossible route between points","routes":[]}`))
	})

	_, err := p.GetRoute(context.Background(), start, end)
	assert.ErrorIs(t, err, domain.ErrRouteUnavailable)
}

func TestOSRMGetRouteServerError(t *testing.T) {
	var hits atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := p.GetRoute(context.Background(), start, end)
	assert.ErrorIs(t, err, domain.ErrRouteUnavailable)
	assert.Equal(t, int32(2), hits.Load())
}

func TestOSRMGetRouteInconsistentPayload(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fx := osrmFixture()
		leg := fx["routes"].([]any)[0].(map[string]any)["legs"].([]any)[0].(map[string]any)
		leg["annotation"].(map[string]any)["distance"] = []float64{500}
		json.NewEncoder(w).Encode(fx)
	})

	_, err := p.GetRoute(context.Background(), start, end)
	assert.ErrorIs(t, err, domain.ErrMalformedRoute)
}

func TestOSRMGetRouteRejectsInvalidEndpoint(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := p.GetRoute(context.Background(), domain.Coordinates{Lon: 200, Lat: 0}, end)
	assert.ErrorIs(t, err, domain.ErrMalformedRoute)
}

func TestConvertSteps(t *testing.T) {
	steps := convertSteps([]osrmStep{
		{Distance: 10, Duration: 2, Maneuver: osrmManeuver{Type: "depart"}},
		{Distance: 20, Duration: 4, Maneuver: osrmManeuver{Type: "end of road", Modifier: "right"}},
		{Distance: 30, Duration: 6, Maneuver: osrmManeuver{Type: "roundabout", Modifier: "slight right"}},
		{Distance: 0, Duration: 0, Maneuver: osrmManeuver{Type: "arrive"}},
	})

	require.Len(t, steps, 3)
	assert.Equal(t, domain.Maneuver{Type: domain.ManeuverEndOfRoad, Modifier: domain.ModifierRight}, steps[0].Maneuver)
	assert.Equal(t, domain.Maneuver{Type: domain.ManeuverTurn, Modifier: domain.ModifierSlightRight}, steps[1].Maneuver)
	assert.Equal(t, domain.Maneuver{Type: domain.ManeuverArrive, Modifier: domain.ModifierNone}, steps[2].Maneuver)

	total := 0.0
	for _, s := range steps {
		total += s.Distance
	}
	assert.Equal(t, 60.0, total)
}

func TestConvertManeuver(t *testing.T) {
	tests := []struct {
		in   osrmManeuver
		want domain.Maneuver
	}{
		{osrmManeuver{"new name", "straight"}, domain.Maneuver{Type: domain.ManeuverContinue, Modifier: domain.ModifierStraight}},
		{osrmManeuver{"fork", "slight left"}, domain.Maneuver{Type: domain.ManeuverTurn, Modifier: domain.ModifierSlightLeft}},
		{osrmManeuver{"turn", "sharp right"}, domain.Maneuver{Type: domain.ManeuverTurn, Modifier: domain.ModifierRight}},
		{osrmManeuver{"turn", "uturn"}, domain.Maneuver{Type: domain.ManeuverTurn, Modifier: domain.ModifierNone}},
		{osrmManeuver{"merge", ""}, domain.Maneuver{Type: domain.ManeuverTurn, Modifier: domain.ModifierNone}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, convertManeuver(tt.in), "%+v", tt.in)
	}
}
