package api

import (
	"bytes"
	"context"
	"cycle-nav-service/internal/adapters/position"
	"cycle-nav-service/internal/adapters/routing"
	"cycle-nav-service/internal/domain"
	"cycle-nav-service/internal/geometry"
	"cycle-nav-service/internal/services"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	origin = orb.Point{13.4, 52.5}
	coordA = domain.Coordinates{Lon: 13.4, Lat: 52.5}
	coordB = domain.Coordinates{Lon: 13.41, Lat: 52.51}
)

const endpointsBody = `{"start":{"lat":52.5,"lon":13.4},"end":{"lat":52.51,"lon":13.41}}`

func testRoute(t *testing.T) *domain.Route {
	t.Helper()

	line := orb.LineString{origin, geo.PointAtBearingAndDistance(origin, 0, 1000)}
	steps := []domain.Step{{
		Distance: geometry.Length(line),
		Duration: 200,
		Maneuver: domain.Maneuver{Type: domain.ManeuverArrive, Modifier: domain.ModifierNone},
	}}
	r, err := domain.NewRoute(line, steps, []osm.NodeID{1, 2}, []float64{1000}, 200)
	require.NoError(t, err)
	return r
}

type stubTags struct {
	segs domain.RouteSegments
	err  error
}

func (s stubTags) Segments(ctx context.Context, route *domain.Route) (domain.RouteSegments, error) {
	return s.segs, s.err
}

func (s stubTags) SegmentsForNodes(ctx context.Context, ids []osm.NodeID) (domain.RouteSegments, error) {
	return s.segs, s.err
}

var surfaceSegments = domain.RouteSegments{
	domain.DimensionSurface: {
		{Value: "gravel", Distance: 250, Chains: []orb.LineString{{origin, geo.PointAtBearingAndDistance(origin, 0, 250)}}},
		{Value: "asphalt", Distance: 750},
	},
}

type testServer struct {
	engine   *gin.Engine
	sessions *services.SessionStore
}

func newTestServer(t *testing.T, tags stubTags) *testServer {
	t.Helper()

	provider := routing.NewMockRouteProvider()
	provider.Add(coordA, coordB, testRoute(t))

	cfg := services.NavigatorConfig{
		RerouteWindow:  time.Millisecond,
		SegmentWindow:  time.Millisecond,
		FollowInterval: 5 * time.Millisecond,
		RequestTimeout: time.Second,
	}
	store := services.NewSessionStore(provider, tags, func() services.NavigatorConfig { return cfg }, zap.NewNop())
	t.Cleanup(store.Close)

	factory := &position.Factory{
		DefaultKind:    position.KindReplay,
		ReplayInterval: func() time.Duration { return 5 * time.Millisecond },
		ReplaySpacing:  100,
		Log:            zap.NewNop(),
	}

	engine := NewRouter(Dependencies{
		Routes:   provider,
		Tags:     tags,
		Sessions: store,
		Sources:  factory,
		Log:      zap.NewNop(),
	})
	return &testServer{engine: engine, sessions: store}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, r)
	return w
}

func (s *testServer) createSession(t *testing.T) string {
	t.Helper()

	w := s.do(http.MethodPost, "/api/v1/sessions", endpointsBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.NotEmpty(t, res.ID)
	return res.ID
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func TestHealthEchoesRequestID(t *testing.T) {
	s := newTestServer(t, stubTags{})

	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "ok", decode(t, w)["status"])

	w = s.do(http.MethodGet, "/health", "")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestGetRoute(t *testing.T) {
	s := newTestServer(t, stubTags{})

	w := s.do(http.MethodGet, "/api/v1/route?start_lat=52.5&start_lon=13.4&target_lat=52.51&target_lon=13.41", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := decode(t, w)
	assert.InDelta(t, 1000, res["distance"], 1e-3)
	assert.NotEmpty(t, res["distance_label"])
	assert.NotEmpty(t, res["polyline"])
	assert.Len(t, res["steps"], 1)
	assert.Equal(t, []any{1.0, 2.0}, res["node_ids"])
}

func TestGetRouteErrors(t *testing.T) {
	s := newTestServer(t, stubTags{})

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"missing target", "start_lat=52.5&start_lon=13.4", http.StatusBadRequest},
		{"latitude out of range", "start_lat=91&start_lon=13.4&target_lat=52.51&target_lon=13.41", http.StatusBadRequest},
		{"unknown route", "start_lat=10&start_lon=10&target_lat=11&target_lon=11", http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodGet, "/api/v1/route?"+tt.query, "")
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, decode(t, w)["error"])
		})
	}
}

func TestTagDistribution(t *testing.T) {
	s := newTestServer(t, stubTags{segs: surfaceSegments})

	w := s.do(http.MethodPost, "/api/v1/tag-distribution?dimension=surface&highlight=gravel", `{"node_ids":[1,2,3]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		Dimensions []struct {
			Dimension string  `json:"dimension"`
			Total     float64 `json:"total"`
			Groups    []struct {
				Value  string          `json:"value"`
				Share  float64         `json:"share"`
				Chains json.RawMessage `json:"chains"`
			} `json:"groups"`
		} `json:"dimensions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Dimensions, 1)

	d := res.Dimensions[0]
	assert.Equal(t, "surface", d.Dimension)
	assert.Equal(t, 1000.0, d.Total)
	require.Len(t, d.Groups, 2)
	assert.Equal(t, "gravel", d.Groups[0].Value)
	assert.Equal(t, 25.0, d.Groups[0].Share)
	assert.NotEmpty(t, d.Groups[0].Chains)
	assert.Empty(t, d.Groups[1].Chains)
}

func TestTagDistributionErrors(t *testing.T) {
	s := newTestServer(t, stubTags{err: fmt.Errorf("%w: overpass down", domain.ErrTagResolution)})

	w := s.do(http.MethodPost, "/api/v1/tag-distribution", `{"node_ids":[1]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/tag-distribution?dimension=maxspeed", `{"node_ids":[1,2]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/tag-distribution", `{"node_ids":[1,2]}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSessionLifecycle(t *testing.T) {
	s := newTestServer(t, stubTags{segs: surfaceSegments})
	id := s.createSession(t)
	base := "/api/v1/sessions/" + id

	w := s.do(http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, w.Code)
	res := decode(t, w)
	assert.Equal(t, id, res["id"])
	assert.Equal(t, false, res["navigating"])
	assert.NotNil(t, res["route"])

	w = s.do(http.MethodGet, base+"/progress", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	at := geo.PointAtBearingAndDistance(origin, 0, 400)
	w = s.do(http.MethodPost, base+"/positions", fmt.Sprintf(`{"lat":%f,"lon":%f,"speed":4}`, at.Lat(), at.Lon()))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.InDelta(t, 400, decode(t, w)["traveled"], 1)

	w = s.do(http.MethodGet, base+"/progress", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.InDelta(t, 600, decode(t, w)["remaining"], 1)

	w = s.do(http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, s.sessions.Len())

	w = s.do(http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateSessionErrors(t *testing.T) {
	s := newTestServer(t, stubTags{})

	w := s.do(http.MethodPost, "/api/v1/sessions", `{"start":{"lat":52.5}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/sessions", `{"start":{"lat":1,"lon":1},"end":{"lat":2,"lon":2}}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Zero(t, s.sessions.Len())
}

func TestPushPositionRejectsInvalidFix(t *testing.T) {
	s := newTestServer(t, stubTags{})
	base := "/api/v1/sessions/" + s.createSession(t)

	w := s.do(http.MethodPost, base+"/positions", `{"lat":95,"lon":13.4}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, base+"/positions", `{"lon":13.4}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/v1/sessions/missing/positions", `{"lat":52.5,"lon":13.4}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionSegments(t *testing.T) {
	s := newTestServer(t, stubTags{segs: surfaceSegments})
	base := "/api/v1/sessions/" + s.createSession(t)

	require.Eventually(t, func() bool {
		return s.do(http.MethodGet, base+"/segments", "").Code == http.StatusOK
	}, time.Second, 5*time.Millisecond)

	w := s.do(http.MethodGet, base+"/segments?dimension=surface", "")
	require.Equal(t, http.StatusOK, w.Code)
	dims := decode(t, w)["dimensions"].([]any)
	require.Len(t, dims, 1)
	assert.Equal(t, "surface", dims[0].(map[string]any)["dimension"])

	w = s.do(http.MethodGet, base+"/segments?dimension=bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionSegmentsFailure(t *testing.T) {
	s := newTestServer(t, stubTags{err: fmt.Errorf("%w: boom", domain.ErrTagResolution)})
	base := "/api/v1/sessions/" + s.createSession(t)

	require.Eventually(t, func() bool {
		return s.do(http.MethodGet, base+"/segments", "").Code == http.StatusServiceUnavailable
	}, time.Second, 5*time.Millisecond)
}

func TestUpdateEndpointsAccepted(t *testing.T) {
	s := newTestServer(t, stubTags{})
	id := s.createSession(t)
	base := "/api/v1/sessions/" + id

	w := s.do(http.MethodPut, base+"/endpoints", endpointsBody)
	assert.Equal(t, http.StatusAccepted, w.Code)

	n, err := s.sessions.Get(id)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return n.Status().Generation == 2
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 2.0, decode(t, s.do(http.MethodGet, base, ""))["generation"])

	w = s.do(http.MethodPut, base+"/endpoints", `{"start":{"lat":52.5,"lon":13.4}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNavigationStartStop(t *testing.T) {
	s := newTestServer(t, stubTags{})
	base := "/api/v1/sessions/" + s.createSession(t)

	w := s.do(http.MethodGet, base+"/camera", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodPost, base+"/navigation/start", `{"source":"carrier-pigeon"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPost, base+"/navigation/start", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["navigating"])

	w = s.do(http.MethodPost, base+"/navigation/start", "")
	assert.Equal(t, http.StatusConflict, w.Code)

	require.Eventually(t, func() bool {
		return s.do(http.MethodGet, base+"/camera", "").Code == http.StatusOK
	}, time.Second, 5*time.Millisecond)

	w = s.do(http.MethodPost, base+"/navigation/stop", "")
	require.Equal(t, http.StatusOK, w.Code)
	res := decode(t, w)
	assert.Equal(t, false, res["navigating"])
	assert.Equal(t, false, res["following"])
}

func TestRecoveryMiddleware(t *testing.T) {
	s := newTestServer(t, stubTags{})
	s.engine.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := s.do(http.MethodGet, "/panic", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decode(t, w)["error"])
}
