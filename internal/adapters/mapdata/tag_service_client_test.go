package mapdata

import (
	"context"
	"cycle-nav-service/internal/adapters/httpclient"
	"cycle-nav-service/internal/domain"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const tagDistribution = `{
  "ok": true,
  "tag_distribution": {
    "surface": {
      "asphalt": {"distance": 300, "ways": {
        "20": {"name": "Ring", "geometry": {"type": "LineString", "coordinates": [[11.5, 48.1], [11.6, 48.2]]}},
        "3":  {"name": "", "geometry": {"type": "LineString", "coordinates": [[11.7, 48.3], [11.8, 48.4]]}}
      }},
      "gravel": {"distance": 120, "ways": {}}
    },
    "lit": {
      "yes": {"distance": 420, "ways": {}}
    },
    "class:bicycle": {
      "1": {"distance": 100, "ways": {}},
      "0": {"distance": 100, "ways": {}}
    },
    "highway": {
      "cycleway": {"distance": 420, "ways": {}}
    }
  }
}`

func newTagServer(t *testing.T, h http.HandlerFunc) *TagServiceClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewTagServiceClient(srv.URL, httpclient.New("test"), zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestTagServiceSegments(t *testing.T) {
	c := newTagServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tag_distribution", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			NodeIDs []int64 `json:"node_ids"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []int64{1, 2, 3}, req.NodeIDs)

		w.Write([]byte(tagDistribution))
	})

	segs, err := c.SegmentsForNodes(context.Background(), []osm.NodeID{1, 2, 3})
	require.NoError(t, err)

	surface := segs[domain.DimensionSurface]
	require.Len(t, surface, 2)
	assert.Equal(t, "gravel", surface[0].Value)
	assert.Equal(t, "asphalt", surface[1].Value)
	assert.Equal(t, 300.0, surface[1].Distance)

	// chains follow numeric way id order
	require.Len(t, surface[1].Chains, 2)
	assert.Equal(t, orb.Point{11.7, 48.3}, surface[1].Chains[0][0])
	assert.Equal(t, orb.Point{11.5, 48.1}, surface[1].Chains[1][0])

	assert.Len(t, segs[domain.DimensionIllumination], 1)

	class := segs[domain.DimensionBicycleClass]
	require.Len(t, class, 2)
	assert.Equal(t, "0", class[0].Value)
	assert.Equal(t, "1", class[1].Value)

	assert.Len(t, segs, 3)
}

func TestTagServiceNotOK(t *testing.T) {
	c := newTagServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": false}`))
	})

	_, err := c.SegmentsForNodes(context.Background(), []osm.NodeID{1, 2})
	assert.ErrorIs(t, err, domain.ErrTagResolution)
}

func TestTagServiceBadWayID(t *testing.T) {
	c := newTagServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": true, "tag_distribution": {"lit": {"yes": {"distance": 1, "ways": {"x": {}}}}}}`))
	})

	_, err := c.SegmentsForNodes(context.Background(), []osm.NodeID{1, 2})
	assert.ErrorIs(t, err, domain.ErrTagResolution)
}

func TestTagServiceUnavailable(t *testing.T) {
	c := newTagServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})

	_, err := c.SegmentsForNodes(context.Background(), []osm.NodeID{1, 2})
	assert.ErrorIs(t, err, domain.ErrTagResolution)
}
