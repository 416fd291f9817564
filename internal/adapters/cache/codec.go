package cache

import (
	"cycle-nav-service/internal/domain"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

type stepRecord struct {
	Distance float64 `json:"distance"`
	Duration float64 `json:"duration"`
	Type     string  `json:"type"`
	Modifier string  `json:"modifier"`
	Name     string  `json:"name,omitempty"`
}

type routeRecord struct {
	Geometry      orb.LineString `json:"geometry"`
	Steps         []stepRecord   `json:"steps"`
	NodeIDs       []osm.NodeID   `json:"node_ids"`
	EdgeDistances []float64      `json:"edge_distances"`
	Duration      float64        `json:"duration"`
}

func encodeRoute(r *domain.Route) ([]byte, error) {
	rec := routeRecord{
		Geometry:      r.Geometry,
		Steps:         make([]stepRecord, len(r.Steps)),
		NodeIDs:       r.NodeIDs,
		EdgeDistances: r.EdgeDistances,
		Duration:      r.Duration,
	}
	for i, s := range r.Steps {
		rec.Steps[i] = stepRecord{
			Distance: s.Distance,
			Duration: s.Duration,
			Type:     string(s.Maneuver.Type),
			Modifier: string(s.Maneuver.Modifier),
			Name:     s.Name,
		}
	}
	return json.Marshal(rec)
}

// decodeRoute rebuilds a route through domain.NewRoute so cached payloads
// are validated like fresh ones.
func decodeRoute(b []byte) (*domain.Route, error) {
	var rec routeRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode cached route: %w", err)
	}

	steps := make([]domain.Step, len(rec.Steps))
	for i, s := range rec.Steps {
		steps[i] = domain.Step{
			Distance: s.Distance,
			Duration: s.Duration,
			Maneuver: domain.Maneuver{
				Type:     domain.ManeuverType(s.Type),
				Modifier: domain.ManeuverModifier(s.Modifier),
			},
			Name: s.Name,
		}
	}

	return domain.NewRoute(rec.Geometry, steps, rec.NodeIDs, rec.EdgeDistances, rec.Duration)
}

type groupRecord struct {
	Value    string           `json:"value"`
	Distance float64          `json:"distance"`
	Chains   []orb.LineString `json:"chains"`
}

func encodeSegments(segs domain.RouteSegments) ([]byte, error) {
	rec := make(map[domain.TagDimension][]groupRecord, len(segs))
	for d, groups := range segs {
		out := make([]groupRecord, len(groups))
		for i, g := range groups {
			out[i] = groupRecord{Value: g.Value, Distance: g.Distance, Chains: g.Chains}
		}
		rec[d] = out
	}
	return json.Marshal(rec)
}

func decodeSegments(b []byte) (domain.RouteSegments, error) {
	var rec map[domain.TagDimension][]groupRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode cached segments: %w", err)
	}

	segs := make(domain.RouteSegments, len(rec))
	for d, groups := range rec {
		if _, err := domain.ParseTagDimension(string(d)); err != nil {
			return nil, fmt.Errorf("decode cached segments: %w", err)
		}
		out := make([]domain.SegmentGroup, len(groups))
		for i, g := range groups {
			out[i] = domain.SegmentGroup{Value: g.Value, Distance: g.Distance, Chains: g.Chains}
		}
		segs[d] = out
	}
	return segs, nil
}
