package dto

import (
	"cycle-nav-service/internal/domain"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/osm"
)

type TagDistributionRequest struct {
	NodeIDs []osm.NodeID `json:"node_ids" binding:"required,min=2"`
}

type ChainsResponse struct {
	Polylines []string          `json:"polylines"`
	Geometry  *geojson.Geometry `json:"geometry"`
}

type SegmentGroupResponse struct {
	Value         string          `json:"value"`
	Label         string          `json:"label"`
	Color         string          `json:"color"`
	Distance      float64         `json:"distance"`
	DistanceLabel string          `json:"distance_label"`
	Share         float64         `json:"share"`
	Chains        *ChainsResponse `json:"chains,omitempty"`
}

type DimensionResponse struct {
	Dimension domain.TagDimension    `json:"dimension"`
	Key       string                 `json:"key"`
	Total     float64                `json:"total"`
	Groups    []SegmentGroupResponse `json:"groups"`
}

type SegmentsResponse struct {
	Dimensions []DimensionResponse `json:"dimensions"`
}

// NewSegmentsResponse renders the requested dimensions in order. Groups keep
// their ascending distance order; share is the percentage of the dimension
// total. Chains are included only for the highlighted value.
func NewSegmentsResponse(segs domain.RouteSegments, dims []domain.TagDimension, highlight string) SegmentsResponse {
	res := SegmentsResponse{Dimensions: make([]DimensionResponse, 0, len(dims))}

	for _, d := range dims {
		total := segs.Total(d)
		groups := make([]SegmentGroupResponse, 0, len(segs[d]))

		for _, g := range segs[d] {
			label := domain.LabelFor(d, g.Value)
			gr := SegmentGroupResponse{
				Value:         g.Value,
				Label:         label.Text,
				Color:         label.Color,
				Distance:      g.Distance,
				DistanceLabel: domain.FormatDistance(g.Distance),
			}
			if total > 0 {
				gr.Share = math.Round(g.Distance/total*1000) / 10
			}
			if highlight != "" && g.Value == highlight {
				gr.Chains = newChainsResponse(g.Chains)
			}
			groups = append(groups, gr)
		}

		res.Dimensions = append(res.Dimensions, DimensionResponse{
			Dimension: d,
			Key:       d.Key(),
			Total:     total,
			Groups:    groups,
		})
	}

	return res
}

func newChainsResponse(chains []orb.LineString) *ChainsResponse {
	res := &ChainsResponse{Polylines: make([]string, 0, len(chains))}
	mls := make(orb.MultiLineString, 0, len(chains))
	for _, c := range chains {
		res.Polylines = append(res.Polylines, EncodePolyline(c))
		mls = append(mls, c)
	}
	res.Geometry = geojson.NewGeometry(mls)
	return res
}
