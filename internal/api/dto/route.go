package dto

import (
	"cycle-nav-service/internal/domain"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/osm"
	"github.com/twpayne/go-polyline"
)

type CoordinatesRequest struct {
	Lat *float64 `json:"lat" binding:"required,gte=-90,lte=90"`
	Lon *float64 `json:"lon" binding:"required,gte=-180,lte=180"`
}

func (c CoordinatesRequest) Coordinates() domain.Coordinates {
	return domain.Coordinates{Lon: *c.Lon, Lat: *c.Lat}
}

type EndpointsRequest struct {
	Start CoordinatesRequest `json:"start" binding:"required"`
	End   CoordinatesRequest `json:"end" binding:"required"`
}

type RouteQuery struct {
	StartLat  *float64 `form:"start_lat" binding:"required,gte=-90,lte=90"`
	StartLon  *float64 `form:"start_lon" binding:"required,gte=-180,lte=180"`
	TargetLat *float64 `form:"target_lat" binding:"required,gte=-90,lte=90"`
	TargetLon *float64 `form:"target_lon" binding:"required,gte=-180,lte=180"`
}

func (q RouteQuery) Endpoints() (domain.Coordinates, domain.Coordinates) {
	return domain.Coordinates{Lon: *q.StartLon, Lat: *q.StartLat},
		domain.Coordinates{Lon: *q.TargetLon, Lat: *q.TargetLat}
}

type ManeuverResponse struct {
	Type     domain.ManeuverType     `json:"type"`
	Modifier domain.ManeuverModifier `json:"modifier"`
}

type StepResponse struct {
	Distance    float64          `json:"distance"`
	Duration    float64          `json:"duration"`
	Name        string           `json:"name,omitempty"`
	Maneuver    ManeuverResponse `json:"maneuver"`
	Instruction string           `json:"instruction"`
}

type RouteResponse struct {
	Distance      float64           `json:"distance"`
	DistanceLabel string            `json:"distance_label"`
	Duration      float64           `json:"duration"`
	Geometry      *geojson.Geometry `json:"geometry"`
	Polyline      string            `json:"polyline"`
	Steps         []StepResponse    `json:"steps"`
	NodeIDs       []osm.NodeID      `json:"node_ids"`
}

func NewStepResponse(s domain.Step) StepResponse {
	return StepResponse{
		Distance:    s.Distance,
		Duration:    s.Duration,
		Name:        s.Name,
		Maneuver:    ManeuverResponse{Type: s.Maneuver.Type, Modifier: s.Maneuver.Modifier},
		Instruction: s.Instruction(),
	}
}

func NewRouteResponse(r *domain.Route) RouteResponse {
	steps := make([]StepResponse, 0, len(r.Steps))
	for _, s := range r.Steps {
		steps = append(steps, NewStepResponse(s))
	}

	return RouteResponse{
		Distance:      r.Length(),
		DistanceLabel: domain.FormatDistance(r.Length()),
		Duration:      r.Duration,
		Geometry:      lineGeometry(r.Geometry),
		Polyline:      EncodePolyline(r.Geometry),
		Steps:         steps,
		NodeIDs:       r.NodeIDs,
	}
}

// EncodePolyline encodes a line in the Google polyline format (precision 5).
func EncodePolyline(ls orb.LineString) string {
	coords := make([][]float64, len(ls))
	for i, p := range ls {
		coords[i] = []float64{p.Lat(), p.Lon()}
	}
	return string(polyline.EncodeCoords(coords))
}

func lineGeometry(ls orb.LineString) *geojson.Geometry {
	if len(ls) == 0 {
		return nil
	}
	return geojson.NewGeometry(ls)
}
