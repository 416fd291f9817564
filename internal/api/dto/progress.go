package dto

import (
	"cycle-nav-service/internal/domain"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

type PositionRequest struct {
	Lat       *float64   `json:"lat" binding:"required"`
	Lon       *float64   `json:"lon" binding:"required"`
	Speed     *float64   `json:"speed"`
	Heading   *float64   `json:"heading"`
	Timestamp *time.Time `json:"timestamp"`
}

// Position leaves range checks to domain.Position.Validate.
func (p PositionRequest) Position() domain.Position {
	pos := domain.Position{Lat: *p.Lat, Lon: *p.Lon, Speed: p.Speed, Heading: p.Heading}
	if p.Timestamp != nil {
		pos.Timestamp = *p.Timestamp
	}
	return pos
}

type ActiveStepResponse struct {
	Index                 int          `json:"index"`
	Step                  StepResponse `json:"step"`
	DistanceToManeuver    float64      `json:"distance_to_maneuver"`
	DistanceToManeuverStr string       `json:"distance_to_maneuver_label"`
	DurationToManeuver    float64      `json:"duration_to_maneuver"`
	RemainingDuration     float64      `json:"remaining_duration"`
}

type ProgressResponse struct {
	Traveled       float64             `json:"traveled"`
	TraveledLabel  string              `json:"traveled_label"`
	Remaining      float64             `json:"remaining"`
	RemainingLabel string              `json:"remaining_label"`
	Position       orb.Point           `json:"position"`
	Raw            orb.Point           `json:"raw"`
	Snapped        *orb.Point          `json:"snapped"`
	Deviated       bool                `json:"deviated"`
	Deviation      *geojson.Geometry   `json:"deviation,omitempty"`
	ActiveStep     *ActiveStepResponse `json:"active_step"`
	Highlight      *geojson.Geometry   `json:"highlight,omitempty"`
	RemainingPath  string              `json:"remaining_path"`
	Speed          *float64            `json:"speed"`
	Heading        *float64            `json:"heading"`
	At             time.Time           `json:"at"`
}

func NewProgressResponse(s domain.ProgressState) ProgressResponse {
	res := ProgressResponse{
		Traveled:       s.Traveled,
		TraveledLabel:  domain.FormatDistance(s.Traveled),
		Remaining:      s.Remaining,
		RemainingLabel: domain.FormatDistance(s.Remaining),
		Position:       s.Position,
		Raw:            s.Raw,
		Snapped:        s.Snapped,
		Deviated:       s.Deviated(),
		Highlight:      lineGeometry(s.Highlight),
		RemainingPath:  EncodePolyline(s.RemainingPath),
		Speed:          s.Speed,
		Heading:        s.Heading,
		At:             s.At,
	}

	if s.Deviation != nil {
		res.Deviation = lineGeometry(orb.LineString{s.Deviation[0], s.Deviation[1]})
	}
	if a := s.ActiveStep; a != nil {
		res.ActiveStep = &ActiveStepResponse{
			Index:                 a.Index,
			Step:                  NewStepResponse(a.Step),
			DistanceToManeuver:    a.DistanceToManeuver,
			DistanceToManeuverStr: domain.FormatDistance(a.DistanceToManeuver),
			DurationToManeuver:    a.DurationToManeuver,
			RemainingDuration:     a.RemainingDuration,
		}
	}

	return res
}

type CameraResponse struct {
	Center  orb.Point `json:"center"`
	Zoom    float64   `json:"zoom"`
	Bearing float64   `json:"bearing"`
}
