package domain

import (
	"cycle-nav-service/internal/geometry"
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

type ManeuverType string

const (
	ManeuverTurn      ManeuverType = "turn"
	ManeuverArrive    ManeuverType = "arrive"
	ManeuverEndOfRoad ManeuverType = "end-of-road"
	ManeuverContinue  ManeuverType = "continue"
)

type ManeuverModifier string

const (
	ModifierLeft        ManeuverModifier = "left"
	ModifierSlightLeft  ManeuverModifier = "slight-left"
	ModifierStraight    ManeuverModifier = "straight"
	ModifierSlightRight ManeuverModifier = "slight-right"
	ModifierRight       ManeuverModifier = "right"
	ModifierNone        ManeuverModifier = "none"
)

type Maneuver struct {
	Type     ManeuverType
	Modifier ManeuverModifier
}

// Step is one instruction segment of a route. Its maneuver is performed at
// the END of the step, so the final step of a route is always an arrival.
type Step struct {
	Distance float64 // meters
	Duration float64 // seconds
	Maneuver Maneuver
	Name     string // street name the step runs along, if known
}

// Instruction renders a short human readable description of the maneuver
// that ends this step.
func (s Step) Instruction() string {
	switch s.Maneuver.Type {
	case ManeuverArrive:
		return "Arrive at destination"
	case ManeuverContinue:
		return "Continue"
	}

	verb := "Turn"
	if s.Maneuver.Type == ManeuverEndOfRoad {
		verb = "At the end of the road turn"
	}

	switch s.Maneuver.Modifier {
	case ModifierNone, "":
		return verb
	case ModifierStraight:
		return "Go straight"
	default:
		return verb + " " + strings.ReplaceAll(string(s.Maneuver.Modifier), "-", " ")
	}
}

const (
	// Absolute and relative slack allowed between the sum of step distances
	// and the geometric length of the route. Routing engines round step
	// distances and measure on their own ellipsoid.
	StepLengthTolerance         = 1.0
	StepLengthRelativeTolerance = 0.01
)

// Route is a precomputed path from start to end. It is immutable once built
// by NewRoute and may be shared freely between goroutines.
type Route struct {
	Geometry      orb.LineString
	Steps         []Step
	NodeIDs       []osm.NodeID
	EdgeDistances []float64
	Duration      float64 // seconds, as stated by the provider

	length float64
}

// NewRoute validates its inputs and returns an immutable Route. Every
// violation is reported as ErrMalformedRoute.
func NewRoute(
	geom orb.LineString,
	steps []Step,
	nodeIDs []osm.NodeID,
	edgeDistances []float64,
	duration float64,
) (*Route, error) {
	if len(geom) < 2 {
		return nil, fmt.Errorf("%w: geometry needs at least 2 points, got %d", ErrMalformedRoute, len(geom))
	}
	for i, p := range geom {
		if err := CoordinatesFromPoint(p).Validate(); err != nil {
			return nil, fmt.Errorf("%w: geometry point %d: %v", ErrMalformedRoute, i, err)
		}
	}

	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: route has no steps", ErrMalformedRoute)
	}
	if last := steps[len(steps)-1].Maneuver.Type; last != ManeuverArrive {
		return nil, fmt.Errorf("%w: final step is %q, want %q", ErrMalformedRoute, last, ManeuverArrive)
	}

	stepSum := 0.0
	for i, s := range steps {
		if s.Distance < 0 || s.Duration < 0 || math.IsNaN(s.Distance) || math.IsNaN(s.Duration) {
			return nil, fmt.Errorf("%w: step %d has negative distance or duration", ErrMalformedRoute, i)
		}
		stepSum += s.Distance
	}

	length := geometry.Length(geom)
	if diff := math.Abs(stepSum - length); diff > StepLengthTolerance+StepLengthRelativeTolerance*length {
		return nil, fmt.Errorf(
			"%w: step distances sum to %.1fm but geometry is %.1fm long",
			ErrMalformedRoute, stepSum, length,
		)
	}

	if len(nodeIDs) > 0 || len(edgeDistances) > 0 {
		if len(nodeIDs)-1 != len(edgeDistances) {
			return nil, fmt.Errorf(
				"%w: %d node ids need %d edge distances, got %d",
				ErrMalformedRoute, len(nodeIDs), len(nodeIDs)-1, len(edgeDistances),
			)
		}
		for i, d := range edgeDistances {
			if d < 0 || math.IsNaN(d) {
				return nil, fmt.Errorf("%w: edge %d has distance %v", ErrMalformedRoute, i, d)
			}
		}
	}

	return &Route{
		Geometry:      clonePoints(geom),
		Steps:         append([]Step(nil), steps...),
		NodeIDs:       append([]osm.NodeID(nil), nodeIDs...),
		EdgeDistances: append([]float64(nil), edgeDistances...),
		Duration:      duration,
		length:        length,
	}, nil
}

// Length is the great-circle length of the route geometry in meters.
func (r *Route) Length() float64 { return r.length }

func (r *Route) Start() orb.Point { return r.Geometry[0] }

func (r *Route) End() orb.Point { return r.Geometry[len(r.Geometry)-1] }

// EdgeDistance returns the sum of all annotated edge distances.
func (r *Route) EdgeDistance() float64 {
	total := 0.0
	for _, d := range r.EdgeDistances {
		total += d
	}
	return total
}

func clonePoints(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	copy(out, ls)
	return out
}
