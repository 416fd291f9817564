package domain

import (
	"time"

	"github.com/paulmach/orb"
)

// Segment is an ordered pair of points.
type Segment [2]orb.Point

// ActiveStep is the step whose maneuver the traveler is approaching.
type ActiveStep struct {
	Index              int
	Step               Step
	DistanceToManeuver float64 // meters
	DurationToManeuver float64 // seconds
	RemainingDuration  float64 // seconds until arrival
}

// ProgressState is recomputed wholesale for every fix and never mutated
// afterwards.
type ProgressState struct {
	Traveled  float64
	Remaining float64

	// Position is the effective position: the snapped point when on route,
	// the raw fix otherwise.
	Position orb.Point
	Raw      orb.Point
	Snapped  *orb.Point

	// Deviation runs from the raw fix to its projection on the route. It is
	// nil while the traveler is on route.
	Deviation *Segment

	ActiveStep *ActiveStep

	// Highlight is a short stretch of route centered on the upcoming
	// maneuver. Empty when the window falls outside the route.
	Highlight orb.LineString

	// RemainingPath runs from the projected point to the end of the route.
	RemainingPath orb.LineString

	Speed   *float64
	Heading *float64
	At      time.Time
}

func (s ProgressState) Deviated() bool { return s.Deviation != nil }
