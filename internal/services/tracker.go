package services

import (
	"cycle-nav-service/internal/domain"
	"cycle-nav-service/internal/geometry"
)

const (
	// SnapThreshold is the largest distance, in meters, between a fix and
	// its projection on the route at which the fix is still snapped.
	SnapThreshold = 15.0

	// HighlightRadius is the half-length, in meters, of the route stretch
	// highlighted around the upcoming maneuver.
	HighlightRadius = 15.0
)

// UpdateProgress reconciles a fix against route. It is a pure function of
// its inputs; route must come from domain.NewRoute.
//
// Traveled distance is derived from what remains ahead of the projected
// point, so it is not monotonic: a GPS jump backwards along the route shows
// up as a decrease.
func UpdateProgress(route *domain.Route, pos domain.Position) domain.ProgressState {
	raw := pos.Point()

	// NewRoute guarantees at least two vertices.
	proj, _ := geometry.Project(raw, route.Geometry)

	remaining := geometry.Length(proj.Remaining)
	traveled := route.Length() - remaining
	if traveled < 0 {
		traveled = 0
	}

	state := domain.ProgressState{
		Traveled:      traveled,
		Remaining:     remaining,
		Raw:           raw,
		RemainingPath: proj.Remaining,
		Speed:         pos.Speed,
		Heading:       pos.Heading,
		At:            pos.Timestamp,
	}

	if proj.Offset < SnapThreshold {
		snapped := proj.Point
		state.Snapped = &snapped
		state.Position = snapped
	} else {
		state.Position = raw
		state.Deviation = &domain.Segment{raw, proj.Point}
	}

	state.ActiveStep = ActiveStepAt(route.Steps, traveled)
	if state.ActiveStep != nil {
		at := traveled + state.ActiveStep.DistanceToManeuver
		state.Highlight = geometry.SliceByDistance(route.Geometry, at-HighlightRadius, at+HighlightRadius)
	}

	return state
}

// ActiveStepAt walks steps with a budget of traveled meters, checking the
// budget before subtracting each step. The first step found with an already
// negative budget is the one after the maneuver being approached; since a
// maneuver sits at the end of its step, the active step is its predecessor
// and the negative budget is the distance left to its maneuver.
//
// A traveler exactly on a maneuver point has passed it. Returns nil once the
// whole route has been traveled.
func ActiveStepAt(steps []domain.Step, traveled float64) *domain.ActiveStep {
	budget := max(traveled, 0)
	for i := range steps {
		if budget < 0 {
			return newActiveStep(steps, i-1, -budget)
		}
		budget -= steps[i].Distance
	}
	if budget < 0 {
		return newActiveStep(steps, len(steps)-1, -budget)
	}
	return nil
}

func newActiveStep(steps []domain.Step, idx int, toManeuver float64) *domain.ActiveStep {
	step := steps[idx]

	toManeuverDur := step.Duration
	if step.Distance > 0 {
		toManeuverDur = step.Duration * toManeuver / step.Distance
	}

	remaining := toManeuverDur
	for _, s := range steps[idx+1:] {
		remaining += s.Duration
	}

	return &domain.ActiveStep{
		Index:              idx,
		Step:               step,
		DistanceToManeuver: toManeuver,
		DurationToManeuver: toManeuverDur,
		RemainingDuration:  remaining,
	}
}
