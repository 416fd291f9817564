package domain

import "errors"

var (
	// The route provider failed or timed out. Tracking does not start.
	ErrRouteUnavailable = errors.New("route unavailable")

	// Geometry empty or steps inconsistent with the route. The caller has to
	// request a new route.
	ErrMalformedRoute = errors.New("malformed route")

	// No permission or no signal from the position source. Progress stays
	// frozen at the last computed state.
	ErrPositionUnavailable = errors.New("position unavailable")

	// Remote distribution or raw map fetch failed. Segments are omitted for
	// that route; navigation is unaffected.
	ErrTagResolution = errors.New("tag resolution failed")

	ErrInvalidPosition  = errors.New("invalid position")
	ErrSessionNotFound  = errors.New("session not found")
	ErrNoRoute          = errors.New("session has no route")
	ErrNavigationActive = errors.New("navigation already active")

	ErrUnsupportedPositionSource = errors.New("unsupported position source")
)
