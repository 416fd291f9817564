package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
)

// Position is a single device fix. It is superseded by the next fix.
type Position struct {
	Lat       float64
	Lon       float64
	Speed     *float64 // m/s
	Heading   *float64 // degrees clockwise from north
	Timestamp time.Time
}

func (p Position) Point() orb.Point { return orb.Point{p.Lon, p.Lat} }

func (p Position) Validate() error {
	if err := (Coordinates{Lon: p.Lon, Lat: p.Lat}).Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	if p.Speed != nil && (*p.Speed < 0 || math.IsNaN(*p.Speed)) {
		return fmt.Errorf("%w: speed %v", ErrInvalidPosition, *p.Speed)
	}
	if p.Heading != nil && math.IsNaN(*p.Heading) {
		return fmt.Errorf("%w: heading is NaN", ErrInvalidPosition)
	}
	return nil
}
