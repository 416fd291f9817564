package domain

import (
	"fmt"

	"github.com/paulmach/orb"
)

// Immutable geographic coordinates (longitude, latitude).
type Coordinates struct {
	Lon float64
	Lat float64
}

func CoordinatesFromPoint(p orb.Point) Coordinates {
	return Coordinates{Lon: p.Lon(), Lat: p.Lat()}
}

// Return coordinates as [lon, lat] for external API compatibility.
func (c Coordinates) CoordsToList() []float64 { return []float64{c.Lon, c.Lat} }

func (c Coordinates) Point() orb.Point { return orb.Point{c.Lon, c.Lat} }

// Validate rejects coordinates outside the WGS84 range.
func (c Coordinates) Validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %v out of range", c.Lon)
	}
	return nil
}
