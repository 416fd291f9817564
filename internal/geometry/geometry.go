// Package geometry holds the line primitives the tracker and the segment
// overlays are built on. All distances are great-circle meters; points are
// orb (lon, lat) pairs.
package geometry

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

var ErrEmptyLine = errors.New("geometry: line has no vertices")

// Projection is the closest point on a line to some query point.
type Projection struct {
	// Point is the closest point on the line.
	Point orb.Point
	// Remaining runs from Point through to the line's terminal vertex.
	Remaining orb.LineString
	// Segment is the index of the line segment Point lies on.
	Segment int
	// Offset is the distance from the query point to Point.
	Offset float64
}

// Length returns the cumulative great-circle length of line.
func Length(line orb.LineString) float64 {
	total := 0.0
	for i := 1; i < len(line); i++ {
		total += geo.DistanceHaversine(line[i-1], line[i])
	}
	return total
}

// Distance between two points in meters.
func Distance(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b)
}

// Project finds the point of line closest to p and returns it together with
// the sub-line from that point to the end of line.
//
// Each segment is projected in a local equirectangular frame centered on p,
// which is accurate for the segment lengths found in routing geometries. On
// ties the earliest segment wins.
func Project(p orb.Point, line orb.LineString) (Projection, error) {
	if len(line) == 0 {
		return Projection{}, ErrEmptyLine
	}
	if len(line) == 1 {
		return Projection{
			Point:     line[0],
			Remaining: orb.LineString{line[0]},
			Offset:    Distance(p, line[0]),
		}, nil
	}

	kx := math.Cos(p.Lat() * math.Pi / 180)

	best := Projection{Offset: math.Inf(1)}
	bestT := 0.0
	for i := 0; i < len(line)-1; i++ {
		a, b := line[i], line[i+1]

		ax, ay := (a.Lon()-p.Lon())*kx, a.Lat()-p.Lat()
		dx, dy := (b.Lon()-a.Lon())*kx, b.Lat()-a.Lat()

		t := 0.0
		if d2 := dx*dx + dy*dy; d2 > 0 {
			t = clamp(-(ax*dx+ay*dy)/d2, 0, 1)
		}

		c := interpolate(a, b, t)
		if d := Distance(p, c); d < best.Offset {
			best = Projection{Point: c, Segment: i, Offset: d}
			bestT = t
		}
	}

	rest := line[best.Segment+1:]
	if bestT == 1 {
		rest = rest[1:]
	}
	remaining := make(orb.LineString, 0, len(rest)+1)
	remaining = append(remaining, best.Point)
	remaining = append(remaining, rest...)
	best.Remaining = remaining

	return best, nil
}

// PointAt returns the point at the given arc length along line, clamped to the
// line's ends.
func PointAt(line orb.LineString, along float64) orb.Point {
	if len(line) == 0 {
		return orb.Point{}
	}
	if along <= 0 {
		return line[0]
	}

	cum := 0.0
	for i := 1; i < len(line); i++ {
		seg := Distance(line[i-1], line[i])
		if seg > 0 && cum+seg >= along {
			return interpolate(line[i-1], line[i], (along-cum)/seg)
		}
		cum += seg
	}
	return line[len(line)-1]
}

// SliceByDistance extracts the part of line whose arc length lies in
// [from, to]. The range is clamped to the line. A range that lies entirely
// outside the line, or that is empty after clamping, yields nil.
func SliceByDistance(line orb.LineString, from, to float64) orb.LineString {
	if len(line) < 2 {
		return nil
	}

	total := Length(line)
	if from > total || to < 0 {
		return nil
	}
	from = math.Max(from, 0)
	to = math.Min(to, total)
	if to <= from {
		return nil
	}

	out := orb.LineString{PointAt(line, from)}
	cum := 0.0
	for i := 1; i < len(line); i++ {
		cum += Distance(line[i-1], line[i])
		if cum >= to {
			break
		}
		if cum > from {
			out = append(out, line[i])
		}
	}
	out = append(out, PointAt(line, to))

	return out
}

func interpolate(a, b orb.Point, t float64) orb.Point {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	return orb.Point{
		a.Lon() + (b.Lon()-a.Lon())*t,
		a.Lat() + (b.Lat()-a.Lat())*t,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
