// Package position provides device fix streams for navigation sessions.
package position

import (
	"context"
	"cycle-nav-service/internal/domain"
	"cycle-nav-service/internal/geometry"
	"errors"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"go.uber.org/zap"
)

// ReplaySource simulates a rider travelling along a line, emitting one fix
// per interval. With a positive spacing the line is sampled every spacing
// meters, otherwise its vertices are replayed. After the last fix the
// stream stays open until the subscriber cancels.
type ReplaySource struct {
	path     orb.LineString
	interval time.Duration
	spacing  float64
	log      *zap.Logger
}

func NewReplaySource(path orb.LineString, interval time.Duration, spacing float64, log *zap.Logger) *ReplaySource {
	return &ReplaySource{path: path, interval: interval, spacing: spacing, log: log}
}

func (r *ReplaySource) Subscribe(ctx context.Context) (<-chan domain.Position, error) {
	if len(r.path) == 0 {
		return nil, errors.New("replay source: empty path")
	}
	if r.interval <= 0 {
		return nil, errors.New("replay source: interval must be positive")
	}

	fixes := ReplayFixes(r.path, r.interval, r.spacing)
	out := make(chan domain.Position)

	go func() {
		defer close(out)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for i, fix := range fixes {
			fix.Timestamp = time.Now()
			select {
			case <-ctx.Done():
				return
			case out <- fix:
			}
			r.log.Debug("replayed fix", zap.Int("index", i), zap.Float64("lat", fix.Lat), zap.Float64("lon", fix.Lon))

			if i == len(fixes)-1 {
				break
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}

		<-ctx.Done()
	}()

	return out, nil
}

// ReplayFixes samples path into fixes with speed and heading derived from
// neighbouring samples. Timestamps are left zero.
func ReplayFixes(path orb.LineString, interval time.Duration, spacing float64) []domain.Position {
	points := samplePath(path, spacing)
	fixes := make([]domain.Position, len(points))

	heading := 0.0
	for i, p := range points {
		speed := 0.0
		if i > 0 {
			speed = geometry.Distance(points[i-1], p) / interval.Seconds()
		}
		if i+1 < len(points) && points[i+1] != p {
			heading = normalize(geo.Bearing(p, points[i+1]))
		}

		s, h := speed, heading
		fixes[i] = domain.Position{Lat: p.Lat(), Lon: p.Lon(), Speed: &s, Heading: &h}
	}
	return fixes
}

func samplePath(path orb.LineString, spacing float64) orb.LineString {
	if spacing <= 0 || len(path) < 2 {
		return path
	}

	length := geometry.Length(path)
	out := make(orb.LineString, 0, int(length/spacing)+2)
	for along := 0.0; along < length; along += spacing {
		out = append(out, geometry.PointAt(path, along))
	}
	return append(out, path[len(path)-1])
}

func normalize(b float64) float64 {
	for b < 0 {
		b += 360
	}
	for b >= 360 {
		b -= 360
	}
	return b
}
