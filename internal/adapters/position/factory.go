package position

import (
	"cycle-nav-service/internal/domain"
	"cycle-nav-service/internal/ports"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	KindReplay = "replay"
	KindKafka  = "kafka"
)

// Factory builds the position source for a navigation session.
type Factory struct {
	DefaultKind string
	Kafka       KafkaConfig
	// ReplayInterval is read on every call so reloaded settings apply.
	ReplayInterval func() time.Duration
	ReplaySpacing  float64
	Log            *zap.Logger
}

// New returns a source of the given kind, or of the default kind when kind
// is empty. Replays follow route; Kafka sources follow deviceID.
func (f *Factory) New(kind string, route *domain.Route, deviceID string) (ports.PositionSource, error) {
	if kind == "" {
		kind = f.DefaultKind
	}

	switch kind {
	case KindReplay:
		if route == nil {
			return nil, domain.ErrNoRoute
		}
		return NewReplaySource(route.Geometry, f.ReplayInterval(), f.ReplaySpacing, f.Log), nil
	case KindKafka:
		src, err := NewKafkaSource(f.Kafka, deviceID, f.Log)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrPositionUnavailable, err)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedPositionSource, kind)
	}
}
