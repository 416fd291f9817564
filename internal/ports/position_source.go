package ports

import (
	"context"
	"cycle-nav-service/internal/domain"
)

// Contract for a stream of device fixes.
type PositionSource interface {
	// Subscribe delivers fixes until ctx is cancelled. Cancelling ctx is the
	// only way to unsubscribe; the channel is closed afterwards. A channel
	// closed while ctx is still live means the source lost its signal.
	Subscribe(ctx context.Context) (<-chan domain.Position, error)
}

// Port: builds the position source a navigation session subscribes to.
type PositionSourceFactory interface {
	// kind selects the source ("" for the configured default). Unknown kinds
	// wrap domain.ErrUnsupportedPositionSource.
	New(kind string, route *domain.Route, deviceID string) (PositionSource, error)
}
