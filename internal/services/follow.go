package services

import (
	"context"
	"cycle-nav-service/internal/domain"
	"math"
	"sync"
	"time"

	"github.com/paulmach/orb"
)

const (
	MaxFollowZoom = 20.0
	// zoom drops by one level per 2 m/s, by at most this much
	MaxFollowZoomOut = 5.0
	// fraction of the remaining heading difference applied per tick
	BearingEasing = 0.3
)

// CameraView is where a map following the traveler should look.
type CameraView struct {
	Center  orb.Point
	Zoom    float64
	Bearing float64
}

// NextCameraView derives the camera view for state from the previous one.
func NextCameraView(prev *CameraView, state domain.ProgressState) CameraView {
	speed := 0.0
	if state.Speed != nil {
		speed = *state.Speed
	}

	view := CameraView{
		Center: state.Position,
		Zoom:   MaxFollowZoom - math.Min(MaxFollowZoomOut, speed/2),
	}

	switch {
	case prev == nil && state.Heading != nil:
		view.Bearing = normalizeBearing(*state.Heading)
	case prev == nil:
	case state.Heading != nil:
		diff := normalizeBearing(*state.Heading-prev.Bearing+180) - 180
		view.Bearing = normalizeBearing(prev.Bearing + BearingEasing*diff)
	default:
		view.Bearing = prev.Bearing
	}

	return view
}

func normalizeBearing(b float64) float64 {
	b = math.Mod(b, 360)
	if b < 0 {
		b += 360
	}
	return b
}

// FollowController moves a camera along with the traveler on a fixed tick
// while navigation is active. It owns its ticker; Stop releases it.
type FollowController struct {
	interval time.Duration
	onView   func(CameraView)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	view   *CameraView
}

// NewFollowController returns a stopped controller. onView may be nil.
func NewFollowController(interval time.Duration, onView func(CameraView)) *FollowController {
	return &FollowController{interval: interval, onView: onView}
}

// Start begins following. source reports the latest progress, if any.
// Starting a running controller is a no-op.
func (f *FollowController) Start(source func() (domain.ProgressState, bool)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	f.cancel = cancel
	f.done = done
	f.view = nil

	go f.loop(ctx, source, done)
}

// Stop halts the ticker and waits for the loop to exit. Stopping a stopped
// controller is a no-op.
func (f *FollowController) Stop() {
	f.mu.Lock()
	cancel, done := f.cancel, f.done
	f.cancel, f.done = nil, nil
	f.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (f *FollowController) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancel != nil
}

// View returns the last computed camera view.
func (f *FollowController) View() (CameraView, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.view == nil {
		return CameraView{}, false
	}
	return *f.view, true
}

func (f *FollowController) loop(ctx context.Context, source func() (domain.ProgressState, bool), done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state, ok := source()
			if !ok {
				continue
			}

			f.mu.Lock()
			view := NextCameraView(f.view, state)
			f.view = &view
			f.mu.Unlock()

			if f.onView != nil {
				f.onView(view)
			}
		}
	}
}
