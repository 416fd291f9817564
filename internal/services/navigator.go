package services

import (
	"context"
	"cycle-nav-service/internal/domain"
	"cycle-nav-service/internal/ports"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type NavigatorConfig struct {
	// Endpoint edits within this window collapse into one route request.
	RerouteWindow time.Duration
	// Route changes within this window collapse into one tag resolution.
	SegmentWindow  time.Duration
	FollowInterval time.Duration
	RequestTimeout time.Duration
}

func DefaultNavigatorConfig() NavigatorConfig {
	return NavigatorConfig{
		RerouteWindow:  500 * time.Millisecond,
		SegmentWindow:  time.Second,
		FollowInterval: time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

type endpoints struct {
	start, end domain.Coordinates
	ticket     uint64
}

type segmentJob struct {
	route      *domain.Route
	generation uint64
}

type segmentSnapshot struct {
	generation uint64
	segments   domain.RouteSegments
	err        error
}

// NavigatorStatus is a point-in-time summary of a session.
type NavigatorStatus struct {
	Navigating  bool
	Generation  uint64
	PositionErr error
	RerouteErr  error
}

// Navigator is one navigation session. It owns the current route, the latest
// progress state and the asynchronous work feeding them:
//
//   - endpoint edits are coalesced into route requests;
//   - every applied route starts a new generation, and tag segments resolved
//     for an older generation are discarded;
//   - fixes are applied in arrival order and a result is dropped if a newer
//     fix has already been applied.
//
// Route, progress and segment values are immutable snapshots replaced
// atomically.
type Navigator struct {
	id     string
	routes ports.RouteProvider
	tags   ports.TagSource
	cfg    NavigatorConfig
	log    *zap.Logger

	route    atomic.Pointer[domain.Route]
	progress atomic.Pointer[domain.ProgressState]
	segments atomic.Pointer[segmentSnapshot]
	gen      Generation

	// route requests are applied only if no later request was issued
	tickets atomic.Uint64
	// applyMu orders route applications; routeTicket is the request that
	// produced the stored route
	applyMu     sync.Mutex
	routeTicket uint64

	fixMu      sync.Mutex
	fixSeq     atomic.Uint64
	appliedSeq uint64
	lastFix    *domain.Position

	reroute   *Coalescer[endpoints]
	resegment *Coalescer[segmentJob]
	follow    *FollowController

	navMu       sync.Mutex
	navCancel   context.CancelFunc
	navDone     chan struct{}
	positionErr atomic.Pointer[error]
	rerouteErr  atomic.Pointer[error]
}

func NewNavigator(
	id string,
	routes ports.RouteProvider,
	tags ports.TagSource,
	cfg NavigatorConfig,
	log *zap.Logger,
) *Navigator {
	n := &Navigator{
		id:     id,
		routes: routes,
		tags:   tags,
		cfg:    cfg,
		log:    log.With(zap.String("session_id", id)),
	}
	n.reroute = NewCoalescer(cfg.RerouteWindow, n.fetchRoute)
	n.resegment = NewCoalescer(cfg.SegmentWindow, n.resolveSegments)
	n.follow = NewFollowController(cfg.FollowInterval, nil)
	return n
}

func (n *Navigator) ID() string { return n.id }

// Plan fetches the initial route synchronously. Failures are returned to the
// caller and not retried.
func (n *Navigator) Plan(ctx context.Context, start, end domain.Coordinates) error {
	ticket := n.tickets.Add(1)

	route, err := n.routes.GetRoute(ctx, start, end)
	if err != nil {
		return fmt.Errorf("plan route: %w", err)
	}

	n.applyRoute(route, ticket)
	return nil
}

// Reroute requests a new route for the given endpoints. Requests within the
// reroute window are coalesced; only the last one is fetched.
func (n *Navigator) Reroute(start, end domain.Coordinates) {
	n.reroute.Trigger(endpoints{start: start, end: end, ticket: n.tickets.Add(1)})
}

// FlushReroute fetches a pending reroute immediately.
func (n *Navigator) FlushReroute() { n.reroute.Flush() }

func (n *Navigator) fetchRoute(e endpoints) {
	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.RequestTimeout)
	defer cancel()

	route, err := n.routes.GetRoute(ctx, e.start, e.end)
	if err != nil {
		n.log.Warn("reroute failed", zap.Error(err))
		n.rerouteErr.Store(&err)
		return
	}
	n.rerouteErr.Store(nil)
	n.applyRoute(route, e.ticket)
}

func (n *Navigator) applyRoute(route *domain.Route, ticket uint64) {
	n.applyMu.Lock()
	defer n.applyMu.Unlock()

	if n.tickets.Load() != ticket {
		n.log.Debug("discarding superseded route", zap.Uint64("ticket", ticket))
		return
	}

	g := n.gen.Next()
	n.route.Store(route)
	n.routeTicket = ticket

	n.fixMu.Lock()
	if n.lastFix != nil {
		state := UpdateProgress(route, *n.lastFix)
		n.progress.Store(&state)
	} else {
		n.progress.Store(nil)
	}
	n.fixMu.Unlock()

	n.log.Info("route applied",
		zap.Uint64("generation", g),
		zap.Float64("length_m", route.Length()),
		zap.Int("steps", len(route.Steps)),
	)

	if n.tags != nil {
		n.resegment.Trigger(segmentJob{route: route, generation: g})
	}
}

// FlushSegments resolves pending segments immediately.
func (n *Navigator) FlushSegments() { n.resegment.Flush() }

func (n *Navigator) resolveSegments(job segmentJob) {
	if !n.gen.IsCurrent(job.generation) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.RequestTimeout)
	defer cancel()

	segs, err := n.tags.Segments(ctx, job.route)
	if !n.gen.IsCurrent(job.generation) {
		n.log.Debug("discarding segments of superseded route",
			zap.Uint64("generation", job.generation),
		)
		return
	}
	if err != nil {
		n.log.Warn("tag resolution failed, segments omitted", zap.Error(err))
	}
	n.segments.Store(&segmentSnapshot{generation: job.generation, segments: segs, err: err})
}

// Route returns the current route, or nil before one has been applied.
func (n *Navigator) Route() *domain.Route { return n.route.Load() }

// Progress returns the latest progress state.
func (n *Navigator) Progress() (domain.ProgressState, bool) {
	p := n.progress.Load()
	if p == nil {
		return domain.ProgressState{}, false
	}
	return *p, true
}

// Segments returns the segments resolved for the current route. The error is
// the tag resolution failure, if resolution failed.
func (n *Navigator) Segments() (domain.RouteSegments, bool, error) {
	s := n.segments.Load()
	if s == nil || s.generation != n.gen.Current() {
		return nil, false, nil
	}
	if s.err != nil {
		return nil, false, s.err
	}
	return s.segments, true, nil
}

// ApplyFix reconciles a fix with the current route and publishes the
// resulting progress. A fix that arrives after a newer one has already been
// applied is dropped and the newer state is returned.
func (n *Navigator) ApplyFix(pos domain.Position) (domain.ProgressState, error) {
	if err := pos.Validate(); err != nil {
		return domain.ProgressState{}, err
	}
	if pos.Timestamp.IsZero() {
		pos.Timestamp = time.Now()
	}

	seq := n.fixSeq.Add(1)

	n.fixMu.Lock()
	defer n.fixMu.Unlock()

	if seq < n.appliedSeq {
		n.log.Debug("dropping stale fix", zap.Uint64("seq", seq))
		if p := n.progress.Load(); p != nil {
			return *p, nil
		}
		return domain.ProgressState{}, domain.ErrNoRoute
	}

	route := n.route.Load()
	if route == nil {
		return domain.ProgressState{}, domain.ErrNoRoute
	}

	state := UpdateProgress(route, pos)
	n.appliedSeq = seq
	n.lastFix = &pos
	n.progress.Store(&state)
	n.positionErr.Store(nil)

	return state, nil
}

// StartNavigation subscribes to src and starts following the traveler.
func (n *Navigator) StartNavigation(src ports.PositionSource) error {
	n.navMu.Lock()
	defer n.navMu.Unlock()

	if n.navCancel != nil {
		return domain.ErrNavigationActive
	}
	if n.route.Load() == nil {
		return domain.ErrNoRoute
	}

	ctx, cancel := context.WithCancel(context.Background())
	fixes, err := src.Subscribe(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("start navigation: %w: %w", domain.ErrPositionUnavailable, err)
	}

	done := make(chan struct{})
	n.navCancel = cancel
	n.navDone = done
	n.positionErr.Store(nil)

	go n.consume(ctx, fixes, done)
	n.follow.Start(n.Progress)

	n.log.Info("navigation started")
	return nil
}

// StopNavigation unsubscribes from the position source and stops the follow
// controller. Stopping an idle session is a no-op.
func (n *Navigator) StopNavigation() {
	n.navMu.Lock()
	cancel, done := n.navCancel, n.navDone
	n.navCancel, n.navDone = nil, nil
	n.navMu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
	n.follow.Stop()

	n.log.Info("navigation stopped")
}

func (n *Navigator) consume(ctx context.Context, fixes <-chan domain.Position, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case pos, ok := <-fixes:
			if !ok {
				if ctx.Err() == nil {
					err := fmt.Errorf("%w: position stream closed", domain.ErrPositionUnavailable)
					n.positionErr.Store(&err)
					n.log.Warn("position stream ended, progress frozen")
				}
				return
			}
			if _, err := n.ApplyFix(pos); err != nil {
				if errors.Is(err, domain.ErrInvalidPosition) {
					n.log.Debug("dropping invalid fix", zap.Error(err))
					continue
				}
				n.log.Warn("apply fix failed", zap.Error(err))
			}
		}
	}
}

// Navigating reports whether a position subscription is active.
func (n *Navigator) Navigating() bool {
	n.navMu.Lock()
	defer n.navMu.Unlock()
	return n.navCancel != nil
}

// Camera returns the follow controller's last view.
func (n *Navigator) Camera() (CameraView, bool) { return n.follow.View() }

func (n *Navigator) FollowRunning() bool { return n.follow.Running() }

func (n *Navigator) Status() NavigatorStatus {
	st := NavigatorStatus{
		Navigating: n.Navigating(),
		Generation: n.gen.Current(),
	}
	if p := n.positionErr.Load(); p != nil {
		st.PositionErr = *p
	}
	if p := n.rerouteErr.Load(); p != nil {
		st.RerouteErr = *p
	}
	return st
}

// Close stops navigation and drops pending reroutes and tag resolutions.
func (n *Navigator) Close() {
	n.StopNavigation()
	n.reroute.Stop()
	n.resegment.Stop()
}
