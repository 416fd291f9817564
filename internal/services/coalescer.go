package services

import (
	"sync"
	"time"
)

// Coalescer is a rate-limited scheduler for one logical event stream. It
// holds at most one pending invocation: every Trigger replaces the pending
// value and restarts the quiet window, and fn runs once the window elapses
// without a new Trigger. fn never runs concurrently with itself.
type Coalescer[T any] struct {
	window time.Duration
	fn     func(T)

	mu      sync.Mutex
	timer   *time.Timer
	pending *T
	stopped bool
	// armed identifies the latest timer; older timers that already fired
	// leave the pending value alone
	armed uint64

	running sync.Mutex
}

func NewCoalescer[T any](window time.Duration, fn func(T)) *Coalescer[T] {
	return &Coalescer[T]{window: window, fn: fn}
}

// Trigger schedules fn(v), superseding any pending invocation.
func (c *Coalescer[T]) Trigger(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return
	}

	c.pending = &v
	if c.timer != nil {
		c.timer.Stop()
	}
	c.armed++
	seq := c.armed
	c.timer = time.AfterFunc(c.window, func() { c.fireArmed(seq) })
}

// Flush runs the pending invocation now, if there is one.
func (c *Coalescer[T]) Flush() {
	c.mu.Lock()
	v := c.take()
	c.mu.Unlock()

	c.run(v)
}

// Stop drops the pending invocation. Later Triggers are ignored.
func (c *Coalescer[T]) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopped = true
	c.pending = nil
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Coalescer[T]) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// fireArmed runs the pending invocation if seq is still the latest timer.
func (c *Coalescer[T]) fireArmed(seq uint64) {
	c.mu.Lock()
	if seq != c.armed {
		c.mu.Unlock()
		return
	}
	v := c.take()
	c.mu.Unlock()

	c.run(v)
}

// take claims the pending value and disarms the timer. c.mu must be held.
func (c *Coalescer[T]) take() *T {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.armed++
	v := c.pending
	c.pending = nil
	if c.stopped {
		return nil
	}
	return v
}

func (c *Coalescer[T]) run(v *T) {
	if v == nil {
		return
	}

	c.running.Lock()
	defer c.running.Unlock()
	c.fn(*v)
}
