package budget

import (
	"sync"
	"time"
)

// Controller tracks one run's wall-clock budget and its cooperative stop
// signal. It never aborts work in flight: callers check IsExhausted before
// starting each unit of work and route their sleeps through Sleep, so the
// only thing that can overrun the budget is a single in-flight call bounded
// by its own timeout.
type Controller struct {
	start time.Time
	max   time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// New starts the clock. A zero or negative max is exhausted immediately.
func New(max time.Duration) *Controller {
	return &Controller{
		start: time.Now(),
		max:   max,
		stop:  make(chan struct{}),
	}
}

// RequestStop marks the run for a clean early finish. Idempotent; safe from
// signal handlers.
func (c *Controller) RequestStop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Stopped reports whether an external stop was requested.
func (c *Controller) Stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

// Remaining is how much budget is left; zero or negative once it ran out.
func (c *Controller) Remaining() time.Duration {
	return c.max - time.Since(c.start)
}

// Elapsed is wall-clock time since the run started.
func (c *Controller) Elapsed() time.Duration {
	return time.Since(c.start)
}

// IsExhausted is the loop-boundary check: true once the budget elapsed or a
// stop was requested.
func (c *Controller) IsExhausted() bool {
	return c.Stopped() || c.Remaining() <= 0
}

// Sleep waits up to d, but never past the budget and never through a stop
// request. It reports whether the caller still has budget afterwards; false
// means wind down instead of starting the next unit of work.
func (c *Controller) Sleep(d time.Duration) bool {
	if c.IsExhausted() {
		return false
	}
	if d <= 0 {
		return true
	}
	if rem := c.Remaining(); d > rem {
		d = rem
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-c.stop:
		return false
	case <-timer.C:
		return !c.IsExhausted()
	}
}
