package demand

import (
	"context"
	"sync"
	"time"
)

// Clock tracks simulated time. Simulated durations map to wall time through
// Scale (simulated seconds per real second), so a run can be replayed faster
// or slower than real time without touching lifecycle code.
type Clock struct {
	mu    sync.Mutex
	start time.Time
	base  time.Time
	scale float64
}

// NewClock starts simulated time at start, advancing scale times faster than
// the wall clock. Scale <= 0 defaults to 1.
func NewClock(start time.Time, scale float64) *Clock {
	if scale <= 0 {
		scale = 1
	}
	return &Clock{start: start, base: time.Now(), scale: scale}
}

// Now returns the current simulated instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := time.Since(c.base)
	return c.start.Add(time.Duration(float64(elapsed) * c.scale))
}

// Sleep blocks for simDur of simulated time or until ctx is cancelled.
// Returns false on cancellation.
func (c *Clock) Sleep(ctx context.Context, simDur time.Duration) bool {
	if simDur <= 0 {
		return ctx.Err() == nil
	}
	c.mu.Lock()
	real := time.Duration(float64(simDur) / c.scale)
	c.mu.Unlock()
	timer := time.NewTimer(real)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// NowMillis returns the simulated instant as epoch milliseconds, the unit
// the event schemas use.
func (c *Clock) NowMillis() int64 {
	return c.Now().UnixMilli()
}
