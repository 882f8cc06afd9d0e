package progress

import (
	"sync"
	"time"
)

// Throttle decides whether a periodic action may run. The first call always
// acts; later calls act when forced or once interval has elapsed since the
// last action.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	now      func() time.Time
	last     time.Time
	acted    bool
}

// NewThrottle returns a Throttle. A nil now uses time.Now.
func NewThrottle(interval time.Duration, now func() time.Time) *Throttle {
	if now == nil {
		now = time.Now
	}
	return &Throttle{interval: interval, now: now}
}

// Allow reports whether the caller should act now and, if so, records the action.
func (t *Throttle) Allow(force bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.acted && !force && now.Sub(t.last) < t.interval {
		return false
	}
	t.acted = true
	t.last = now
	return true
}
