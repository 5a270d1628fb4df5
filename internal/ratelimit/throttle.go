// Package ratelimit throttles repeated warning log lines, adapted from
// the windowed occurrence detector pattern used elsewhere in this
// codebase for noisy-event suppression.
package ratelimit

import (
	"sync"
	"time"
)

// Throttle suppresses repeated firings for the same key within a
// cooldown window, e.g. to keep a flapping table's DESC failures from
// flooding the log. No other package in this module calls it.
type Throttle struct {
	mu        sync.Mutex
	cooldown  time.Duration
	lastFired map[string]time.Time
}

// New returns a Throttle that allows at most one firing per key per
// cooldown window.
func New(cooldown time.Duration) *Throttle {
	return &Throttle{cooldown: cooldown, lastFired: make(map[string]time.Time)}
}

// Allow reports whether key may fire now, recording the firing if so.
func (t *Throttle) Allow(key string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.lastFired[key]
	if ok && now.Sub(last) < t.cooldown {
		return false
	}
	t.lastFired[key] = now
	return true
}
