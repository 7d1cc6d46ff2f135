package dispatch

import (
	"sync"
	"time"
)

// rateLimiter enforces the per-connection max_commands_per_second soft
// limit (§6). It is an unkeyed sliding-window counter: each Agent owns
// one, so it lives for a single connection instead of in a long-lived
// shared table. Adapted from the fixed-size-window-per-uid limiter the
// agent's IPC layer uses for local socket connections.
type rateLimiter struct {
	maxPerSecond int

	mu     sync.Mutex
	window []time.Time
	now    func() time.Time
}

func newRateLimiter(maxPerSecond int) *rateLimiter {
	return &rateLimiter{maxPerSecond: maxPerSecond, now: time.Now}
}

// Allow reports whether one more command may be processed this second. A
// non-positive maxPerSecond disables the limit entirely.
func (r *rateLimiter) Allow() bool {
	if r.maxPerSecond <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cutoff := now.Add(-time.Second)
	kept := r.window[:0]
	for _, t := range r.window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	r.window = kept

	if len(r.window) >= r.maxPerSecond {
		return false
	}
	r.window = append(r.window, now)
	return true
}
