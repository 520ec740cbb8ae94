package reconciler

import (
	"math/rand/v2"
	"time"
)

// Backoff computes capped exponential retry delays.
// The zero value is not useful; use [NewBackoff].
type Backoff struct {
	base time.Duration
	max  time.Duration
}

// NewBackoff creates a backoff policy growing exponentially from base up to
// max. Non-positive values fall back to 30 seconds and 30 minutes.
func NewBackoff(base, max time.Duration) Backoff {
	if base <= 0 {
		base = 30 * time.Second
	}
	if max < base {
		max = 30 * time.Minute
	}
	if max < base {
		max = base
	}
	return Backoff{base: base, max: max}
}

// Delay returns the delay before the next attempt after the given number of
// consecutive failures. It strictly increases with the failure count until
// it reaches the cap, and is deterministic; callers add jitter separately.
func (b Backoff) Delay(failures uint32) time.Duration {
	if failures <= 1 {
		return b.base
	}
	// 2^30 * 30s already exceeds any sane cap; avoid shift overflow.
	if failures > 30 {
		return b.max
	}
	d := b.base << (failures - 1)
	if d <= 0 || d > b.max {
		return b.max
	}
	return d
}

// Jitter spreads d uniformly over [d/2, 3d/2) so that records failing in
// lockstep do not retry in synchronized storms.
func Jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	return d/2 + rand.N(d)
}
