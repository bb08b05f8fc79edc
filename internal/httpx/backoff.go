package httpx

import (
	"math/rand/v2"
	"time"
)

// Backoff computes capped exponential delays. Jitter in [0,1] spreads each
// delay uniformly over delay*(1±Jitter).
type Backoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Jitter    float64
}

// NewBackoff clamps its arguments into a usable Backoff.
func NewBackoff(base, maxDelay time.Duration, jitter float64) Backoff {
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = time.Second
	}
	return Backoff{
		BaseDelay: base,
		MaxDelay:  max(maxDelay, base),
		Jitter:    min(max(jitter, 0), 1),
	}
}

// ForAttempt returns the delay before retry number attempt+1.
func (b Backoff) ForAttempt(attempt int) time.Duration {
	shift := min(max(attempt, 0), 30)
	delay := b.BaseDelay << uint(shift)
	if delay <= 0 || delay > b.MaxDelay {
		delay = b.MaxDelay
	}
	if b.Jitter == 0 {
		return delay
	}
	return time.Duration(float64(delay) * (1 + (rand.Float64()*2-1)*b.Jitter))
}
