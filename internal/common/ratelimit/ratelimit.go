// Package ratelimit provides optional client-side request pacing.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter paces outgoing requests to a configured rate. A zero or
// negative rate disables limiting entirely.
type Limiter struct {
	limiter *rate.Limiter
	rps     float64
}

// New creates a limiter allowing rps requests per second with a burst
// of one. Pass zero or a negative value to disable limiting.
func New(rps float64) *Limiter {
	if rps <= 0 {
		return &Limiter{}
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		rps:     rps,
	}
}

// Enabled reports whether the limiter actually limits.
func (l *Limiter) Enabled() bool {
	return l.limiter != nil
}

// RPS returns the configured requests-per-second rate, or zero when
// disabled.
func (l *Limiter) RPS() float64 {
	return l.rps
}

// Wait blocks until the next request may proceed or the context is
// cancelled. Disabled limiters return immediately.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.limiter == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}
