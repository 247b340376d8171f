package client

import (
	"time"

	"golang.org/x/time/rate"
)

// Limiter spaces outbound calls so the long-run request rate never exceeds
// the configured ceiling. Every call funnels through Wait before touching
// the network, so even a burst of pending calls from multiple logical
// consumers cannot exceed the ceiling. The sleep function is injectable so
// tests can observe the computed spacing without waiting on the wall clock.
type Limiter struct {
	bucket *rate.Limiter
	sleep  func(time.Duration)
}

// NewLimiter creates a limiter for the given requests-per-second ceiling
func NewLimiter(requestsPerSecond float64) *Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	return &Limiter{
		bucket: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		sleep:  time.Sleep,
	}
}

// Wait blocks until the next request slot is available
func (l *Limiter) Wait() {
	r := l.bucket.Reserve()
	if delay := r.Delay(); delay > 0 {
		l.sleep(delay)
	}
}
