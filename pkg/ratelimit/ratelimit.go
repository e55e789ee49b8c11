// Package ratelimit spaces outbound requests evenly with optional jitter.
package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Limiter hands out request slots at a fixed interval. It is safe for
// concurrent use; each Wait claims the next free slot.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	jitter   float64
	next     time.Time
}

// NewLimiter allows rps requests per second. jitter in [0,1] delays each
// slot by up to jitter*interval extra. rps <= 0 disables limiting.
func NewLimiter(rps, jitter float64) *Limiter {
	if jitter < 0 {
		jitter = 0
	} else if jitter > 1 {
		jitter = 1
	}
	l := &Limiter{jitter: jitter}
	if rps > 0 {
		l.interval = time.Duration(float64(time.Second) / rps)
	}
	return l
}

// Interval is the spacing between slots; zero means unlimited.
func (l *Limiter) Interval() time.Duration { return l.interval }

// Wait blocks until the caller's slot arrives or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.interval == 0 {
		return ctx.Err()
	}

	delay := l.reserve(time.Now())
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (l *Limiter) reserve(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot := l.next
	if slot.Before(now) {
		slot = now
	}
	l.next = slot.Add(l.interval)

	if l.jitter > 0 {
		slot = slot.Add(time.Duration(rand.Float64() * l.jitter * float64(l.interval)))
	}
	return slot.Sub(now)
}

// Stop is a no-op kept so callers can defer it regardless of configuration.
func (l *Limiter) Stop() {}
