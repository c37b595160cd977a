package ratelimit

import (
	"context"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// Limiter throttles emitted log lines and counts the ones it turned away.
type Limiter struct {
	limiter *rate.Limiter
	dropped atomic.Uint64
}

// New uses 0 or negative linesPerSecond for no rate limiting. Burst is
// raised to at least 1.
func New(linesPerSecond float64, burst int) *Limiter {
	burst = max(burst, 1)

	if linesPerSecond <= 0 {
		return &Limiter{
			limiter: rate.NewLimiter(rate.Inf, burst),
		}
	}

	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(linesPerSecond), burst),
	}
}

// Allow is non-blocking; a refused line is counted as dropped.
func (l *Limiter) Allow() bool {
	if l.limiter.Allow() {
		return true
	}
	l.dropped.Add(1)
	return false
}

// Wait blocks until a line may be emitted or ctx is done. A line abandoned
// because of ctx is counted as dropped.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		l.dropped.Add(1)
		return err
	}
	return nil
}

func (l *Limiter) Dropped() uint64 {
	return l.dropped.Load()
}

func (l *Limiter) Limit() float64 {
	limit := l.limiter.Limit()
	if limit == rate.Inf {
		return 0 // Indicate no rate limiting
	}
	return float64(limit)
}

func (l *Limiter) Burst() int {
	return l.limiter.Burst()
}
