package clock

import (
	"sync"
	"time"
)

// Func reports the current time. Components take one instead of calling
// time.Now so tests can pin it.
type Func func() time.Time

// System reads the wall clock.
func System() time.Time {
	return time.Now()
}

// Or returns f, falling back to System when f is nil.
func Or(f Func) Func {
	if f == nil {
		return System
	}
	return f
}

// Fixed always reports t.
func Fixed(t time.Time) Func {
	return func() time.Time {
		return t
	}
}

// Ticking reports start on the first call and advances by step on every
// following call.
func Ticking(start time.Time, step time.Duration) Func {
	var (
		mu   sync.Mutex
		next = start
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()

		now := next
		next = next.Add(step)
		return now
	}
}
