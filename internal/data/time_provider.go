package data

import (
	"sync"
	"time"
)

// TimeProvider stamps created_at and updated_at on user rows.
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider uses the system clock.
type RealTimeProvider struct{}

// Now returns the current system time.
func (*RealTimeProvider) Now() time.Time { return time.Now() }

// FixedTimeProvider returns a settable instant. Tests use it to check timestamps.
type FixedTimeProvider struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixedTimeProvider returns a provider frozen at t.
func NewFixedTimeProvider(t time.Time) *FixedTimeProvider {
	return &FixedTimeProvider{t: t}
}

// Now returns the frozen time.
func (f *FixedTimeProvider) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

// AddTime moves the frozen time forward by d.
func (f *FixedTimeProvider) AddTime(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}
