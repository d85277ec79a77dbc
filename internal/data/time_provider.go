package data

import "time"

// TimeProvider abstracts time.Now so repositories can be tested with a
// fixed clock.
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider returns the current wall-clock time.
type RealTimeProvider struct{}

// Now implements TimeProvider.
func (RealTimeProvider) Now() time.Time { return time.Now() }

// FixedTimeProvider always returns the same instant (for tests).
type FixedTimeProvider struct {
	Time time.Time
}

// Now implements TimeProvider.
func (f FixedTimeProvider) Now() time.Time { return f.Time }
