package sla

import "time"

// Clock supplies the current instant to all deadline math.
type Clock interface {
	Now() time.Time
}

// SystemClock reads wall-clock UTC time.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClockFunc adapts a function into a Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time {
	return f()
}
