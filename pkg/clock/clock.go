// Package clock provides time abstractions for production and testing
package clock

import "time"

// Clock reports the current time and schedules wake-ups.
type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

// System is the wall clock. Times are reported in UTC.
type System struct{}

// After returns a channel that sends the current time after the specified duration
func (System) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Now returns the current time
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed always reports the same instant; After fires immediately.
type Fixed time.Time

// After returns an already fired channel.
func (f Fixed) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time(f)
	return ch
}

// Now returns the fixed instant.
func (f Fixed) Now() time.Time {
	return time.Time(f)
}
