// Package clock abstracts timer scheduling so debounce, heartbeat and
// reconnect backoff can be driven deterministically in tests.
package clock

import "time"

// Timer is a cancellable scheduled callback or channel wait.
type Timer interface {
	// Stop cancels the timer. It reports whether the timer was stopped
	// before firing.
	Stop() bool
}

// Clock schedules work against either the wall clock (System) or a
// manually advanced test clock (Mock).
type Clock interface {
	Now() time.Time
	// AfterFunc runs f on its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Timer
	// After returns a channel that receives once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// System is the wall-clock implementation.
type System struct{}

func NewSystem() System { return System{} }

func (System) Now() time.Time { return time.Now() }

func (System) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

func (System) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
