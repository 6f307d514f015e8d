// Package clock provides the ClockAdapter abstraction so the baker's
// time-dependent steps can be driven by a fake clock in tests instead of
// wall time (spec.md component table, "ClockAdapter").
package clock

import "time"

// ClockAdapter is the only source of "now" the baker package may use.
// Controller and Baker take one instead of calling time.Now/time.Sleep
// directly; NonceScheduler and StampSearch do not depend on time.
type ClockAdapter interface {
	Now() time.Time
	Sleep(d time.Duration)
	After(d time.Duration) <-chan time.Time
}

// RealClock is the production ClockAdapter, a thin pass-through to the
// time package.
type RealClock struct{}

func (RealClock) Now() time.Time                         { return time.Now().UTC() }
func (RealClock) Sleep(d time.Duration)                   { time.Sleep(d) }
func (RealClock) After(d time.Duration) <-chan time.Time  { return time.After(d) }
