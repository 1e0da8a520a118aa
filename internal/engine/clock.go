package engine

import "time"

// Clock supplies the current time for overlap tests, lead-window
// computation, and expiry checks. The engine never calls time.Now
// directly so that tests and replays can pin the clock.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock: wall time in UTC.
type SystemClock struct{}

// Now returns the current wall time in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
