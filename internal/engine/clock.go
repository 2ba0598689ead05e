package engine

import "time"

// Clock supplies commit and start timestamps.
// Implemented by SystemClock (production) and testutil.ManualClock (tests).
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC, truncated to the microsecond
// precision the store keeps.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
