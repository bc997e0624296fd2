package coordinator

import "time"

// Clock abstracts time so tests can drive the windows synthetically.
type Clock interface {
	// Now returns the current time. Values must carry a monotonic reading
	// or otherwise never go backwards.
	Now() time.Time
	// After fires once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// systemClock is the process clock.
type systemClock struct{}

// Now returns time.Now, which includes a monotonic reading.
func (systemClock) Now() time.Time {
	return time.Now()
}

// After wraps time.After.
func (systemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
