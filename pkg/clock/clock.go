// Package clock abstracts time so the orchestrator's poll loops can be
// driven deterministically in tests.
package clock

import "time"

// Clock provides the time operations used by waits and loops.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the time elapsed since t.
	Since(t time.Time) time.Duration

	// Sleep pauses the calling goroutine for at least d.
	Sleep(d time.Duration)

	// After waits for d to elapse and then sends the current time.
	After(d time.Duration) <-chan time.Time
}
