// Package lifecycle classifies an event relative to the current time.
package lifecycle

import "time"

// Status is where an event sits on its timeline.
type Status string

const (
	Upcoming Status = "upcoming"
	Live     Status = "live"
	Ended    Status = "ended"
)

// LiveWindow is how far either side of the target instant an event counts as
// live. Every call site (registration gate, listings, detail) uses it.
const LiveWindow = time.Hour

// Of returns the status of an event starting at target, observed at now.
//
//	target - now >  +LiveWindow  → Upcoming
//	target - now <  -LiveWindow  → Ended
//	otherwise                    → Live (both bounds inclusive)
func Of(target, now time.Time) Status {
	distance := target.Sub(now)
	switch {
	case distance > LiveWindow:
		return Upcoming
	case distance < -LiveWindow:
		return Ended
	default:
		return Live
	}
}

// Accepting reports whether an event at target still takes registrations.
func Accepting(target, now time.Time) bool {
	return Of(target, now) != Ended
}
