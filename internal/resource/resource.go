// Package resource holds the tick-scoped values shared by every system that
// are not owned by any entity.
package resource

import "time"

// Time describes the tick being simulated.
type Time struct {
	// Seconds elapsed since the previous tick started. Zero on the first tick.
	ElapsedSeconds float64
	// Number of the tick being simulated, starting at 1.
	Ticks uint64
}

// Cadence records how well the loop is keeping its target interval.
type Cadence struct {
	LastWork time.Duration // pipeline duration of the previous tick
	Overruns uint64        // ticks whose work exceeded the target interval
}

// Store is passed explicitly to every system invocation.
type Store struct {
	Time    Time
	Cadence Cadence
}

// Elapsed returns ElapsedSeconds narrowed to the component float width.
func (s *Store) Elapsed() float32 {
	return float32(s.Time.ElapsedSeconds)
}
