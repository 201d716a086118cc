package itinerary

import (
	"errors"
	"fmt"
)

// ErrIndexOutOfRange is returned when a reached index does not address a
// stop of the current itinerary.
var ErrIndexOutOfRange = errors.New("index out of range")

// Tracker holds the progress pointer of a journey. The zero value is a
// journey that has not started (last reached index -1).
type Tracker struct {
	reached int // number of stops reached, i.e. last index + 1
}

// LastReached returns the index of the last reached stop, or -1.
func (t Tracker) LastReached() int { return t.reached - 1 }

// IsReached reports whether the stop at index i has been reached.
func (t Tracker) IsReached(i int) bool { return i <= t.LastReached() }

// MarkReached moves the boundary to index. Earlier indices are accepted and
// un-reach the stops after them; -1 resets the journey to not started.
func (t *Tracker) MarkReached(index, length int) error {
	if index < -1 || index >= length {
		return fmt.Errorf("mark reached %d of %d stops: %w", index, length, ErrIndexOutOfRange)
	}
	t.reached = index + 1
	return nil
}

// Reset returns the tracker to not started.
func (t *Tracker) Reset() { t.reached = 0 }

// set overwrites the pointer without bounds checks.
func (t *Tracker) set(last int) {
	if last < -1 {
		last = -1
	}
	t.reached = last + 1
}

// CarryOver computes the tracker for next after it replaced prev. Progress
// is kept only over the leading stops that are the same in both
// itineraries (same key, title and coordinates), bounded by the previous
// pointer. Any other change resets the journey to not started.
func CarryOver(prev, next Itinerary, prevTracker Tracker) Tracker {
	last := -1
	for i := 0; i <= prevTracker.LastReached() && i < len(prev) && i < len(next); i++ {
		if !sameStop(prev[i], next[i], i) {
			break
		}
		last = i
	}
	var t Tracker
	t.set(last)
	return t
}

func sameStop(a, b Stop, index int) bool {
	return a.Key(index) == b.Key(index) &&
		a.Title == b.Title &&
		a.Lat == b.Lat &&
		a.Lon == b.Lon
}
