// Package heal applies the local self-heal adjustment to an itinerary when
// the traveler reports weather or delay disruptions. It is a cosmetic
// safety net on top of server-driven replanning.
package heal

import (
	"sync"

	"itera/internal/itinerary"
)

const (
	// AdjustedSuffix is appended to the title of an adjusted stop.
	AdjustedSuffix = " (Adjusted)"
	// AdjustedNote is the explanation attached to an adjusted stop.
	AdjustedNote = "Moved due to weather or delay trigger."
)

// Heal returns it with every outdoor stop marked as adjusted when any event
// is a rain or delay trigger. Without such an event the input slice itself
// is returned. Stops already marked adjusted are left as they are, so
// healing a healed itinerary is a no-op. The input is never modified.
func Heal(it itinerary.Itinerary, events []itinerary.Event) itinerary.Itinerary {
	if len(events) == 0 || !triggered(events) {
		return it
	}

	var out itinerary.Itinerary
	for i, s := range it {
		if !s.IsOutdoor() || s.Adjusted {
			continue
		}
		if out == nil {
			out = it.Clone()
		}
		out[i].Title = s.Title + AdjustedSuffix
		out[i].Note = AdjustedNote
		out[i].Adjusted = true
	}
	if out == nil {
		return it
	}
	return out
}

func triggered(events []itinerary.Event) bool {
	for _, e := range events {
		if e.TriggersHeal() {
			return true
		}
	}
	return false
}

// Healer memoizes Heal on the versions of its inputs. Callers bump a
// version whenever the itinerary or the event list changes; evaluating
// again with the same versions returns the cached result.
type Healer struct {
	mu     sync.Mutex
	valid  bool
	itVer  uint64
	evVer  uint64
	out    itinerary.Itinerary
	hits   int
	misses int
}

// Apply returns Heal(it, events), recomputing only when a version changed.
func (h *Healer) Apply(it itinerary.Itinerary, itVer uint64, events []itinerary.Event, evVer uint64) itinerary.Itinerary {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.valid && h.itVer == itVer && h.evVer == evVer {
		h.hits++
		return h.out
	}
	h.misses++
	h.out = Heal(it, events)
	h.itVer, h.evVer, h.valid = itVer, evVer, true
	return h.out
}

// Stats returns the number of cached and recomputed evaluations.
func (h *Healer) Stats() (hits, misses int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hits, h.misses
}
