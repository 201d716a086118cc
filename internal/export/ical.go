// Package export renders a journey as an iCalendar feed.
package export

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"itera/internal/itinerary"
)

const defaultStopDuration = time.Hour

// Journey is what the calendar is built from.
type Journey struct {
	ID          string
	Destination string
	StartDate   string // YYYY-MM-DD
	Location    *time.Location
	Stops       itinerary.Itinerary
}

// Calendar serializes one VEVENT per stop. Stops get a start time when the
// journey has a start date and the stop time parses as a clock time;
// otherwise the event carries only its position in the plan.
func Calendar(j Journey, now time.Time) string {
	loc := j.Location
	if loc == nil {
		loc = time.UTC
	}
	day, hasDay := parseDate(j.StartDate, loc)

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//itera//journey//EN")
	if j.Destination != "" {
		cal.SetXWRCalName(j.Destination)
	}

	starts := make([]*time.Time, len(j.Stops))
	if hasDay {
		prev := day
		for i, s := range j.Stops {
			h, m, ok := parseClock(s.Time)
			if !ok {
				continue
			}
			t := time.Date(prev.Year(), prev.Month(), prev.Day(), h, m, 0, 0, loc)
			// A clock time earlier than the previous stop rolls to the next day.
			if t.Before(prev) {
				t = t.AddDate(0, 0, 1)
			}
			starts[i] = &t
			prev = t
		}
	}

	for i, s := range j.Stops {
		ev := cal.AddEvent(fmt.Sprintf("%s-%s@itera", eventPrefix(j), strings.TrimPrefix(s.Key(i), "id:")))
		ev.SetDtStampTime(now)
		ev.SetSummary(s.Title)
		if s.Loc != "" {
			ev.SetLocation(s.Loc)
		}
		if lat, lon, ok := s.Coord(); ok {
			ev.SetProperty(ics.ComponentPropertyGeo, fmt.Sprintf("%f;%f", lat, lon))
		}
		ev.SetDescription(description(s, i, len(j.Stops)))
		if starts[i] != nil {
			ev.SetStartAt(*starts[i])
			ev.SetEndAt(endFor(starts, i))
		}
	}
	return cal.Serialize()
}

func eventPrefix(j Journey) string {
	if j.ID != "" {
		return j.ID
	}
	return "journey"
}

// endFor is the next timed stop's start, or a default duration.
func endFor(starts []*time.Time, i int) time.Time {
	start := *starts[i]
	for _, next := range starts[i+1:] {
		if next != nil && next.After(start) {
			return *next
		}
	}
	return start.Add(defaultStopDuration)
}

func description(s itinerary.Stop, i, n int) string {
	parts := []string{fmt.Sprintf("Stop %d of %d", i+1, n)}
	if s.Time != "" {
		parts = append(parts, "Time: "+s.Time)
	}
	if s.Price != "" {
		parts = append(parts, "Price: "+string(s.Price))
	}
	for _, p := range []string{s.Description, s.Logic, s.Note} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}

func parseDate(s string, loc *time.Location) (time.Time, bool) {
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

var clockLayouts = []string{"15:04", "3:04 PM", "3:04PM", "03:04 PM", "3 PM", "3PM"}

// parseClock reads the leading clock time of a display string such as
// "09:30", "9:30 AM" or "14:00 - 16:00".
func parseClock(s string) (hour, minute int, ok bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if i := strings.IndexAny(s, "-–"); i > 0 {
		s = strings.TrimSpace(s[:i])
	}
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour(), t.Minute(), true
		}
	}
	return 0, 0, false
}
