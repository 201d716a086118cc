package export

import (
	"strings"
	"testing"
	"time"

	"itera/internal/itinerary"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in     string
		h, m   int
		wantOK bool
	}{
		{"09:30", 9, 30, true},
		{"9:30 AM", 9, 30, true},
		{"2:15 pm", 14, 15, true},
		{"14:00 - 16:00", 14, 0, true},
		{"7PM", 19, 0, true},
		{"Morning", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, m, ok := parseClock(tt.in)
			if ok != tt.wantOK || h != tt.h || m != tt.m {
				t.Errorf("parseClock(%q) = %d:%d %v, want %d:%d %v", tt.in, h, m, ok, tt.h, tt.m, tt.wantOK)
			}
		})
	}
}

func journey() Journey {
	return Journey{
		ID:          "7",
		Destination: "Barcelona",
		StartDate:   "2026-05-01",
		Location:    time.UTC,
		Stops: itinerary.Itinerary{
			{ID: "0", Time: "09:00", Title: "Sagrada Familia", Loc: "Carrer de Mallorca, 401", Lat: "41.4036", Lon: "2.1744", Price: "$26"},
			{ID: "1", Time: "Afternoon", Title: "Park Güell", Note: "Moved due to weather or delay trigger."},
			{ID: "2", Time: "11:30", Title: "Casa Batlló"},
			{ID: "3", Time: "01:00", Title: "Late bar"},
		},
	}
}

func TestCalendarEvents(t *testing.T) {
	out := Calendar(journey(), time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))

	if got := strings.Count(out, "BEGIN:VEVENT"); got != 4 {
		t.Fatalf("VEVENT count = %d, want 4", got)
	}
	for _, want := range []string{
		"SUMMARY:Sagrada Familia",
		"GEO:41.403600;2.174400",
		"DTSTART:20260501T090000Z",
		"DTEND:20260501T113000Z",
		"DTSTART:20260502T010000Z",
		"UID:7-0@itera",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("calendar missing %q\n%s", want, out)
		}
	}
	if strings.Count(out, "DTSTART") != 3 {
		t.Errorf("untimed stop should have no DTSTART:\n%s", out)
	}
}

func TestCalendarWithoutStartDate(t *testing.T) {
	j := journey()
	j.StartDate = ""
	out := Calendar(j, time.Now())
	if strings.Contains(out, "DTSTART") {
		t.Error("no start date should produce untimed events")
	}
	if !strings.Contains(out, "Stop 1 of 4") {
		t.Error("description should carry the stop order")
	}
}

func TestCalendarPositionalIDs(t *testing.T) {
	j := Journey{Stops: itinerary.Itinerary{{Title: "A"}, {Title: "B"}}}
	out := Calendar(j, time.Now())
	if !strings.Contains(out, "UID:journey-pos:1@itera") {
		t.Errorf("positional UID missing:\n%s", out)
	}
}
