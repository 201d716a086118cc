package publisher

import (
	"testing"
	"time"

	"itera/internal/itinerary"
	"itera/internal/session"
)

type fakeSnapshotter struct{ snap session.Snapshot }

func (f fakeSnapshotter) Snapshot() session.Snapshot { return f.snap }

type recordingSender struct{ msgs []JourneyMessage }

func (r *recordingSender) Publish(msg JourneyMessage) error {
	r.msgs = append(r.msgs, msg)
	return nil
}

func TestNewJourneyMessage(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	snap := session.Snapshot{
		JourneyID:   7,
		Destination: "Barcelona",
		Stops: itinerary.Itinerary{
			{Title: "Sagrada Familia"},
			{Title: "Park Güell (Adjusted)", Adjusted: true},
			{Title: "Barceloneta (Adjusted)", Adjusted: true},
		},
		LastReachedIndex: 0,
		Events:           []itinerary.Event{{ID: "w1", Type: itinerary.EventRain}},
	}
	c := session.Change{Kind: session.ChangeEvents, Version: 12, Source: "traveler"}

	got := NewJourneyMessage(c, snap, now)
	want := JourneyMessage{
		Kind:             "events",
		Version:          12,
		Source:           "traveler",
		JourneyID:        7,
		Destination:      "Barcelona",
		Stops:            3,
		LastReachedIndex: 0,
		Events:           1,
		Adjusted:         2,
		Timestamp:        now,
	}
	if got != want {
		t.Errorf("NewJourneyMessage() = %+v\nwant %+v", got, want)
	}
}

func TestForwardSkipsLoading(t *testing.T) {
	sender := &recordingSender{}
	forward := Forward(sender, fakeSnapshotter{session.Snapshot{LastReachedIndex: -1}})

	for _, kind := range []session.ChangeKind{
		session.ChangeLoading,
		session.ChangePlan,
		session.ChangeLoading,
		session.ChangeReached,
		session.ChangeReset,
	} {
		forward(session.Change{Kind: kind})
	}

	var kinds []string
	for _, m := range sender.msgs {
		kinds = append(kinds, m.Kind)
	}
	if len(kinds) != 3 || kinds[0] != "plan" || kinds[1] != "reached" || kinds[2] != "reset" {
		t.Errorf("published kinds = %v, want [plan reached reset]", kinds)
	}
	if sender.msgs[0].LastReachedIndex != -1 {
		t.Errorf("LastReachedIndex = %d", sender.msgs[0].LastReachedIndex)
	}
}
