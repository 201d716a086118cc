package sensor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"itera/internal/itinerary"
)

type memorySink struct {
	mu     sync.Mutex
	events map[string]itinerary.Event
	err    error
}

func (s *memorySink) Inject(ev itinerary.Event) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if s.events == nil {
		s.events = make(map[string]itinerary.Event)
	}
	if _, ok := s.events[ev.ID]; ok {
		return false, nil
	}
	s.events[ev.ID] = ev
	return true, nil
}

func text(s string) *gtfs.TranslatedString {
	return &gtfs.TranslatedString{
		Translation: []*gtfs.TranslatedString_Translation{{Text: proto.String(s)}},
	}
}

func alertEntity(id string, effect gtfs.Alert_Effect, header string) *gtfs.FeedEntity {
	return &gtfs.FeedEntity{
		Id: proto.String(id),
		Alert: &gtfs.Alert{
			Effect:     effect.Enum(),
			HeaderText: text(header),
			InformedEntity: []*gtfs.EntitySelector{
				{RouteId: proto.String("L3")},
				{RouteId: proto.String("L3"), StopId: proto.String("Paral-lel")},
			},
		},
	}
}

func feedServer(t *testing.T, entities ...*gtfs.FeedEntity) *httptest.Server {
	t.Helper()
	feed := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{GtfsRealtimeVersion: proto.String("2.0")},
		Entity: entities,
	}
	body, err := proto.Marshal(feed)
	if err != nil {
		t.Fatalf("marshal feed: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-protobuf")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPollInjectsDisruptiveAlerts(t *testing.T) {
	srv := feedServer(t,
		alertEntity("a1", gtfs.Alert_SIGNIFICANT_DELAYS, "L3 running 20 min late"),
		alertEntity("a2", gtfs.Alert_ADDITIONAL_SERVICE, "Extra trains for the match"),
		alertEntity("a3", gtfs.Alert_DETOUR, ""),
		&gtfs.FeedEntity{Id: proto.String("v1")}, // no alert
	)
	sink := &memorySink{}
	f := NewFetcher(srv.URL, sink, testLogger())

	f.poll(context.Background())

	if len(sink.events) != 2 {
		t.Fatalf("injected %d events, want 2", len(sink.events))
	}
	ev, ok := sink.events["alert:a1"]
	if !ok {
		t.Fatal("alert a1 not injected")
	}
	if ev.Type != itinerary.EventDelay || !ev.TriggersHeal() {
		t.Errorf("event = %+v, want a delay", ev)
	}
	if ev.Detail != "L3 running 20 min late" {
		t.Errorf("Detail = %q", ev.Detail)
	}
	if got := sink.events["alert:a3"].Detail; got != "Detour" {
		t.Errorf("a3 Detail = %q, want effect fallback", got)
	}

	alerts := f.Alerts()
	if len(alerts) != 2 {
		t.Fatalf("Alerts() = %d, want 2", len(alerts))
	}
	if len(alerts[0].RouteIDs) != 1 || len(alerts[0].StopIDs) != 1 {
		t.Errorf("informed entities not deduplicated: %+v", alerts[0])
	}
}

func TestPollRepeatIsDeduplicated(t *testing.T) {
	srv := feedServer(t, alertEntity("a1", gtfs.Alert_NO_SERVICE, "Station closed"))
	sink := &memorySink{}
	f := NewFetcher(srv.URL, sink, testLogger())

	f.poll(context.Background())
	f.poll(context.Background())
	if len(sink.events) != 1 {
		t.Errorf("events = %d, want 1", len(sink.events))
	}
}

func TestPollSinkError(t *testing.T) {
	srv := feedServer(t, alertEntity("a1", gtfs.Alert_REDUCED_SERVICE, "Reduced"))
	sink := &memorySink{err: errors.New("no active journey")}
	f := NewFetcher(srv.URL, sink, testLogger())

	f.poll(context.Background())
	if len(f.Alerts()) != 1 {
		t.Error("alerts should be stored even when the sink rejects them")
	}
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-200", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"garbage", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte{0xff, 0xff, 0xff}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			f := NewFetcher(srv.URL, &memorySink{}, testLogger())
			if _, err := f.fetch(context.Background()); err == nil {
				t.Error("expected error")
			}
		})
	}
}
