// Package sensor turns a GTFS-realtime service alerts feed into delay
// disruptions for the active journey.
package sensor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"itera/internal/itinerary"
)

// DefaultInterval is the alerts polling period.
const DefaultInterval = 60 * time.Second

// Sink receives disruption events. Inject reports false for an event id
// it already holds.
type Sink interface {
	Inject(ev itinerary.Event) (bool, error)
}

// disruptive lists the alert effects that delay a walking itinerary.
var disruptive = map[gtfs.Alert_Effect]bool{
	gtfs.Alert_SIGNIFICANT_DELAYS: true,
	gtfs.Alert_REDUCED_SERVICE:    true,
	gtfs.Alert_NO_SERVICE:         true,
	gtfs.Alert_DETOUR:             true,
}

// Fetcher polls a GTFS-RT alerts feed and injects disruptive alerts.
type Fetcher struct {
	alertsURL string
	sink      Sink
	interval  time.Duration
	client    *http.Client
	store     store
	logger    *slog.Logger
}

// NewFetcher creates a GTFS-RT alerts fetcher.
func NewFetcher(alertsURL string, sink Sink, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		alertsURL: alertsURL,
		sink:      sink,
		interval:  DefaultInterval,
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    logger.With("component", "sensor"),
	}
}

// Start begins polling the alerts feed. Blocks until context is cancelled.
func (f *Fetcher) Start(ctx context.Context) {
	// Fetch immediately on start
	f.poll(ctx)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.poll(ctx)
		case <-ctx.Done():
			f.logger.Info("alerts fetcher stopped")
			return
		}
	}
}

// Alerts returns the disruptive alerts of the last successful poll.
func (f *Fetcher) Alerts() []Alert {
	return f.store.get()
}

func (f *Fetcher) poll(ctx context.Context) {
	alerts, err := f.fetch(ctx)
	if err != nil {
		f.logger.Warn("fetch alerts failed", "error", err)
		return
	}
	f.store.set(alerts)

	injected := 0
	for _, a := range alerts {
		ok, err := f.sink.Inject(a.Event())
		if err != nil {
			f.logger.Debug("alert not injected", "alert", a.ID, "error", err)
			continue
		}
		if ok {
			injected++
		}
	}
	f.logger.Info("alerts updated", "count", len(alerts), "injected", injected)
}

// fetch downloads the feed and keeps the disruptive alerts.
func (f *Fetcher) fetch(ctx context.Context) ([]Alert, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.alertsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create alerts request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alerts feed returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read alerts body: %w", err)
	}

	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return nil, fmt.Errorf("parse alerts protobuf: %w", err)
	}

	var alerts []Alert
	for _, entity := range feed.GetEntity() {
		a := entity.GetAlert()
		if a == nil || !disruptive[a.GetEffect()] {
			continue
		}

		alert := Alert{
			ID:         entity.GetId(),
			HeaderText: getTranslation(a.GetHeaderText()),
			DescText:   getTranslation(a.GetDescriptionText()),
			Effect:     a.GetEffect().String(),
			Cause:      a.GetCause().String(),
		}

		// Collect affected routes and stops (deduplicated)
		routeSet := make(map[string]bool)
		stopSet := make(map[string]bool)
		for _, ie := range a.GetInformedEntity() {
			if rid := ie.GetRouteId(); rid != "" && !routeSet[rid] {
				alert.RouteIDs = append(alert.RouteIDs, rid)
				routeSet[rid] = true
			}
			if sid := ie.GetStopId(); sid != "" && !stopSet[sid] {
				alert.StopIDs = append(alert.StopIDs, sid)
				stopSet[sid] = true
			}
		}

		alerts = append(alerts, alert)
	}
	return alerts, nil
}

func getTranslation(ts *gtfs.TranslatedString) string {
	if ts == nil {
		return ""
	}
	for _, t := range ts.GetTranslation() {
		if text := t.GetText(); text != "" {
			return text
		}
	}
	return ""
}
