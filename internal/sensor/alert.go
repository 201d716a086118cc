package sensor

import (
	"sync"

	"itera/internal/itinerary"
)

// Alert is a parsed service alert that disrupts the journey.
type Alert struct {
	ID         string   `json:"id"`
	HeaderText string   `json:"header"`
	DescText   string   `json:"description,omitempty"`
	RouteIDs   []string `json:"routeIds,omitempty"`
	StopIDs    []string `json:"stopIds,omitempty"`
	Effect     string   `json:"effect"` // "NO_SERVICE", "REDUCED_SERVICE", "DETOUR", etc.
	Cause      string   `json:"cause,omitempty"`
}

// Event converts the alert into a delay disruption.
func (a Alert) Event() itinerary.Event {
	detail := a.HeaderText
	if detail == "" {
		detail = FormatAlertEffect(a.Effect)
	}
	return itinerary.Event{
		ID:     "alert:" + a.ID,
		Type:   itinerary.EventDelay,
		Source: "transit-alerts",
		Detail: detail,
	}
}

// store holds the alerts of the last successful poll.
type store struct {
	mu     sync.RWMutex
	alerts []Alert
}

func (s *store) set(alerts []Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = alerts
}

func (s *store) get() []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// FormatAlertEffect returns a human-readable effect description.
func FormatAlertEffect(effect string) string {
	switch effect {
	case "NO_SERVICE":
		return "No Service"
	case "REDUCED_SERVICE":
		return "Reduced Service"
	case "SIGNIFICANT_DELAYS":
		return "Significant Delays"
	case "DETOUR":
		return "Detour"
	default:
		return "Service Alert"
	}
}
