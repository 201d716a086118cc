package session

import (
	"itera/internal/agent"
	"itera/internal/insight"
	"itera/internal/itinerary"
)

// Snapshot is the read model of the session as shown to the traveler.
type Snapshot struct {
	Version          uint64              `json:"version"`
	Active           bool                `json:"active"`
	JourneyID        int64               `json:"journeyId,omitempty"`
	Destination      string              `json:"destination,omitempty"`
	Stops            itinerary.Itinerary `json:"stops"`
	LastReachedIndex int                 `json:"lastReachedIndex"`
	Summary          insight.Summary     `json:"summary"`
	Feed             []itinerary.Insight `json:"feed"`
	Center           *itinerary.LatLon   `json:"center,omitempty"`
	Efficiency       string              `json:"efficiency,omitempty"`
	Events           []itinerary.Event   `json:"events"`
	Loading          bool                `json:"loading"`
	Profile          *agent.PlanRequest  `json:"profile,omitempty"`
}

// Snapshot returns the healed itinerary with reached flags, the budget
// summary and the insight feed.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	healed := s.healer.Apply(s.stops, s.itVer, s.events, s.evVer)
	snap := Snapshot{
		Version:          s.version,
		Active:           s.stops != nil,
		JourneyID:        s.journeyID,
		Destination:      s.destination,
		Stops:            itinerary.ReachedView(healed, s.tracker.LastReached()),
		LastReachedIndex: s.tracker.LastReached(),
		Summary:          insight.Summarize(s.stops, s.insights, s.budgetMax()),
		Feed:             insight.Feed(s.insights),
		Efficiency:       s.efficiency,
		Events:           append([]itinerary.Event{}, s.events...),
		Loading:          len(s.inflight) > 0,
	}
	if snap.Stops == nil {
		snap.Stops = itinerary.Itinerary{}
	}
	if snap.Feed == nil {
		snap.Feed = []itinerary.Insight{}
	}
	if s.center != nil {
		c := *s.center
		snap.Center = &c
	}
	if s.profile != nil {
		p := *s.profile
		snap.Profile = &p
	}
	return snap
}

func (s *Session) budgetMax() int {
	if s.profile == nil {
		return 0
	}
	return s.profile.BudgetMax
}
