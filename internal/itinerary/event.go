package itinerary

import "time"

// EventType tags a disruption event.
type EventType string

const (
	EventRain  EventType = "rain"
	EventDelay EventType = "delay"
	EventLate  EventType = "late"
)

// Event is a typed disruption reported by the traveler or a sensor.
type Event struct {
	ID     string    `json:"id,omitempty"`
	Type   EventType `json:"type"`
	Source string    `json:"source,omitempty"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// TriggersHeal reports whether the event affects weather-sensitive stops.
func (e Event) TriggersHeal() bool {
	return e.Type == EventRain || e.Type == EventDelay
}
