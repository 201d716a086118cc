package publisher

import (
	"time"

	"itera/internal/session"
)

// JourneyMessage is the payload of a journey change.
type JourneyMessage struct {
	Kind             string    `json:"kind"`
	Version          uint64    `json:"version"`
	RequestID        string    `json:"requestId,omitempty"`
	Source           string    `json:"source,omitempty"`
	JourneyID        int64     `json:"journeyId,omitempty"`
	Destination      string    `json:"destination,omitempty"`
	Stops            int       `json:"stops"`
	LastReachedIndex int       `json:"lastReachedIndex"`
	Events           int       `json:"events"`
	Adjusted         int       `json:"adjusted"`
	Timestamp        time.Time `json:"timestamp"`
}

// NewJourneyMessage describes change c using the session state snap.
func NewJourneyMessage(c session.Change, snap session.Snapshot, now time.Time) JourneyMessage {
	adjusted := 0
	for _, s := range snap.Stops {
		if s.Adjusted {
			adjusted++
		}
	}
	return JourneyMessage{
		Kind:             string(c.Kind),
		Version:          c.Version,
		RequestID:        c.RequestID,
		Source:           c.Source,
		JourneyID:        snap.JourneyID,
		Destination:      snap.Destination,
		Stops:            len(snap.Stops),
		LastReachedIndex: snap.LastReachedIndex,
		Events:           len(snap.Events),
		Adjusted:         adjusted,
		Timestamp:        now,
	}
}

// Snapshotter reads the current session state.
type Snapshotter interface {
	Snapshot() session.Snapshot
}

// Sender publishes one journey message.
type Sender interface {
	Publish(msg JourneyMessage) error
}

// Forward returns a Session.Subscribe callback that publishes every
// change except loading transitions. Publish failures are counted and
// logged by the sender.
func Forward(pub Sender, src Snapshotter) func(session.Change) {
	return func(c session.Change) {
		if c.Kind == session.ChangeLoading {
			return
		}
		_ = pub.Publish(NewJourneyMessage(c, src.Snapshot(), time.Now()))
	}
}
