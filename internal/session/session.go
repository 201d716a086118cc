// Package session owns the active journey: the itinerary, its progress
// pointer, disruption events and insights. It is the only writer of the
// itinerary; every remote call is sequenced so an out-of-date response is
// discarded instead of overwriting newer state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"itera/internal/agent"
	"itera/internal/geocode"
	"itera/internal/heal"
	"itera/internal/itinerary"
	"itera/internal/storage"
)

var (
	// ErrPlanRejected is returned when the agent answers /plan with a
	// status other than success.
	ErrPlanRejected = errors.New("plan rejected")
	// ErrStale is returned when a response arrives after newer state was
	// applied. The response is discarded.
	ErrStale = errors.New("stale response")
	// ErrNoJourney is returned by operations that need an active itinerary.
	ErrNoJourney = errors.New("no active journey")
	// ErrInvalidEvent is returned for an event of unknown type.
	ErrInvalidEvent = errors.New("invalid event")
)

// Agent is the remote planner.
type Agent interface {
	Plan(ctx context.Context, req agent.PlanRequest) (*agent.PlanResponse, error)
	Chat(ctx context.Context, req agent.ChatRequest) (*agent.ChatResponse, error)
}

// History persists planned journeys.
type History interface {
	SaveJourney(ctx context.Context, j storage.Journey) (int64, error)
	GetJourney(ctx context.Context, id int64) (*storage.Journey, error)
}

// Geocoder resolves a destination name to a center point.
type Geocoder interface {
	Search(ctx context.Context, query string) (*geocode.Result, error)
}

// Metrics observes agent calls.
type Metrics interface {
	ObserveAgentCall(op, outcome string, d time.Duration)
	SetInflight(n int)
}

// ChangeKind names what a state change did.
type ChangeKind string

const (
	ChangePlan    ChangeKind = "plan"
	ChangeReplan  ChangeKind = "replan"
	ChangeReached ChangeKind = "reached"
	ChangeEvents  ChangeKind = "events"
	ChangeReset   ChangeKind = "reset"
	ChangeLoading ChangeKind = "loading"
)

// Change is delivered to subscribers after every state change.
type Change struct {
	Kind      ChangeKind `json:"kind"`
	Version   uint64     `json:"version"`
	RequestID string     `json:"requestId,omitempty"`
	Source    string     `json:"source,omitempty"`
}

// Options holds the optional collaborators of a Session.
type Options struct {
	History  History
	Geocoder Geocoder
	Metrics  Metrics
}

// Session is the state of one traveler's journey. It is safe for
// concurrent use; remote calls run without holding the lock.
type Session struct {
	agent    Agent
	history  History
	geocoder Geocoder
	metrics  Metrics
	logger   *slog.Logger

	mu          sync.RWMutex
	stops       itinerary.Itinerary
	tracker     itinerary.Tracker
	insights    []itinerary.Insight
	center      *itinerary.LatLon
	efficiency  string
	profile     *agent.PlanRequest
	destination string
	journeyID   int64
	events      []itinerary.Event
	version     uint64
	itVer       uint64
	evVer       uint64
	healer      heal.Healer

	// Request sequencing.
	seq        uint64
	latestPlan uint64
	latestChat uint64
	barrier    uint64 // responses to calls issued before this are stale
	inflight   map[string]uint64

	subsMu sync.RWMutex
	subs   []func(Change)
}

// New creates an empty session.
func New(a Agent, opts Options, logger *slog.Logger) *Session {
	return &Session{
		agent:    a,
		history:  opts.History,
		geocoder: opts.Geocoder,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "session"),
		inflight: make(map[string]uint64),
	}
}

// Subscribe registers fn for change notifications. fn runs on the
// goroutine that made the change and must not block.
func (s *Session) Subscribe(fn func(Change)) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Session) notify(c Change) {
	s.subsMu.RLock()
	subs := s.subs
	s.subsMu.RUnlock()
	for _, fn := range subs {
		fn(c)
	}
}

// bump records a change. Callers hold mu.
func (s *Session) bump(kind ChangeKind, requestID string) Change {
	s.version++
	return Change{Kind: kind, Version: s.version, RequestID: requestID}
}

// Loading reports whether any agent call is in flight.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.inflight) > 0
}

// Version increases on every state change.
func (s *Session) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Itinerary returns a copy of the stored itinerary, without self-heal
// adjustments or reached flags.
func (s *Session) Itinerary() itinerary.Itinerary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stops.Clone()
}

// LastReached returns the progress pointer.
func (s *Session) LastReached() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracker.LastReached()
}

// MarkReached moves the progress pointer.
func (s *Session) MarkReached(index int) error {
	s.mu.Lock()
	if s.stops == nil {
		s.mu.Unlock()
		return ErrNoJourney
	}
	if err := s.tracker.MarkReached(index, len(s.stops)); err != nil {
		s.mu.Unlock()
		return err
	}
	c := s.bump(ChangeReached, "")
	s.mu.Unlock()

	s.logger.Info("stop reached", "index", index)
	s.notify(c)
	return nil
}

// Inject adds a disruption event. It reports false when an event with the
// same id is already held.
func (s *Session) Inject(ev itinerary.Event) (bool, error) {
	switch ev.Type {
	case itinerary.EventRain, itinerary.EventDelay, itinerary.EventLate:
	default:
		return false, fmt.Errorf("%w: type %q", ErrInvalidEvent, ev.Type)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	s.mu.Lock()
	if s.stops == nil {
		s.mu.Unlock()
		return false, ErrNoJourney
	}
	for _, e := range s.events {
		if e.ID == ev.ID {
			s.mu.Unlock()
			return false, nil
		}
	}
	s.events = append(s.events, ev)
	s.evVer++
	c := s.bump(ChangeEvents, "")
	c.Source = ev.Source
	s.mu.Unlock()

	s.logger.Info("event injected", "type", ev.Type, "source", ev.Source, "heal", ev.TriggersHeal())
	s.notify(c)
	return true, nil
}

// ClearEvents drops every event, undoing self-heal adjustments.
func (s *Session) ClearEvents() {
	s.mu.Lock()
	if len(s.events) == 0 {
		s.mu.Unlock()
		return
	}
	s.events = nil
	s.evVer++
	c := s.bump(ChangeEvents, "")
	s.mu.Unlock()

	s.notify(c)
}

// NewJourney clears the session. Calls in flight are superseded.
func (s *Session) NewJourney() {
	s.mu.Lock()
	s.clear()
	s.barrier = s.seq + 1
	c := s.bump(ChangeReset, "")
	s.mu.Unlock()

	s.logger.Info("journey reset")
	s.notify(c)
}

// clear empties the journey state. Callers hold mu.
func (s *Session) clear() {
	s.stops = nil
	s.tracker.Reset()
	s.insights = nil
	s.center = nil
	s.efficiency = ""
	s.profile = nil
	s.destination = ""
	s.journeyID = 0
	s.events = nil
	s.itVer++
	s.evVer++
}

// load installs a whole journey with progress reset. Callers hold mu.
func (s *Session) load(stops itinerary.Itinerary, insights []itinerary.Insight, center *itinerary.LatLon) {
	if stops == nil {
		stops = itinerary.Itinerary{}
	}
	s.stops = stops.Clone()
	s.tracker.Reset()
	s.insights = append([]itinerary.Insight(nil), insights...)
	s.center = center
	s.events = nil
	s.itVer++
	s.evVer++
	s.barrier = s.seq + 1
}

// firstStopCenter is the fallback map center.
func firstStopCenter(it itinerary.Itinerary) *itinerary.LatLon {
	located := it.Located()
	if len(located) == 0 {
		return nil
	}
	c := located[0].LatLon
	return &c
}
