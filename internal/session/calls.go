package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"itera/internal/agent"
	"itera/internal/itinerary"
	"itera/internal/storage"
)

type callKind int

const (
	callPlan callKind = iota
	callChat
	callConcierge
)

func (k callKind) String() string {
	switch k {
	case callPlan:
		return "plan"
	case callChat:
		return "chat"
	default:
		return "concierge"
	}
}

// call is one in-flight agent request.
type call struct {
	id    string
	seq   uint64
	kind  callKind
	start time.Time
}

// begin registers a call. A plan supersedes every earlier call, a chat
// supersedes earlier chats. prepare, when non-nil, runs under the write lock
// right before the sequence number is taken, so the request it builds
// reflects exactly the state the call is ordered after. An error from
// prepare aborts the call without consuming a sequence number.
func (s *Session) begin(kind callKind, prepare func() error) (call, error) {
	s.mu.Lock()
	if prepare != nil {
		if err := prepare(); err != nil {
			s.mu.Unlock()
			return call{}, err
		}
	}
	s.seq++
	c := call{id: uuid.NewString(), seq: s.seq, kind: kind, start: time.Now()}
	switch kind {
	case callPlan:
		s.latestPlan = c.seq
		s.barrier = c.seq
	case callChat:
		s.latestChat = c.seq
	}
	s.inflight[c.id] = c.seq
	n := len(s.inflight)
	ch := s.bump(ChangeLoading, c.id)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetInflight(n)
	}
	s.notify(ch)
	return c, nil
}

// end unregisters a call and records its outcome.
func (s *Session) end(c call, err error) {
	s.mu.Lock()
	delete(s.inflight, c.id)
	n := len(s.inflight)
	ch := s.bump(ChangeLoading, c.id)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ObserveAgentCall(c.kind.String(), outcome(err), time.Since(c.start))
		s.metrics.SetInflight(n)
	}
	s.notify(ch)
}

// stale reports whether newer state superseded c. Callers hold mu.
func (s *Session) stale(c call) bool {
	if c.seq < s.barrier {
		return true
	}
	switch c.kind {
	case callPlan:
		return c.seq != s.latestPlan
	case callChat:
		return c.seq != s.latestChat
	}
	return false
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrStale):
		return "stale"
	case errors.Is(err, ErrPlanRejected):
		return "rejected"
	case errors.Is(err, agent.ErrTransport):
		return "transport"
	default:
		return "error"
	}
}

// PlanResult describes an applied plan.
type PlanResult struct {
	RequestID string            `json:"requestId"`
	JourneyID int64             `json:"journeyId,omitempty"`
	Stops     int               `json:"stops"`
	Center    *itinerary.LatLon `json:"center,omitempty"`
}

// RequestPlan asks the agent for a new journey and, on success, replaces
// the session with it. Errors leave the session unchanged.
func (s *Session) RequestPlan(ctx context.Context, prefs agent.PlanRequest) (res *PlanResult, err error) {
	prefs.Normalize()
	c, _ := s.begin(callPlan, nil)
	defer func() { s.end(c, err) }()
	logger := s.logger.With("request_id", c.id)

	resp, err := s.agent.Plan(ctx, prefs)
	if err != nil {
		logger.Error("plan failed", "destination", prefs.Destination, "error", err)
		return nil, err
	}
	if resp.Status != agent.PlanStatusSuccess {
		logger.Warn("plan rejected", "destination", prefs.Destination, "status", resp.Status)
		return nil, fmt.Errorf("%w: status %q", ErrPlanRejected, resp.Status)
	}

	center := resp.Center
	if center == nil {
		center = s.lookupCenter(ctx, prefs.Destination)
	}
	if center == nil {
		center = firstStopCenter(resp.Itinerary)
	}

	s.mu.Lock()
	if s.stale(c) {
		s.mu.Unlock()
		logger.Info("discarding stale plan")
		return nil, ErrStale
	}
	s.load(resp.Itinerary, resp.Insights, center)
	s.efficiency = resp.EfficiencyMetric
	p := prefs
	s.profile = &p
	s.destination = prefs.Destination
	s.journeyID = 0
	version := s.itVer
	ch := s.bump(ChangePlan, c.id)
	s.mu.Unlock()

	logger.Info("plan applied", "destination", prefs.Destination, "stops", len(resp.Itinerary))
	s.notify(ch)

	res = &PlanResult{RequestID: c.id, Stops: len(resp.Itinerary), Center: center}
	res.JourneyID = s.save(ctx, prefs.Destination, resp, center, version)
	return res, nil
}

// save records the plan in the history. Failures are logged only.
func (s *Session) save(ctx context.Context, destination string, resp *agent.PlanResponse, center *itinerary.LatLon, version uint64) int64 {
	if s.history == nil {
		return 0
	}
	j := storage.Journey{
		Destination: destination,
		Stops:       resp.Itinerary,
		Insights:    resp.Insights,
	}
	if center != nil {
		lat, lon := center.Lat, center.Lon
		j.CenterLat, j.CenterLon = &lat, &lon
	}
	id, err := s.history.SaveJourney(context.WithoutCancel(ctx), j)
	if err != nil {
		s.logger.Error("save journey", "destination", destination, "error", err)
		return 0
	}

	s.mu.Lock()
	if s.itVer == version {
		s.journeyID = id
	}
	s.mu.Unlock()
	return id
}

func (s *Session) lookupCenter(ctx context.Context, destination string) *itinerary.LatLon {
	if s.geocoder == nil || destination == "" {
		return nil
	}
	r, err := s.geocoder.Search(ctx, destination)
	if err != nil {
		s.logger.Warn("geocode destination", "destination", destination, "error", err)
		return nil
	}
	if r == nil {
		return nil
	}
	return &itinerary.LatLon{Lat: r.Lat, Lon: r.Lon}
}

// ChatResult is a chat reply. Applied is true when the reply replaced the
// itinerary.
type ChatResult struct {
	RequestID        string `json:"requestId"`
	Type             string `json:"type"`
	Answer           string `json:"answer,omitempty"`
	Applied          bool   `json:"applied"`
	Stops            int    `json:"stops"`
	LastReachedIndex int    `json:"lastReachedIndex"`
}

// RequestChat sends a traveler message with the current itinerary. A replan
// reply replaces the itinerary; progress carries over the unchanged leading
// stops. An answer changes nothing.
func (s *Session) RequestChat(ctx context.Context, message string) (res *ChatResult, err error) {
	var req agent.ChatRequest
	c, err := s.begin(callChat, func() error {
		if s.stops == nil {
			return ErrNoJourney
		}
		req = s.chatRequest(message, s.tracker.LastReached())
		return nil
	})
	if err != nil {
		return nil, err
	}
	defer func() { s.end(c, err) }()
	logger := s.logger.With("request_id", c.id)

	resp, err := s.agent.Chat(ctx, req)
	if err != nil {
		logger.Error("chat failed", "error", err)
		return nil, err
	}
	res = &ChatResult{RequestID: c.id, Type: resp.Type, Answer: resp.Answer}
	if !resp.IsReplan() {
		s.mu.RLock()
		res.Stops = len(s.stops)
		res.LastReachedIndex = s.tracker.LastReached()
		s.mu.RUnlock()
		logger.Debug("chat answered")
		return res, nil
	}
	if resp.NewItinerary == nil {
		return nil, fmt.Errorf("%w: replan without new_itinerary", agent.ErrTransport)
	}

	s.mu.Lock()
	if s.stale(c) {
		s.mu.Unlock()
		logger.Info("discarding stale replan")
		return nil, ErrStale
	}
	prev := s.stops
	s.tracker = itinerary.CarryOver(prev, resp.NewItinerary, s.tracker)
	s.stops = resp.NewItinerary.Clone()
	s.itVer++
	if s.center == nil {
		s.center = firstStopCenter(s.stops)
	}
	res.Applied = true
	res.Stops = len(s.stops)
	res.LastReachedIndex = s.tracker.LastReached()
	ch := s.bump(ChangeReplan, c.id)
	s.mu.Unlock()

	logger.Info("replan applied", "stops", res.Stops, "previous", len(prev), "last_reached", res.LastReachedIndex)
	s.notify(ch)
	return res, nil
}

// Concierge asks the agent a free-form question about the destination. The
// reply is never applied to the itinerary.
func (s *Session) Concierge(ctx context.Context, message string) (res *ChatResult, err error) {
	var req agent.ChatRequest
	c, _ := s.begin(callConcierge, func() error {
		req = s.chatRequest(message, -1)
		return nil
	})
	defer func() { s.end(c, err) }()

	resp, err := s.agent.Chat(ctx, req)
	if err != nil {
		s.logger.Error("concierge failed", "request_id", c.id, "error", err)
		return nil, err
	}
	return &ChatResult{
		RequestID:        c.id,
		Type:             resp.Type,
		Answer:           resp.Answer,
		Stops:            len(req.CurrentItinerary),
		LastReachedIndex: -1,
	}, nil
}

// chatRequest builds a /chat body from the current state. Callers hold mu.
func (s *Session) chatRequest(message string, lastReached int) agent.ChatRequest {
	req := agent.ChatRequest{
		Message:          message,
		CurrentItinerary: itinerary.ReachedView(s.stops, lastReached),
		LastReachedIndex: lastReached,
	}
	if req.CurrentItinerary == nil {
		req.CurrentItinerary = itinerary.Itinerary{}
	}
	if s.profile != nil {
		p := *s.profile
		req.Profile = &p
	}
	return req
}

// SelectHistory loads a past journey as if it had just been planned.
func (s *Session) SelectHistory(ctx context.Context, id int64) error {
	if s.history == nil {
		return fmt.Errorf("journey %d: %w", id, storage.ErrNotFound)
	}
	j, err := s.history.GetJourney(ctx, id)
	if err != nil {
		return err
	}

	var center *itinerary.LatLon
	if ll, ok := j.Center(); ok {
		center = &ll
	} else {
		center = firstStopCenter(j.Stops)
	}

	s.mu.Lock()
	s.load(j.Stops, j.Insights, center)
	s.efficiency = ""
	s.profile = &agent.PlanRequest{Destination: j.Destination}
	s.destination = j.Destination
	s.journeyID = j.ID
	ch := s.bump(ChangePlan, "")
	ch.Source = "history"
	s.mu.Unlock()

	s.logger.Info("history journey selected", "id", j.ID, "destination", j.Destination, "stops", len(j.Stops))
	s.notify(ch)
	return nil
}
