package handler

import (
	"net/http"
	"strconv"
	"strings"

	"itera/internal/agent"
	"itera/internal/itinerary"
	"itera/internal/session"
)

// JourneyView is the snapshot served to the browser.
type JourneyView struct {
	session.Snapshot
	Timezone string `json:"timezone,omitempty"`
}

func (h *Handler) view() JourneyView {
	snap := h.sess.Snapshot()
	v := JourneyView{Snapshot: snap}
	if snap.Center != nil && h.zoner != nil {
		v.Timezone = h.zoner.Name(snap.Center.Lat, snap.Center.Lon)
	}
	return v
}

// Journey serves the current journey snapshot.
func (h *Handler) Journey(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.view())
}

type planResponse struct {
	Result  *session.PlanResult `json:"result"`
	Journey JourneyView         `json:"journey"`
}

// Plan requests a new itinerary from the agent.
func (h *Handler) Plan(w http.ResponseWriter, r *http.Request) {
	var req agent.PlanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid plan request: "+err.Error())
		return
	}
	req.Destination = strings.TrimSpace(req.Destination)
	if req.Destination == "" {
		respondError(w, http.StatusBadRequest, "destination is required")
		return
	}

	res, err := h.sess.RequestPlan(r.Context(), req)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.renderer.Invalidate()
	respondJSON(w, http.StatusOK, planResponse{Result: res, Journey: h.view()})
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Result  *session.ChatResult `json:"result"`
	Journey JourneyView         `json:"journey"`
}

// Chat sends a traveler message. A replan reply replaces the itinerary.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	msg, ok := readMessage(w, r)
	if !ok {
		return
	}
	res, err := h.sess.RequestChat(r.Context(), msg)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	if res.Applied {
		h.renderer.Invalidate()
	}
	respondJSON(w, http.StatusOK, chatResponse{Result: res, Journey: h.view()})
}

// Concierge answers a question without touching the itinerary.
func (h *Handler) Concierge(w http.ResponseWriter, r *http.Request) {
	msg, ok := readMessage(w, r)
	if !ok {
		return
	}
	res, err := h.sess.Concierge(r.Context(), msg)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func readMessage(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid chat request: "+err.Error())
		return "", false
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return "", false
	}
	return msg, true
}

// Reached moves the progress pointer to the stop at {index}.
func (h *Handler) Reached(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid stop index")
		return
	}
	if err := h.sess.MarkReached(index); err != nil {
		h.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.view())
}

type eventRequest struct {
	ID     string              `json:"id"`
	Type   itinerary.EventType `json:"type"`
	Source string              `json:"source"`
	Detail string              `json:"detail"`
}

// AddEvent reports a disruption.
func (h *Handler) AddEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid event: "+err.Error())
		return
	}
	if req.Source == "" {
		req.Source = "traveler"
	}
	added, err := h.sess.Inject(itinerary.Event{
		ID:     req.ID,
		Type:   itinerary.EventType(strings.ToLower(string(req.Type))),
		Source: req.Source,
		Detail: req.Detail,
	})
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	status := http.StatusCreated
	if !added {
		status = http.StatusOK
	}
	respondJSON(w, status, h.view())
}

// ClearEvents drops every disruption.
func (h *Handler) ClearEvents(w http.ResponseWriter, r *http.Request) {
	h.sess.ClearEvents()
	respondJSON(w, http.StatusOK, h.view())
}

// NewJourney resets the session.
func (h *Handler) NewJourney(w http.ResponseWriter, r *http.Request) {
	h.sess.NewJourney()
	h.renderer.Invalidate()
	respondJSON(w, http.StatusOK, h.view())
}
