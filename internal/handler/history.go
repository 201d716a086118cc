package handler

import (
	"net/http"
	"strconv"

	"itera/internal/sensor"
	"itera/internal/storage"
)

type historyResponse struct {
	Journeys []storage.Journey `json:"journeys"`
	Count    int               `json:"count"`
}

// History lists past journeys, newest first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondJSON(w, http.StatusOK, historyResponse{Journeys: []storage.Journey{}})
		return
	}
	limit := h.historyLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, h.historyLimit)
	}

	journeys, err := h.history.ListJourneys(r.Context(), limit)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}
	if journeys == nil {
		journeys = []storage.Journey{}
	}
	respondJSON(w, http.StatusOK, historyResponse{Journeys: journeys, Count: len(journeys)})
}

// SelectHistory loads a past journey into the session.
func (h *Handler) SelectHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid journey id")
		return
	}
	if err := h.sess.SelectHistory(r.Context(), id); err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.renderer.Invalidate()
	respondJSON(w, http.StatusOK, h.view())
}

type alertsResponse struct {
	Alerts []sensor.Alert `json:"alerts"`
}

// Alerts lists the transit alerts currently feeding delay events.
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	var alerts []sensor.Alert
	if h.alerts != nil {
		alerts = h.alerts.Alerts()
	}
	if alerts == nil {
		alerts = []sensor.Alert{}
	}
	respondJSON(w, http.StatusOK, alertsResponse{Alerts: alerts})
}
