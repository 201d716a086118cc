package handler

import (
	"net/http"
	"time"
)

type healthResponse struct {
	Status     string    `json:"status"`
	Active     bool      `json:"active"`
	Loading    bool      `json:"loading"`
	Clients    int       `json:"clients"`
	Evicted    int       `json:"evictedSnapshots"`
	ServerTime time.Time `json:"serverTime"`
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.sess.Snapshot()
	respondJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Active:     snap.Active,
		Loading:    snap.Loading,
		Clients:    h.hub.ClientCount(),
		Evicted:    h.hub.Evicted(),
		ServerTime: time.Now(),
	})
}
