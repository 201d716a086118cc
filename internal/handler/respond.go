package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"itera/internal/agent"
	"itera/internal/itinerary"
	"itera/internal/session"
	"itera/internal/storage"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}

// respondErr maps a domain error to its HTTP status.
func (h *Handler) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	respondError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, agent.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, session.ErrStale), errors.Is(err, session.ErrNoJourney):
		return http.StatusConflict
	case errors.Is(err, session.ErrPlanRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, itinerary.ErrIndexOutOfRange), errors.Is(err, session.ErrInvalidEvent):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}
