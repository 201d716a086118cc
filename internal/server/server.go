package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"itera/internal/handler"
)

// Server is the HTTP server for itera.
type Server struct {
	mux    *http.ServeMux
	srv    *http.Server
	logger *slog.Logger
}

// New creates a new Server with all routes registered. metrics may be nil.
func New(port int, h *handler.Handler, metrics http.Handler, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Journey
	mux.HandleFunc("GET /api/journey", h.Journey)
	mux.HandleFunc("POST /api/journey/new", h.NewJourney)
	mux.HandleFunc("GET /api/journey.ics", h.Calendar)
	mux.HandleFunc("POST /api/plan", h.Plan)
	mux.HandleFunc("POST /api/chat", h.Chat)
	mux.HandleFunc("POST /api/concierge", h.Concierge)
	mux.HandleFunc("POST /api/reached/{index}", h.Reached)

	// Disruptions
	mux.HandleFunc("POST /api/events", h.AddEvent)
	mux.HandleFunc("DELETE /api/events", h.ClearEvents)
	mux.HandleFunc("GET /api/alerts", h.Alerts)

	// History
	mux.HandleFunc("GET /api/history", h.History)
	mux.HandleFunc("POST /api/history/{id}/select", h.SelectHistory)

	// Map
	mux.HandleFunc("GET /api/route", h.Route)

	// Push
	mux.HandleFunc("GET /ws", h.ServeWS)

	mux.HandleFunc("GET /healthz", h.Health)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	s := &Server{mux: mux, logger: logger}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           withMiddleware(mux, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// ListenAndServe starts the HTTP server. It returns nil after Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
