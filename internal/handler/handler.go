package handler

import (
	"context"
	"log/slog"

	"itera/internal/export"
	"itera/internal/hub"
	"itera/internal/route"
	"itera/internal/sensor"
	"itera/internal/session"
	"itera/internal/storage"
)

// HistoryLister lists past journeys.
type HistoryLister interface {
	ListJourneys(ctx context.Context, limit int) ([]storage.Journey, error)
}

// AlertSource exposes the disruptive alerts of the last sensor poll.
type AlertSource interface {
	Alerts() []sensor.Alert
}

// Deps are the collaborators of a Handler. History, Alerts and Zoner may be
// nil.
type Deps struct {
	Session      *session.Session
	History      HistoryLister
	Renderer     *route.Renderer
	Scene        *route.Scene
	Hub          *hub.Hub
	Zoner        *export.Zoner
	Alerts       AlertSource
	HistoryLimit int
}

// Handler holds shared dependencies for all HTTP handlers.
type Handler struct {
	sess         *session.Session
	history      HistoryLister
	renderer     *route.Renderer
	scene        *route.Scene
	hub          *hub.Hub
	zoner        *export.Zoner
	alerts       AlertSource
	historyLimit int
	logger       *slog.Logger
}

// New creates a Handler.
func New(d Deps, logger *slog.Logger) *Handler {
	limit := d.HistoryLimit
	if limit <= 0 {
		limit = 50
	}
	return &Handler{
		sess:         d.Session,
		history:      d.History,
		renderer:     d.Renderer,
		scene:        d.Scene,
		hub:          d.Hub,
		zoner:        d.Zoner,
		alerts:       d.Alerts,
		historyLimit: limit,
		logger:       logger,
	}
}
