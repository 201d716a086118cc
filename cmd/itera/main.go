package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"itera/internal/agent"
	"itera/internal/config"
	"itera/internal/export"
	"itera/internal/geocode"
	"itera/internal/handler"
	"itera/internal/hub"
	"itera/internal/metrics"
	"itera/internal/publisher"
	"itera/internal/route"
	"itera/internal/sensor"
	"itera/internal/server"
	"itera/internal/session"
	"itera/internal/storage"
)

func main() {
	cfg := config.Load()

	// CLI flags
	flag.IntVar(&cfg.Port, "port", cfg.Port, "HTTP server port")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite journey history path")
	flag.StringVar(&cfg.AgentURL, "agent-url", cfg.AgentURL, "Planning agent base URL")
	flag.Parse()

	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var logger *slog.Logger
	if cfg.LogJSON {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, opts))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
	}

	// Context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open database
	db, err := storage.Open(cfg.DBPath, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	col := metrics.NewCollector(cfg.MaxWaypoints)

	sess := session.New(
		agent.NewClient(cfg.AgentURL, cfg.AgentTimeout, logger),
		session.Options{
			History:  db,
			Geocoder: geocode.New(cfg.GeocoderURL, "itera/1.0", logger),
			Metrics:  col,
		},
		logger,
	)

	// Route rendering falls back to straight lines without a Directions key.
	var provider route.Provider
	if cfg.MapsKey != "" {
		provider = route.NewDirections(cfg.DirectionsURL, cfg.MapsKey, logger)
	} else {
		logger.Warn("no directions key configured, routes are drawn as straight lines")
	}
	scene := route.NewScene()
	renderer := route.NewRenderer(provider, scene, route.Config{
		MaxWaypoints: cfg.MaxWaypoints,
		Metrics:      col,
	}, logger)
	defer renderer.Close()
	go renderer.Run(ctx, sess.Itinerary)

	hb := hub.NewHub(col.SetClients, logger)
	go hb.Run(ctx)

	zoner, err := export.NewZoner()
	if err != nil {
		logger.Warn("timezone finder unavailable, calendars use UTC", "error", err)
	}

	deps := handler.Deps{
		Session:      sess,
		History:      db,
		Renderer:     renderer,
		Scene:        scene,
		Hub:          hb,
		Zoner:        zoner,
		HistoryLimit: cfg.HistoryLimit,
	}

	// Start GTFS-RT alerts sensor
	if cfg.AlertsURL != "" {
		fetcher := sensor.NewFetcher(cfg.AlertsURL, sess, logger)
		deps.Alerts = fetcher
		go fetcher.Start(ctx)
	}

	h := handler.New(deps, logger)
	sess.Subscribe(h.Push)
	sess.Subscribe(func(c session.Change) {
		switch c.Kind {
		case session.ChangePlan, session.ChangeReplan, session.ChangeReset:
			renderer.Invalidate()
		}
	})

	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, col, logger)
		if err != nil {
			logger.Error("failed to connect to nats", "url", cfg.NATSURL, "error", err)
		} else {
			defer pub.Close()
			sess.Subscribe(publisher.Forward(pub, sess))
		}
	}

	srv := server.New(cfg.Port, h, col.Handler(), logger)

	// Graceful shutdown on SIGINT/SIGTERM
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutting down")
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
