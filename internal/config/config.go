package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration from environment variables.
type Config struct {
	Port         int
	DBPath       string
	HistoryLimit int

	AgentURL     string
	AgentTimeout time.Duration

	MapsKey       string // Google Directions key; empty means straight-line routes only
	DirectionsURL string
	MaxWaypoints  int

	GeocoderURL string
	AlertsURL   string // GTFS-RT service alerts feed; empty disables the sensor
	NATSURL     string // empty disables journey fan-out

	LogLevel slog.Level
	LogJSON  bool
}

// Load reads configuration from environment variables with defaults. A
// .env file in the working directory is applied first when present;
// variables already set in the environment win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          envInt("ITERA_PORT", 8080),
		DBPath:        envStr("ITERA_DB_PATH", "./itera.db"),
		HistoryLimit:  envInt("ITERA_HISTORY_LIMIT", 50),
		AgentURL:      envStr("ITERA_AGENT_URL", "http://localhost:8000"),
		AgentTimeout:  envDuration("ITERA_AGENT_TIMEOUT", 90*time.Second),
		MapsKey:       envStr("ITERA_MAPS_KEY", ""),
		DirectionsURL: envStr("ITERA_DIRECTIONS_URL", "https://maps.googleapis.com/maps/api/directions/json"),
		MaxWaypoints:  envInt("ITERA_MAX_WAYPOINTS", 23),
		GeocoderURL:   envStr("ITERA_GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		AlertsURL:     envStr("ITERA_ALERTS_URL", ""),
		NATSURL:       envStr("ITERA_NATS_URL", ""),
		LogLevel:      envLevel("ITERA_LOG_LEVEL", slog.LevelInfo),
		LogJSON:       envBool("ITERA_LOG_JSON", false),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		// Bare numbers are seconds.
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}

func envLevel(key string, fallback slog.Level) slog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		return fallback
	}
	return l
}
