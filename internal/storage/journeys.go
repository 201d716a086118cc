package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"itera/internal/itinerary"
)

// ErrNotFound is returned when a journey id does not exist.
var ErrNotFound = errors.New("journey not found")

// createdAtLayout sorts lexicographically in time order.
const createdAtLayout = "2006-01-02T15:04:05.000000Z"

// Journey is a past plan as stored in the history.
type Journey struct {
	ID          int64               `json:"id"`
	Destination string              `json:"destination"`
	CreatedAt   time.Time           `json:"created_at"`
	Stops       itinerary.Itinerary `json:"json_data"`
	Insights    []itinerary.Insight `json:"insights,omitempty"`
	CenterLat   *float64            `json:"center_lat,omitempty"`
	CenterLon   *float64            `json:"center_lon,omitempty"`
}

// Center returns the stored destination center when both coordinates are set.
func (j *Journey) Center() (itinerary.LatLon, bool) {
	if j.CenterLat == nil || j.CenterLon == nil {
		return itinerary.LatLon{}, false
	}
	return itinerary.LatLon{Lat: *j.CenterLat, Lon: *j.CenterLon}, true
}

// SaveJourney inserts a journey and returns its id. A zero CreatedAt is
// set to the current time.
func (db *DB) SaveJourney(ctx context.Context, j Journey) (int64, error) {
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now()
	}
	stops := j.Stops
	if stops == nil {
		stops = itinerary.Itinerary{}
	}
	stopsJSON, err := json.Marshal(stops)
	if err != nil {
		return 0, fmt.Errorf("encode stops: %w", err)
	}
	insights := j.Insights
	if insights == nil {
		insights = []itinerary.Insight{}
	}
	insightsJSON, err := json.Marshal(insights)
	if err != nil {
		return 0, fmt.Errorf("encode insights: %w", err)
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO itineraries (destination, created_at, json_data, insights, center_lat, center_lon)
		VALUES (?, ?, ?, ?, ?, ?)`,
		j.Destination, j.CreatedAt.UTC().Format(createdAtLayout),
		string(stopsJSON), string(insightsJSON),
		nullFloat(j.CenterLat), nullFloat(j.CenterLon),
	)
	if err != nil {
		return 0, fmt.Errorf("insert journey: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("journey id: %w", err)
	}
	db.logger.Debug("journey saved", "id", id, "destination", j.Destination, "stops", len(stops))
	return id, nil
}

// ListJourneys returns up to limit journeys, newest first.
func (db *DB) ListJourneys(ctx context.Context, limit int) ([]Journey, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, destination, created_at, json_data, insights, center_lat, center_lon
		FROM itineraries
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list journeys: %w", err)
	}
	defer rows.Close()

	var journeys []Journey
	for rows.Next() {
		j, err := scanJourney(rows)
		if err != nil {
			return nil, err
		}
		journeys = append(journeys, *j)
	}
	return journeys, rows.Err()
}

// GetJourney returns one journey by id.
func (db *DB) GetJourney(ctx context.Context, id int64) (*Journey, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, destination, created_at, json_data, insights, center_lat, center_lon
		FROM itineraries WHERE id = ?`, id)
	j, err := scanJourney(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journey %d: %w", id, ErrNotFound)
	}
	return j, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJourney(s scanner) (*Journey, error) {
	var (
		j            Journey
		createdAt    string
		stopsJSON    string
		insightsJSON string
		centerLat    sql.NullFloat64
		centerLon    sql.NullFloat64
	)
	if err := s.Scan(&j.ID, &j.Destination, &createdAt, &stopsJSON, &insightsJSON, &centerLat, &centerLon); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan journey: %w", err)
	}

	t, err := time.Parse(createdAtLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("journey %d created_at: %w", j.ID, err)
	}
	j.CreatedAt = t
	if err := json.Unmarshal([]byte(stopsJSON), &j.Stops); err != nil {
		return nil, fmt.Errorf("journey %d stops: %w", j.ID, err)
	}
	if err := json.Unmarshal([]byte(insightsJSON), &j.Insights); err != nil {
		return nil, fmt.Errorf("journey %d insights: %w", j.ID, err)
	}
	if centerLat.Valid {
		j.CenterLat = &centerLat.Float64
	}
	if centerLon.Valid {
		j.CenterLon = &centerLon.Float64
	}
	return &j, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// GetMetadata retrieves a value from the metadata table.
func (db *DB) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}
