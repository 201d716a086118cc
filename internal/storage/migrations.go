package storage

import "fmt"

// migrate creates the history schema if it doesn't exist.
func (db *DB) migrate() error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	db.logger.Info("database migrations applied")
	return nil
}

var migrations = []string{
	// Past journeys, one row per successful plan
	`CREATE TABLE IF NOT EXISTS itineraries (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		destination TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		json_data   TEXT NOT NULL DEFAULT '[]',
		insights    TEXT NOT NULL DEFAULT '[]',
		center_lat  REAL,
		center_lon  REAL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_itineraries_created ON itineraries(created_at DESC)`,

	// Key/value metadata (schema version, last import, etc.)
	`CREATE TABLE IF NOT EXISTS metadata (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1')`,
}
