// Package storage keeps the journey history in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a SQLite database connection holding the journey history.
type DB struct {
	*sql.DB
	logger *slog.Logger
}

// Open creates or opens the history database at path, creating its
// directory when missing, and applies migrations. ":memory:" opens a
// private in-memory database.
func Open(path string, logger *slog.Logger) (*DB, error) {
	logger = logger.With("component", "storage")

	dsn := "file::memory:?_foreign_keys=on"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	}
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection also keeps an in-memory database alive.
	sqlDB.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := &DB{DB: sqlDB, logger: logger}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	version, err := db.GetMetadata(ctx, "schema_version")
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("read schema version: %w", err)
	}
	logger.Info("database opened", "path", path, "schema_version", strings.TrimSpace(version))
	return db, nil
}
