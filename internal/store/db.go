package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrActivityNotFound is returned when an activity doesn't exist
var ErrActivityNotFound = errors.New("activity not found")

// ErrAthleteNotFound is returned when no profile is stored for an athlete
var ErrAthleteNotFound = errors.New("athlete not found")

// ErrSnapshotNotFound is returned when no analytics snapshot exists
var ErrSnapshotNotFound = errors.New("analytics snapshot not found")

// DB is the SQLite-backed store
type DB struct {
	*sql.DB
}

// Open opens the SQLite database at path, creating it and applying
// migrations if necessary. An empty path uses DefaultPath.
func Open(path string) (*DB, error) {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("getting db path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Analytics recompute writes from several goroutines
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := Migrate(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &DB{sqlDB}, nil
}

// DefaultPath returns ~/.stramate/stramate.db
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".stramate", "stramate.db"), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullJSON stores empty payloads as NULL
func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
