package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertSnapshot stores the snapshot for (date, athlete), replacing any
// earlier one computed the same day.
func (db *DB) UpsertSnapshot(s *Snapshot) error {
	_, err := db.Exec(`
		INSERT INTO analytics (athlete_id, date, timezone, fitness, heatmap, computed_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(date, athlete_id) DO UPDATE SET
			timezone = excluded.timezone,
			fitness = excluded.fitness,
			heatmap = excluded.heatmap,
			computed_at = CURRENT_TIMESTAMP
	`, s.AthleteID, s.Date, s.Timezone, string(s.Fitness), string(s.Heatmap))
	if err != nil {
		return fmt.Errorf("saving snapshot %s for athlete %d: %w", s.Date, s.AthleteID, err)
	}
	return nil
}

// LatestSnapshot retrieves the most recent snapshot of an athlete
func (db *DB) LatestSnapshot(athleteID int64) (*Snapshot, error) {
	return scanSnapshot(db.QueryRow(`
		SELECT athlete_id, date, timezone, fitness, heatmap, computed_at
		FROM analytics
		WHERE athlete_id = ?
		ORDER BY date DESC
		LIMIT 1
	`, athleteID))
}

func scanSnapshot(row scanner) (*Snapshot, error) {
	var s Snapshot
	var fitness, heatmap, computedAt string

	err := row.Scan(&s.AthleteID, &s.Date, &s.Timezone, &fitness, &heatmap, &computedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}

	s.Fitness = []byte(fitness)
	s.Heatmap = []byte(heatmap)
	// CURRENT_TIMESTAMP is UTC "YYYY-MM-DD HH:MM:SS"
	s.ComputedAt, err = time.Parse(time.DateTime, computedAt)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s computed_at: %w", s.Date, err)
	}
	return &s, nil
}
