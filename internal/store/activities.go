package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/buger/jsonparser"
)

// localLayout keeps the wall-clock digits of start_date_local regardless of
// the location attached to the time value.
const localLayout = "2006-01-02T15:04:05Z"

const activityColumns = `
	id, athlete_id, name, type, start_date, start_date_local, timezone,
	distance, moving_time, elapsed_time, total_elevation_gain, has_heartrate,
	detail, streams, analytics`

// UpsertActivity inserts or updates an activity summary.
// Stored detail, streams and analytics survive when a is missing them.
func (db *DB) UpsertActivity(a *Activity) error {
	_, err := db.Exec(`
		INSERT INTO activities (
			id, athlete_id, name, type, start_date, start_date_local, timezone,
			distance, moving_time, elapsed_time, total_elevation_gain, has_heartrate,
			detail, streams, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			athlete_id = excluded.athlete_id,
			name = excluded.name,
			type = excluded.type,
			start_date = excluded.start_date,
			start_date_local = excluded.start_date_local,
			timezone = excluded.timezone,
			distance = excluded.distance,
			moving_time = excluded.moving_time,
			elapsed_time = excluded.elapsed_time,
			total_elevation_gain = excluded.total_elevation_gain,
			has_heartrate = excluded.has_heartrate,
			detail = COALESCE(excluded.detail, activities.detail),
			streams = COALESCE(excluded.streams, activities.streams),
			updated_at = CURRENT_TIMESTAMP
	`,
		a.ID, a.AthleteID, a.Name, a.Type,
		a.StartDate.UTC().Format(time.RFC3339), a.StartDateLocal.Format(localLayout), a.Timezone,
		a.Distance, a.MovingTime, a.ElapsedTime, a.TotalElevationGain, boolToInt(a.HasHeartrate),
		nullJSON(a.Detail), nullJSON(a.Streams),
	)
	return err
}

// SaveDetail stores the raw activity detail payload
func (db *DB) SaveDetail(id int64, detail []byte) error {
	return db.updateActivityColumn(id, "detail", nullJSON(detail))
}

// SaveStreams stores the raw stream set payload
func (db *DB) SaveStreams(id int64, streams []byte) error {
	return db.updateActivityColumn(id, "streams", nullJSON(streams))
}

// SaveAnalytics replaces the per-activity analytics payload
func (db *DB) SaveAnalytics(id int64, analytics []byte) error {
	if len(analytics) == 0 {
		analytics = []byte("{}")
	}
	return db.updateActivityColumn(id, "analytics", string(analytics))
}

// column is always one of the constants above, never user input
func (db *DB) updateActivityColumn(id int64, column string, value any) error {
	result, err := db.Exec(`
		UPDATE activities SET `+column+` = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, value, id)
	if err != nil {
		return fmt.Errorf("updating %s of activity %d: %w", column, id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("activity %d: %w", id, ErrActivityNotFound)
	}
	return nil
}

// GetActivity retrieves an activity by ID
func (db *DB) GetActivity(id int64) (*Activity, error) {
	row := db.QueryRow(`SELECT `+activityColumns+` FROM activities WHERE id = ?`, id)

	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActivityNotFound
	}
	return a, err
}

// ListActivityIDs returns every activity ID of an athlete, oldest first
func (db *DB) ListActivityIDs(athleteID int64) ([]int64, error) {
	rows, err := db.Query(`
		SELECT id FROM activities
		WHERE athlete_id = ?
		ORDER BY start_date_local ASC, id ASC
	`, athleteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListActivitiesSince returns the history of activities whose local start
// date is on or after since, oldest first. HRSS is read from the stored
// analytics payload and is nil where it is missing or unreadable.
func (db *DB) ListActivitiesSince(athleteID int64, since time.Time) ([]ActivityHistory, error) {
	rows, err := db.Query(`
		SELECT id, type, start_date_local, timezone, moving_time, analytics
		FROM activities
		WHERE athlete_id = ? AND start_date_local >= ?
		ORDER BY start_date_local ASC, id ASC
	`, athleteID, since.Format(localLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []ActivityHistory
	for rows.Next() {
		var h ActivityHistory
		var startLocal string
		var analytics []byte
		if err := rows.Scan(&h.ID, &h.Type, &startLocal, &h.Timezone, &h.MovingTime, &analytics); err != nil {
			return nil, err
		}
		h.StartDateLocal, err = time.Parse(time.RFC3339, startLocal)
		if err != nil {
			return nil, fmt.Errorf("parsing start_date_local %q: %w", startLocal, err)
		}
		h.HRSS = AnalyticsHRSS(analytics)
		history = append(history, h)
	}
	return history, rows.Err()
}

// AnalyticsHRSS extracts the stress score from an analytics payload.
// Older payloads may carry it as a string; anything unreadable is nil.
func AnalyticsHRSS(analytics []byte) *float64 {
	if len(analytics) == 0 {
		return nil
	}

	raw, typ, _, err := jsonparser.Get(analytics, "hrss")
	if err != nil {
		return nil
	}

	var v float64
	switch typ {
	case jsonparser.Number:
		v, err = jsonparser.ParseFloat(raw)
	case jsonparser.String:
		v, err = strconv.ParseFloat(string(raw), 64)
	default:
		return nil
	}
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// CountActivities returns the number of stored activities of an athlete
func (db *DB) CountActivities(athleteID int64) (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM activities WHERE athlete_id = ?`, athleteID).Scan(&n)
	return n, err
}

// DistanceByType returns the all-time distance in meters per activity type
func (db *DB) DistanceByType(athleteID int64) (map[string]float64, error) {
	rows, err := db.Query(`
		SELECT type, SUM(distance)
		FROM activities
		WHERE athlete_id = ?
		GROUP BY type
	`, athleteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]float64)
	for rows.Next() {
		var typ string
		var meters float64
		if err := rows.Scan(&typ, &meters); err != nil {
			return nil, err
		}
		totals[typ] = meters
	}
	return totals, rows.Err()
}

// LatestTimezone returns the timezone of the athlete's most recent
// activity, or "" when there is none.
func (db *DB) LatestTimezone(athleteID int64) (string, error) {
	var tz string
	err := db.QueryRow(`
		SELECT timezone FROM activities
		WHERE athlete_id = ?
		ORDER BY start_date DESC
		LIMIT 1
	`, athleteID).Scan(&tz)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return tz, err
}

// LatestStartDate returns the start of the athlete's most recent activity,
// or the zero time when there is none.
func (db *DB) LatestStartDate(athleteID int64) (time.Time, error) {
	var start sql.NullString
	err := db.QueryRow(`SELECT MAX(start_date) FROM activities WHERE athlete_id = ?`, athleteID).Scan(&start)
	if err != nil || !start.Valid {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, start.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing start_date %q: %w", start.String, err)
	}
	return t, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanActivity(row scanner) (*Activity, error) {
	var a Activity
	var startDate, startDateLocal string
	var hasHR int
	var detail, streams sql.NullString
	var analytics string

	err := row.Scan(
		&a.ID, &a.AthleteID, &a.Name, &a.Type, &startDate, &startDateLocal, &a.Timezone,
		&a.Distance, &a.MovingTime, &a.ElapsedTime, &a.TotalElevationGain, &hasHR,
		&detail, &streams, &analytics,
	)
	if err != nil {
		return nil, err
	}

	a.StartDate, err = time.Parse(time.RFC3339, startDate)
	if err != nil {
		return nil, fmt.Errorf("parsing start_date %q: %w", startDate, err)
	}
	a.StartDateLocal, err = time.Parse(time.RFC3339, startDateLocal)
	if err != nil {
		return nil, fmt.Errorf("parsing start_date_local %q: %w", startDateLocal, err)
	}
	a.HasHeartrate = hasHR == 1
	if detail.Valid {
		a.Detail = []byte(detail.String)
	}
	if streams.Valid {
		a.Streams = []byte(streams.String)
	}
	a.Analytics = []byte(analytics)

	return &a, nil
}
