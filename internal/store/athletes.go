package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const birthdayLayout = "2006-01-02"

// SaveAthlete inserts or replaces an athlete profile.
// Zero zone thresholds are stored as NULL.
func (db *DB) SaveAthlete(a *Athlete) error {
	var birthday any
	if !a.Birthday.IsZero() {
		birthday = a.Birthday.Format(birthdayLayout)
	}
	sex := a.Sex
	if sex == "" {
		sex = "O"
	}

	thresholds := make([]any, len(a.ZoneThresholds))
	for i, v := range a.ZoneThresholds {
		if v > 0 {
			thresholds[i] = v
		}
	}

	_, err := db.Exec(`
		INSERT INTO athletes (
			id, firstname, lastname, sex, birthday, resting_hr,
			zone_threshold_1, zone_threshold_2, zone_threshold_3, zone_threshold_4, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			firstname = excluded.firstname,
			lastname = excluded.lastname,
			sex = excluded.sex,
			birthday = excluded.birthday,
			resting_hr = excluded.resting_hr,
			zone_threshold_1 = excluded.zone_threshold_1,
			zone_threshold_2 = excluded.zone_threshold_2,
			zone_threshold_3 = excluded.zone_threshold_3,
			zone_threshold_4 = excluded.zone_threshold_4,
			updated_at = CURRENT_TIMESTAMP
	`, a.ID, a.Firstname, a.Lastname, sex, birthday, a.RestingHR,
		thresholds[0], thresholds[1], thresholds[2], thresholds[3])
	if err != nil {
		return fmt.Errorf("saving athlete %d: %w", a.ID, err)
	}
	return nil
}

// GetAthlete retrieves an athlete profile
func (db *DB) GetAthlete(id int64) (*Athlete, error) {
	var a Athlete
	var birthday sql.NullString
	var z [4]sql.NullFloat64

	err := db.QueryRow(`
		SELECT id, firstname, lastname, sex, birthday, resting_hr,
			zone_threshold_1, zone_threshold_2, zone_threshold_3, zone_threshold_4
		FROM athletes
		WHERE id = ?
	`, id).Scan(&a.ID, &a.Firstname, &a.Lastname, &a.Sex, &birthday, &a.RestingHR,
		&z[0], &z[1], &z[2], &z[3])
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAthleteNotFound
	}
	if err != nil {
		return nil, err
	}

	if birthday.Valid {
		a.Birthday, err = time.Parse(birthdayLayout, birthday.String)
		if err != nil {
			return nil, fmt.Errorf("parsing birthday %q: %w", birthday.String, err)
		}
	}
	for i, v := range z {
		if v.Valid {
			a.ZoneThresholds[i] = v.Float64
		}
	}
	return &a, nil
}
