package store

import (
	"encoding/json"
	"time"
)

// Auth represents OAuth tokens for Strava API access
type Auth struct {
	AthleteID    int64     `db:"athlete_id"`
	AccessToken  string    `db:"access_token"`
	RefreshToken string    `db:"refresh_token"`
	ExpiresAt    time.Time `db:"expires_at"`
}

// Athlete is the physiological profile used for heart-rate analytics
type Athlete struct {
	ID             int64      `db:"id"`
	Firstname      string     `db:"firstname"`
	Lastname       string     `db:"lastname"`
	Sex            string     `db:"sex"`      // M, F or O
	Birthday       time.Time  `db:"birthday"` // zero if unknown
	RestingHR      int        `db:"resting_hr"`
	ZoneThresholds [4]float64 // zero means "use configured defaults"
}

// Activity is a Strava activity with its raw payloads
type Activity struct {
	ID                 int64           `db:"id"`
	AthleteID          int64           `db:"athlete_id"`
	Name               string          `db:"name"`
	Type               string          `db:"type"`
	StartDate          time.Time       `db:"start_date"`
	StartDateLocal     time.Time       `db:"start_date_local"` // wall clock, stored with a Z suffix
	Timezone           string          `db:"timezone"`
	Distance           float64         `db:"distance"`     // meters
	MovingTime         int             `db:"moving_time"`  // seconds
	ElapsedTime        int             `db:"elapsed_time"` // seconds
	TotalElevationGain float64         `db:"total_elevation_gain"`
	HasHeartrate       bool            `db:"has_heartrate"`
	Detail             json.RawMessage `db:"detail"`    // nullable
	Streams            json.RawMessage `db:"streams"`   // nullable
	Analytics          json.RawMessage `db:"analytics"` // "{}" until analyzed
}

// ActivityHistory is the slice of an activity the aggregators read
type ActivityHistory struct {
	ID             int64
	Type           string
	StartDateLocal time.Time
	Timezone       string
	MovingTime     int
	HRSS           *float64 // nil when not analyzed or no heart rate
}

// Snapshot is a stored per-athlete, per-day analytics record
type Snapshot struct {
	AthleteID  int64           `db:"athlete_id"`
	Date       string          `db:"date"` // YYYY-MM-DD
	Timezone   string          `db:"timezone"`
	Fitness    json.RawMessage `db:"fitness"`
	Heatmap    json.RawMessage `db:"heatmap"`
	ComputedAt time.Time       `db:"computed_at"`
}
