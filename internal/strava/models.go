package strava

import (
	"encoding/json"
	"strings"
	"time"
)

// StreamKeys are the stream types requested for every activity
var StreamKeys = []string{
	"time", "latlng", "distance", "altitude", "velocity_smooth",
	"heartrate", "cadence", "watts", "temp", "moving", "grade_smooth",
}

// Activity represents a Strava activity summary from the API
type Activity struct {
	ID                 int64     `json:"id"`
	Athlete            Athlete   `json:"athlete"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	SportType          string    `json:"sport_type"`
	StartDate          time.Time `json:"start_date"`
	StartDateLocal     time.Time `json:"start_date_local"` // wall clock with a Z suffix
	Timezone           string    `json:"timezone"`         // "(GMT+01:00) Europe/Paris"
	Distance           float64   `json:"distance"`         // meters
	MovingTime         int       `json:"moving_time"`      // seconds
	ElapsedTime        int       `json:"elapsed_time"`     // seconds
	TotalElevationGain float64   `json:"total_elevation_gain"`
	HasHeartrate       bool      `json:"has_heartrate"`
}

// Athlete is the minimal athlete reference inside an activity
type Athlete struct {
	ID int64 `json:"id"`
}

// AthleteProfile is the authenticated athlete from GET /athlete
type AthleteProfile struct {
	ID        int64  `json:"id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Sex       string `json:"sex"` // "M", "F" or empty
}

// Stream is one stream of a key_by_type response. Data is kept raw since
// its element type depends on the stream (numbers, pairs, booleans).
type Stream struct {
	Data         json.RawMessage `json:"data"`
	SeriesType   string          `json:"series_type"`
	OriginalSize int             `json:"original_size"`
	Resolution   string          `json:"resolution"`
}

// Streams is a key_by_type stream response
type Streams map[string]Stream

// ParseStreams decodes a stored or fetched stream payload
func ParseStreams(raw []byte) (Streams, error) {
	var s Streams
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// Scalars returns every numeric stream as nullable samples. Streams of
// other shapes (latlng pairs, the moving flags) are left out.
func (s Streams) Scalars() map[string][]*float64 {
	out := make(map[string][]*float64, len(s))
	for key, stream := range s {
		var samples []*float64
		if err := json.Unmarshal(stream.Data, &samples); err != nil {
			continue
		}
		out[key] = samples
	}
	return out
}

// Len returns the number of time samples
func (s Streams) Len() int {
	var t []json.RawMessage
	if err := json.Unmarshal(s["time"].Data, &t); err != nil {
		return 0
	}
	return len(t)
}

// Keys returns the stream types present, comma separated
func (s Streams) Keys() string {
	keys := make([]string, 0, len(s))
	for _, k := range StreamKeys {
		if _, ok := s[k]; ok {
			keys = append(keys, k)
		}
	}
	return strings.Join(keys, ",")
}
