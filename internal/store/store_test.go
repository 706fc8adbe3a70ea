package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a migrated in-memory database for testing
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testActivity(id int64, typ, local string, moving int) *Activity {
	start, err := time.Parse(time.RFC3339, local)
	if err != nil {
		panic(err)
	}
	return &Activity{
		ID:             id,
		AthleteID:      123,
		Name:           "Morning " + typ,
		Type:           typ,
		StartDate:      start.Add(-2 * time.Hour),
		StartDateLocal: start,
		Timezone:       "(GMT+01:00) Europe/Paris",
		Distance:       5000,
		MovingTime:     moving,
		ElapsedTime:    moving + 60,
		HasHeartrate:   true,
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, Migrate(db.DB))
}

func TestUpsertAndGetActivity(t *testing.T) {
	db := setupTestDB(t)

	a := testActivity(1, "Run", "2024-01-15T10:00:00Z", 1500)
	a.Streams = []byte(`{"time":[0,1],"heartrate":[120,121]}`)
	require.NoError(t, db.UpsertActivity(a))

	got, err := db.GetActivity(1)
	require.NoError(t, err)
	assert.Equal(t, "Run", got.Type)
	assert.Equal(t, 1500, got.MovingTime)
	assert.True(t, got.HasHeartrate)
	assert.True(t, got.StartDateLocal.Equal(a.StartDateLocal))
	assert.True(t, got.StartDate.Equal(a.StartDate))
	assert.JSONEq(t, string(a.Streams), string(got.Streams))
	assert.Nil(t, got.Detail)
	assert.Equal(t, "{}", string(got.Analytics))

	// Re-importing the summary keeps the stored streams
	a.Name = "Renamed"
	a.Streams = nil
	require.NoError(t, db.UpsertActivity(a))
	got, err = db.GetActivity(1)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.NotEmpty(t, got.Streams)
}

func TestGetActivityNotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetActivity(999)
	assert.ErrorIs(t, err, ErrActivityNotFound)

	err = db.SaveAnalytics(999, []byte(`{}`))
	assert.ErrorIs(t, err, ErrActivityNotFound)
}

func TestSavePayloads(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.UpsertActivity(testActivity(1, "Run", "2024-01-15T10:00:00Z", 1500)))

	require.NoError(t, db.SaveDetail(1, []byte(`{"calories":500}`)))
	require.NoError(t, db.SaveStreams(1, []byte(`{"time":[0]}`)))
	require.NoError(t, db.SaveAnalytics(1, []byte(`{"kind":"bounds","min_hr":60,"max_hr":190}`)))

	got, err := db.GetActivity(1)
	require.NoError(t, err)
	assert.JSONEq(t, `{"calories":500}`, string(got.Detail))
	assert.JSONEq(t, `{"time":[0]}`, string(got.Streams))
	assert.JSONEq(t, `{"kind":"bounds","min_hr":60,"max_hr":190}`, string(got.Analytics))

	require.NoError(t, db.SaveAnalytics(1, nil))
	got, err = db.GetActivity(1)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(got.Analytics))
}

func TestAnalyticsHRSS(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		expected *float64
	}{
		{"number", `{"hrss":62.5}`, ptr(62.5)},
		{"integer", `{"hrss":80}`, ptr(80)},
		{"legacy string", `{"hrss":"41.25"}`, ptr(41.25)},
		{"missing", `{"kind":"bounds"}`, nil},
		{"null", `{"hrss":null}`, nil},
		{"garbage string", `{"hrss":"n/a"}`, nil},
		{"empty payload", ``, nil},
		{"not json", `hrss`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnalyticsHRSS([]byte(tt.payload))
			if tt.expected == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.expected, *got, 1e-12)
		})
	}
}

func ptr(v float64) *float64 { return &v }

func TestListActivitiesSince(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.UpsertActivity(testActivity(3, "Run", "2024-03-01T07:00:00Z", 1800)))
	require.NoError(t, db.UpsertActivity(testActivity(1, "Ride", "2023-01-01T07:00:00Z", 3600)))
	require.NoError(t, db.UpsertActivity(testActivity(2, "Run", "2024-02-01T18:30:00Z", 2400)))
	require.NoError(t, db.SaveAnalytics(2, []byte(`{"kind":"series","hrss":55.5}`)))

	other := testActivity(4, "Run", "2024-02-15T07:00:00Z", 100)
	other.AthleteID = 456
	require.NoError(t, db.UpsertActivity(other))

	history, err := db.ListActivitiesSince(123, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, int64(2), history[0].ID)
	assert.Equal(t, "2024-02-01", history[0].StartDateLocal.Format("2006-01-02"))
	assert.Equal(t, 18, history[0].StartDateLocal.Hour())
	require.NotNil(t, history[0].HRSS)
	assert.Equal(t, 55.5, *history[0].HRSS)
	assert.Equal(t, 2400, history[0].MovingTime)

	assert.Equal(t, int64(3), history[1].ID)
	assert.Nil(t, history[1].HRSS)
}

func TestActivityAggregates(t *testing.T) {
	db := setupTestDB(t)

	n, err := db.CountActivities(123)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	tz, err := db.LatestTimezone(123)
	require.NoError(t, err)
	assert.Equal(t, "", tz)

	latest, err := db.LatestStartDate(123)
	require.NoError(t, err)
	assert.True(t, latest.IsZero())

	ride := testActivity(1, "Ride", "2024-01-01T07:00:00Z", 3600)
	ride.Distance = 40000
	newest := testActivity(3, "Run", "2024-03-01T07:00:00Z", 1800)
	newest.Timezone = "(GMT-05:00) America/New_York"
	require.NoError(t, db.UpsertActivity(ride))
	require.NoError(t, db.UpsertActivity(testActivity(2, "Run", "2024-02-01T07:00:00Z", 1800)))
	require.NoError(t, db.UpsertActivity(newest))

	n, err = db.CountActivities(123)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	totals, err := db.DistanceByType(123)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Run": 10000, "Ride": 40000}, totals)

	tz, err = db.LatestTimezone(123)
	require.NoError(t, err)
	assert.Equal(t, "(GMT-05:00) America/New_York", tz)

	latest, err = db.LatestStartDate(123)
	require.NoError(t, err)
	assert.True(t, latest.Equal(newest.StartDate))

	ids, err := db.ListActivityIDs(123)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)
}

func TestAthleteRoundTrip(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetAthlete(123)
	assert.ErrorIs(t, err, ErrAthleteNotFound)

	a := &Athlete{
		ID:        123,
		Firstname: "Ada",
		Sex:       "F",
		Birthday:  time.Date(1990, 5, 20, 0, 0, 0, 0, time.UTC),
		RestingHR: 52,
	}
	require.NoError(t, db.SaveAthlete(a))

	got, err := db.GetAthlete(123)
	require.NoError(t, err)
	assert.Equal(t, "F", got.Sex)
	assert.Equal(t, 52, got.RestingHR)
	assert.True(t, got.Birthday.Equal(a.Birthday))
	assert.Equal(t, [4]float64{}, got.ZoneThresholds)

	a.ZoneThresholds = [4]float64{0.55, 0.65, 0.75, 0.85}
	a.Birthday = time.Time{}
	a.Sex = ""
	require.NoError(t, db.SaveAthlete(a))

	got, err = db.GetAthlete(123)
	require.NoError(t, err)
	assert.Equal(t, "O", got.Sex)
	assert.True(t, got.Birthday.IsZero())
	assert.Equal(t, [4]float64{0.55, 0.65, 0.75, 0.85}, got.ZoneThresholds)
}

func TestSnapshots(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.LatestSnapshot(123)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	s := &Snapshot{
		AthleteID: 123,
		Date:      "2024-06-14",
		Timezone:  "Europe/Paris",
		Fitness:   []byte(`[]`),
		Heatmap:   []byte(`{"all_time_total":0}`),
	}
	require.NoError(t, db.UpsertSnapshot(s))

	// Same day replaces
	s.Fitness = []byte(`[{"date":"2024-06-14","ctl":1,"atl":2,"tsb":-1}]`)
	require.NoError(t, db.UpsertSnapshot(s))

	got, err := db.LatestSnapshot(123)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-14", got.Date)
	assert.JSONEq(t, string(s.Fitness), string(got.Fitness))
	assert.False(t, got.ComputedAt.IsZero())

	s2 := *s
	s2.Date = "2024-06-15"
	require.NoError(t, db.UpsertSnapshot(&s2))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM analytics`).Scan(&count))
	assert.Equal(t, 2, count)

	latest, err := db.LatestSnapshot(123)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-15", latest.Date)

	_, err = db.LatestSnapshot(456)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestSnapshotBadComputedAt(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Exec(`
		INSERT INTO analytics (athlete_id, date, timezone, fitness, heatmap, computed_at)
		VALUES (123, '2024-06-15', 'UTC', '[]', '{}', 'yesterday')
	`)
	require.NoError(t, err)

	_, err = db.LatestSnapshot(123)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSnapshotNotFound)
	assert.Contains(t, err.Error(), "computed_at")
}

func TestAuth(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetAuth()
	assert.ErrorIs(t, err, ErrNoAuth)
	assert.ErrorIs(t, db.UpdateTokens("a", "r", time.Now()), ErrNoAuth)

	expires := time.Unix(1718450000, 0)
	require.NoError(t, db.SaveAuth(&Auth{AthleteID: 123, AccessToken: "a1", RefreshToken: "r1", ExpiresAt: expires}))
	require.NoError(t, db.UpdateTokens("a2", "r2", expires.Add(time.Hour)))

	got, err := db.GetAuth()
	require.NoError(t, err)
	assert.Equal(t, int64(123), got.AthleteID)
	assert.Equal(t, "a2", got.AccessToken)
	assert.True(t, got.ExpiresAt.Equal(expires.Add(time.Hour)))

	tok := got.Token()
	assert.Equal(t, "r2", tok.RefreshToken)
	assert.Equal(t, "Bearer", tok.TokenType)

	require.NoError(t, db.DeleteAuth())
	_, err = db.GetAuth()
	assert.ErrorIs(t, err, ErrNoAuth)
}

func TestSyncState(t *testing.T) {
	db := setupTestDB(t)

	v, err := db.GetSyncState("missing")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	ts, err := db.GetSyncTime(KeyLastSync)
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.SetSyncTime(KeyLastSync, now))
	ts, err = db.GetSyncTime(KeyLastSync)
	require.NoError(t, err)
	assert.True(t, ts.Equal(now))

	require.NoError(t, db.SetSyncState(KeyLastSync, "garbage"))
	_, err = db.GetSyncTime(KeyLastSync)
	assert.Error(t, err)
}
