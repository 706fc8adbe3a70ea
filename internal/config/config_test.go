package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stramate/internal/analysis"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Strava.ClientID = "12345"
	cfg.Strava.ClientSecret = "abc123secret"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "O", cfg.Athlete.Sex)
	assert.Equal(t, 60, cfg.Athlete.RestingHR)
	assert.Equal(t, []float64{0.6, 0.7, 0.8, 0.9}, cfg.Athlete.ZoneThresholds)
	assert.Equal(t, 42, cfg.Analytics.CTLDays)
	assert.Equal(t, 7, cfg.Analytics.ATLDays)
	assert.Equal(t, "ewma", cfg.Analytics.Smoothing)
	assert.Equal(t, 4, cfg.Analytics.Workers)
	assert.Equal(t, "km", cfg.Display.DistanceUnit)
	assert.Empty(t, cfg.Strava.ClientID)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(*Config)
		errContains string
	}{
		{name: "valid config", modify: func(*Config) {}},
		{
			name:        "empty client ID",
			modify:      func(c *Config) { c.Strava.ClientID = "" },
			errContains: "strava.client_id",
		},
		{
			name:        "placeholder client secret",
			modify:      func(c *Config) { c.Strava.ClientSecret = "YOUR_CLIENT_SECRET" },
			errContains: "strava.client_secret",
		},
		{
			name:        "unknown sex",
			modify:      func(c *Config) { c.Athlete.Sex = "X" },
			errContains: "athlete.sex",
		},
		{
			name:   "lowercase sex",
			modify: func(c *Config) { c.Athlete.Sex = "f" },
		},
		{
			name:        "bad birthday",
			modify:      func(c *Config) { c.Athlete.Birthday = "15/06/1990" },
			errContains: "athlete.birthday",
		},
		{
			name:        "resting hr out of range",
			modify:      func(c *Config) { c.Athlete.RestingHR = 0 },
			errContains: "athlete.resting_hr",
		},
		{
			name:        "thresholds not increasing",
			modify:      func(c *Config) { c.Athlete.ZoneThresholds = []float64{0.6, 0.5, 0.8, 0.9} },
			errContains: "athlete.zone_thresholds",
		},
		{
			name:        "three thresholds",
			modify:      func(c *Config) { c.Athlete.ZoneThresholds = []float64{0.6, 0.7, 0.8} },
			errContains: "athlete.zone_thresholds",
		},
		{
			name:        "zero spans",
			modify:      func(c *Config) { c.Analytics.ATLDays = 0 },
			errContains: "analytics.ctl_days",
		},
		{
			name:        "unknown smoothing",
			modify:      func(c *Config) { c.Analytics.Smoothing = "kalman" },
			errContains: "analytics.smoothing",
		},
		{
			name:        "no workers",
			modify:      func(c *Config) { c.Analytics.Workers = 0 },
			errContains: "analytics.workers",
		},
		{
			name:        "invalid distance unit",
			modify:      func(c *Config) { c.Display.DistanceUnit = "furlongs" },
			errContains: "display.distance_unit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestProjections(t *testing.T) {
	cfg := validConfig()
	cfg.Athlete.Sex = "M"
	cfg.Athlete.Birthday = "1990-05-20"
	cfg.Athlete.RestingHR = 52
	cfg.Athlete.ZoneThresholds = []float64{0.5, 0.65, 0.75, 0.88}
	cfg.Analytics.Smoothing = "rolling"

	p, err := cfg.Profile()
	require.NoError(t, err)
	assert.Equal(t, analysis.SexMale, p.Sex)
	assert.True(t, p.Birthday.Equal(time.Date(1990, 5, 20, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 52, p.RestingHR)
	assert.Equal(t, [4]float64{0.5, 0.65, 0.75, 0.88}, p.ZoneThresholds)

	point := cfg.PointConfig()
	assert.Equal(t, analysis.DefaultPointConfig().TRIMPWeight, point.TRIMPWeight)
	assert.Equal(t, [4]float64{0.5, 0.65, 0.75, 0.88}, point.ZoneThresholds)

	trend := cfg.TrendConfig()
	assert.Equal(t, analysis.SmoothingRolling, trend.Smoothing)
	assert.Equal(t, 407, trend.HistoryDays())
}

func TestDefaultProjectionsMatchEngine(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, analysis.DefaultPointConfig(), cfg.PointConfig())
	assert.Equal(t, analysis.DefaultTrendConfig(), cfg.TrendConfig())
}

func TestLoadMissingConfig(t *testing.T) {
	t.Setenv(DirEnv, t.TempDir())
	t.Setenv("STRAMATE_STRAVA_CLIENT_ID", "")

	_, err := Load()
	assert.ErrorIs(t, err, ErrNoConfig)
}

func TestLoadFromEnvironmentOnly(t *testing.T) {
	t.Setenv(DirEnv, t.TempDir())
	t.Setenv("STRAMATE_STRAVA_CLIENT_ID", "777")
	t.Setenv("STRAMATE_STRAVA_CLIENT_SECRET", "shh")
	t.Setenv("STRAMATE_ANALYTICS_WORKERS", "8")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "777", cfg.Strava.ClientID)
	assert.Equal(t, 8, cfg.Analytics.Workers)
	assert.Equal(t, 42, cfg.Analytics.CTLDays)
	assert.NoError(t, cfg.Validate())
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(DirEnv, dir)
	t.Setenv("STRAMATE_STRAVA_CLIENT_ID", "")

	cfg := validConfig()
	cfg.Athlete.Sex = "F"
	cfg.Athlete.RestingHR = 48
	cfg.Analytics.WindowDays = 180
	require.NoError(t, Save(&cfg))

	info, err := os.Stat(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, cfg, *loaded)

	// Environment wins over the file
	t.Setenv("STRAMATE_ATHLETE_RESTING_HR", "55")
	loaded, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 55, loaded.Athlete.RestingHR)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(DirEnv, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte("{not json"), 0600))

	_, err := Load()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoConfig)
}

func TestCreateExample(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(DirEnv, dir)
	t.Setenv("STRAMATE_STRAVA_CLIENT_ID", "")

	require.NoError(t, CreateExample())
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "YOUR_CLIENT_ID", cfg.Strava.ClientID)
	assert.Error(t, cfg.Validate())

	// Existing config is never overwritten
	cfg.Strava.ClientID = "real"
	require.NoError(t, Save(cfg))
	require.NoError(t, CreateExample())
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "real", cfg.Strava.ClientID)
}

func TestDatabasePath(t *testing.T) {
	t.Setenv(DirEnv, "/tmp/stramate-test")
	cfg := DefaultConfig()

	path, err := cfg.DatabasePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/stramate-test", "stramate.db"), path)

	cfg.Storage.Path = "/data/custom.db"
	path, err = cfg.DatabasePath()
	require.NoError(t, err)
	assert.Equal(t, "/data/custom.db", path)
}
