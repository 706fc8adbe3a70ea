package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"stramate/internal/analysis"
)

const (
	configName = "config"
	configType = "json"
	envPrefix  = "STRAMATE"

	// DirEnv overrides the config directory
	DirEnv = "STRAMATE_CONFIG_DIR"
)

// Config represents the application configuration
type Config struct {
	Strava    StravaConfig    `json:"strava" mapstructure:"strava"`
	Athlete   AthleteConfig   `json:"athlete" mapstructure:"athlete"`
	Analytics AnalyticsConfig `json:"analytics" mapstructure:"analytics"`
	Storage   StorageConfig   `json:"storage" mapstructure:"storage"`
	Display   DisplayConfig   `json:"display" mapstructure:"display"`
}

// StravaConfig holds Strava API credentials
type StravaConfig struct {
	ClientID     string `json:"client_id" mapstructure:"client_id"`
	ClientSecret string `json:"client_secret" mapstructure:"client_secret"`
	CallbackPort int    `json:"callback_port" mapstructure:"callback_port"`
}

// AthleteConfig is the default physiological profile, used until a
// profile is stored with "stramate athlete set"
type AthleteConfig struct {
	Sex            string    `json:"sex" mapstructure:"sex"`           // M, F or O
	Birthday       string    `json:"birthday" mapstructure:"birthday"` // YYYY-MM-DD
	RestingHR      int       `json:"resting_hr" mapstructure:"resting_hr"`
	ZoneThresholds []float64 `json:"zone_thresholds" mapstructure:"zone_thresholds"` // fractions of HR reserve
}

// AnalyticsConfig tunes the training-load model
type AnalyticsConfig struct {
	CTLDays           int     `json:"ctl_days" mapstructure:"ctl_days"`
	ATLDays           int     `json:"atl_days" mapstructure:"atl_days"`
	WindowDays        int     `json:"window_days" mapstructure:"window_days"`
	WarmupDays        int     `json:"warmup_days" mapstructure:"warmup_days"`
	Smoothing         string  `json:"smoothing" mapstructure:"smoothing"` // ewma or rolling
	TRIMPFactorMale   float64 `json:"trimp_factor_male" mapstructure:"trimp_factor_male"`
	TRIMPFactorFemale float64 `json:"trimp_factor_female" mapstructure:"trimp_factor_female"`
	TRIMPWeight       float64 `json:"trimp_weight" mapstructure:"trimp_weight"`
	ThresholdReserve  float64 `json:"threshold_reserve" mapstructure:"threshold_reserve"`
	AgePredictedBase  int     `json:"age_predicted_base" mapstructure:"age_predicted_base"`
	Workers           int     `json:"workers" mapstructure:"workers"`
}

// StorageConfig holds the database location
type StorageConfig struct {
	Path string `json:"path" mapstructure:"path"` // empty means <config dir>/stramate.db
}

// DisplayConfig holds display preferences
type DisplayConfig struct {
	DistanceUnit string `json:"distance_unit" mapstructure:"distance_unit"`
	ChartHeight  int    `json:"chart_height" mapstructure:"chart_height"`
}

// ErrNoConfig is returned when neither a config file nor credentials
// in the environment exist
var ErrNoConfig = errors.New("config file not found")

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	point := analysis.DefaultPointConfig()
	trend := analysis.DefaultTrendConfig()
	return Config{
		Strava: StravaConfig{
			CallbackPort: 8089,
		},
		Athlete: AthleteConfig{
			Sex:            string(analysis.SexOther),
			RestingHR:      60,
			ZoneThresholds: point.ZoneThresholds[:],
		},
		Analytics: AnalyticsConfig{
			CTLDays:           trend.CTLDays,
			ATLDays:           trend.ATLDays,
			WindowDays:        trend.WindowDays,
			WarmupDays:        trend.WarmupDays,
			Smoothing:         string(trend.Smoothing),
			TRIMPFactorMale:   point.TRIMPFactorMale,
			TRIMPFactorFemale: point.TRIMPFactorFemale,
			TRIMPWeight:       point.TRIMPWeight,
			ThresholdReserve:  point.ThresholdReserve,
			AgePredictedBase:  point.AgePredictedBase,
			Workers:           4,
		},
		Display: DisplayConfig{
			DistanceUnit: "km",
			ChartHeight:  12,
		},
	}
}

// applyDefaults registers every key so environment overrides reach Unmarshal
func applyDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("strava.client_id", d.Strava.ClientID)
	v.SetDefault("strava.client_secret", d.Strava.ClientSecret)
	v.SetDefault("strava.callback_port", d.Strava.CallbackPort)

	v.SetDefault("athlete.sex", d.Athlete.Sex)
	v.SetDefault("athlete.birthday", d.Athlete.Birthday)
	v.SetDefault("athlete.resting_hr", d.Athlete.RestingHR)
	v.SetDefault("athlete.zone_thresholds", d.Athlete.ZoneThresholds)

	v.SetDefault("analytics.ctl_days", d.Analytics.CTLDays)
	v.SetDefault("analytics.atl_days", d.Analytics.ATLDays)
	v.SetDefault("analytics.window_days", d.Analytics.WindowDays)
	v.SetDefault("analytics.warmup_days", d.Analytics.WarmupDays)
	v.SetDefault("analytics.smoothing", d.Analytics.Smoothing)
	v.SetDefault("analytics.trimp_factor_male", d.Analytics.TRIMPFactorMale)
	v.SetDefault("analytics.trimp_factor_female", d.Analytics.TRIMPFactorFemale)
	v.SetDefault("analytics.trimp_weight", d.Analytics.TRIMPWeight)
	v.SetDefault("analytics.threshold_reserve", d.Analytics.ThresholdReserve)
	v.SetDefault("analytics.age_predicted_base", d.Analytics.AgePredictedBase)
	v.SetDefault("analytics.workers", d.Analytics.Workers)

	v.SetDefault("storage.path", d.Storage.Path)

	v.SetDefault("display.distance_unit", d.Display.DistanceUnit)
	v.SetDefault("display.chart_height", d.Display.ChartHeight)
}

// Load reads <config dir>/config.json, with STRAMATE_* environment
// variables (optionally from a .env file in the working directory)
// taking precedence, e.g. STRAMATE_STRAVA_CLIENT_ID.
func Load() (*Config, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(filepath.Join(dir, configName+"."+configType))
}

// LoadFrom is Load with an explicit config file path
func LoadFrom(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	applyDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fileMissing := false
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound), errors.Is(err, os.ErrNotExist):
			fileMissing = true
		default:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if fileMissing && cfg.Strava.ClientID == "" {
		return nil, ErrNoConfig
	}
	return &cfg, nil
}

// Save writes the configuration to <config dir>/config.json
func Save(cfg *Config) error {
	dir, err := GetConfigDir()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	path := filepath.Join(dir, configName+"."+configType)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// CreateExample creates an example config file if none exists
func CreateExample() error {
	dir, err := GetConfigDir()
	if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(dir, configName+"."+configType)); err == nil {
		return nil // don't overwrite
	}

	example := DefaultConfig()
	example.Strava.ClientID = "YOUR_CLIENT_ID"
	example.Strava.ClientSecret = "YOUR_CLIENT_SECRET"
	example.Athlete.Birthday = "1990-01-01"
	return Save(&example)
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c.Strava.ClientID == "" || c.Strava.ClientID == "YOUR_CLIENT_ID" {
		return errors.New("strava.client_id is required - get it from https://www.strava.com/settings/api")
	}
	if c.Strava.ClientSecret == "" || c.Strava.ClientSecret == "YOUR_CLIENT_SECRET" {
		return errors.New("strava.client_secret is required - get it from https://www.strava.com/settings/api")
	}
	if c.Strava.CallbackPort < 0 || c.Strava.CallbackPort > 65535 {
		return fmt.Errorf("strava.callback_port out of range: %d", c.Strava.CallbackPort)
	}

	if _, err := c.Profile(); err != nil {
		return err
	}

	a := c.Analytics
	if a.CTLDays <= 0 || a.ATLDays <= 0 {
		return fmt.Errorf("analytics.ctl_days and analytics.atl_days must be positive, got %d and %d", a.CTLDays, a.ATLDays)
	}
	if a.WindowDays <= 0 || a.WarmupDays < 0 {
		return fmt.Errorf("analytics.window_days must be positive and analytics.warmup_days non-negative, got %d and %d", a.WindowDays, a.WarmupDays)
	}
	switch analysis.Smoothing(a.Smoothing) {
	case analysis.SmoothingEWMA, analysis.SmoothingRolling:
	default:
		return fmt.Errorf("analytics.smoothing must be \"ewma\" or \"rolling\", got %q", a.Smoothing)
	}
	if a.ThresholdReserve <= 0 || a.ThresholdReserve >= 1 {
		return fmt.Errorf("analytics.threshold_reserve must be between 0 and 1, got %v", a.ThresholdReserve)
	}
	if a.Workers < 1 {
		return fmt.Errorf("analytics.workers must be at least 1, got %d", a.Workers)
	}

	if c.Display.DistanceUnit != "" && c.Display.DistanceUnit != "km" && c.Display.DistanceUnit != "mi" {
		return fmt.Errorf("display.distance_unit must be \"km\" or \"mi\", got %q", c.Display.DistanceUnit)
	}
	return nil
}

// PointConfig projects the per-activity analysis settings
func (c *Config) PointConfig() analysis.PointConfig {
	cfg := analysis.PointConfig{
		TRIMPFactorMale:   c.Analytics.TRIMPFactorMale,
		TRIMPFactorFemale: c.Analytics.TRIMPFactorFemale,
		TRIMPWeight:       c.Analytics.TRIMPWeight,
		ThresholdReserve:  c.Analytics.ThresholdReserve,
		AgePredictedBase:  c.Analytics.AgePredictedBase,
	}
	copy(cfg.ZoneThresholds[:], c.Athlete.ZoneThresholds)
	return cfg
}

// TrendConfig projects the training-load settings
func (c *Config) TrendConfig() analysis.TrendConfig {
	return analysis.TrendConfig{
		CTLDays:    c.Analytics.CTLDays,
		ATLDays:    c.Analytics.ATLDays,
		WindowDays: c.Analytics.WindowDays,
		WarmupDays: c.Analytics.WarmupDays,
		Smoothing:  analysis.Smoothing(c.Analytics.Smoothing),
	}
}

// Profile builds the default athlete profile
func (c *Config) Profile() (analysis.Profile, error) {
	a := c.Athlete
	p := analysis.Profile{
		Sex:       analysis.ParseSex(a.Sex),
		RestingHR: a.RestingHR,
	}

	if a.Sex != "" && string(p.Sex) != strings.ToUpper(strings.TrimSpace(a.Sex)) {
		return p, fmt.Errorf("athlete.sex must be M, F or O, got %q", a.Sex)
	}
	if a.Birthday != "" {
		b, err := time.Parse(time.DateOnly, a.Birthday)
		if err != nil {
			return p, fmt.Errorf("athlete.birthday must be YYYY-MM-DD: %w", err)
		}
		p.Birthday = b
	}
	if a.RestingHR < 20 || a.RestingHR > 150 {
		return p, fmt.Errorf("athlete.resting_hr out of range: %d", a.RestingHR)
	}
	if len(a.ZoneThresholds) != 0 {
		if len(a.ZoneThresholds) != 4 {
			return p, fmt.Errorf("athlete.zone_thresholds needs 4 values, got %d", len(a.ZoneThresholds))
		}
		for i, v := range a.ZoneThresholds {
			if v <= 0 || v >= 1 || (i > 0 && v <= a.ZoneThresholds[i-1]) {
				return p, fmt.Errorf("athlete.zone_thresholds must be increasing fractions in (0,1), got %v", a.ZoneThresholds)
			}
		}
		copy(p.ZoneThresholds[:], a.ZoneThresholds)
	}
	return p, nil
}

// DatabasePath returns the configured database file
func (c *Config) DatabasePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "stramate.db"), nil
}

// GetConfigDir returns the config directory, ~/.stramate unless
// STRAMATE_CONFIG_DIR is set
func GetConfigDir() (string, error) {
	if dir := os.Getenv(DirEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".stramate"), nil
}
