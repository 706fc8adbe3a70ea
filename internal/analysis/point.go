package analysis

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrDegenerateProfile is returned when the athlete's resting heart rate is
// not below the age-predicted maximum, which leaves no heart-rate reserve.
var ErrDegenerateProfile = errors.New("degenerate heart rate profile")

// Sex of the athlete, used to pick the TRIMP weighting factor
type Sex string

const (
	SexMale   Sex = "M"
	SexFemale Sex = "F"
	SexOther  Sex = "O"
)

// ParseSex normalizes a sex code, anything unknown maps to SexOther
func ParseSex(s string) Sex {
	switch Sex(strings.ToUpper(strings.TrimSpace(s))) {
	case SexMale:
		return SexMale
	case SexFemale:
		return SexFemale
	default:
		return SexOther
	}
}

// Profile holds the athlete data needed for heart rate analysis
type Profile struct {
	Sex       Sex
	Birthday  time.Time
	RestingHR int
	// ZoneThresholds are fractions of heart-rate reserve. A zero value
	// falls back to PointConfig.ZoneThresholds.
	ZoneThresholds [4]float64
}

// PointConfig holds the constants of the per-activity model
type PointConfig struct {
	ZoneThresholds    [4]float64
	TRIMPFactorMale   float64
	TRIMPFactorFemale float64
	TRIMPWeight       float64 // Banister weighting, 0.64
	ThresholdReserve  float64 // LTHR as fraction of reserve (Karvonen), 0.85
	AgePredictedBase  int     // max HR = base - age
}

// DefaultPointConfig returns the standard Banister/Karvonen constants
func DefaultPointConfig() PointConfig {
	return PointConfig{
		ZoneThresholds:    [4]float64{0.6, 0.7, 0.8, 0.9},
		TRIMPFactorMale:   1.92,
		TRIMPFactorFemale: 1.67,
		TRIMPWeight:       0.64,
		ThresholdReserve:  0.85,
		AgePredictedBase:  220,
	}
}

// ActivityInput is everything the analyzer needs from one activity
type ActivityInput struct {
	HasHeartrate bool
	StartDate    time.Time
	Streams      RawStreamSet
}

// MetricsKind discriminates the two shapes of ActivityMetrics
type MetricsKind string

const (
	// KindBounds carries only the heart rate bounds
	KindBounds MetricsKind = "bounds"
	// KindSeries carries bounds, HRSS and the per-second series
	KindSeries MetricsKind = "series"
)

// ActivityMetrics is the analytics blob stored on an activity
type ActivityMetrics struct {
	Kind  MetricsKind `json:"kind"`
	MinHR float64     `json:"min_hr"`
	MaxHR float64     `json:"max_hr"`
	HRSS  *float64    `json:"hrss,omitempty"`

	Timestamps []int64   `json:"timestamp,omitempty"` // unix seconds
	HRZones    []int     `json:"hr_zones,omitempty"`
	Heartrate  []float64 `json:"heartrate,omitempty"`

	// Error marks a failed computation; HRSS is absent when set
	Error string `json:"error,omitempty"`
}

// HasSeries reports whether the metrics carry the full per-second series
func (m ActivityMetrics) HasSeries() bool {
	return m.Kind == KindSeries
}

// StressScore returns HRSS or 0 when it was not computed
func (m ActivityMetrics) StressScore() float64 {
	if m.HRSS == nil {
		return 0
	}
	return *m.HRSS
}

// HRBounds are the derived heart rate limits of an athlete at a point in time
type HRBounds struct {
	Min         float64
	Max         float64
	TRIMPFactor float64
}

// Reserve returns max - min
func (b HRBounds) Reserve() float64 {
	return b.Max - b.Min
}

// Age returns the number of full years between birthday and now
func Age(birthday, now time.Time) int {
	if birthday.IsZero() {
		return 0
	}
	by, bm, bd := birthday.Date()
	ny, nm, nd := now.Date()
	age := ny - by
	if nm < bm || (nm == bm && nd < bd) {
		age--
	}
	if age < 0 {
		return 0
	}
	return age
}

// Bounds derives min/max heart rate and the TRIMP factor for a profile
func Bounds(p Profile, cfg PointConfig, now time.Time) HRBounds {
	factor := cfg.TRIMPFactorFemale
	if p.Sex == SexMale {
		factor = cfg.TRIMPFactorMale
	}
	return HRBounds{
		Min:         float64(p.RestingHR),
		Max:         float64(cfg.AgePredictedBase - Age(p.Birthday, now)),
		TRIMPFactor: factor,
	}
}

// Thresholds returns the athlete's zone thresholds, falling back to cfg
func (p Profile) Thresholds(cfg PointConfig) [4]float64 {
	if p.ZoneThresholds == ([4]float64{}) {
		return cfg.ZoneThresholds
	}
	return p.ZoneThresholds
}

// Analyze computes the analytics blob of one activity.
//
// Activities without heart rate, with a missing stream or with fewer than
// two usable samples produce bounds only. A degenerate profile returns
// bounds-only metrics with the error marker set, together with
// ErrDegenerateProfile.
func Analyze(in ActivityInput, p Profile, cfg PointConfig, now time.Time) (ActivityMetrics, error) {
	b := Bounds(p, cfg, now)
	metrics := ActivityMetrics{
		Kind:  KindBounds,
		MinHR: b.Min,
		MaxHR: b.Max,
	}

	if !in.HasHeartrate {
		return metrics, nil
	}

	series, err := Preprocess(in.Streams, in.StartDate)
	if err != nil {
		metrics.Error = err.Error()
		return metrics, fmt.Errorf("preprocessing streams: %w", err)
	}
	if series.Len() < 2 {
		return metrics, nil
	}

	hrss, err := HRSS(series.Heartrate, b, cfg)
	if err != nil {
		metrics.Error = err.Error()
		return metrics, err
	}

	cuts := ZoneCutoffs(b, p.Thresholds(cfg))
	metrics.Kind = KindSeries
	metrics.HRSS = &hrss
	metrics.Timestamps = make([]int64, series.Len())
	metrics.HRZones = make([]int, series.Len())
	metrics.Heartrate = series.Heartrate
	for i, hr := range series.Heartrate {
		metrics.Timestamps[i] = series.Timestamps[i].Unix()
		metrics.HRZones[i] = MapZone(hr, cuts)
	}

	return metrics, nil
}

// TRIMP sums the per-second Banister impulse of a 1 Hz heart-rate series
func TRIMP(heartrate []float64, b HRBounds, cfg PointConfig) (float64, error) {
	reserve := b.Reserve()
	if reserve <= 0 {
		return 0, fmt.Errorf("%w: min_hr=%v max_hr=%v", ErrDegenerateProfile, b.Min, b.Max)
	}

	var trimp float64
	for _, hr := range heartrate {
		hrr := (hr - b.Min) / reserve
		if hrr < 0 {
			hrr = 0
		}
		trimp += (1.0 / 60.0) * hrr * (cfg.TRIMPWeight * math.Exp(b.TRIMPFactor*hrr))
	}
	return trimp, nil
}

// HRSS calculates Heart Rate Stress Score, where one hour at lactate
// threshold heart rate scores 100
func HRSS(heartrate []float64, b HRBounds, cfg PointConfig) (float64, error) {
	trimp, err := TRIMP(heartrate, b, cfg)
	if err != nil {
		return 0, err
	}

	reserve := b.Reserve()
	lthr := b.Min + cfg.ThresholdReserve*reserve // Karvonen
	hrrLTHR := (lthr - b.Min) / reserve

	thresholdHour := 60 * hrrLTHR * (cfg.TRIMPWeight * math.Exp(b.TRIMPFactor*hrrLTHR))
	return trimp / thresholdHour * 100, nil
}

// ZoneCutoffs returns the upper heart rate bound of zones 1-4
func ZoneCutoffs(b HRBounds, thresholds [4]float64) [4]float64 {
	var cuts [4]float64
	for i, t := range thresholds {
		cuts[i] = math.RoundToEven(b.Min + t*b.Reserve())
	}
	return cuts
}

// MapZone assigns a heart rate to zone 1-5. Missing readings map to 0.
func MapZone(hr float64, cuts [4]float64) int {
	if hr == 0 || math.IsNaN(hr) {
		return 0
	}
	for i, c := range cuts {
		if hr <= c {
			return i + 1
		}
	}
	return 5
}

// ZoneDistribution counts seconds spent in each of zones 1-5.
// Index 0 holds zone 1.
func ZoneDistribution(zones []int) [5]int {
	var dist [5]int
	for _, z := range zones {
		if z >= 1 && z <= 5 {
			dist[z-1]++
		}
	}
	return dist
}

// FormatStressScore formats HRSS for display
func FormatStressScore(hrss *float64) string {
	if hrss == nil || *hrss == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", *hrss)
}
