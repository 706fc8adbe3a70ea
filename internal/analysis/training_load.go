package analysis

import (
	"strings"
	"time"
	_ "time/tzdata" // timezone names from Strava must resolve everywhere
)

// DateLayout is the calendar day format used in trend and heatmap output
const DateLayout = "2006-01-02"

// Smoothing selects how daily stress is averaged into CTL/ATL
type Smoothing string

const (
	// SmoothingEWMA uses an exponentially weighted moving average
	SmoothingEWMA Smoothing = "ewma"
	// SmoothingRolling uses a trailing simple mean
	SmoothingRolling Smoothing = "rolling"
)

// TrendConfig holds the windows of the performance management model
type TrendConfig struct {
	CTLDays    int // Chronic Training Load span - "Fitness"
	ATLDays    int // Acute Training Load span - "Fatigue"
	WindowDays int // reported days
	WarmupDays int // extra leading days that seed the averages
	Smoothing  Smoothing
}

// DefaultTrendConfig returns 42/7 day spans over one reported year
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{
		CTLDays:    42,
		ATLDays:    7,
		WindowDays: 365,
		WarmupDays: 42,
		Smoothing:  SmoothingEWMA,
	}
}

// HistoryDays is how far back activity history must be loaded
func (c TrendConfig) HistoryDays() int {
	return c.WindowDays + c.WarmupDays
}

// ActivityLoad is the stress contribution of one stored activity
type ActivityLoad struct {
	LocalDate time.Time // wall clock start in the activity's timezone
	HRSS      float64
}

// TrendPoint represents CTL/ATL/TSB for a day
type TrendPoint struct {
	Date string  `json:"date"` // YYYY-MM-DD
	CTL  float64 `json:"ctl"`  // Fitness
	ATL  float64 `json:"atl"`  // Fatigue
	TSB  float64 `json:"tsb"`  // Form (CTL - ATL)
}

// civilDay truncates t to its calendar day, dropping the zone
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// BuildTrend computes daily CTL/ATL/TSB up to and including today in loc.
// An athlete without activities has no trend.
func BuildTrend(loads []ActivityLoad, loc *time.Location, now time.Time, cfg TrendConfig) []TrendPoint {
	if len(loads) == 0 || cfg.WindowDays <= 0 {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}

	today := civilDay(now.In(loc))
	days := cfg.HistoryDays()
	start := today.AddDate(0, 0, -(days - 1))

	// Today is always present, even without an activity yet
	loads = append(loads[:len(loads):len(loads)], ActivityLoad{LocalDate: today})

	daily := make([]float64, days)
	for _, l := range loads {
		d := civilDay(l.LocalDate)
		if d.Before(start) || d.After(today) {
			continue
		}
		idx := int(d.Sub(start).Hours() / 24)
		daily[idx] += l.HRSS // Sum multiple activities on same day
	}

	var ctl, atl []float64
	switch cfg.Smoothing {
	case SmoothingRolling:
		ctl = rollingMean(daily, cfg.CTLDays)
		atl = rollingMean(daily, cfg.ATLDays)
	default:
		ctl = ewma(daily, cfg.CTLDays)
		atl = ewma(daily, cfg.ATLDays)
	}

	window := cfg.WindowDays
	if window > days {
		window = days
	}
	points := make([]TrendPoint, 0, window)
	for i := days - window; i < days; i++ {
		points = append(points, TrendPoint{
			Date: start.AddDate(0, 0, i).Format(DateLayout),
			CTL:  ctl[i],
			ATL:  atl[i],
			TSB:  ctl[i] - atl[i],
		})
	}
	return points
}

// ewma is a bias-adjusted exponential moving average with alpha = 2/(span+1).
// Each output is the weighted mean of all values so far, weights decaying by
// (1-alpha) per day.
func ewma(vals []float64, span int) []float64 {
	out := make([]float64, len(vals))
	if span < 1 {
		span = 1
	}
	decay := 1 - 2.0/(float64(span)+1.0)

	var num, den float64
	for i, v := range vals {
		num = v + decay*num
		den = 1 + decay*den
		out[i] = num / den
	}
	return out
}

// rollingMean is a trailing mean over at most window values
func rollingMean(vals []float64, window int) []float64 {
	out := make([]float64, len(vals))
	if window < 1 {
		window = 1
	}
	var sum float64
	for i, v := range vals {
		sum += v
		n := i + 1
		if i >= window {
			sum -= vals[i-window]
			n = window
		}
		out[i] = sum / float64(n)
	}
	return out
}

// CurrentFitness returns the most recent trend point
func CurrentFitness(points []TrendPoint) TrendPoint {
	if len(points) == 0 {
		return TrendPoint{}
	}
	return points[len(points)-1]
}

// ResolveTimezone turns a Strava timezone ("(GMT+01:00) Europe/Paris") or
// an IANA name into a location. Unknown or empty names fall back to UTC.
func ResolveTimezone(tz string) *time.Location {
	tz = strings.TrimSpace(tz)
	if i := strings.LastIndex(tz, ") "); strings.HasPrefix(tz, "(") && i >= 0 {
		tz = strings.TrimSpace(tz[i+2:])
	}
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// FormDescription returns a human-readable description of TSB
func FormDescription(tsb float64) string {
	switch {
	case tsb > 25:
		return "Very fresh (possibly detrained)"
	case tsb > 10:
		return "Fresh and ready to race"
	case tsb > 0:
		return "Neutral - good for training"
	case tsb > -10:
		return "Slightly fatigued"
	case tsb > -25:
		return "Tired but building fitness"
	default:
		return "Very fatigued - rest needed"
	}
}
