package analysis

import (
	"fmt"
	"strings"
	"time"
)

// HeatmapDays is the length of the activity calendar
const HeatmapDays = 365

// ActivityVolume is the moving time of one stored activity
type ActivityVolume struct {
	LocalDate  time.Time
	MovingTime int // seconds
}

// HeatmapInput is what the stats aggregator reads from storage
type HeatmapInput struct {
	AllTimeTotal   int
	DistanceByType map[string]float64 // meters
	Activities     []ActivityVolume
}

// HeatmapCell is one day of the activity calendar
type HeatmapCell struct {
	Date      string `json:"x"`
	Weekday   int    `json:"y"` // Sunday = 0
	Label     string `json:"d"`
	Moving    int    `json:"v"` // seconds
	Formatted string `json:"l"`
}

// HeatmapSnapshot summarizes activity volume
type HeatmapSnapshot struct {
	AllTimeTotal    int               `json:"all_time_total"`
	AllTimeDistance map[string]string `json:"all_time_distance"` // km, one decimal
	LastYearTotal   int               `json:"last_year_total"`
	LastYearMoving  []HeatmapCell     `json:"last_year_moving"`
}

// BuildHeatmap builds the activity calendar of the days ending today in loc,
// oldest day first.
func BuildHeatmap(in HeatmapInput, loc *time.Location, now time.Time, days int) HeatmapSnapshot {
	if loc == nil {
		loc = time.UTC
	}
	if days <= 0 {
		days = HeatmapDays
	}

	today := civilDay(now.In(loc))
	start := today.AddDate(0, 0, -(days - 1))

	moving := make(map[string]int)
	var windowTotal int
	for _, a := range in.Activities {
		d := civilDay(a.LocalDate)
		if d.Before(start) || d.After(today) {
			continue
		}
		moving[d.Format(DateLayout)] += a.MovingTime
		windowTotal++
	}

	cells := make([]HeatmapCell, days)
	for i := range cells {
		d := start.AddDate(0, 0, i)
		key := d.Format(DateLayout)
		cells[i] = HeatmapCell{
			Date:      key,
			Weekday:   int(d.Weekday()),
			Label:     d.Format("Jan 2, 2006"),
			Moving:    moving[key],
			Formatted: FormatDuration(moving[key]),
		}
	}

	distance := make(map[string]string, len(in.DistanceByType))
	for typ, meters := range in.DistanceByType {
		distance[typ] = fmt.Sprintf("%.1f", meters/1000)
	}

	return HeatmapSnapshot{
		AllTimeTotal:    in.AllTimeTotal,
		AllTimeDistance: distance,
		LastYearTotal:   windowTotal,
		LastYearMoving:  cells,
	}
}

// FormatDuration formats seconds as "1d 2h 3m 4s", skipping zero units.
// Zero formats as an empty string.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return ""
	}

	d := seconds / 86400
	h := seconds % 86400 / 3600
	m := seconds % 3600 / 60
	s := seconds % 60

	parts := make([]string, 0, 4)
	for _, u := range []struct {
		n    int
		unit string
	}{{d, "d"}, {h, "h"}, {m, "m"}, {s, "s"}} {
		if u.n > 0 {
			parts = append(parts, fmt.Sprintf("%d%s", u.n, u.unit))
		}
	}
	return strings.Join(parts, " ")
}

// Snapshot is the per-athlete, per-day analytics record
type Snapshot struct {
	Date     string          `json:"date"`
	UserID   int64           `json:"user_id"`
	Timezone string          `json:"timezone"`
	Fitness  []TrendPoint    `json:"fitness"`
	Heatmap  HeatmapSnapshot `json:"heatmap"`
}

// BuildSnapshot composes the fitness trend and the activity calendar for
// one athlete. tz is the timezone of the athlete's latest activity.
func BuildSnapshot(userID int64, tz string, loads []ActivityLoad, volume HeatmapInput, now time.Time, cfg TrendConfig) Snapshot {
	loc := ResolveTimezone(tz)
	return Snapshot{
		Date:     civilDay(now.In(loc)).Format(DateLayout),
		UserID:   userID,
		Timezone: loc.String(),
		Fitness:  BuildTrend(loads, loc, now, cfg),
		Heatmap:  BuildHeatmap(volume, loc, now, HeatmapDays),
	}
}
