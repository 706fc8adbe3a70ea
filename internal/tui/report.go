package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"

	"stramate/internal/analysis"
)

// ReportOptions controls how a snapshot is rendered
type ReportOptions struct {
	Units       Units
	ChartHeight int
	ChartDays   int // trailing days plotted, 0 plots the whole window
	ComputedAt  time.Time
	LastSync    time.Time
	Now         time.Time
}

// RenderReport renders a snapshot as the fitness dashboard
func RenderReport(snap *analysis.Snapshot, opts ReportOptions) string {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.ChartHeight <= 0 {
		opts.ChartHeight = 12
	}

	header := headerStyle.Render(fmt.Sprintf("Training load %s (%s)", snap.Date, snap.Timezone))
	sections := []string{header}

	if len(snap.Fitness) == 0 {
		sections = append(sections, mutedStyle.Render("No activities yet. Run 'stramate sync' first."))
	} else {
		sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top,
			renderFitnessCard(snap.Fitness), "  ", renderVolumeCard(snap.Heatmap, opts.Units)))
		sections = append(sections, renderFitnessChart(snap.Fitness, opts))
	}
	sections = append(sections, renderHeatmap(snap.Heatmap.LastYearMoving))

	var footer []string
	if !opts.ComputedAt.IsZero() {
		footer = append(footer, "computed "+humanize.RelTime(opts.ComputedAt, opts.Now, "ago", "from now"))
	}
	if !opts.LastSync.IsZero() {
		footer = append(footer, "last synced "+humanize.RelTime(opts.LastSync, opts.Now, "ago", "from now"))
	}
	if len(footer) > 0 {
		sections = append(sections, statusStyle.Render(strings.Join(footer, ", ")))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func renderFitnessCard(points []analysis.TrendPoint) string {
	current := analysis.CurrentFitness(points)
	var weekAgo analysis.TrendPoint
	if len(points) > 7 {
		weekAgo = points[len(points)-8]
	}

	lines := []string{
		RenderMetric("Fitness (CTL)", fmt.Sprintf("%.1f", current.CTL), signed(current.CTL-weekAgo.CTL)),
		RenderMetric("Fatigue (ATL)", fmt.Sprintf("%.1f", current.ATL), signed(current.ATL-weekAgo.ATL)),
		RenderMetric("Form (TSB)", fmt.Sprintf("%.1f", current.TSB), signed(current.TSB-weekAgo.TSB)),
		"",
		mutedStyle.Render(analysis.FormDescription(current.TSB)),
	}

	title := cardTitleStyle.Render("Current Fitness")
	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return cardStyle.Width(42).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func renderVolumeCard(h analysis.HeatmapSnapshot, units Units) string {
	var moving int
	for _, c := range h.LastYearMoving {
		moving += c.Moving
	}

	lines := []string{
		RenderMetric("All-time activities", humanize.Comma(int64(h.AllTimeTotal)), ""),
		RenderMetric("Last 365 days", humanize.Comma(int64(h.LastYearTotal)), ""),
		RenderMetric("Moving time", orDash(analysis.FormatDuration(moving)), ""),
	}

	types := make([]string, 0, len(h.AllTimeDistance))
	for typ := range h.AllTimeDistance {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		lines = append(lines, RenderMetric(typ, units.FormatKilometers(h.AllTimeDistance[typ]), ""))
	}

	title := cardTitleStyle.Render("Volume")
	content := lipgloss.JoinVertical(lipgloss.Left, lines...)
	return cardStyle.Width(40).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
}

func renderFitnessChart(points []analysis.TrendPoint, opts ReportOptions) string {
	if opts.ChartDays > 0 && len(points) > opts.ChartDays {
		points = points[len(points)-opts.ChartDays:]
	}
	if len(points) < 2 {
		return ""
	}

	ctl := make([]float64, len(points))
	atl := make([]float64, len(points))
	tsb := make([]float64, len(points))
	for i, p := range points {
		ctl[i], atl[i], tsb[i] = p.CTL, p.ATL, p.TSB
	}

	graph := asciigraph.PlotMany([][]float64{ctl, atl, tsb},
		asciigraph.Height(opts.ChartHeight),
		asciigraph.Width(72),
		asciigraph.Precision(1),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red, asciigraph.Green),
		asciigraph.Caption(fmt.Sprintf("%s to %s: CTL blue, ATL red, TSB green", points[0].Date, points[len(points)-1].Date)),
	)

	title := cardTitleStyle.Render("Fitness, Fatigue and Form")
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, title, graph))
}

// renderHeatmap draws the activity calendar with one column per week
func renderHeatmap(cells []analysis.HeatmapCell) string {
	if len(cells) == 0 {
		return ""
	}

	grid := heatmapGrid(cells)
	labels := []string{"Sun", "", "Tue", "", "Thu", "", "Sat"}

	rows := make([]string, 0, 7)
	for day, levels := range grid {
		var b strings.Builder
		b.WriteString(mutedStyle.Width(4).Render(labels[day]))
		for _, level := range levels {
			if level < 0 {
				b.WriteString(" ")
				continue
			}
			b.WriteString(lipgloss.NewStyle().Foreground(heatColors[level]).Render("■"))
		}
		rows = append(rows, b.String())
	}

	first, last := cells[0], cells[len(cells)-1]
	title := cardTitleStyle.Render(fmt.Sprintf("Activity %s to %s", first.Label, last.Label))
	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, append([]string{title}, rows...)...))
}

// heatmapGrid lays ascending cells out as weekday rows and week columns.
// Positions outside the calendar hold -1.
func heatmapGrid(cells []analysis.HeatmapCell) [7][]int {
	offset := cells[0].Weekday
	weeks := (offset + len(cells) + 6) / 7

	var grid [7][]int
	for day := range grid {
		grid[day] = make([]int, weeks)
		for w := range grid[day] {
			grid[day][w] = -1
		}
	}
	for i, c := range cells {
		pos := offset + i
		grid[c.Weekday][pos/7] = heatLevel(c.Moving)
	}
	return grid
}

// heatLevel buckets a day's moving time into the calendar's color scale
func heatLevel(seconds int) int {
	switch {
	case seconds <= 0:
		return 0
	case seconds < 30*60:
		return 1
	case seconds < 60*60:
		return 2
	case seconds < 2*60*60:
		return 3
	default:
		return 4
	}
}

func signed(delta float64) string {
	if delta > -0.05 && delta < 0.05 {
		return "="
	}
	return fmt.Sprintf("%+.1f", delta)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
