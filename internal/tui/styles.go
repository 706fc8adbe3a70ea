package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	accent  = lipgloss.Color("#FC4C02") // Strava orange
	fresh   = lipgloss.Color("#22C55E")
	caution = lipgloss.Color("#EAB308")
	alarm   = lipgloss.Color("#DC2626")
	dim     = lipgloss.Color("#71717A")
	bright  = lipgloss.Color("#FAFAFA")

	// Activity calendar, least to most moving time
	heatColors = []lipgloss.Color{"#3F3F46", "#7C2D12", "#C2410C", "#FC4C02", "#FDBA74"}
)

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

var (
	headerStyle    = fg(bright).Background(accent).Bold(true).Padding(0, 1).MarginBottom(1)
	cardStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(dim).Padding(1, 2)
	cardTitleStyle = fg(accent).Bold(true).MarginBottom(1)
	labelStyle     = fg(dim).Width(20)
	valueStyle     = fg(bright).Bold(true)
	statusStyle    = fg(dim).MarginTop(1)

	mutedStyle   = fg(dim)
	errorStyle   = fg(alarm)
	successStyle = fg(fresh)
	warningStyle = fg(caution)
	keyStyle     = fg(accent).Bold(true)
)

// RenderMetric renders a labelled value followed by its change. Positive
// changes are green, negative ones red.
func RenderMetric(label, value, change string) string {
	changeStyle := mutedStyle
	if strings.HasPrefix(change, "+") {
		changeStyle = successStyle
	} else if strings.HasPrefix(change, "-") {
		changeStyle = errorStyle
	}
	return labelStyle.Render(label) + valueStyle.Render(value) + changeStyle.Render(" "+change)
}

// RenderProgressBar renders a bar filled to percent (0..1)
func RenderProgressBar(percent float64, width int) string {
	filled := min(max(int(percent*float64(width)), 0), width)
	return successStyle.Render(strings.Repeat("█", filled)) + mutedStyle.Render(strings.Repeat("░", width-filled))
}

// RenderKeyHelp renders a key binding help item
func RenderKeyHelp(key, desc string) string {
	return keyStyle.Render(key) + " " + mutedStyle.Render(desc)
}
