package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"stramate/internal/service"
)

// Syncer runs a sync, reporting progress on the channel and closing it
// when done
type Syncer interface {
	SyncAll(ctx context.Context, progress chan<- service.SyncProgress) (*service.SyncResult, error)
	RateLimitStatus() (shortRemaining, dailyRemaining int)
}

var syncPhases = []struct {
	phase string
	label string
}{
	{service.PhaseAthlete, "Fetch athlete profile"},
	{service.PhaseActivities, "Fetch new activities"},
	{service.PhaseStreams, "Download details and heart rate streams"},
	{service.PhaseAnalytics, "Analyze activities"},
	{service.PhaseSnapshot, "Refresh fitness snapshot"},
}

// SyncModel is the sync screen. It starts syncing immediately and quits
// once the sync has finished.
type SyncModel struct {
	syncer   Syncer
	ctx      context.Context
	cancel   context.CancelFunc
	spinner  spinner.Model
	progress chan service.SyncProgress

	current service.SyncProgress
	syncing bool
	done    bool
	result  *service.SyncResult
	err     error
}

// NewSyncModel creates a new sync model
func NewSyncModel(ctx context.Context, s Syncer) SyncModel {
	ctx, cancel := context.WithCancel(ctx)
	return SyncModel{
		syncer:  s,
		ctx:     ctx,
		cancel:  cancel,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(successStyle)),
	}
}

// Result returns the sync outcome once done
func (m SyncModel) Result() (*service.SyncResult, error) {
	return m.result, m.err
}

type startSyncMsg struct{}

type syncProgressMsg service.SyncProgress

// SyncDoneMsg is sent when sync finishes
type SyncDoneMsg struct {
	Result *service.SyncResult
	Err    error
}

// Init starts the spinner and the sync
func (m SyncModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg { return startSyncMsg{} })
}

// Update handles messages
func (m SyncModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case startSyncMsg:
		if m.syncing {
			return m, nil
		}
		m.syncing = true
		m.progress = make(chan service.SyncProgress, 16)
		return m, tea.Batch(m.runSync(m.progress), waitForProgress(m.progress))

	case syncProgressMsg:
		m.current = service.SyncProgress(msg)
		return m, waitForProgress(m.progress)

	case SyncDoneMsg:
		m.syncing = false
		m.done = true
		m.result = msg.Result
		m.err = msg.Err
		m.cancel()
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if !m.syncing {
				return m, tea.Quit
			}
			// SyncAll returns with the context error
			m.cancel()
		}
	}
	return m, nil
}

func (m SyncModel) runSync(progress chan service.SyncProgress) tea.Cmd {
	return func() tea.Msg {
		result, err := m.syncer.SyncAll(m.ctx, progress)
		return SyncDoneMsg{Result: result, Err: err}
	}
}

func waitForProgress(progress <-chan service.SyncProgress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-progress
		if !ok {
			return nil
		}
		return syncProgressMsg(p)
	}
}

// View renders the sync screen
func (m SyncModel) View() string {
	sections := []string{cardTitleStyle.Render("Strava Sync")}

	switch {
	case m.done && m.err != nil:
		sections = append(sections, errorStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
		if summary := m.renderSummary(); summary != "" {
			sections = append(sections, summary)
		}
	case m.done:
		sections = append(sections, successStyle.Render("  Sync complete!"), m.renderSummary())
	default:
		sections = append(sections, m.renderProgress())
		sections = append(sections, statusStyle.Render("  "+RenderKeyHelp("q", "cancel")))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (m SyncModel) renderProgress() string {
	current := -1
	for i, p := range syncPhases {
		if p.phase == m.current.Phase {
			current = i
		}
	}

	var lines []string
	for i, p := range syncPhases {
		switch {
		case i < current:
			lines = append(lines, successStyle.Render("  ✓ "+p.label))
		case i == current:
			lines = append(lines, "  "+m.spinner.View()+" "+p.label)
			if detail := m.renderPhaseDetail(); detail != "" {
				lines = append(lines, detail)
			}
		default:
			lines = append(lines, mutedStyle.Render("    "+p.label))
		}
	}

	short, daily := m.syncer.RateLimitStatus()
	if short >= 0 {
		lines = append(lines, "", mutedStyle.Render(fmt.Sprintf("  API requests left: %d (15 min), %d (daily)", short, daily)))
	}
	return strings.Join(lines, "\n")
}

func (m SyncModel) renderPhaseDetail() string {
	p := m.current
	switch {
	case p.Total > 0:
		line := fmt.Sprintf("    %s %d/%d", RenderProgressBar(float64(p.Completed)/float64(p.Total), 30), p.Completed, p.Total)
		if p.CurrentActivity != "" {
			line += " " + mutedStyle.Render(truncateName(p.CurrentActivity, 32))
		}
		return line
	case p.Completed > 0:
		return mutedStyle.Render(fmt.Sprintf("    %s fetched", humanize.Comma(int64(p.Completed))))
	}
	return ""
}

func (m SyncModel) renderSummary() string {
	r := m.result
	if r == nil {
		return ""
	}

	var lines []string
	if r.ActivitiesStored > 0 {
		lines = append(lines, successStyle.Render(fmt.Sprintf("  %s new %s", humanize.Comma(int64(r.ActivitiesStored)), plural(r.ActivitiesStored, "activity", "activities"))))
	} else {
		lines = append(lines, mutedStyle.Render("  No new activities"))
	}
	if r.StreamsFetched > 0 {
		lines = append(lines, successStyle.Render(fmt.Sprintf("  %s heart rate %s downloaded", humanize.Comma(int64(r.StreamsFetched)), plural(r.StreamsFetched, "stream", "streams"))))
	}
	if r.Analyzed > 0 {
		lines = append(lines, successStyle.Render(fmt.Sprintf("  %s %s analyzed", humanize.Comma(int64(r.Analyzed)), plural(r.Analyzed, "activity", "activities"))))
	}
	if r.Snapshot != nil {
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("  %s activities in the last year", humanize.Comma(int64(r.Snapshot.Heatmap.LastYearTotal)))))
	}
	if len(r.Errors) > 0 {
		lines = append(lines, warningStyle.Render(fmt.Sprintf("  %d %s occurred", len(r.Errors), plural(len(r.Errors), "error", "errors"))))
		for _, err := range r.Errors[:min(len(r.Errors), 5)] {
			lines = append(lines, mutedStyle.Render("    "+err.Error()))
		}
	}
	return strings.Join(lines, "\n")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func truncateName(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
