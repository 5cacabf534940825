// Package tui provides the Bubble Tea keyboard test interface.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/keytest/internal/layout"
	"github.com/verte-zerg/keytest/internal/model"
	statsPkg "github.com/verte-zerg/keytest/internal/stats"
	"github.com/verte-zerg/keytest/internal/store"
)

// Source is a running keyboard test.
type Source interface {
	Events() <-chan model.Progress
	Pending(sym string) bool
	Total() int
	Snapshot() []string
	Result() model.Result
	Close() error
}

type progressMsg model.Progress

type finishedMsg struct {
	result model.Result
}

// Model implements the Bubble Tea keyboard test UI.
type Model struct {
	src    Source
	layout layout.Layout
	store  *store.Store
	logger *slog.Logger

	width  int
	height int

	remaining int
	last      string
	aborting  bool

	finished bool
	result   model.Result
	savedID  int64
	saveErr  error

	hasLast    bool
	lastStatus model.Status
	passRate   float64
	sessions   int
}

var (
	pressedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Background(lipgloss.Color("#2E7D32"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C")).Background(lipgloss.Color("#303030"))
	lastStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#101010")).Background(lipgloss.Color("#C89A3A"))
	titleStyle   = lipgloss.NewStyle().Bold(true)
	passStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#52C41A"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel constructs a keyboard test TUI model. st may be nil when
// results are not saved.
func NewModel(src Source, l layout.Layout, st *store.Store, logger *slog.Logger) *Model {
	m := &Model{
		src:       src,
		layout:    l,
		store:     st,
		logger:    logger,
		remaining: len(src.Snapshot()),
	}
	m.loadFooterStats()
	return m
}

// Result returns the session outcome once the test has finished.
func (m *Model) Result() (model.Result, bool) {
	return m.result, m.finished
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return waitForProgress(m.src)
}

func waitForProgress(src Source) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-src.Events()
		if !ok {
			return finishedMsg{result: src.Result()}
		}
		return progressMsg(p)
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case progressMsg:
		m.remaining = msg.Remaining
		m.last = msg.Symbol
		return m, waitForProgress(m.src)
	case finishedMsg:
		m.finished = true
		m.result = msg.result
		m.remaining = len(msg.result.FailedKeys)
		m.saveResult()
		return m, nil
	case tea.KeyMsg:
		// The test window captures every key, so printable keys never
		// steer the UI while a test runs.
		if !m.finished {
			if msg.Type == tea.KeyCtrlC && !m.aborting {
				m.aborting = true
				if err := m.src.Close(); err != nil {
					m.logger.Warn("abort keyboard test", "err", err)
				}
			}
			return m, nil
		}
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEnter, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyRunes:
			if string(msg.Runes) == "q" {
				return m, tea.Quit
			}
		}
		return m, nil
	default:
		return m, nil
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	contentWidth := 0
	if m.width > 0 {
		contentWidth = m.width - 2
	}
	var body string
	if m.finished {
		body = m.renderResult(contentWidth)
	} else {
		title := titleStyle.Render(fmt.Sprintf("Keyboard test: %s", m.layout.Name))
		hint := footerStyle.Render("Press every key of the built-in keyboard. Ctrl+C aborts.")
		board := renderBoard(m.layout, m.src.Pending, m.last, contentWidth)
		body = lipgloss.JoinVertical(lipgloss.Left, title, hint, "", board)
	}
	footer := m.renderFooter()
	if m.width == 0 || m.height == 0 {
		return body + "\n" + footer
	}
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
	}
	bodyHeight := m.height - 1
	content := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, body)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return content + "\n" + footerLine
}

func (m *Model) renderResult(width int) string {
	res := m.result
	var lines []string
	switch res.Status {
	case model.StatusPassed:
		lines = append(lines, passStyle.Render("PASSED"),
			fmt.Sprintf("All %d keys pressed in %s.", res.TotalKeys, statsPkg.FormatDuration(res.Duration())))
	default:
		lines = append(lines, failStyle.Render(strings.ToUpper(string(res.Status))),
			fmt.Sprintf("%d of %d keys never pressed:", len(res.FailedKeys), res.TotalKeys))
		keys := strings.Join(res.FailedKeys, "  ")
		if width > 0 {
			keys = lipgloss.NewStyle().Width(width).Render(keys)
		}
		lines = append(lines, keys)
	}
	for _, d := range res.Devices {
		if d.Internal {
			continue
		}
		lines = append(lines, footerStyle.Render(fmt.Sprintf("Ignored %d events from %s", d.Rejected, deviceLabel(d.Path))))
	}
	switch {
	case m.saveErr != nil:
		lines = append(lines, failStyle.Render(fmt.Sprintf("Result not saved: %v", m.saveErr)))
	case m.savedID > 0:
		lines = append(lines, footerStyle.Render(fmt.Sprintf("Saved as session #%d.", m.savedID)))
	}
	lines = append(lines, "", footerStyle.Render("Press Enter or q to exit."))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func deviceLabel(path string) string {
	if path == "" {
		return "an unnamed device"
	}
	return path
}

func (m *Model) loadFooterStats() {
	if m.store == nil {
		return
	}
	ctx := context.Background()
	sessions, err := m.store.ListSessions(ctx, model.HistoryConfig{Layout: m.layout.Name})
	if err != nil {
		m.logger.Warn("failed to load session history", "err", err)
		return
	}
	m.applyHistory(sessions)
}

func (m *Model) applyHistory(sessions []model.SessionAggregate) {
	summary := statsPkg.Summarize(sessions)
	m.sessions = summary.Sessions
	m.passRate = summary.PassRate
	if summary.Last != nil {
		m.hasLast = true
		m.lastStatus = summary.Last.Status
	}
}

func (m *Model) renderFooter() string {
	total := m.src.Total()
	progress := 100
	if total > 0 {
		progress = int(float64(total-m.remaining) / float64(total) * 100)
	}
	segments := []string{
		fmt.Sprintf("Progress %d%%", progress),
		fmt.Sprintf("Remaining %d/%d", m.remaining, total),
	}
	if m.hasLast {
		segments = append(segments, fmt.Sprintf("Last %s", m.lastStatus))
	}
	if m.sessions > 0 {
		segments = append(segments, fmt.Sprintf("Pass rate %.1f%% of %d", m.passRate*100, m.sessions))
	}
	footer := strings.Join(segments, "  ")
	return footerStyle.Render(footer)
}

func (m *Model) saveResult() {
	if m.store == nil || m.savedID > 0 {
		return
	}
	ctx := context.Background()
	id, err := m.store.InsertResult(ctx, m.result)
	if err != nil {
		m.saveErr = err
		m.logger.Error("failed to save result", "err", err)
		return
	}
	m.savedID = id
	m.result.ID = id
	sessions, err := m.store.ListSessions(ctx, model.HistoryConfig{Layout: m.layout.Name})
	if err != nil {
		m.logger.Warn("failed to reload session history", "err", err)
		return
	}
	m.applyHistory(sessions)
}
