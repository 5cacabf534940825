// Package statsui provides the Bubble Tea history browser.
package statsui

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/keytest/internal/model"
	"github.com/verte-zerg/keytest/internal/stats"
	"github.com/verte-zerg/keytest/internal/store"
)

const (
	tabOverview = iota
	tabKeys
	tabSessions
)

// DefaultWindow is the moving average window of the trend lines.
const DefaultWindow = 5

const topKeys = 5

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	passedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Model implements the Bubble Tea history UI.
type Model struct {
	store  *store.Store
	cfg    model.HistoryConfig
	window int

	report stats.Report
	errMsg string

	tabs      []string
	activeTab int
	viewport  viewport.Model
	tables    map[int]*table.Model
	layouts   map[int]*tableLayout

	width  int
	height int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string
}

type tableLayout struct {
	width    int
	height   int
	rowCount int
}

// NewModel constructs a history UI model.
func NewModel(st *store.Store, cfg model.HistoryConfig) *Model {
	m := &Model{
		store:  st,
		cfg:    cfg,
		window: DefaultWindow,
		tabs:   []string{"Overview", "Failed Keys", "Sessions"},
	}
	m.initInputs()
	m.initTables()
	m.viewport = viewport.New(0, 0)
	m.refreshReport()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderOverview()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l", "tab":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "=":
			m.window = nextWindow(m.window)
			m.renderOverview()
			return m, nil
		case "-":
			m.window = prevWindow(m.window)
			m.renderOverview()
			return m, nil
		case "/":
			return m.startFilter()
		case "g", "home":
			if t := m.activeTable(); t != nil {
				t.GotoTop()
			} else {
				m.viewport.GotoTop()
			}
			return m, nil
		case "G", "end":
			if t := m.activeTable(); t != nil {
				t.GotoBottom()
			} else {
				m.viewport.GotoBottom()
			}
			return m, nil
		default:
			var cmd tea.Cmd
			if t := m.activeTable(); t != nil {
				*t, cmd = t.Update(msg)
				return m, cmd
			}
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) activeTable() *table.Model {
	return m.tables[m.activeTab]
}

func (m *Model) initInputs() {
	m.filterInputs = []textinput.Model{
		newFilterInput("Status (passed/aborted/errored): "),
		newFilterInput("Since (YYYY-MM-DD): "),
		newFilterInput("Last: "),
		newFilterInput("Layout: "),
	}
	m.setInputsFromConfig()
}

func (m *Model) initTables() {
	keys := newTable(keyColumns())
	sessions := newTable(sessionColumns())
	m.tables = map[int]*table.Model{tabKeys: &keys, tabSessions: &sessions}
	m.layouts = map[int]*tableLayout{tabKeys: {}, tabSessions: {}}
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.filterMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromConfig() {
	if len(m.filterInputs) == 0 {
		return
	}
	m.filterInputs[0].SetValue(string(m.cfg.Status))
	if m.cfg.Since != nil {
		m.filterInputs[1].SetValue(m.cfg.Since.Format("2006-01-02"))
	} else {
		m.filterInputs[1].SetValue("")
	}
	if m.cfg.Last > 0 {
		m.filterInputs[2].SetValue(strconv.Itoa(m.cfg.Last))
	} else {
		m.filterInputs[2].SetValue("")
	}
	m.filterInputs[3].SetValue(m.cfg.Layout)
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.viewport.Width = m.width
	m.viewport.Height = bodyHeight
	for tab := range m.tables {
		m.setTableSize(tab, m.width, bodyHeight)
	}
	for i := range m.filterInputs {
		promptWidth := lipgloss.Width(m.filterInputs[i].Prompt)
		m.filterInputs[i].Width = maxInt(10, m.width-promptWidth-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	for tab, t := range m.tables {
		if tab == m.activeTab {
			t.Focus()
		} else {
			t.Blur()
		}
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	filters := padLines(m.renderFilterSummary(), m.width)
	return tabs + "\n" + filters
}

func (m *Model) renderFilterSummary() string {
	status := string(m.cfg.Status)
	if status == "" {
		status = "any"
	}
	layout := m.cfg.Layout
	if layout == "" {
		layout = "any"
	}
	since := "any"
	if m.cfg.Since != nil {
		since = m.cfg.Since.Format("2006-01-02")
	}
	last := "all"
	if m.cfg.Last > 0 {
		last = strconv.Itoa(m.cfg.Last)
	}
	summary := fmt.Sprintf("Filters: status=%s  layout=%s  since=%s  last=%s  window=%d", status, layout, since, last, m.window)
	return headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderHelp() string {
	help := "Nav: left/right  Scroll: up/down/pgup/pgdn  Window: -/=  Filters: /  Quit: q"
	return headerStyle.Render(help)
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel  quit: ctrl+c")
	}
	if m.errMsg != "" {
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	}
	return m.renderHelp()
}

func (m *Model) renderFilterForm() string {
	lines := []string{"Filters (enter to apply, esc to cancel)"}
	for _, input := range m.filterInputs {
		lines = append(lines, input.View())
	}
	if m.filterError != "" {
		lines = append(lines, errorStyle.Render(m.filterError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody(height int) string {
	if m.filterMode {
		return fitLines(m.renderFilterForm(), m.width, height)
	}
	switch {
	case m.activeTab == tabOverview:
		return fitLines(m.viewport.View(), m.width, height)
	case len(m.report.Sessions) == 0:
		return fitLines("No sessions found.", m.width, height)
	case m.activeTab == tabKeys && len(m.report.KeyAggs) == 0:
		return fitLines("No failed keys found.", m.width, height)
	}
	view := tableMutedStyle.Render(m.activeTable().View())
	return fitLines(view, m.width, height)
}

func (m *Model) refreshReport() {
	var report stats.Report
	var err error
	if m.store == nil {
		err = fmt.Errorf("history store is not open")
	} else {
		report, err = stats.BuildReport(context.Background(), m.store, m.cfg)
	}
	if err != nil {
		m.errMsg = err.Error()
		m.viewport.SetContent("Failed to load history.")
		return
	}
	m.errMsg = ""
	m.report = report
	m.setRows(tabKeys, toRows(stats.KeyRows(report.KeyAggs)))
	m.setRows(tabSessions, toRows(stats.SessionRows(report.Sessions)))
	m.renderOverview()
}

func (m *Model) renderOverview() {
	if m.errMsg != "" {
		m.viewport.SetContent("Failed to load history.")
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewport.SetContent(renderOverview(m.report, m.window, width))
}

func renderOverview(report stats.Report, window, width int) string {
	if len(report.Sessions) == 0 {
		return "No sessions found."
	}
	parts := []string{renderSummaryCards(report.Sessions, width)}
	var buf bytes.Buffer
	if err := stats.RenderTrends(&buf, report.Sessions, window); err != nil {
		parts = append(parts, fmt.Sprintf("Failed to render trends: %v", err))
	} else {
		parts = append(parts, strings.TrimRight(buf.String(), "\n"))
	}
	if top := stats.TopFailedKeys(report.KeyAggs, topKeys); len(top) > 0 {
		parts = append(parts, headerStyle.Render("Most missed: ")+strings.Join(top, ", "))
	}
	return strings.Join(parts, "\n\n")
}

func renderSummaryCards(sessions []model.SessionAggregate, width int) string {
	s := stats.Summarize(sessions)
	last := "-"
	if s.Last != nil {
		last = string(s.Last.Status)
		if s.Last.Status == model.StatusPassed {
			last = passedStyle.Render(last)
		}
	}
	cards := []string{
		metricCard("Sessions", fmt.Sprintf("%d", s.Sessions)),
		metricCard("Pass Rate", fmt.Sprintf("%.1f%%", s.PassRate*100)),
		metricCard("Last Result", last),
		metricCard("Median Time", stats.FormatDuration(s.MedianDuration)),
		metricCard("Aborted", fmt.Sprintf("%d", s.Aborted)),
		metricCard("Errored", fmt.Sprintf("%d", s.Errored)),
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	row1 := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1], cards[2])
	row2 := lipgloss.JoinHorizontal(lipgloss.Top, cards[3], cards[4], cards[5])
	return lipgloss.JoinVertical(lipgloss.Left, row1, row2)
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func keyColumns() []table.Column {
	return []table.Column{
		{Title: "Key", Width: 12},
		{Title: "Failed", Width: 7},
		{Title: "Sessions", Width: 9},
		{Title: "Failure Rate", Width: 13},
	}
}

func sessionColumns() []table.Column {
	return []table.Column{
		{Title: "ID", Width: 5},
		{Title: "Ended", Width: 20},
		{Title: "Status", Width: 8},
		{Title: "Layout", Width: 10},
		{Title: "Keys", Width: 5},
		{Title: "Failed", Width: 7},
		{Title: "Duration", Width: 9},
	}
}

func newTable(columns []table.Column) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(1),
	)
	t.SetStyles(tableStyles())
	return t
}

func toRows(rows [][]string) []table.Row {
	out := make([]table.Row, len(rows))
	for i, r := range rows {
		out[i] = table.Row(r)
	}
	return out
}

func (m *Model) setRows(tab int, rows []table.Row) {
	t := m.tables[tab]
	t.SetRows(rows)
	t.GotoTop()
	m.layouts[tab].rowCount = len(rows)
	if m.width > 0 && m.height > 0 {
		_, bodyHeight, _ := m.layoutHeights()
		m.layouts[tab].width = 0
		m.setTableSize(tab, m.width, bodyHeight)
	}
}

func (m *Model) setTableSize(tab, width, height int) {
	t := m.tables[tab]
	layout := m.layouts[tab]
	viewportHeight := maxInt(1, height-1)
	if layout.width == width && layout.height == viewportHeight {
		return
	}
	layout.width = width
	layout.height = viewportHeight
	t.SetWidth(width)
	t.SetHeight(viewportHeight)
	viewportHeight = adjustTableHeight(t, height)
	if layout.height != viewportHeight {
		layout.height = viewportHeight
		t.SetHeight(viewportHeight)
	}
}

func tableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

// adjustTableHeight makes the rendered table, header included, fill the body.
func adjustTableHeight(t *table.Model, bodyHeight int) int {
	target := maxInt(1, bodyHeight)
	height := t.Height()
	viewHeight := lipgloss.Height(t.View())
	if viewHeight == target {
		return height
	}
	height += target - viewHeight
	if height < 1 {
		height = 1
	}
	t.SetHeight(height)
	viewHeight = lipgloss.Height(t.View())
	if viewHeight == target {
		return height
	}
	height += target - viewHeight
	if height < 1 {
		height = 1
	}
	return height
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	m.setInputsFromConfig()
	return m, m.setFilterIndex(0)
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyFilter(); err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.filterMode = false
		m.filterError = ""
		m.refreshReport()
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setFilterIndex(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setFilterIndex(m.filterIndex - 1)
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	count := len(m.filterInputs)
	if count == 0 {
		return nil
	}
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.filterIndex = idx
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) applyFilter() error {
	status := model.Status(strings.ToLower(strings.TrimSpace(m.filterInputs[0].Value())))
	if status != "" && !status.Valid() {
		return fmt.Errorf("invalid status (use passed, aborted or errored)")
	}

	sinceInput := strings.TrimSpace(m.filterInputs[1].Value())
	var since *time.Time
	if sinceInput != "" {
		parsed, err := time.ParseInLocation("2006-01-02", sinceInput, time.Local)
		if err != nil {
			return fmt.Errorf("invalid since date (expected YYYY-MM-DD)")
		}
		since = &parsed
	}

	lastInput := strings.TrimSpace(m.filterInputs[2].Value())
	last := 0
	if lastInput != "" {
		parsed, err := strconv.Atoi(lastInput)
		if err != nil || parsed < 0 {
			return fmt.Errorf("invalid last value (use 0 or positive integer)")
		}
		last = parsed
	}

	m.cfg = model.HistoryConfig{
		Status: status,
		Since:  since,
		Last:   last,
		Layout: strings.TrimSpace(m.filterInputs[3].Value()),
	}
	return nil
}

func nextWindow(n int) int {
	if n < 5 {
		return 5
	}
	if n%5 == 0 {
		return n + 5
	}
	return ((n / 5) + 1) * 5
}

func prevWindow(n int) int {
	if n <= 5 {
		return 1
	}
	if n%5 == 0 {
		return n - 5
	}
	return (n / 5) * 5
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
