package tui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/keytest/internal/layout"
	"github.com/verte-zerg/keytest/internal/logging"
	"github.com/verte-zerg/keytest/internal/model"
	"github.com/verte-zerg/keytest/internal/store"
)

type fakeSource struct {
	events    chan model.Progress
	remaining map[string]bool
	total     int
	result    model.Result
	closed    int
}

func newFakeSource(keys ...string) *fakeSource {
	src := &fakeSource{events: make(chan model.Progress, len(keys)+1), remaining: map[string]bool{}, total: len(keys)}
	for _, k := range keys {
		src.remaining[k] = true
	}
	return src
}

func (f *fakeSource) Events() <-chan model.Progress { return f.events }
func (f *fakeSource) Pending(sym string) bool       { return f.remaining[sym] }
func (f *fakeSource) Total() int                    { return f.total }
func (f *fakeSource) Result() model.Result          { return f.result }
func (f *fakeSource) Close() error                  { f.closed++; return nil }

func (f *fakeSource) Snapshot() []string {
	var out []string
	for k, ok := range f.remaining {
		if ok {
			out = append(out, k)
		}
	}
	return out
}

func testLayout() layout.Layout {
	return layout.Layout{Name: "unit", Rows: [][]layout.Key{
		{{Symbol: "A", Width: 5}, {Symbol: "B", Width: 5}},
		{{Symbol: "NUM ENTER", Width: 5}, {Width: 3}, {Symbol: "C", Width: 5}},
	}}
}

func TestRenderFooterFormats(t *testing.T) {
	src := newFakeSource("A", "B", "C", "NUM ENTER")
	m := NewModel(src, testLayout(), nil, logging.Discard())
	m.remaining = 2
	m.hasLast = true
	m.lastStatus = model.StatusPassed
	m.sessions = 8
	m.passRate = 0.75

	out := m.renderFooter()
	for _, want := range []string{"Progress 50%", "Remaining 2/4", "Last passed", "Pass rate 75.0% of 8"} {
		if !strings.Contains(out, want) {
			t.Fatalf("footer missing %q: %s", want, out)
		}
	}
}

func TestProgressUpdatesBoard(t *testing.T) {
	src := newFakeSource("A", "B")
	m := NewModel(src, testLayout(), nil, logging.Discard())

	src.remaining["A"] = false
	next, cmd := m.Update(progressMsg{Symbol: "A", Remaining: 1, Total: 2})
	if cmd == nil {
		t.Fatalf("expected another wait command")
	}
	mm := next.(*Model)
	if mm.last != "A" || mm.remaining != 1 {
		t.Fatalf("progress not applied: last=%q remaining=%d", mm.last, mm.remaining)
	}
	if !strings.Contains(mm.View(), "Progress 50%") {
		t.Fatalf("view missing progress")
	}
}

func TestWaitForProgressReportsFinish(t *testing.T) {
	src := newFakeSource("A")
	src.result = model.Result{Status: model.StatusAborted, FailedKeys: []string{"A"}, TotalKeys: 1}
	src.events <- model.Progress{Symbol: "A"}
	close(src.events)

	cmd := waitForProgress(src)
	if _, ok := cmd().(progressMsg); !ok {
		t.Fatalf("expected progress message first")
	}
	msg, ok := cmd().(finishedMsg)
	if !ok {
		t.Fatalf("expected finished message after close")
	}
	if msg.result.Status != model.StatusAborted {
		t.Fatalf("unexpected result %+v", msg.result)
	}
}

func TestKeysDuringTestOnlyAbortOnCtrlC(t *testing.T) {
	src := newFakeSource("A")
	m := NewModel(src, testLayout(), nil, logging.Discard())

	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}); cmd != nil {
		t.Fatalf("q must not quit while testing")
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Fatalf("enter must not quit while testing")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if src.closed != 1 {
		t.Fatalf("expected one abort request, got %d", src.closed)
	}
}

func TestFinishedSavesAndQuits(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "keytest.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	src := newFakeSource("A", "B")
	m := NewModel(src, testLayout(), st, logging.Discard())
	ended := time.Now()
	res := model.Result{
		StartedAt:  ended.Add(-time.Minute),
		EndedAt:    ended,
		Status:     model.StatusAborted,
		Layout:     "unit",
		TotalKeys:  2,
		FailedKeys: []string{"B"},
		Devices:    []model.DeviceStats{{Path: `\\?\HID#VID_046D`, Rejected: 4}},
	}
	m.Update(finishedMsg{result: res})

	got, ok := m.Result()
	if !ok || got.ID == 0 {
		t.Fatalf("result not saved: %+v", got)
	}
	stored, err := st.GetResult(context.Background(), got.ID)
	if err != nil || stored.Status != model.StatusAborted {
		t.Fatalf("stored result mismatch: %+v %v", stored, err)
	}
	view := m.View()
	for _, want := range []string{"ABORTED", "1 of 2 keys never pressed", "B", "Ignored 4 events", "Saved as session #"} {
		if !strings.Contains(view, want) {
			t.Fatalf("result view missing %q:\n%s", want, view)
		}
	}
	if m.sessions != 1 || !m.hasLast || m.lastStatus != model.StatusAborted {
		t.Fatalf("footer history not refreshed")
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}); cmd == nil {
		t.Fatalf("q should quit after the test")
	}
}

func TestBuildCapsStyles(t *testing.T) {
	row := []layout.Key{{Symbol: "A", Width: 5}, {Symbol: "B", Width: 5}, {Symbol: "C", Width: 5}, {Width: 2}}
	pending := func(s string) bool { return s == "B" }
	caps := buildCaps(row, pending, "C")
	if len(caps) != 4 {
		t.Fatalf("expected 4 caps, got %d", len(caps))
	}
	if caps[0].s != pressedStyle.Width(5).Align(lipgloss.Center).Render("A") {
		t.Fatalf("expected pressed style for A: %q", caps[0].s)
	}
	if caps[1].s != pendingStyle.Width(5).Align(lipgloss.Center).Render("B") {
		t.Fatalf("expected pending style for B")
	}
	if caps[2].s != lastStyle.Width(5).Align(lipgloss.Center).Render("C") {
		t.Fatalf("expected last style for C")
	}
	if !caps[3].spacer || caps[3].s != "  " {
		t.Fatalf("expected spacer, got %+v", caps[3])
	}
}

func TestCapWidthGrowsForLongLabels(t *testing.T) {
	if got := capWidth(layout.Key{Symbol: "NUM ENTER", Width: 5}); got != 9 {
		t.Fatalf("cap width = %d, want 9", got)
	}
	if got := capWidth(layout.Key{Symbol: "한/영", Width: 3}); got != 5 {
		t.Fatalf("cap width = %d, want 5", got)
	}
	if got := capWidth(layout.Key{Width: 2}); got != 2 {
		t.Fatalf("spacer width = %d, want 2", got)
	}
}

func TestWrapCapsBreaksAtSpacer(t *testing.T) {
	caps := []styledCap{
		{s: "aaaaa", width: 5},
		{s: "   ", width: 3, spacer: true},
		{s: "bbbbb", width: 5},
		{s: "ccccc", width: 5},
	}
	out := wrapCaps(caps, 16)
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", out)
	}
	if lines[0] != "aaaaa" || lines[1] != "bbbbb ccccc" {
		t.Fatalf("unexpected wrap: %q", lines)
	}
}

func TestWrapCapsHardBreak(t *testing.T) {
	caps := []styledCap{{s: "aaaaa", width: 5}, {s: "bbbbb", width: 5}, {s: "ccccc", width: 5}}
	if got := wrapCaps(caps, 11); got != "aaaaa bbbbb\nccccc" {
		t.Fatalf("unexpected wrap: %q", got)
	}
	if got := wrapCaps(caps, 0); got != "aaaaa bbbbb ccccc" {
		t.Fatalf("unexpected unwrapped: %q", got)
	}
}
