// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/verte-zerg/keytest/internal/model"
)

const sparkChars = " .:-=+*#%@"

// Summary aggregates a list of sessions.
type Summary struct {
	Sessions       int
	Passed         int
	Aborted        int
	Errored        int
	PassRate       float64
	MedianDuration time.Duration
	Last           *model.SessionAggregate
}

// Summarize computes counts, pass rate and median duration. Errored
// sessions count against the pass rate but not the median.
func Summarize(sessions []model.SessionAggregate) Summary {
	var s Summary
	s.Sessions = len(sessions)
	if s.Sessions == 0 {
		return s
	}
	var durations []int64
	for _, sess := range sessions {
		switch sess.Status {
		case model.StatusPassed:
			s.Passed++
		case model.StatusAborted:
			s.Aborted++
		case model.StatusErrored:
			s.Errored++
			continue
		}
		durations = append(durations, sess.DurationMs)
	}
	s.PassRate = float64(s.Passed) / float64(s.Sessions)
	s.MedianDuration = time.Duration(median(durations)) * time.Millisecond
	last := sessions[len(sessions)-1]
	s.Last = &last
	return s
}

func median(values []int64) int64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]int64(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// DurationSeries returns durations in seconds of sessions that ran.
func DurationSeries(sessions []model.SessionAggregate) []float64 {
	out := make([]float64, 0, len(sessions))
	for _, s := range sessions {
		if s.Status == model.StatusErrored {
			continue
		}
		out = append(out, float64(s.DurationMs)/1000)
	}
	return out
}

// PassSeries returns 100 for passed sessions and 0 otherwise.
func PassSeries(sessions []model.SessionAggregate) []float64 {
	out := make([]float64, len(sessions))
	for i, s := range sessions {
		if s.Status == model.StatusPassed {
			out[i] = 100
		}
	}
	return out
}

// FormatDuration prints a duration rounded for humans.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}

// RenderSummary prints a summary for sessions.
func RenderSummary(w io.Writer, sessions []model.SessionAggregate) error {
	if len(sessions) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	s := Summarize(sessions)
	lines := []string{
		"Summary",
		fmt.Sprintf("Sessions: %d (passed %d, aborted %d, errored %d)", s.Sessions, s.Passed, s.Aborted, s.Errored),
		fmt.Sprintf("Pass rate: %.2f%%", s.PassRate*100),
		fmt.Sprintf("Median duration: %s", FormatDuration(s.MedianDuration)),
	}
	if s.Last != nil {
		lines = append(lines, fmt.Sprintf("Last: #%d %s %s", s.Last.SessionID, s.Last.Status, s.Last.EndedAt.Local().Format(time.DateTime)))
	}
	lines = append(lines, "")
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderTrends prints sparklines for duration and pass rate.
func RenderTrends(w io.Writer, sessions []model.SessionAggregate, window int) error {
	if len(sessions) == 0 {
		return nil
	}
	durations := MovingAverage(DurationSeries(sessions), window)
	passes := MovingAverage(PassSeries(sessions), window)
	if _, err := fmt.Fprintln(w, "Trends"); err != nil {
		return err
	}
	headers := []string{"Series", "Trend", "Min", "Max"}
	rows := [][]string{
		trendRow("Duration (s)", durations, "%.1f"),
		trendRow("Pass rate (%)", passes, "%.0f"),
	}
	for _, line := range formatTable(headers, rows, map[int]bool{2: true, 3: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

func trendRow(name string, values []float64, format string) []string {
	if len(values) == 0 {
		return []string{name, "", "-", "-"}
	}
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return []string{name, Sparkline(values), fmt.Sprintf(format, lo), fmt.Sprintf(format, hi)}
}

// RenderKeyTable prints how often each key was left unpressed.
func RenderKeyTable(w io.Writer, aggs []model.KeyAggregate) error {
	if len(aggs) == 0 {
		_, err := fmt.Fprintln(w, "No failed keys found.")
		return err
	}
	if _, err := fmt.Fprintln(w, "Failed Keys"); err != nil {
		return err
	}
	headers := []string{"Key", "Failed", "Sessions", "Failure Rate"}
	for _, line := range formatTable(headers, KeyRows(aggs), map[int]bool{1: true, 2: true, 3: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// KeyRows formats key aggregates, worst first.
func KeyRows(aggs []model.KeyAggregate) [][]string {
	sorted := SortByFailure(aggs)
	rows := make([][]string, 0, len(sorted))
	for _, agg := range sorted {
		rows = append(rows, []string{
			agg.Key,
			fmt.Sprintf("%d", agg.Failed),
			fmt.Sprintf("%d", agg.Sessions),
			fmt.Sprintf("%.2f%%", failureRate(agg)*100),
		})
	}
	return rows
}

// RenderSessionTable prints one line per session.
func RenderSessionTable(w io.Writer, sessions []model.SessionAggregate) error {
	if len(sessions) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w, "Sessions"); err != nil {
		return err
	}
	headers := []string{"ID", "Ended", "Status", "Layout", "Keys", "Failed", "Duration"}
	for _, line := range formatTable(headers, SessionRows(sessions), map[int]bool{0: true, 4: true, 5: true, 6: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// SessionRows formats sessions, newest first.
func SessionRows(sessions []model.SessionAggregate) [][]string {
	rows := make([][]string, 0, len(sessions))
	for i := len(sessions) - 1; i >= 0; i-- {
		s := sessions[i]
		rows = append(rows, []string{
			fmt.Sprintf("%d", s.SessionID),
			s.EndedAt.Local().Format(time.DateTime),
			string(s.Status),
			s.Layout,
			fmt.Sprintf("%d", s.TotalKeys),
			fmt.Sprintf("%d", s.FailedCount),
			FormatDuration(time.Duration(s.DurationMs) * time.Millisecond),
		})
	}
	return rows
}
