package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/verte-zerg/keytest/internal/layout"
)

type styledCap struct {
	s      string
	width  int
	spacer bool
}

// capWidth is the cell width of a key. Labels wider than the key grow it.
func capWidth(k layout.Key) int {
	w := k.Width
	if !k.Spacer() {
		if lw := runewidth.StringWidth(k.Symbol); lw > w {
			w = lw
		}
	}
	if w < 1 {
		w = 1
	}
	return w
}

func buildCaps(row []layout.Key, pending func(string) bool, last string) []styledCap {
	out := make([]styledCap, 0, len(row))
	for _, k := range row {
		w := capWidth(k)
		if k.Spacer() {
			out = append(out, styledCap{s: strings.Repeat(" ", w), width: w, spacer: true})
			continue
		}
		style := pressedStyle
		switch {
		case k.Symbol == last:
			style = lastStyle
		case pending(k.Symbol):
			style = pendingStyle
		}
		out = append(out, styledCap{
			s:     style.Width(w).Align(lipgloss.Center).Render(k.Symbol),
			width: w,
		})
	}
	return out
}

func renderCaps(caps []styledCap) string {
	parts := make([]string, 0, len(caps))
	for _, c := range caps {
		parts = append(parts, c.s)
	}
	return strings.Join(parts, " ")
}

// wrapCaps lays a row out in lines of at most width cells, breaking at a
// spacer when one is available.
func wrapCaps(caps []styledCap, width int) string {
	if width <= 0 {
		return renderCaps(caps)
	}
	var lines []string
	line := make([]styledCap, 0, len(caps))
	lineWidth := 0
	lastSpacerIdx := -1

	for i := 0; i < len(caps); {
		item := caps[i]
		gap := 0
		if len(line) > 0 {
			gap = 1
		}
		if lineWidth+gap+item.width > width && len(line) > 0 {
			if lastSpacerIdx >= 0 {
				lines = append(lines, renderCaps(line[:lastSpacerIdx]))
				line = append([]styledCap{}, line[lastSpacerIdx+1:]...)
				lineWidth = lineWidthOf(line)
				lastSpacerIdx = lastSpacerIndex(line)
			} else {
				lines = append(lines, renderCaps(line))
				line = line[:0]
				lineWidth = 0
				lastSpacerIdx = -1
			}
			continue
		}
		line = append(line, item)
		lineWidth += gap + item.width
		if item.spacer {
			lastSpacerIdx = len(line) - 1
		}
		i++
	}
	lines = append(lines, renderCaps(line))
	return strings.Join(lines, "\n")
}

func lineWidthOf(line []styledCap) int {
	total := 0
	for i, item := range line {
		if i > 0 {
			total++
		}
		total += item.width
	}
	return total
}

func lastSpacerIndex(line []styledCap) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].spacer {
			return i
		}
	}
	return -1
}

// renderBoard draws every row of l.
func renderBoard(l layout.Layout, pending func(string) bool, last string, width int) string {
	rows := make([]string, 0, len(l.Rows))
	for _, row := range l.Rows {
		rows = append(rows, wrapCaps(buildCaps(row, pending, last), width))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}
