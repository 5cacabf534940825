// Package layout describes the physical keys a keyboard test expects.
package layout

import "strings"

// DefaultWidth is the width of a key without an explicit width, in tenths
// of a standard key cap.
const DefaultWidth = 5

// Key is one cap of a layout row. A key without a symbol is a spacer.
type Key struct {
	Symbol string
	Width  int
}

// Spacer reports whether k only takes up room.
func (k Key) Spacer() bool {
	return k.Symbol == ""
}

// Layout is an ordered set of rows of keys.
type Layout struct {
	Name   string
	Source string
	Rows   [][]Key
}

// Symbols returns the distinct key symbols in row order.
func (l Layout) Symbols() []string {
	seen := map[string]struct{}{}
	var out []string
	for _, row := range l.Rows {
		for _, k := range row {
			if k.Spacer() {
				continue
			}
			if _, ok := seen[k.Symbol]; ok {
				continue
			}
			seen[k.Symbol] = struct{}{}
			out = append(out, k.Symbol)
		}
	}
	return out
}

// Len returns the number of distinct keys.
func (l Layout) Len() int {
	return len(l.Symbols())
}

// DefaultName is the layout used when none is configured.
const DefaultName = "laptop"

// BuiltinSource marks layouts compiled into the binary.
const BuiltinSource = "built-in"

var builtins = map[string]Layout{
	"laptop":  laptop(),
	"compact": compact(),
}

// BuiltinNames lists the compiled-in layouts, default first.
func BuiltinNames() []string {
	return []string{"laptop", "compact"}
}

// Builtin returns a compiled-in layout by name.
func Builtin(name string) (Layout, bool) {
	l, ok := builtins[strings.ToLower(name)]
	if !ok {
		return Layout{}, false
	}
	return clone(l), true
}

func clone(l Layout) Layout {
	rows := make([][]Key, len(l.Rows))
	for i, row := range l.Rows {
		rows[i] = append([]Key(nil), row...)
	}
	l.Rows = rows
	return l
}

func keys(syms ...string) []Key {
	out := make([]Key, 0, len(syms))
	for _, s := range syms {
		out = append(out, Key{Symbol: s, Width: DefaultWidth})
	}
	return out
}

func wide(sym string, width int) Key {
	return Key{Symbol: sym, Width: width}
}

func gap(width int) Key {
	return Key{Width: width}
}

func row(parts ...[]Key) []Key {
	var out []Key
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func one(k Key) []Key {
	return []Key{k}
}

// laptop mirrors a 15" laptop deck with a numeric keypad.
func laptop() Layout {
	return Layout{
		Name:   "laptop",
		Source: BuiltinSource,
		Rows: [][]Key{
			row(
				keys("ESC", "F1", "F2", "F3", "F4", "F5", "F6", "F7", "F8", "F9", "F10", "F11", "F12", "PRT", "INS"),
				one(wide("DEL", 4)), one(wide("NUM /", 4)), one(wide("NUM *", 4)),
			),
			row(
				keys("`", "1", "2", "3", "4", "5", "6", "7", "8", "9", "0", "-", "="),
				one(wide("BACK", 8)),
				keys("NUM -", "NUM +", "NUMLOCK"),
			),
			row(
				one(wide("TAB", 8)),
				keys("Q", "W", "E", "R", "T", "Y", "U", "I", "O", "P", "[", "]", "\\"),
				keys("NUM 7", "NUM 8", "NUM 9"),
			),
			row(
				one(wide("CAPS", 8)), one(wide("A", 7)),
				keys("S", "D", "F", "G", "H", "J", "K", "L", ";", "'"),
				one(wide("ENTER", 9)),
				keys("NUM 4", "NUM 5", "NUM 6"),
			),
			row(
				one(wide("LSHIFT", 12)),
				keys("Z", "X", "C", "V", "B", "N", "M", ",", "."),
				one(wide("/", 6)), one(wide("RSHIFT", 12)),
				keys("NUM 1", "NUM 2", "NUM 3"),
			),
			row(
				keys("CTRL"), one(gap(DefaultWidth)), keys("WIN", "ALT"),
				one(wide("SPACE", 27)),
				keys("한/영", "한자", "LEFT", "DOWN", "UP", "RIGHT", "NUM 0", "NUM .", "NUM ENTER"),
			),
		},
	}
}

// compact is the reduced set without layout widths.
func compact() Layout {
	return Layout{
		Name:   "compact",
		Source: BuiltinSource,
		Rows: [][]Key{
			keys("F1", "F2", "F3", "F4", "F5", "F6", "F7", "F8", "F9", "F10", "F11", "F12"),
			keys("`", "1", "2", "3", "4", "5", "6", "7", "8", "9", "0", "-", "=", "BACK", "INS", "DEL"),
			keys("Q", "W", "E", "R", "T", "Y", "U", "I", "O", "P", "[", "]", "\\"),
			keys("A", "S", "D", "F", "G", "H", "J", "K", "L", ";", "'", "ENTER"),
			keys("Z", "X", "C", "V", "B", "N", "M", ",", ".", "/", "SPACE"),
			keys("UP", "LEFT", "DOWN", "RIGHT", "CAPS", "NUMLOCK"),
			keys("NUM 7", "NUM 8", "NUM 9", "NUM /", "NUM 4", "NUM 5", "NUM 6", "NUM *"),
			keys("NUM 1", "NUM 2", "NUM 3", "NUM -", "NUM 0", "NUM .", "NUM +", "NUM ENTER"),
			keys("ESC", "TAB", "LSHIFT", "RSHIFT", "CTRL", "WIN", "ALT", "PRT", "한/영", "한자"),
		},
	}
}
