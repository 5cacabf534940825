// Package keymap turns raw keyboard records into canonical key symbols.
package keymap

import (
	"fmt"
	"sort"

	"github.com/verte-zerg/keytest/internal/model"
)

// Virtual-key codes that need more than a table lookup.
const (
	vkReturn = 0x0D
	vkShift  = 0x10
	vkPrior  = 0x21
	vkNext   = 0x22
	vkEnd    = 0x23
	vkHome   = 0x24
	vkLeft   = 0x25
	vkUp     = 0x26
	vkRight  = 0x27
	vkDown   = 0x28
	vkInsert = 0x2D
	vkDelete = 0x2E
)

// Make codes for the two physical shift keys.
const (
	scanLShift = 0x2A
	scanRShift = 0x36
)

// Symbols produced outside the static table.
const (
	SymEnter    = "ENTER"
	SymNumEnter = "NUM ENTER"
	SymShift    = "SHIFT"
	SymLShift   = "LSHIFT"
	SymRShift   = "RSHIFT"
)

// navKeys share a virtual-key code with a keypad key; E0 marks the dedicated cluster.
var navKeys = map[uint16][2]string{
	vkInsert: {"INS", "NUM INS"},
	vkDelete: {"DEL", "NUM DEL"},
	vkUp:     {"UP", "NUM UP"},
	vkLeft:   {"LEFT", "NUM LEFT"},
	vkDown:   {"DOWN", "NUM DOWN"},
	vkRight:  {"RIGHT", "NUM RIGHT"},
	vkHome:   {"HOME", "NUM HOME"},
	vkEnd:    {"END", "NUM END"},
	vkPrior:  {"PGUP", "NUM PGUP"},
	vkNext:   {"PGDN", "NUM PGDN"},
}

var vkSymbols = map[uint16]string{
	0x30: "0", 0x31: "1", 0x32: "2", 0x33: "3", 0x34: "4",
	0x35: "5", 0x36: "6", 0x37: "7", 0x38: "8", 0x39: "9",
	0x41: "A", 0x42: "B", 0x43: "C", 0x44: "D", 0x45: "E",
	0x46: "F", 0x47: "G", 0x48: "H", 0x49: "I", 0x4A: "J",
	0x4B: "K", 0x4C: "L", 0x4D: "M", 0x4E: "N", 0x4F: "O",
	0x50: "P", 0x51: "Q", 0x52: "R", 0x53: "S", 0x54: "T",
	0x55: "U", 0x56: "V", 0x57: "W", 0x58: "X", 0x59: "Y",
	0x5A: "Z",

	0x20: "SPACE",
	0x1B: "ESC",
	0x09: "TAB",
	0x08: "BACK",
	0x14: "CAPS",
	0x90: "NUMLOCK",
	0x2C: "PRT",

	0x70: "F1", 0x71: "F2", 0x72: "F3", 0x73: "F4",
	0x74: "F5", 0x75: "F6", 0x76: "F7", 0x77: "F8",
	0x78: "F9", 0x79: "F10", 0x7A: "F11", 0x7B: "F12",

	0x60: "NUM 0", 0x61: "NUM 1", 0x62: "NUM 2", 0x63: "NUM 3", 0x64: "NUM 4",
	0x65: "NUM 5", 0x66: "NUM 6", 0x67: "NUM 7", 0x68: "NUM 8", 0x69: "NUM 9",
	0x6A: "NUM *",
	0x6B: "NUM +",
	0x6C: SymNumEnter,
	0x6D: "NUM -",
	0x6E: "NUM .",
	0x6F: "NUM /",

	0xBB: "=",
	0xBD: "-",
	0xC0: "`",
	0xDB: "[",
	0xDD: "]",
	0xDC: "\\",
	0xBA: ";",
	0xDE: "'",
	0xBC: ",",
	0xBE: ".",
	0xBF: "/",

	0xA0: SymLShift,
	0xA1: SymRShift,
	0x11: "CTRL",
	0x5B: "WIN",
	0x5D: "APPS",
	0x12: "ALT",
	0x15: "한/영",
	0x19: "한자",
}

var known = buildKnown()

func buildKnown() map[string]struct{} {
	out := map[string]struct{}{
		SymEnter:  {},
		SymShift:  {},
		SymLShift: {},
		SymRShift: {},
	}
	for _, sym := range vkSymbols {
		out[sym] = struct{}{}
	}
	for _, pair := range navKeys {
		out[pair[0]] = struct{}{}
		out[pair[1]] = struct{}{}
	}
	return out
}

// Normalize maps a raw record to a key symbol. Key releases and unknown
// codes yield false.
func Normalize(ev model.RawKeyEvent) (string, bool) {
	if ev.Break {
		return "", false
	}
	return Symbol(ev.VKey, ev.MakeCode, ev.Extended)
}

// Symbol maps a key-down (virtual key, make code, E0 flag) triple to a symbol.
func Symbol(vkey, makeCode uint16, extended bool) (string, bool) {
	switch vkey {
	case vkReturn:
		if extended {
			return SymNumEnter, true
		}
		return SymEnter, true
	case vkShift:
		switch makeCode {
		case scanLShift:
			return SymLShift, true
		case scanRShift:
			return SymRShift, true
		default:
			return SymShift, true
		}
	}
	if pair, ok := navKeys[vkey]; ok {
		if extended {
			return pair[0], true
		}
		return pair[1], true
	}
	sym, ok := vkSymbols[vkey]
	return sym, ok
}

// IsSymbol reports whether sym can be produced by Normalize.
func IsSymbol(sym string) bool {
	_, ok := known[sym]
	return ok
}

// Symbols returns every producible symbol, sorted.
func Symbols() []string {
	out := make([]string, 0, len(known))
	for sym := range known {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// VKName formats a virtual-key code for diagnostics.
func VKName(vkey uint16) string {
	return fmt.Sprintf("0x%02X", vkey)
}
