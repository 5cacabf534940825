package keymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/keytest/internal/model"
)

func TestSymbol(t *testing.T) {
	tests := []struct {
		name     string
		vkey     uint16
		makeCode uint16
		extended bool
		want     string
		ok       bool
	}{
		{name: "letter", vkey: 0x41, makeCode: 0x1E, want: "A", ok: true},
		{name: "digit", vkey: 0x35, want: "5", ok: true},
		{name: "function key", vkey: 0x7B, want: "F12", ok: true},
		{name: "main enter", vkey: 0x0D, makeCode: 0x1C, want: "ENTER", ok: true},
		{name: "keypad enter", vkey: 0x0D, makeCode: 0x1C, extended: true, want: "NUM ENTER", ok: true},
		{name: "left shift", vkey: 0x10, makeCode: 0x2A, want: "LSHIFT", ok: true},
		{name: "right shift", vkey: 0x10, makeCode: 0x36, want: "RSHIFT", ok: true},
		{name: "generic shift", vkey: 0x10, makeCode: 0x00, want: "SHIFT", ok: true},
		{name: "insert cluster", vkey: 0x2D, extended: true, want: "INS", ok: true},
		{name: "keypad insert", vkey: 0x2D, want: "NUM INS", ok: true},
		{name: "delete cluster", vkey: 0x2E, extended: true, want: "DEL", ok: true},
		{name: "keypad delete", vkey: 0x2E, want: "NUM DEL", ok: true},
		{name: "arrow up", vkey: 0x26, extended: true, want: "UP", ok: true},
		{name: "keypad up", vkey: 0x26, want: "NUM UP", ok: true},
		{name: "arrow left", vkey: 0x25, extended: true, want: "LEFT", ok: true},
		{name: "keypad left", vkey: 0x25, want: "NUM LEFT", ok: true},
		{name: "arrow down", vkey: 0x28, extended: true, want: "DOWN", ok: true},
		{name: "keypad down", vkey: 0x28, want: "NUM DOWN", ok: true},
		{name: "arrow right", vkey: 0x27, extended: true, want: "RIGHT", ok: true},
		{name: "keypad right", vkey: 0x27, want: "NUM RIGHT", ok: true},
		{name: "keypad digit", vkey: 0x60, want: "NUM 0", ok: true},
		{name: "hangul", vkey: 0x15, want: "한/영", ok: true},
		{name: "backslash", vkey: 0xDC, want: "\\", ok: true},
		{name: "unknown", vkey: 0xFF, ok: false},
		{name: "ime process", vkey: 0xE5, ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Symbol(tt.vkey, tt.makeCode, tt.extended)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeIgnoresKeyRelease(t *testing.T) {
	sym, ok := Normalize(model.RawKeyEvent{VKey: 0x41, Break: true})
	assert.False(t, ok)
	assert.Empty(t, sym)

	sym, ok = Normalize(model.RawKeyEvent{VKey: 0x41})
	require.True(t, ok)
	assert.Equal(t, "A", sym)
}

func TestEnterPolarityIsFixedForVirtualKey(t *testing.T) {
	for _, makeCode := range []uint16{0x00, 0x1C, 0x2A, 0xFF} {
		sym, ok := Symbol(0x0D, makeCode, true)
		require.True(t, ok)
		assert.Equal(t, SymNumEnter, sym)

		sym, ok = Symbol(0x0D, makeCode, false)
		require.True(t, ok)
		assert.Equal(t, SymEnter, sym)
	}
}

func TestSymbolsCoverTableAndSpecialCases(t *testing.T) {
	syms := Symbols()
	assert.Contains(t, syms, "NUM ENTER")
	assert.Contains(t, syms, "SHIFT")
	assert.Contains(t, syms, "NUM LEFT")
	assert.True(t, IsSymbol("WIN"))
	assert.False(t, IsSymbol("WINDOW"))
	assert.IsIncreasing(t, syms)
}

func TestVKName(t *testing.T) {
	assert.Equal(t, "0x0D", VKName(0x0D))
	assert.Equal(t, "0xBB", VKName(0xBB))
}
