package layout

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestBuiltinsAreValid(t *testing.T) {
	for _, name := range BuiltinNames() {
		l, ok := Builtin(name)
		if !ok {
			t.Fatalf("builtin %q missing", name)
		}
		if err := Validate(l); err != nil {
			t.Fatalf("builtin %q invalid: %v", name, err)
		}
	}
}

func TestBuiltinSizes(t *testing.T) {
	laptop, _ := Builtin("laptop")
	if got := laptop.Len(); got != 96 {
		t.Fatalf("laptop keys = %d, want 96", got)
	}
	compact, _ := Builtin("COMPACT")
	if got := compact.Len(); got != 96 {
		t.Fatalf("compact keys = %d, want 96", got)
	}
}

func TestBuiltinReturnsCopy(t *testing.T) {
	l, _ := Builtin("laptop")
	l.Rows[0][0].Symbol = "X"
	again, _ := Builtin("laptop")
	if again.Rows[0][0].Symbol != "ESC" {
		t.Fatalf("builtin layout was mutated")
	}
}

func TestParseQuotedWidthsAndSpacers(t *testing.T) {
	src := "# numpad\n\"NUM 7\" \"NUM 8\":6 _:3 A:7\n\nB \"NUM ENTER\"\n"
	l, err := Parse(strings.NewReader(src), "pad")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := [][]Key{
		{{Symbol: "NUM 7", Width: 5}, {Symbol: "NUM 8", Width: 6}, {Width: 3}, {Symbol: "A", Width: 7}},
		{{Symbol: "B", Width: 5}, {Symbol: "NUM ENTER", Width: 5}},
	}
	if !reflect.DeepEqual(l.Rows, want) {
		t.Fatalf("rows = %#v, want %#v", l.Rows, want)
	}
	if got := l.Symbols(); !reflect.DeepEqual(got, []string{"NUM 7", "NUM 8", "A", "B", "NUM ENTER"}) {
		t.Fatalf("symbols = %v", got)
	}
}

func TestParseReportsEveryProblem(t *testing.T) {
	src := "A A:x \"NUM 0\n" + "NOPE B B\n" + "C:99\n"
	_, err := Parse(strings.NewReader(src), "bad")
	if err == nil {
		t.Fatalf("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"line 1: unterminated quote", `unknown key "NOPE"`, `duplicate key "B"`, "out of range"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("error %q missing %q", msg, want)
		}
	}
}

func TestParseRejectsEmptyLayout(t *testing.T) {
	if _, err := Parse(strings.NewReader("# nothing\n_ _\n"), "empty"); err == nil {
		t.Fatalf("expected empty layout error")
	}
}

func TestFormatRoundTrip(t *testing.T) {
	for _, name := range BuiltinNames() {
		l, _ := Builtin(name)
		var buf bytes.Buffer
		if err := Format(&buf, l); err != nil {
			t.Fatalf("format: %v", err)
		}
		got, err := Parse(&buf, name)
		if err != nil {
			t.Fatalf("parse formatted %q: %v", name, err)
		}
		if !reflect.DeepEqual(got.Rows, l.Rows) {
			t.Fatalf("round trip of %q changed rows", name)
		}
	}
}

func TestResolvePrefersUserFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "laptop.txt"), []byte("A B\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	l, err := Resolve("laptop", dir)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if l.Len() != 2 || l.Source != filepath.Join(dir, "laptop.txt") {
		t.Fatalf("expected user layout, got %d keys from %s", l.Len(), l.Source)
	}

	l, err = Resolve("", dir)
	if err != nil || l.Name != "laptop" {
		t.Fatalf("default layout not resolved: %v", err)
	}
	l, err = Resolve("compact", dir)
	if err != nil || l.Source != BuiltinSource {
		t.Fatalf("builtin fallback failed: %v", err)
	}
	if _, err := Resolve("missing", dir); err == nil {
		t.Fatalf("expected unknown layout error")
	}
	if _, err := Resolve("../x", dir); err == nil {
		t.Fatalf("expected invalid name error")
	}
}

func TestListMergesBuiltinsAndFiles(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "mine.txt"), []byte("A B C\n"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "broken.txt"), []byte("ZZZ\n"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "notes.md"), []byte("A\n"), 0o644)

	infos, err := List(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var names []string
	for _, info := range infos {
		names = append(names, info.Name)
	}
	if !reflect.DeepEqual(names, []string{"broken", "compact", "laptop", "mine"}) {
		t.Fatalf("names = %v", names)
	}
	if infos[0].Err == nil {
		t.Fatalf("broken layout should carry its error")
	}
	if infos[3].Keys != 3 {
		t.Fatalf("mine keys = %d", infos[3].Keys)
	}

	infos, err = List(filepath.Join(dir, "absent"))
	if err != nil || len(infos) != 2 {
		t.Fatalf("missing dir should list builtins only: %v %d", err, len(infos))
	}
}
