package layout

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/verte-zerg/keytest/internal/keymap"
)

// Ext is the file extension of user layout files.
const Ext = ".txt"

// MaxWidth bounds a single key width.
const MaxWidth = 40

// LineError is a problem on one line of a layout file.
type LineError struct {
	Line int
	Msg  string
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Load reads a layout file. The layout is named after the file.
func Load(path string) (Layout, error) {
	file, err := os.Open(path)
	if err != nil {
		return Layout{}, err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only layout file.
			_ = cerr
		}
	}()

	name := strings.TrimSuffix(filepath.Base(path), Ext)
	l, err := Parse(file, name)
	if err != nil {
		return Layout{}, fmt.Errorf("layout %s: %w", path, err)
	}
	l.Source = path
	return l, nil
}

// Parse reads one row per line. Keys are separated by blanks; a key may be
// double-quoted and may carry a ":width" suffix; "_" is a spacer; lines
// starting with "#" are comments. Every problem is reported.
func Parse(r io.Reader, name string) (Layout, error) {
	l := Layout{Name: name}
	var errs []error
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tokens, err := splitTokens(line)
		if err != nil {
			errs = append(errs, LineError{Line: lineNo, Msg: err.Error()})
			continue
		}
		var row []Key
		for _, tok := range tokens {
			k, err := parseKey(tok)
			if err != nil {
				errs = append(errs, LineError{Line: lineNo, Msg: err.Error()})
				continue
			}
			row = append(row, k)
		}
		if len(row) > 0 {
			l.Rows = append(l.Rows, row)
		}
	}
	if err := scanner.Err(); err != nil {
		return Layout{}, err
	}
	if err := Validate(l); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return Layout{}, errors.Join(errs...)
	}
	return l, nil
}

type token struct {
	text   string
	quoted bool
}

func splitTokens(line string) ([]token, error) {
	var out []token
	i := 0
	for i < len(line) {
		switch line[i] {
		case ' ', '\t':
			i++
			continue
		case '"':
			end := strings.IndexByte(line[i+1:], '"')
			if end < 0 {
				return nil, errors.New("unterminated quote")
			}
			end += i + 1
			j := end + 1
			for j < len(line) && line[j] != ' ' && line[j] != '\t' {
				j++
			}
			out = append(out, token{text: line[i+1:end] + "\x00" + line[end+1:j], quoted: true})
			i = j
		default:
			j := i
			for j < len(line) && line[j] != ' ' && line[j] != '\t' {
				j++
			}
			out = append(out, token{text: line[i:j]})
			i = j
		}
	}
	return out, nil
}

func parseKey(tok token) (Key, error) {
	sym, suffix := tok.text, ""
	if tok.quoted {
		sym, suffix, _ = strings.Cut(tok.text, "\x00")
	} else if idx := strings.LastIndexByte(tok.text, ':'); idx > 0 {
		sym, suffix = tok.text[:idx], tok.text[idx:]
	}
	width := DefaultWidth
	if suffix != "" {
		if !strings.HasPrefix(suffix, ":") {
			return Key{}, fmt.Errorf("unexpected %q after %q", suffix, sym)
		}
		w, err := strconv.Atoi(suffix[1:])
		if err != nil {
			return Key{}, fmt.Errorf("invalid width %q for %q", suffix[1:], sym)
		}
		width = w
	}
	if !tok.quoted && sym == "_" {
		sym = ""
	}
	return Key{Symbol: sym, Width: width}, nil
}

// Validate reports every unknown symbol, duplicate, and bad width.
func Validate(l Layout) error {
	var errs []error
	seen := map[string]struct{}{}
	keyCount := 0
	for i, row := range l.Rows {
		for _, k := range row {
			if k.Width < 1 || k.Width > MaxWidth {
				errs = append(errs, fmt.Errorf("row %d: width %d of %q out of range 1..%d", i+1, k.Width, k.Symbol, MaxWidth))
			}
			if k.Spacer() {
				continue
			}
			keyCount++
			if !keymap.IsSymbol(k.Symbol) {
				errs = append(errs, fmt.Errorf("row %d: unknown key %q", i+1, k.Symbol))
				continue
			}
			if _, ok := seen[k.Symbol]; ok {
				errs = append(errs, fmt.Errorf("row %d: duplicate key %q", i+1, k.Symbol))
			}
			seen[k.Symbol] = struct{}{}
		}
	}
	if keyCount == 0 {
		errs = append(errs, errors.New("layout has no keys"))
	}
	return errors.Join(errs...)
}

// Format writes l in the file format read by Parse.
func Format(w io.Writer, l Layout) error {
	for _, row := range l.Rows {
		parts := make([]string, 0, len(row))
		for _, k := range row {
			parts = append(parts, formatKey(k))
		}
		if _, err := fmt.Fprintln(w, strings.Join(parts, " ")); err != nil {
			return err
		}
	}
	return nil
}

func formatKey(k Key) string {
	sym := k.Symbol
	switch {
	case k.Spacer():
		sym = "_"
	case strings.ContainsAny(sym, " \t:\"") || sym == "_" || strings.HasPrefix(sym, "#"):
		sym = `"` + sym + `"`
	}
	if k.Width != DefaultWidth {
		sym += ":" + strconv.Itoa(k.Width)
	}
	return sym
}

// Resolve finds a layout by name. A file in dir overrides the built-in
// layout of the same name.
func Resolve(name, dir string) (Layout, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	if strings.ContainsAny(name, `/\`) {
		return Layout{}, fmt.Errorf("invalid layout name %q", name)
	}
	if dir != "" {
		path := filepath.Join(dir, name+Ext)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return Layout{}, err
		}
	}
	if l, ok := Builtin(name); ok {
		return l, nil
	}
	return Layout{}, fmt.Errorf("unknown layout %q", name)
}

// Info describes an available layout.
type Info struct {
	Name   string
	Source string
	Keys   int
	Err    error
}

// List returns built-in layouts followed by user files in dir, sorted by
// name. User files that fail to load are listed with their error.
func List(dir string) ([]Info, error) {
	byName := map[string]Info{}
	for _, name := range BuiltinNames() {
		l, _ := Builtin(name)
		byName[name] = Info{Name: name, Source: BuiltinSource, Keys: l.Len()}
	}
	if dir != "" {
		entries, err := os.ReadDir(dir)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() || filepath.Ext(entry.Name()) != Ext {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			name := strings.TrimSuffix(entry.Name(), Ext)
			info := Info{Name: name, Source: path}
			if l, err := Load(path); err != nil {
				info.Err = err
			} else {
				info.Keys = l.Len()
			}
			byName[name] = info
		}
	}
	out := make([]Info, 0, len(byName))
	for _, info := range byName {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
