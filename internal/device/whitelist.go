// Package device resolves raw input device handles and decides which
// keyboards count as built-in.
package device

import "strings"

// DefaultWhitelist matches the ACPI keyboard found on most laptops.
var DefaultWhitelist = []string{`\ACPI#MSF0001`}

// Whitelist is an immutable list of normalized device-path substrings.
type Whitelist struct {
	entries []string
}

// NewWhitelist normalizes entries. Blank entries are dropped.
func NewWhitelist(entries []string) Whitelist {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		norm := normalizePath(strings.TrimSpace(entry))
		if norm == "" {
			continue
		}
		out = append(out, norm)
	}
	return Whitelist{entries: out}
}

// Match reports whether any entry is a substring of the normalized path.
// An empty path never matches.
func (w Whitelist) Match(path string) bool {
	if path == "" {
		return false
	}
	norm := normalizePath(path)
	for _, entry := range w.entries {
		if strings.Contains(norm, entry) {
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (w Whitelist) Len() int {
	return len(w.entries)
}

func normalizePath(path string) string {
	return strings.ReplaceAll(strings.ToLower(path), `\`, "#")
}
