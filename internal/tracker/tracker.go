// Package tracker records which keys of a layout have been pressed.
package tracker

import (
	"errors"
	"sort"
	"sync"
)

// State is the lifecycle state of a Tracker.
type State int

// Tracker states.
const (
	NotStarted State = iota
	InProgress
	Passed
	Aborted
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case InProgress:
		return "in progress"
	case Passed:
		return "passed"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// ErrAlreadyStarted is returned when Start is called on a used tracker.
var ErrAlreadyStarted = errors.New("tracker already started")

// Tracker holds the set of layout keys not yet observed. It is used once.
type Tracker struct {
	mu        sync.Mutex
	layout    []string
	remaining map[string]struct{}
	state     State
	failed    []string
}

// New returns a tracker over the given layout. Duplicate symbols collapse.
func New(layout []string) *Tracker {
	seen := make(map[string]struct{}, len(layout))
	keys := make([]string, 0, len(layout))
	for _, sym := range layout {
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		keys = append(keys, sym)
	}
	return &Tracker{layout: keys}
}

// Start seeds the completion set with the full layout.
func (t *Tracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != NotStarted {
		return ErrAlreadyStarted
	}
	t.remaining = make(map[string]struct{}, len(t.layout))
	for _, sym := range t.layout {
		t.remaining[sym] = struct{}{}
	}
	t.state = InProgress
	if len(t.remaining) == 0 {
		t.state = Passed
	}
	return nil
}

// Observe removes sym from the completion set. It reports whether the set
// changed. The tracker passes once the set is empty.
func (t *Tracker) Observe(sym string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != InProgress {
		return false
	}
	if _, ok := t.remaining[sym]; !ok {
		return false
	}
	delete(t.remaining, sym)
	if len(t.remaining) == 0 {
		t.state = Passed
	}
	return true
}

// Abort ends an in-progress session and freezes the keys still missing.
// It returns false if the tracker was not in progress.
func (t *Tracker) Abort() ([]string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != InProgress {
		return nil, false
	}
	t.state = Aborted
	t.failed = sortedKeys(t.remaining)
	return append([]string(nil), t.failed...), true
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Total returns the number of distinct keys in the layout.
func (t *Tracker) Total() int {
	return len(t.layout)
}

// Remaining returns the keys not yet observed, sorted.
func (t *Tracker) Remaining() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == NotStarted {
		return append([]string(nil), t.layout...)
	}
	return sortedKeys(t.remaining)
}

// RemainingCount returns the size of the completion set.
func (t *Tracker) RemainingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == NotStarted {
		return len(t.layout)
	}
	return len(t.remaining)
}

// Pending reports whether sym still has to be pressed.
func (t *Tracker) Pending(sym string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state == NotStarted {
		for _, k := range t.layout {
			if k == sym {
				return true
			}
		}
		return false
	}
	_, ok := t.remaining[sym]
	return ok
}

// FailedKeys returns the snapshot taken on abort, or nil.
func (t *Tracker) FailedKeys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.failed...)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
