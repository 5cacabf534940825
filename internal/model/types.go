// Package model defines shared data structures.
package model

import "time"

// Status is the terminal state of a keyboard test session.
type Status string

// Session statuses.
const (
	StatusPassed  Status = "passed"
	StatusAborted Status = "aborted"
	StatusErrored Status = "errored"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPassed, StatusAborted, StatusErrored:
		return true
	}
	return false
}

// Config defines keyboard test settings.
type Config struct {
	Layout    string
	Whitelist []string
	Title     string
	Save      bool
}

// RawKeyEvent is one decoded keyboard record from the raw input stream.
type RawKeyEvent struct {
	Device   uintptr
	VKey     uint16
	MakeCode uint16
	Flags    uint16
	Extended bool
	Break    bool
}

// DeviceStats counts events seen from one device during a session.
type DeviceStats struct {
	Path     string
	Internal bool
	Accepted int
	Rejected int
}

// Progress is published each time a required key is observed.
type Progress struct {
	Symbol    string
	Remaining int
	Total     int
}

// Result captures a finished keyboard test session.
type Result struct {
	ID         int64
	StartedAt  time.Time
	EndedAt    time.Time
	Status     Status
	Layout     string
	TotalKeys  int
	FailedKeys []string
	Devices    []DeviceStats
	Error      string
}

// Duration returns the wall time of the session.
func (r Result) Duration() time.Duration {
	if r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// HistoryConfig defines filters for history output.
type HistoryConfig struct {
	Status Status
	Since  *time.Time
	Last   int
	Layout string
}

// SessionAggregate summarizes a session for reporting.
type SessionAggregate struct {
	SessionID   int64
	EndedAt     time.Time
	Status      Status
	Layout      string
	TotalKeys   int
	FailedCount int
	DurationMs  int64
}

// KeyAggregate aggregates how often a key was left unpressed.
type KeyAggregate struct {
	Key      string
	Failed   int
	Sessions int
}
