package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"trace": LevelTrace,
		"DEBUG": slog.LevelDebug,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestSetupFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := Setup("warn", "", &buf)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer func() { _ = closer.Close() }()

	logger.Info("hidden")
	logger.Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info record leaked: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestSetupTraceLevelName(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := Setup("trace", "", &buf)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	logger.Log(context.Background(), LevelTrace, "raw record")
	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Fatalf("expected TRACE level name, got %q", buf.String())
	}
}

func TestSetupWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keytest.log")
	logger, closer, err := Setup("info", path, nil)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	logger.Info("to file", "key", "A")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "key=A") {
		t.Fatalf("log file missing record: %q", data)
	}
}

func TestDiscardIsDisabled(t *testing.T) {
	if Discard().Enabled(context.Background(), slog.LevelError) {
		t.Fatalf("discard logger should be disabled")
	}
}
