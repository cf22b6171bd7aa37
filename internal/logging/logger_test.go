package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("%q: expected %s, got %s", in, want, got)
		}
	}
}

func TestNewWithWriterAddsService(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "grants-monitor", "info")
	logger.Debug("hidden")
	logger.Info("cycle_completed", "grants", 5)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "grants-monitor" || entry["msg"] != "cycle_completed" {
		t.Fatalf("unexpected entry %v", entry)
	}
}
