package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNewJSONLoggerCarriesServiceAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, "api", "info")

	logger.Info("hello", "request_id", "req-1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not json: %v (%q)", err, buf.String())
	}
	if entry["service"] != "api" {
		t.Fatalf("expected service attr, got %v", entry["service"])
	}
	if entry["msg"] != "hello" || entry["request_id"] != "req-1" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, "worker", "warn")

	logger.Debug("dropped")
	logger.Info("dropped too")
	if buf.Len() != 0 {
		t.Fatalf("expected debug/info suppressed at warn, got %q", buf.String())
	}

	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Fatal("expected warn entry to be written")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"verbose": slog.LevelInfo,
		"WARNING": slog.LevelWarn,
		" error ": slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
