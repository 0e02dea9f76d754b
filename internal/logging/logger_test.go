package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"mixed case Trace", "Trace", LevelTrace},
		{"unknown defaults to info", "verbose", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
		logAtTrace bool
	}{
		{"info filters debug", "info", false, false},
		{"debug passes debug", "debug", true, false},
		{"trace passes everything", "trace", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			if got := strings.Contains(buf.String(), "debug message"); got != tt.logAtDebug {
				t.Errorf("debug message visible = %v, want %v (buf: %q)", got, tt.logAtDebug, buf.String())
			}

			buf.Reset()
			logger.Log(context.Background(), LevelTrace, "trace message")
			if got := strings.Contains(buf.String(), "trace message"); got != tt.logAtTrace {
				t.Errorf("trace message visible = %v, want %v (buf: %q)", got, tt.logAtTrace, buf.String())
			}
			if tt.logAtTrace && !strings.Contains(buf.String(), "level=TRACE") {
				t.Errorf("expected TRACE level label, got %q", buf.String())
			}
		})
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("Discard logger should not be enabled at error level")
	}
}

func TestNewEventLogger_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	el := NewEventLogger(dir, "info")
	if el != nil {
		t.Error("expected nil EventLogger at info level")
	}

	el.Log("born", map[string]any{"x": 1})

	if _, err := os.Stat(filepath.Join(dir, "events.jsonl")); err == nil {
		t.Error("events.jsonl should not exist at info level")
	}
}

func TestNewEventLogger_DebugLevel(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	el := NewEventLogger(dir, "debug")
	if el == nil {
		t.Fatal("expected non-nil EventLogger at debug level")
	}
	defer el.Close()

	el.Log("died", map[string]any{"reason": "isolated", "importance": 31})
	el.Log("born", nil)

	path := filepath.Join(dir, "events.jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read events.jsonl: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), string(data))
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("failed to parse JSONL entry: %v", err)
	}
	if entry["event"] != "died" {
		t.Errorf("event = %v, want died", entry["event"])
	}
	if entry["reason"] != "isolated" {
		t.Errorf("reason = %v, want isolated", entry["reason"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected 'time' field in event entry")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat events.jsonl: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}
}

func TestEventLogger_NilSafety(t *testing.T) {
	var el *EventLogger
	el.Log("born", map[string]any{"x": 1})
	el.Close()
}

func TestEventLogger_DoesNotMutateCallerMap(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventWriter(&buf)

	fields := map[string]any{"x": 1}
	el.Log("born", fields)

	if len(fields) != 1 {
		t.Errorf("Log() mutated caller's map: %v", fields)
	}
	if !strings.Contains(buf.String(), `"event":"born"`) {
		t.Errorf("expected event in output, got %q", buf.String())
	}
}

func TestEventLogger_LogAfterClose(t *testing.T) {
	var buf bytes.Buffer
	el := NewEventWriter(&buf)

	el.Log("before_close", nil)
	el.Close()
	el.Log("after_close", nil)

	if strings.Contains(buf.String(), "after_close") {
		t.Error("Log after Close should be a no-op")
	}
}
