package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("failed to parse log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "cache attached", F("dir", "/tmp/cf"), F("entries", 3))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	entry := lines[0]
	if entry["msg"] != "cache attached" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v", entry["level"])
	}
	if entry["dir"] != "/tmp/cf" {
		t.Errorf("dir = %v", entry["dir"])
	}
	if entry["entries"] != float64(3) {
		t.Errorf("entries = %v", entry["entries"])
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("timestamp missing")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)
	ctx := context.Background()

	logger.Debug(ctx, "debug")
	logger.Info(ctx, "info")
	logger.Warn(ctx, "warn")
	logger.Error(ctx, "error")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines at warn level, got %d", len(lines))
	}
	if lines[0]["msg"] != "warn" || lines[1]["msg"] != "error" {
		t.Errorf("unexpected messages: %v, %v", lines[0]["msg"], lines[1]["msg"])
	}
}

func TestLogger_WithScopesFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerWithWriter("debug", &buf)
	scoped := base.With(F("component", "cfcache"))
	scoped = scoped.With(F("slot", 2))

	scoped.Debug(context.Background(), "memory hit", F("slot", 4))
	base.Info(context.Background(), "plain")

	lines := decodeLines(t, &buf)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["component"] != "cfcache" {
		t.Errorf("component = %v", lines[0]["component"])
	}
	if lines[0]["slot"] != float64(4) {
		t.Errorf("call-site field should win, slot = %v", lines[0]["slot"])
	}
	if _, ok := lines[1]["component"]; ok {
		t.Error("With must not mutate the parent logger")
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug": LevelDebug,
		"info":  LevelInfo,
		"warn":  LevelWarn,
		"error": LevelError,
		"bogus": LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNopLogger(t *testing.T) {
	l := NopLogger()
	l.Info(context.Background(), "ignored", F("k", "v"))
	if l.With(F("a", 1)) == nil {
		t.Fatal("With should return a logger")
	}
}
