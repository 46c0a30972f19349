package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLine(t *testing.T, line string) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("failed to parse log output as JSON: %v\nOutput: %s", err, line)
	}
	return entry
}

// TestLogger_WithAttachesFields verifies scoped fields appear on every entry.
func TestLogger_WithAttachesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf).With(F("subject", "AAPL"), F("namespace", "live"))

	logger.Info(context.Background(), "cache hit", F("bytes", 42))

	entry := decodeLine(t, strings.TrimSpace(buf.String()))
	if entry["subject"] != "AAPL" {
		t.Errorf("subject = %v, want AAPL", entry["subject"])
	}
	if entry["namespace"] != "live" {
		t.Errorf("namespace = %v, want live", entry["namespace"])
	}
	if entry["bytes"] != float64(42) {
		t.Errorf("bytes = %v, want 42", entry["bytes"])
	}
	if entry["msg"] != "cache hit" {
		t.Errorf("msg = %v, want %q", entry["msg"], "cache hit")
	}
}

// TestLogger_WithDoesNotLeak verifies a derived logger does not mutate its parent.
func TestLogger_WithDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLoggerWithWriter("info", &buf)
	_ = parent.With(F("subject", "MSFT"))

	parent.Info(context.Background(), "plain")

	entry := decodeLine(t, strings.TrimSpace(buf.String()))
	if _, ok := entry["subject"]; ok {
		t.Errorf("parent logger carries subject field: %v", entry)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		level   string
		logFn   func(Logger)
		wantOut bool
	}{
		{"info", func(l Logger) { l.Debug(context.Background(), "x") }, false},
		{"info", func(l Logger) { l.Info(context.Background(), "x") }, true},
		{"warn", func(l Logger) { l.Info(context.Background(), "x") }, false},
		{"warn", func(l Logger) { l.Error(context.Background(), "x") }, true},
		{"debug", func(l Logger) { l.Debug(context.Background(), "x") }, true},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		tt.logFn(NewLoggerWithWriter(tt.level, &buf))
		if got := buf.Len() > 0; got != tt.wantOut {
			t.Errorf("level %q: output = %v, want %v", tt.level, got, tt.wantOut)
		}
	}
}

func TestLogger_RedactsSensitiveFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "fetch", F("api_key", "abc123"), F("token", "t"))

	out := buf.String()
	if strings.Contains(out, "abc123") {
		t.Errorf("output leaks api_key: %s", out)
	}
	entry := decodeLine(t, strings.TrimSpace(out))
	if entry["api_key"] != "[REDACTED]" {
		t.Errorf("api_key = %v, want [REDACTED]", entry["api_key"])
	}
}

func TestLogger_ErrorValuesAreStrings(t *testing.T) {
	var buf bytes.Buffer
	NewLoggerWithWriter("info", &buf).Error(context.Background(), "boom", F("error", errors.New("disk full")))

	entry := decodeLine(t, strings.TrimSpace(buf.String()))
	if entry["error"] != "disk full" {
		t.Errorf("error = %v, want %q", entry["error"], "disk full")
	}
	if entry["level"] != "error" {
		t.Errorf("level = %v, want error", entry["level"])
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug": LevelDebug,
		"info":  LevelInfo,
		"warn":  LevelWarn,
		"error": LevelError,
		"bogus": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
