package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v\n%s", err, buf.String())
	}
	return entry
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	logger.Info(context.Background(), "cache hit", Field{Key: "outcome", Value: "hit_local"})

	entry := decodeLogLine(t, &buf)
	if entry["level"] != "info" {
		t.Errorf("level = %v, want info", entry["level"])
	}
	if entry["msg"] != "cache hit" {
		t.Errorf("msg = %v, want %q", entry["msg"], "cache hit")
	}
	if entry["outcome"] != "hit_local" {
		t.Errorf("outcome = %v, want hit_local", entry["outcome"])
	}
	if entry["timestamp"] == nil {
		t.Error("timestamp missing")
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)

	logger.Debug(context.Background(), "noise")
	logger.Info(context.Background(), "noise")
	if buf.Len() != 0 {
		t.Errorf("below-level entries were written: %s", buf.String())
	}

	logger.Warn(context.Background(), "signal")
	if buf.Len() == 0 {
		t.Error("warn entry was suppressed at warn level")
	}
}

// TestLogger_RedactsSensitiveFields verifies query text, patient identifiers,
// and credential material never reach log output.
func TestLogger_RedactsSensitiveFields(t *testing.T) {
	sensitive := []struct {
		key   string
		value string
	}{
		{"query", "patient Jane Doe asked about insulin"},
		{"query_text", "diabetes history"},
		{"prompt", "summarize the chart"},
		{"patient_id", "patient-42"},
		{"password", "hunter2"},
		{"secret", "key material"},
		{"token", "bearer xyz"},
		{"api_key", "sk-123"},
	}

	for _, tt := range sensitive {
		t.Run(tt.key, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter("debug", &buf)

			logger.Info(context.Background(), "lookup", Field{Key: tt.key, Value: tt.value})

			if strings.Contains(buf.String(), tt.value) {
				t.Fatalf("sensitive value %q leaked into log output: %s", tt.value, buf.String())
			}
			entry := decodeLogLine(t, &buf)
			if entry[tt.key] != "[REDACTED]" {
				t.Errorf("field %q = %v, want [REDACTED]", tt.key, entry[tt.key])
			}
		})
	}
}

func TestLogger_NonSensitiveFieldsPassThrough(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("debug", &buf)

	logger.Info(context.Background(), "lookup",
		Field{Key: "user_id", Value: "user-1"},
		Field{Key: "outcome", Value: "miss"},
	)

	entry := decodeLogLine(t, &buf)
	if entry["user_id"] != "user-1" {
		t.Errorf("user_id = %v, want pseudonymous id unredacted", entry["user_id"])
	}
	if entry["outcome"] != "miss" {
		t.Errorf("outcome = %v, want miss", entry["outcome"])
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf).WithComponent("respcache")

	logger.Info(context.Background(), "started")

	entry := decodeLogLine(t, &buf)
	if entry["component"] != "respcache" {
		t.Errorf("component = %v, want respcache", entry["component"])
	}
}

func TestLogger_WithComponentDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLoggerWithWriter("info", &buf)
	parent.WithComponent("child")

	parent.Info(context.Background(), "from parent")

	entry := decodeLogLine(t, &buf)
	if _, ok := entry["component"]; ok {
		t.Error("parent logger inherited the child's component")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	// Must not panic, and WithComponent must keep returning a usable logger.
	logger.WithComponent("x").Info(context.Background(), "dropped", Field{Key: "k", Value: "v"})
}
