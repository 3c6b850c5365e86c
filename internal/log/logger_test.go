package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestSetup(t *testing.T) {
	logger = nil
	once = *new(sync.Once)

	Setup("DEBUG", "text")
	if logger == nil {
		t.Fatal("Logger should not be nil")
	}
	if !logger.Enabled(t.Context(), slog.LevelDebug) {
		t.Fatal("expected debug level to be enabled")
	}
}

func TestNewLoggerLevelsAndFormat(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "warn", "text")
	l.Info("dropped")
	l.Warn("kept", "queue", "eod")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info line should be filtered at WARN: %q", out)
	}
	if !strings.Contains(out, "queue=eod") {
		t.Fatalf("expected text output, got %q", out)
	}
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	return out
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger = slog.New(slog.NewJSONHandler(&buf, nil))

	WithComponent("dispatch").Info("hello")
	out := decodeLine(t, &buf)
	if out["component"] != "dispatch" {
		t.Errorf("Expected component 'dispatch', got %v", out["component"])
	}
	if out["msg"] != "hello" {
		t.Errorf("Expected msg 'hello', got %v", out["msg"])
	}
}

func TestWithRun(t *testing.T) {
	var buf bytes.Buffer
	logger = slog.New(slog.NewJSONHandler(&buf, nil))

	WithRun("eod", "run-123").Info("run msg")
	out := decodeLine(t, &buf)
	if out["queue"] != "eod" || out["run_id"] != "run-123" {
		t.Errorf("unexpected fields: %v", out)
	}

	buf.Reset()
	WithQueue("open").Info("queue msg")
	out = decodeLine(t, &buf)
	if out["queue"] != "open" {
		t.Errorf("Expected queue 'open', got %v", out["queue"])
	}
}
