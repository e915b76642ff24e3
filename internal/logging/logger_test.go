package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pressdesk/internal/config"
)

func TestPrettyHandlerFormatsComponentAndFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))

	NewComponentLogger(logger, "pipeline").Info("message stored",
		String(FieldItemID, "vtm-telefacts-2025-03-10"),
		Int("added", 1),
		String("subject", "Nieuw seizoen"),
	)

	line := buf.String()
	if !strings.Contains(line, " INFO pipeline: message stored") {
		t.Fatalf("missing level/component prefix: %q", line)
	}
	if !strings.Contains(line, "item_id=vtm-telefacts-2025-03-10") {
		t.Fatalf("missing item id: %q", line)
	}
	if !strings.Contains(line, `subject="Nieuw seizoen"`) {
		t.Fatalf("expected quoted subject: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be rendered as prefix only: %q", line)
	}
}

func TestPrettyHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))

	logger.Info("quiet")
	logger.Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, "WARN loud") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestJSONHandlerRenamesTimeAndLowercasesLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newJSONHandler(&buf, lvl, false))

	logger.Warn("store unreadable", Error(errors.New("boom")))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
	if payload["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", payload["level"])
	}
	if payload["error"] != "boom" {
		t.Fatalf("expected error field, got %v", payload["error"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.Format = "json"

	logger, err := NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	logger.Info("hello from test")

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "pressdesk.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Fatalf("log file missing message: %q", data)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newJSONHandler(&buf, new(slog.LevelVar), false))

	WarnWithContext(logger, "store reset", "store_corrupt", String(FieldImpact, "existing items discarded"))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if payload[FieldEventType] != "store_corrupt" {
		t.Fatalf("event_type = %v", payload[FieldEventType])
	}
	if payload[FieldErrorHint] == nil {
		t.Fatal("expected default error_hint")
	}
	if payload[FieldImpact] != "existing items discarded" {
		t.Fatalf("impact overridden: %v", payload[FieldImpact])
	}
}

func TestWithContextAddsRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newJSONHandler(&buf, new(slog.LevelVar), false))

	ctx := WithRunID(context.Background(), "run-123")
	WithContext(ctx, logger).Info("tick")

	if !strings.Contains(buf.String(), `"run_id":"run-123"`) {
		t.Fatalf("run id missing: %q", buf.String())
	}
	if id, ok := RunIDFromContext(context.Background()); ok || id != "" {
		t.Fatalf("unexpected run id in empty context: %q", id)
	}
}
