package infra

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewLoggerJSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "production", "")
	l.Debug().Msg("hidden")
	l.Info().Str("task_id", "T1").Msg("visible")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a single JSON line, got %q: %v", buf.String(), err)
	}
	if entry["message"] != "visible" || entry["task_id"] != "T1" || entry["service"] != "docbot" {
		t.Fatalf("unexpected entry: %#v", entry)
	}
}

func TestNewLoggerLevelOverride(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "production", "warn")
	if l.GetLevel() != zerolog.WarnLevel {
		t.Fatalf("level = %s, want warn", l.GetLevel())
	}
}
