package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false, true)
	log.Info().Str("phase", "translate").Msg("batch done")
	log.Debug().Msg("hidden")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var ev map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if ev["phase"] != "translate" || ev["message"] != "batch done" || ev["level"] != "info" {
		t.Errorf("event = %v", ev)
	}
	if _, ok := ev["time"]; !ok {
		t.Error("missing timestamp")
	}
}

func TestVerboseConsole(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true, false)
	log.Debug().Msg("dispatching batch")
	if !strings.Contains(buf.String(), "dispatching batch") {
		t.Errorf("debug message missing: %q", buf.String())
	}
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Error("console output should not be JSON")
	}
}
