package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

// TestNewJSON tests level filtering and JSON output
func TestNewJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(Options{Level: "warn", Format: "json", Writer: &buf})

	log.Info().Msg("hidden")
	log.Warn().Str("room", "main").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["message"] != "shown" || entry["room"] != "main" || entry["level"] != "warn" {
		t.Errorf("entry = %v", entry)
	}
}

// TestNewConsoleAndLevelFallback tests console output and the info fallback
func TestNewConsoleAndLevelFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level     string
		wantDebug bool
	}{
		{"", false},
		{"nonsense", false},
		{"DEBUG", true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			log := New(Options{Level: tt.level, Format: "console", Writer: &buf})
			log.Debug().Msg("dbg")
			log.Info().Msg("hello")

			out := buf.String()
			if !strings.Contains(out, "hello") || strings.HasPrefix(strings.TrimSpace(out), "{") {
				t.Errorf("console output = %q", out)
			}
			if strings.Contains(out, "dbg") != tt.wantDebug {
				t.Errorf("debug visible = %v, want %v", !tt.wantDebug, tt.wantDebug)
			}
		})
	}
}
