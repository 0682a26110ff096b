package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestNew_JSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	l := Component(New("info", &buf), "session")
	l.Debug().Msg("hidden")
	l.Info().Str("session_digest", "abc").Msg("rotated")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["component"] != "session" || entry["message"] != "rotated" || entry["level"] != "info" {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["time"]; !ok {
		t.Error("entry should carry a timestamp")
	}
}

func TestNew_Levels(t *testing.T) {
	testCases := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"nonsense", zerolog.InfoLevel},
	}
	for _, tc := range testCases {
		if got := New(tc.in, &bytes.Buffer{}).GetLevel(); got != tc.want {
			t.Errorf("New(%q) level = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNew_DebugUsesConsole(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", &buf)
	log.Debug().Msg("hello")
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("debug output should be console format, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("missing message: %q", buf.String())
	}
}
