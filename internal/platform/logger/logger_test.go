package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/medvault/medvault/internal/config"
)

func TestNewWithWriter_JSONInProduction(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "production", LogLevel: "info"}, &buf)
	log.Info().Str("path", "/api/patient/appointments").Msg("request")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["path"] != "/api/patient/appointments" {
		t.Errorf("expected path field, got %v", entry["path"])
	}
	if _, ok := entry["time"]; !ok {
		t.Error("expected timestamp field")
	}
}

func TestNewWithWriter_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "production", LogLevel: "warn"}, &buf)
	log.Info().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered at warn level, got %q", buf.String())
	}
}

func TestNewWithWriter_ConsoleInDevelopment(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&config.Config{Env: "development"}, &buf)
	log.Info().Msg("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("expected console output to contain message, got %q", buf.String())
	}
	if strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected console format, got JSON %q", buf.String())
	}
}
