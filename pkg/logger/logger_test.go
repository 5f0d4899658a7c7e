package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" info ":  zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q): want %v, got %v", in, want, got)
		}
	}
}

func TestInit_JSONWithServiceField(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	var buf bytes.Buffer
	Init(Options{Level: "debug", Output: &buf, Service: "user-directory"})
	l := Component("dispatcher")
	l.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["service"] != "user-directory" {
		t.Errorf("service field: got %v", entry["service"])
	}
	if entry["component"] != "dispatcher" {
		t.Errorf("component field: got %v", entry["component"])
	}
	if entry["message"] != "hello" {
		t.Errorf("message field: got %v", entry["message"])
	}
}

func TestInit_OnlyFirstCallWins(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	var first, second bytes.Buffer
	Init(Options{Output: &first})
	Init(Options{Output: &second})
	l := Get()
	l.Info().Msg("x")

	if first.Len() == 0 || second.Len() != 0 {
		t.Errorf("expected output only on the first writer, got first=%d second=%d", first.Len(), second.Len())
	}
}

func TestGet_PanicsBeforeInit(t *testing.T) {
	Reset()
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	Get()
}

func TestNew_AddsVersionWithoutTouchingProcessLogger(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	var buf bytes.Buffer
	l := New(Options{Output: &buf, Service: "user-directory", Version: "1.4.0"})
	l.Info().Msg("ready")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["version"] != "1.4.0" {
		t.Errorf("version field: got %v", entry["version"])
	}
	if _, ok := entry["caller"]; !ok {
		t.Error("JSON output must carry the caller")
	}

	defer func() {
		if recover() == nil {
			t.Error("New must not initialise the process logger")
		}
	}()
	Get()
}

func TestNew_LevelFiltersEntries(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "warn", Output: &buf})
	l.Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Errorf("info entry must be filtered at warn level, got %q", buf.String())
	}
	l.Warn().Msg("kept")
	if buf.Len() == 0 {
		t.Error("warn entry must be written")
	}
}

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"jane.doe@example.com": "j***@example.com",
		" A@x.com ":            "A***@x.com",
		"élodie@x.fr":          "é***@x.fr",
		"not-an-email":         "***",
		"@x.com":               "***",
		"":                     "",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Errorf("MaskEmail(%q): want %q, got %q", in, want, got)
		}
	}
}
