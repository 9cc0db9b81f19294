package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
		err  bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"warn", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"", InfoLevel, false},
		{"bogus", InfoLevel, true},
	}
	for _, c := range cases {
		got, err := ParseLevel(c.in)
		if (err != nil) != c.err {
			t.Fatalf("ParseLevel(%q) err=%v", c.in, err)
		}
		if err == nil && got != c.want {
			t.Fatalf("ParseLevel(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestTextFormatterFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(
		WithLevel(DebugLevel),
		WithFormatter(&TextFormatter{}),
		WithOutput(NewWriterOutput(&buf)),
	)
	logger.Info("hello", Str("gate", "g1"), Int("depth", 3))
	line := buf.String()
	if !strings.Contains(line, "INFO hello") {
		t.Fatalf("missing level/message: %q", line)
	}
	if !strings.Contains(line, "depth=3") || !strings.Contains(line, "gate=g1") {
		t.Fatalf("missing fields: %q", line)
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(
		WithLevel(DebugLevel),
		WithFormatter(&JSONFormatter{}),
		WithOutput(NewWriterOutput(&buf)),
	)
	logger.With(Component("gates")).Warn("slow apply", Int64("elapsed_ms", 12))
	var obj map[string]any
	if err := json.Unmarshal(buf.Bytes(), &obj); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if obj["level"] != "WARN" || obj["msg"] != "slow apply" {
		t.Fatalf("unexpected entry: %v", obj)
	}
	if obj["component"] != "gates" {
		t.Fatalf("With field not attached: %v", obj)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(
		WithLevel(ErrorLevel),
		WithFormatter(&TextFormatter{}),
		WithOutput(NewWriterOutput(&buf)),
	)
	logger.Info("dropped")
	logger.Debug("dropped too")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below error level, got %q", buf.String())
	}
	logger.Error("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("error entry missing")
	}
}

func TestApplyConfig(t *testing.T) {
	logger, err := ApplyConfig(&Config{Level: "debug", Format: "json"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if logger.GetLevel() != DebugLevel {
		t.Fatalf("level: %v", logger.GetLevel())
	}
	if _, err := ApplyConfig(&Config{Format: "xml"}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
