package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func newBufferLogger(t *testing.T, level string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := New(Config{Level: level, Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { SetLevel("info") })
	return l, &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("json.Unmarshal() error = %v (%q)", err, buf.String())
	}
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"default config", DefaultConfig()},
		{"text format", Config{Level: "debug", Format: "text"}},
		{"console format", Config{Level: "info", Format: "console"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if l == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

func TestLogger_Levels(t *testing.T) {
	l, buf := newBufferLogger(t, "debug")

	tests := []struct {
		level   string
		logFunc func(string, ...any)
	}{
		{"DEBUG", l.Debug},
		{"INFO", l.Info},
		{"WARN", l.Warn},
		{"ERROR", l.Error},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf.Reset()
			tt.logFunc("test message", "room", "lobby")
			entry := decode(t, buf)
			if entry["level"] != tt.level {
				t.Errorf("level = %v, want %s", entry["level"], tt.level)
			}
			if entry["room"] != "lobby" {
				t.Errorf("room = %v, want lobby", entry["room"])
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug written at info level: %q", buf.String())
	}

	SetLevel("debug")
	if GetLevel() != "debug" {
		t.Errorf("GetLevel() = %q, want debug", GetLevel())
	}
	l.Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Error("debug not written after SetLevel(debug)")
	}
}

func TestComponent(t *testing.T) {
	l, buf := newBufferLogger(t, "info")
	Component(l, "pubsub").Warn("room not found", "room", "x")

	entry := decode(t, buf)
	if entry["component"] != "pubsub" {
		t.Errorf("component = %v, want pubsub", entry["component"])
	}
	if entry["msg"] != "room not found" {
		t.Errorf("msg = %v", entry["msg"])
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("discarded")
	l.With("a", 1).WithContext(context.Background()).Info("discarded")
}

func TestDefault(t *testing.T) {
	prev := Default()
	defer SetDefault(prev)

	l, buf := newBufferLogger(t, "info")
	SetDefault(l)
	Info("through default")
	if !strings.Contains(buf.String(), "through default") {
		t.Errorf("default logger not replaced: %q", buf.String())
	}
}

func TestSlog(t *testing.T) {
	l, buf := newBufferLogger(t, "info")
	Slog(l).Info("raw slog", "token", "abc")

	entry := decode(t, buf)
	if entry["token"] != redactedValue {
		t.Errorf("token = %v, want redacted", entry["token"])
	}
}
