package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"nonsense", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_WritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")

	log, err := New(Config{Level: "info", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	log.With(String("item", "https://example.com/video/1")).Info("collected", Int("comments", 3))
	log.Debug("hidden at info level")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)

	if !strings.Contains(out, `"msg":"collected"`) {
		t.Errorf("expected JSON message, got %s", out)
	}
	if !strings.Contains(out, `"item":"https://example.com/video/1"`) {
		t.Errorf("expected inherited field, got %s", out)
	}
	if strings.Contains(out, "hidden at info level") {
		t.Errorf("debug entry should be filtered, got %s", out)
	}
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	log.Info("nothing")
	log.With(Bool("x", true)).Warn("still nothing")
}
