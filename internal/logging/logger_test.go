package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/difflens/difflens/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLoggerLevels(t *testing.T) {
	logger := NewLogger(config.LoggingConfig{Level: "warn", Format: "json"})

	if logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
}

func TestMultiHandlerFansOut(t *testing.T) {
	var a, b bytes.Buffer
	handler := NewMultiHandler(
		slog.NewTextHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	)
	logger := slog.New(handler)

	logger.Info("patch ready", "files", 3)

	if !bytes.Contains(a.Bytes(), []byte("patch ready")) {
		t.Error("text handler missed the record")
	}
	if !bytes.Contains(b.Bytes(), []byte(`"files":3`)) {
		t.Error("json handler missed the record")
	}
}

func TestMultiHandlerEnabled(t *testing.T) {
	var buf bytes.Buffer
	handler := NewMultiHandler(
		slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)

	if !handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("multi handler should be enabled if any member is")
	}
}
