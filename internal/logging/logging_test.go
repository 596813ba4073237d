package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestInitSetsDefault(t *testing.T) {
	Init(LevelDebug, FormatJSON)
	if Logger() == nil {
		t.Fatal("Logger is nil after Init")
	}
	if slog.Default() != Logger() {
		t.Error("Init did not install the package logger as slog default")
	}
}

func TestLevels(t *testing.T) {
	tests := []struct {
		level   Level
		debugOn bool
		infoOn  bool
	}{
		{LevelDebug, true, true},
		{LevelInfo, false, true},
		{LevelWarn, false, false},
		{LevelError, false, false},
	}

	for _, tt := range tests {
		Init(tt.level, FormatText)
		h := Logger().Handler()
		ctx := context.Background()
		if got := h.Enabled(ctx, slog.LevelDebug); got != tt.debugOn {
			t.Errorf("level %d: debug enabled = %v, want %v", tt.level, got, tt.debugOn)
		}
		if got := h.Enabled(ctx, slog.LevelInfo); got != tt.infoOn {
			t.Errorf("level %d: info enabled = %v, want %v", tt.level, got, tt.infoOn)
		}
	}
}

func TestHelpersDoNotPanic(t *testing.T) {
	Init(LevelError, FormatText)
	Debug("debug", "k", "v")
	Info("info", "k", "v")
	Warn("warn", "k", "v")
	Error("error", "k", "v")
	ParseWarnings("ttml", []string{"first warning", "second warning"})
	FeedEvent("subscriber_connected", 1, "session_id", "abc")
}
