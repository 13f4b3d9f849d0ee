package main

import (
	"context"
	"log/slog"
	"testing"

	"watchtorian/internal/config"
)

func TestBuildLoggerLevels(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := config.DefaultConfig()
		cfg.LogLevel = tt.level
		logger := buildLogger(cfg)
		if !logger.Enabled(context.Background(), tt.want) {
			t.Errorf("level %q: %v disabled", tt.level, tt.want)
		}
		if tt.want > slog.LevelDebug && logger.Enabled(context.Background(), tt.want-4) {
			t.Errorf("level %q: %v enabled", tt.level, tt.want-4)
		}
	}
}
