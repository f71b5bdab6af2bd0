package logging_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"salesboard/internal/config"
	"salesboard/internal/logging"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, logging.ParseLevel(in), in)
	}
}

func TestNewRespectsLevel(t *testing.T) {
	cfg := &config.Config{AppName: "salesboard", Environment: config.Test, LogLevel: config.LogLevelWarn}
	logger := logging.New(cfg)
	assert.NotNil(t, logger)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, slog.Default(), logging.OrDefault(nil))
	custom := slog.New(slog.NewTextHandler(nil, nil))
	assert.Same(t, custom, logging.OrDefault(custom))
}
