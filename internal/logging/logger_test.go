package logging

import (
	"log/slog"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStandardLogger(t *testing.T) {
	l := NewStandardLogger("debug")
	require.NotNil(t, l)
	assert.NotNil(t, l.Logger())
	assert.NotNil(t, l.WithSystem("sys-1"))
	assert.NotNil(t, l.WithMethod("statistical_outlier"))
	assert.NotNil(t, l.WithHorizon("day"))
}

func TestNewStandardOTLPLoggerDisabled(t *testing.T) {
	l := NewStandardOTLPLogger(OTLPConfig{Enabled: false, LogLevel: "info"})
	require.NotNil(t, l)
	assert.NotNil(t, l.Logger())
}

func TestGetSlogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"unknown", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, getSlogLevel(tt.in), tt.in)
	}
}

func TestParseLogrusLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, ParseLogrusLevel("debug"))
	assert.Equal(t, logrus.WarnLevel, ParseLogrusLevel("warning"))
	assert.Equal(t, logrus.ErrorLevel, ParseLogrusLevel("error"))
	assert.Equal(t, logrus.InfoLevel, ParseLogrusLevel(""))
}
