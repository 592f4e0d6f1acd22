package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPretty(buf *bytes.Buffer, level slog.Level) *slog.Logger {
	return slog.New(NewPrettyHandler(buf, &slog.HandlerOptions{Level: level}))
}

func TestNew_CustomWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})
	logger.Info("batch complete", "total", 3)

	assert.Contains(t, buf.String(), `"msg":"batch complete"`)
	assert.Contains(t, buf.String(), `"level":"INFO"`)
	assert.Contains(t, buf.String(), `"total":3`)
}

func TestNew_FormatAutoDetection(t *testing.T) {
	tests := []struct {
		environment string
		wantJSON    bool
	}{
		{"production", true},
		{"development", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.environment, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New(Config{Level: slog.LevelInfo, Environment: tt.environment, Writer: &buf})
			logger.Info("hello")

			assert.Equal(t, tt.wantJSON, strings.HasPrefix(buf.String(), "{"))
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestPrettyHandler_Handle(t *testing.T) {
	var buf bytes.Buffer
	newPretty(&buf, slog.LevelInfo).Info("cache hit", "source", "cache", "hits", 4)

	output := buf.String()
	assert.Contains(t, output, "INF")
	assert.Contains(t, output, "cache hit")
	assert.Contains(t, output, "source=cache")
	assert.Contains(t, output, "hits=4")
}

func TestPrettyHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newPretty(&buf, slog.LevelWarn)

	logger.Debug("debug line")
	logger.Info("info line")
	logger.Warn("warn line")

	assert.NotContains(t, buf.String(), "debug line")
	assert.NotContains(t, buf.String(), "info line")
	assert.Contains(t, buf.String(), "WRN")
}

func TestPrettyHandler_ComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(newPretty(&buf, slog.LevelInfo), "chain")
	logger.Info("source lookup failed", "source", "musicbrainz")

	output := buf.String()
	assert.Contains(t, output, "[chain]")
	assert.Contains(t, output, "source=musicbrainz")
	assert.NotContains(t, output, "component=")
}

func TestPrettyHandler_GroupQualifiesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := newPretty(&buf, slog.LevelInfo).WithGroup("item").With("id", "alb-1")
	logger.Info("skipped", "reason", "has value")

	output := buf.String()
	assert.Contains(t, output, "item.id=alb-1")
	assert.Contains(t, output, "item.reason=")
}

func TestPrettyHandler_WithGroupEmptyReturnsSame(t *testing.T) {
	h := NewPrettyHandler(&bytes.Buffer{}, nil)
	assert.Equal(t, h, h.WithGroup(""))
}

func TestPrettyHandler_WithSource(t *testing.T) {
	var buf bytes.Buffer
	handler := NewPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo, AddSource: true})
	slog.New(handler).Info("with source")

	assert.Contains(t, buf.String(), "logger_test.go:")
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "2024-03-01T12:00:00Z", formatValue(slog.TimeValue(ts)))
	assert.Equal(t, "1.1s", formatValue(slog.DurationValue(1100*time.Millisecond)))
	assert.Equal(t, "rock", formatValue(slog.StringValue("rock")))
	assert.Equal(t, `"abbey road"`, formatValue(slog.StringValue("abbey road")))
	assert.Equal(t, "42", formatValue(slog.IntValue(42)))
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: "json", Writer: &buf})
	logger.WithError(errors.New("dial tcp: timeout")).Warn("source lookup failed")

	assert.Contains(t, buf.String(), `"error":"dial tcp: timeout"`)
}

func TestLogger_WithFieldsSorted(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Writer: &buf, Format: "pretty"})
	logger.WithFields(map[string]any{"zeta": 1, "alpha": 2}).Info("fields")

	output := buf.String()
	require.Contains(t, output, "alpha=2")
	assert.Less(t, strings.Index(output, "alpha=2"), strings.Index(output, "zeta=1"))
}

func TestNop(t *testing.T) {
	logger := Nop()
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
}
