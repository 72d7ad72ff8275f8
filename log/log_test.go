package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

func requestAttrs(ctx context.Context) []slog.Attr {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return []slog.Attr{slog.String("render_id", id)}
	}
	return nil
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(WithWriter(&buf), WithFormat(FormatJSON), WithLevel(slog.LevelDebug))
	require.NoError(t, err)

	logger.Debug("module loaded", "pages", 2)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "DEBUG", record["level"])
	assert.Equal(t, "module loaded", record["msg"])
	assert.Equal(t, float64(2), record["pages"])
}

func TestNewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(WithWriter(&buf), WithLevel(slog.LevelWarn))
	require.NoError(t, err)

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "msg=shown")
}

func TestNewLogger_UnknownFormat(t *testing.T) {
	_, err := NewLogger(WithFormat("xml"))
	assert.Error(t, err)
}

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(WithWriter(&buf), WithContextAttrs(requestAttrs))
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), ctxKey{}, "r-1")
	logger.With("component", "server").InfoContext(ctx, "stream opened")
	logger.Info("no context")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "component=server")
	assert.Contains(t, string(lines[0]), "render_id=r-1")
	assert.NotContains(t, string(lines[1]), "render_id")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{" error ", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}
