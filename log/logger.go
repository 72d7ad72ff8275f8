package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

type loggerConfig struct {
	writer    io.Writer
	extract   ContextAttrs
	format    string
	level     slog.Level
	addSource bool
}

// defaultLoggerConfig returns the default configuration.
func defaultLoggerConfig() loggerConfig {
	return loggerConfig{
		writer: os.Stderr,
		format: FormatText,
		level:  slog.LevelInfo,
	}
}

// Option configures NewLogger.
type Option func(*loggerConfig)

// WithLevel sets the minimum log level to report.
func WithLevel(level slog.Level) Option {
	return func(c *loggerConfig) {
		c.level = level
	}
}

// WithFormat selects FormatText or FormatJSON.
func WithFormat(format string) Option {
	return func(c *loggerConfig) {
		c.format = format
	}
}

// WithWriter sets the destination.
func WithWriter(w io.Writer) Option {
	return func(c *loggerConfig) {
		if w != nil {
			c.writer = w
		}
	}
}

// WithSource enables reporting of source location (file/line).
func WithSource(enabled bool) Option {
	return func(c *loggerConfig) {
		c.addSource = enabled
	}
}

// WithContextAttrs adds attributes taken from each record's context.
func WithContextAttrs(extract ContextAttrs) Option {
	return func(c *loggerConfig) {
		c.extract = extract
	}
}

// NewLogger creates the process logger.
func NewLogger(opts ...Option) (*slog.Logger, error) {
	cfg := defaultLoggerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	handlerOpts := &slog.HandlerOptions{Level: cfg.level, AddSource: cfg.addSource}

	var handler slog.Handler
	switch cfg.format {
	case FormatText:
		handler = slog.NewTextHandler(cfg.writer, handlerOpts)
	case FormatJSON:
		handler = slog.NewJSONHandler(cfg.writer, handlerOpts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.format)
	}

	if cfg.extract != nil {
		handler = NewContextHandler(handler, cfg.extract)
	}
	return slog.New(handler), nil
}

// ParseLevel parses "debug", "info", "warn" or "error".
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}
