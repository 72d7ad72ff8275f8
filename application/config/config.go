// Package config loads the render service configuration.
//
// Values come from built-in defaults, then an optional YAML file, then
// WASMRENDER_* environment variables. The result is validated with
// go-playground/validator tags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rapidriter/wasm-renderer/application/validation"
	domainerrors "github.com/rapidriter/wasm-renderer/domain/errors"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WASMRENDER_"

// Config is the process configuration.
type Config struct {
	Log                  LogConfig       `yaml:"log"`
	Listen               string          `yaml:"listen" validate:"required,hostname_port"`
	RateLimit            RateLimitConfig `yaml:"rateLimit"`
	MaxBodyBytes         int64           `yaml:"maxBodyBytes" validate:"gt=0"`
	FramePeriod          time.Duration   `yaml:"framePeriod" validate:"gte=0"`
	MaxFrameIndex        uint32          `yaml:"maxFrameIndex" validate:"lte=100"`
	KeepAlive            time.Duration   `yaml:"keepAlive" validate:"gte=0"`
	RenderTimeout        time.Duration   `yaml:"renderTimeout" validate:"gte=0"`
	ShutdownTimeout      time.Duration   `yaml:"shutdownTimeout" validate:"gt=0"`
	MaxConcurrentStreams int64           `yaml:"maxConcurrentStreams" validate:"gt=0"`
	MemoryLimitPages     uint32          `yaml:"memoryLimitPages" validate:"gte=1,lte=65536"`
}

// RateLimitConfig bounds render requests per client address.
// A zero rate disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requestsPerSecond" validate:"gte=0"`
	Burst             int     `yaml:"burst" validate:"gte=0"`
}

// LogConfig selects the process logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:               ":8080",
		MaxBodyBytes:         50 << 20,
		FramePeriod:          100 * time.Millisecond,
		MaxFrameIndex:        100,
		KeepAlive:            time.Second,
		RenderTimeout:        30 * time.Second,
		ShutdownTimeout:      15 * time.Second,
		MaxConcurrentStreams: 64,
		MemoryLimitPages:     256,
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, &domainerrors.ConfigError{Err: err}
		}
		if err := Merge(&cfg, data); err != nil {
			return Config{}, err
		}
	}

	if err := ApplyEnvOverrides(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Merge decodes YAML over cfg. Keys absent from data keep their value;
// unknown keys are rejected.
func Merge(cfg *Config, data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return &domainerrors.ConfigError{Err: fmt.Errorf("failed to parse config: %w", err)}
	}
	return nil
}

// ApplyEnvOverrides applies WASMRENDER_* variables found by lookup.
func ApplyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	env := envReader{lookup: lookup}

	env.stringVar("LISTEN", &cfg.Listen)
	env.stringVar("LOG_LEVEL", &cfg.Log.Level)
	env.stringVar("LOG_FORMAT", &cfg.Log.Format)
	env.int64Var("MAX_BODY_BYTES", &cfg.MaxBodyBytes)
	env.int64Var("MAX_CONCURRENT_STREAMS", &cfg.MaxConcurrentStreams)
	env.uint32Var("MEMORY_LIMIT_PAGES", &cfg.MemoryLimitPages)
	env.durationVar("FRAME_PERIOD", &cfg.FramePeriod)
	env.uint32Var("MAX_FRAME_INDEX", &cfg.MaxFrameIndex)
	env.durationVar("KEEP_ALIVE", &cfg.KeepAlive)
	env.durationVar("RENDER_TIMEOUT", &cfg.RenderTimeout)
	env.durationVar("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)
	env.floatVar("RATE_LIMIT_RPS", &cfg.RateLimit.RequestsPerSecond)
	env.intVar("RATE_LIMIT_BURST", &cfg.RateLimit.Burst)

	return env.err
}

// Validate checks cfg against its validation tags.
func Validate(cfg Config) error {
	err := validation.Struct(&cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &domainerrors.ConfigError{Field: verrs[0].Namespace(), Err: err}
	}
	return &domainerrors.ConfigError{Err: err}
}

// envReader stops at the first malformed variable.
type envReader struct {
	err    error
	lookup func(string) (string, bool)
}

func (e *envReader) get(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	raw, ok := e.lookup(EnvPrefix + key)
	raw = strings.TrimSpace(raw)
	return raw, ok && raw != ""
}

func (e *envReader) fail(key string, err error) {
	e.err = &domainerrors.ConfigError{Field: EnvPrefix + key, Err: err}
}

func (e *envReader) stringVar(key string, dst *string) {
	if raw, ok := e.get(key); ok {
		*dst = raw
	}
}

func (e *envReader) intVar(key string, dst *int) {
	raw, ok := e.get(key)
	if !ok {
		return
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = v
}

func (e *envReader) int64Var(key string, dst *int64) {
	raw, ok := e.get(key)
	if !ok {
		return
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = v
}

func (e *envReader) uint32Var(key string, dst *uint32) {
	raw, ok := e.get(key)
	if !ok {
		return
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = uint32(v)
}

func (e *envReader) floatVar(key string, dst *float64) {
	raw, ok := e.get(key)
	if !ok {
		return
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = v
}

func (e *envReader) durationVar(key string, dst *time.Duration) {
	raw, ok := e.get(key)
	if !ok {
		return
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = v
}
