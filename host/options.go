package host

import (
	"log/slog"

	"github.com/rapidriter/wasm-renderer/hostfuncs"
	"github.com/tetratelabs/wazero"
)

// DefaultMemoryLimitPages caps guest memory at 16 MiB.
const DefaultMemoryLimitPages = 256

// executorConfig holds configuration for the Executor.
type executorConfig struct {
	registry         *hostfuncs.HandlerRegistry
	clock            hostfuncs.Clock
	cache            wazero.CompilationCache
	logger           *slog.Logger
	memoryLimitPages uint32
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		clock:            hostfuncs.SystemClock{},
		logger:           slog.Default(),
		memoryLimitPages: DefaultMemoryLimitPages,
	}
}

// Option defines a functional option for configuring the Executor.
type Option func(*executorConfig)

// WithHostFunctions links guests against registry instead of the default
// unixtime-only registry.
func WithHostFunctions(registry *hostfuncs.HandlerRegistry) Option {
	return func(c *executorConfig) {
		c.registry = registry
	}
}

// WithClock sets the time source behind the default unixtime capability.
// It is ignored when WithHostFunctions is used.
func WithClock(clock hostfuncs.Clock) Option {
	return func(c *executorConfig) {
		c.clock = clock
	}
}

// WithCompilationCache shares compiled code with other executors.
// The caller keeps ownership of the cache.
func WithCompilationCache(cache wazero.CompilationCache) Option {
	return func(c *executorConfig) {
		c.cache = cache
	}
}

// WithMemoryLimitPages caps each guest's linear memory, in 64 KiB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *executorConfig) {
		c.memoryLimitPages = pages
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *executorConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}
