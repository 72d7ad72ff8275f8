package server

import (
	"log/slog"
	"time"

	"github.com/rapidriter/wasm-renderer/domain/entities"
	"github.com/rapidriter/wasm-renderer/domain/ports"
	"github.com/rapidriter/wasm-renderer/metrics"
	"github.com/rapidriter/wasm-renderer/pacer"
	"github.com/rapidriter/wasm-renderer/stream"
)

// DefaultMaxBodyBytes caps the render request body.
const DefaultMaxBodyBytes = 50 << 20

type serverConfig struct {
	pacer                func() ports.Pacer
	logger               *slog.Logger
	recorder             *metrics.Recorder
	keepAliveText        string
	maxBodyBytes         int64
	maxConcurrentStreams int64
	keepAlive            time.Duration
	renderTimeout        time.Duration
	readHeaderTimeout    time.Duration
	rateLimit            float64
	rateBurst            int
	maxFrameIndex        entities.FrameIndex
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		pacer:                func() ports.Pacer { return pacer.NewLimiter(pacer.DefaultPeriod) },
		logger:               slog.Default(),
		keepAliveText:        stream.DefaultKeepAliveText,
		maxBodyBytes:         DefaultMaxBodyBytes,
		maxConcurrentStreams: 64,
		keepAlive:            stream.DefaultKeepAliveInterval,
		readHeaderTimeout:    5 * time.Second,
		maxFrameIndex:        entities.MaxFrameIndex,
	}
}

// Option configures the Server.
type Option func(*serverConfig)

// WithFramePeriod paces every stream at one frame per period.
func WithFramePeriod(period time.Duration) Option {
	return func(c *serverConfig) {
		c.pacer = func() ports.Pacer { return pacer.NewLimiter(period) }
	}
}

// WithPacer sets the factory for per-stream pacers.
func WithPacer(factory func() ports.Pacer) Option {
	return func(c *serverConfig) {
		if factory != nil {
			c.pacer = factory
		}
	}
}

// WithMaxFrameIndex ends every stream after frame i. Values above
// entities.MaxFrameIndex are ignored.
func WithMaxFrameIndex(i entities.FrameIndex) Option {
	return func(c *serverConfig) {
		c.maxFrameIndex = i
	}
}

// WithKeepAlive sets the idle keep-alive interval. Zero disables it.
func WithKeepAlive(interval time.Duration) Option {
	return func(c *serverConfig) {
		c.keepAlive = interval
	}
}

// WithMaxBodyBytes caps the request body.
func WithMaxBodyBytes(n int64) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// WithMaxConcurrentStreams caps streams in progress. Extra requests get 503.
func WithMaxConcurrentStreams(n int64) Option {
	return func(c *serverConfig) {
		if n > 0 {
			c.maxConcurrentStreams = n
		}
	}
}

// WithRateLimit limits render requests per client address. A non-positive
// rate disables the limit.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *serverConfig) {
		c.rateLimit = rps
		c.rateBurst = burst
	}
}

// WithRenderTimeout bounds a whole stream. Zero means no bound.
func WithRenderTimeout(d time.Duration) Option {
	return func(c *serverConfig) {
		c.renderTimeout = d
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r *metrics.Recorder) Option {
	return func(c *serverConfig) {
		c.recorder = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *serverConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}
