package hostfuncs

import (
	"context"
	"log/slog"
)

// Middleware wraps a capability implementation to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
type Middleware func(name string, next HostFunc) HostFunc

// LoggingMiddleware logs every capability invocation at debug level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(name string, next HostFunc) HostFunc {
		return func(ctx context.Context, stack []uint64) {
			next(ctx, stack)
			logger.DebugContext(ctx, "host capability invoked", "capability", name)
		}
	}
}

// CountingMiddleware calls observe with the capability name after each
// invocation.
func CountingMiddleware(observe func(name string)) Middleware {
	return func(name string, next HostFunc) HostFunc {
		return func(ctx context.Context, stack []uint64) {
			next(ctx, stack)
			observe(name)
		}
	}
}
