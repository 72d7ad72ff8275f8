// Package log builds the process slog logger.
package log

import (
	"context"
	"log/slog"
)

// ContextAttrs extracts attributes carried by a context.
type ContextAttrs func(ctx context.Context) []slog.Attr

// ContextHandler adds context-scoped attributes, such as the render ID, to
// every record before passing it on.
type ContextHandler struct {
	next    slog.Handler
	extract ContextAttrs
}

// NewContextHandler wraps next.
func NewContextHandler(next slog.Handler, extract ContextAttrs) *ContextHandler {
	return &ContextHandler{next: next, extract: extract}
}

// Enabled reports whether the handler handles records at the given level.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle adds the context attributes and forwards the record.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.extract != nil && ctx != nil {
		if attrs := h.extract(ctx); len(attrs) > 0 {
			r = r.Clone()
			r.AddAttrs(attrs...)
		}
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs returns a new ContextHandler that includes the given attributes.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: h.next.WithAttrs(attrs), extract: h.extract}
}

// WithGroup returns a new ContextHandler with the given group name.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{next: h.next.WithGroup(name), extract: h.extract}
}
