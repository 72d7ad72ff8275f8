package wazero

import "context"

// contextKey is a private type for context keys.
type contextKey struct {
	name string
}

var renderIDKey = &contextKey{name: "render_id"}

// WithRenderID adds the render ID to the context.
// Capability middleware uses it to attribute calls to a stream.
func WithRenderID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, renderIDKey, id)
}

// RenderIDFromContext retrieves the render ID from the context.
func RenderIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(renderIDKey).(string)
	return id, ok
}
