package logging

import "context"

// Context keys for logging values.
// Using a private type to avoid key collisions.
type contextKey int

const (
	sessionIDKey contextKey = iota
	componentKey
	hookKey
)

// WithSession adds a session ID to the context.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// WithComponent adds a component name to the context (e.g. "ingest",
// "tailer", "publisher").
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// WithHook adds a hook event name to the context.
func WithHook(ctx context.Context, hook string) context.Context {
	return context.WithValue(ctx, hookKey, hook)
}

// SessionIDFromContext extracts the session ID from the context.
// Returns empty string if not set.
func SessionIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, sessionIDKey)
}

// ComponentFromContext extracts the component name from the context.
func ComponentFromContext(ctx context.Context) string {
	return stringFromContext(ctx, componentKey)
}

// HookFromContext extracts the hook event name from the context.
func HookFromContext(ctx context.Context) string {
	return stringFromContext(ctx, hookKey)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
