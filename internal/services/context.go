package services

import "context"

type contextKey string

const (
	pathIDKey    contextKey = "path_id"
	providerKey  contextKey = "provider"
	taskKey      contextKey = "task"
	requestIDKey contextKey = "request_id"
)

// WithPathID annotates context with the library path identifier.
func WithPathID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, pathIDKey, id)
}

// PathIDFromContext extracts the library path identifier if present.
func PathIDFromContext(ctx context.Context) (int64, bool) {
	switch v := ctx.Value(pathIDKey).(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

// WithProvider annotates context with the metadata provider id.
func WithProvider(ctx context.Context, provider string) context.Context {
	if provider == "" {
		return ctx
	}
	return context.WithValue(ctx, providerKey, provider)
}

// ProviderFromContext returns the provider id if present.
func ProviderFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(providerKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithTask annotates context with the running task title.
func WithTask(ctx context.Context, title string) context.Context {
	if title == "" {
		return ctx
	}
	return context.WithValue(ctx, taskKey, title)
}

// TaskFromContext returns the task title if present.
func TaskFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(taskKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
