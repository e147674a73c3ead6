package logging

import (
	"context"
	"log/slog"

	"ludex/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldPathID is the standardized structured logging key for library path identifiers.
	FieldPathID = "path_id"
	// FieldProvider is the standardized structured logging key for metadata provider ids.
	FieldProvider = "provider"
	// FieldTask is the standardized structured logging key for task titles.
	FieldTask = "task"
	// FieldEventType tags log records that represent lifecycle events.
	FieldEventType = "event_type"
	// FieldCorrelationID is the standardized structured logging key for request correlation.
	FieldCorrelationID = "correlation_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.PathIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldPathID, id))
	}
	if provider, ok := services.ProviderFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldProvider, provider))
	}
	if task, ok := services.TaskFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTask, task))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with fields derived from the context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
