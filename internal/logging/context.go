package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent names the subsystem emitting the line.
	FieldComponent = "component"
	// FieldRequestID correlates lines from one HTTP request or tool call.
	FieldRequestID = "request_id"
	// FieldStage names a publication pipeline stage.
	FieldStage = "stage"
	// FieldCapsuleID identifies the capsule being processed.
	FieldCapsuleID = "capsule_id"
)

type requestIDKey struct{}

// WithRequestID stores a request ID on ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// WithContext returns logger tagged with the request ID carried by ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if id, ok := RequestIDFromContext(ctx); ok {
		return logger.With(slog.String(FieldRequestID, id))
	}
	return logger
}
