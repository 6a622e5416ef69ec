package obscontext

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type millIDKey struct{}

// WithRequestID stores the request ID on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID, or empty.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(requestIDKey{}).(string); ok {
		return value
	}
	return ""
}

// WithMillID stores the mill ID (string form) for log enrichment.
func WithMillID(ctx context.Context, millID string) context.Context {
	millID = strings.TrimSpace(millID)
	if millID == "" {
		return ctx
	}
	return context.WithValue(ctx, millIDKey{}, millID)
}

// MillIDFromContext returns the mill ID string, or empty.
func MillIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(millIDKey{}).(string); ok {
		return value
	}
	return ""
}
