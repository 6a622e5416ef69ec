package millctx

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// MillContextKey is the request context key for the active mill ID.
type MillContextKey struct{}

// WithMillID stores the mill ID in the context.
func WithMillID(ctx context.Context, millID int64) context.Context {
	return context.WithValue(ctx, MillContextKey{}, millID)
}

// MillIDFromContext returns the mill ID from context, if set.
func MillIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	value := ctx.Value(MillContextKey{})
	if value == nil {
		return 0, false
	}
	switch typed := value.(type) {
	case int64:
		return snowflake.ID(typed), true
	case snowflake.ID:
		return typed, true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}
