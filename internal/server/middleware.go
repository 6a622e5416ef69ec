package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/graindesk/millbook/internal/millctx"
	obscontext "github.com/graindesk/millbook/internal/observability/context"
)

const millHeader = "X-Mill-ID"

// MillContext resolves the acting mill from the X-Mill-ID header and stores
// it on the request context. Every stock operation is scoped to one mill;
// requests without a valid mill never reach a handler.
func (s *Server) MillContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(millHeader))
		if raw == "" {
			AbortWithError(c, newValidationError("mill_id", "missing_mill_id", "X-Mill-ID header is required"))
			return
		}
		millID, err := snowflake.ParseString(raw)
		if err != nil || millID == 0 {
			AbortWithError(c, newValidationError("mill_id", "invalid_mill_id", "X-Mill-ID header is not a valid mill ID"))
			return
		}

		ctx := millctx.WithMillID(c.Request.Context(), int64(millID))
		ctx = obscontext.WithMillID(ctx, millID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// millID reads the mill set by MillContext. Routes registered under the mill
// group always have one.
func (s *Server) millID(c *gin.Context) (snowflake.ID, bool) {
	millID, ok := millctx.MillIDFromContext(c.Request.Context())
	if !ok || millID == 0 {
		AbortWithError(c, newValidationError("mill_id", "missing_mill_id", "mill context missing"))
		return 0, false
	}
	return millID, true
}
