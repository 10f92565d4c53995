package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/pagelift/pagelift/backend/internal/shared/id"
)

// HeaderRequestID carries the request ID in and out of the service.
const HeaderRequestID = "X-Request-ID"

// ContextRequestID is the gin context key holding the request ID.
const ContextRequestID = "request_id"

// RequestID assigns each request a ULID, honoring an inbound header when
// present so IDs stay stable across proxies.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" {
			rid = id.NewRequestID().String()
		}
		c.Set(ContextRequestID, rid)
		c.Writer.Header().Set(HeaderRequestID, rid)
		c.Next()
	}
}

// RequestIDFrom returns the request ID stored on the context, if any.
func RequestIDFrom(c *gin.Context) string {
	if rid, ok := c.Get(ContextRequestID); ok {
		if s, ok := rid.(string); ok {
			return s
		}
	}
	return ""
}
