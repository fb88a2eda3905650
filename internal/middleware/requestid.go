package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDKey = "request_id"

// RequestID propagates the caller's X-Request-ID or mints one, and echoes it
// on the response so log lines can be correlated across hops.
func RequestID(c *gin.Context) {
	id := c.GetHeader("X-Request-ID")
	if id == "" {
		id = uuid.New().String()
	}
	c.Set(requestIDKey, id)
	c.Writer.Header().Set("X-Request-ID", id)
	c.Next()
}

// GetRequestID returns the request id set by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
