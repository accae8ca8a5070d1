package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const RequestIdHeader = "X-Request-Id"

// RequestIdMiddleware keeps a caller supplied request id or assigns a new one.
func RequestIdMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestId := strings.TrimSpace(c.GetHeader(RequestIdHeader))
		if requestId == "" {
			requestId = uuid.NewString()
		}
		c.Set("RequestId", requestId)
		c.Header(RequestIdHeader, requestId)
		c.Next()
	}
}
