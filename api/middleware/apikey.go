package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// APIKeyConfig holds the configuration for API key authentication
type APIKeyConfig struct {
	HeaderName  string
	ValidAPIKey string
}

// APIKeyMiddleware rejects requests whose key header does not match. An empty configured key
// rejects everything.
func APIKeyMiddleware(config APIKeyConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader(config.HeaderName))
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing API key",
			})
			return
		}

		if config.ValidAPIKey == "" || subtle.ConstantTimeCompare([]byte(apiKey), []byte(config.ValidAPIKey)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			return
		}

		c.Next()
	}
}
