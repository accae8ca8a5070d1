package middleware

import (
	"github.com/gin-gonic/gin"
)

var tenantHeaders = []string{"tenant", "Tenant", "TENANT", "tenantId", "TenantId", "X-Tenant-Id"}

// TenantMiddleware picks up an optional tenant header. Handlers fall back to it when the
// request body names no tenant.
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := ""
		for _, header := range tenantHeaders {
			if value := c.GetHeader(header); value != "" {
				tenant = value
				break
			}
		}
		c.Set("TenantName", tenant)
		c.Next()
	}
}
