package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/customeros/violationstack/services/scheduler"
)

type StatusProvider interface {
	Status() scheduler.Status
}

// HealthCheck provides a simple health check endpoint
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Status returns the last polling cycle and the latest result per tenant
func Status(provider StatusProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, provider.Status())
	}
}
