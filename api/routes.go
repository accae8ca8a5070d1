package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/customeros/violationstack/api/handlers"
	"github.com/customeros/violationstack/api/middleware"
	"github.com/customeros/violationstack/config"
	"github.com/customeros/violationstack/internal/logger"
	"github.com/customeros/violationstack/internal/tracing"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, log logger.Logger, cfg *config.Config, p handlers.Pipeline, status handlers.StatusProvider) {
	if p == nil {
		panic("Pipeline cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))
	r.Use(middleware.RequestIdMiddleware())

	apiHandlers := handlers.InitHandlers(log, p, cfg.InboundConfig)

	r.GET("/health", handlers.HealthCheck)
	r.GET("/status", handlers.Status(status))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-VIOLATIONSTACK-API-KEY",
		ValidAPIKey: cfg.AppConfig.APIKey,
	})

	v1 := r.Group("/v1")
	v1.Use(middleware.TenantMiddleware())
	v1.Use(middleware.CustomContextMiddleware(cfg.AppConfig.AppSource))
	v1.Use(middleware.TracingMiddleware())
	{
		// webhook senders authenticate with the shared inbound secret
		v1.POST("/inbound/email", apiHandlers.Inbound.PushEmail())

		authed := v1.Group("")
		authed.Use(apiKeyMiddleware)
		authed.POST("/inbound/reprocess", apiHandlers.Inbound.Reprocess())
		authed.POST("/violations", apiHandlers.Violations.Create())
	}
}
