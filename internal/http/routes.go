package http

import (
	"antifraud/internal/config"
	"antifraud/internal/http/handlers"
	"antifraud/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, health *handlers.HealthHandler, cfg *config.Config) {
	// Health checks (no rate limiting)
	r.GET("/health", health.Health)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)

	// API v1 routes
	v1 := r.Group("/api/v1")
	v1.Use(middleware.RedisRateLimit(cfg.APIRateLimit, cfg.APIRateWindow))
	v1.POST("/transactions", h.CreateTransaction)
	v1.GET("/transactions", h.ListTransactions)
	v1.GET("/transactions/:id", h.GetTransaction)
}
