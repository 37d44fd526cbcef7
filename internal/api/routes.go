package api

import (
	"github.com/gin-gonic/gin"
	"github.com/hook-system/hook/internal/config"
	"github.com/hook-system/hook/internal/metrics"
)

func SetupRoutes(cfg *config.Config, handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.GinMiddleware())
	router.Use(ErrorHandlerMiddleware())

	rateLimiter := NewRateLimiter(cfg.RateLimitRPS, int(cfg.RateLimitRPS*2))

	// Health endpoint (no auth)
	router.GET("/health", handler.Health)

	api := router.Group("/api/v1")
	api.Use(JWTAuthMiddleware(cfg.JWTSecret))
	api.Use(RateLimitMiddleware(rateLimiter))
	{
		api.POST("/jobs", handler.Enqueue)
		api.GET("/jobs/:jobId/eta", handler.ETA)
		api.GET("/jobs/:jobId/status", handler.Status)
		api.GET("/jobs/:jobId/report", handler.Report)
		api.GET("/jobs/:jobId/files", handler.Files)
	}

	return router
}
