package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/mailfold/mailfold/api/handlers"
	"github.com/mailfold/mailfold/api/middleware"
	"github.com/mailfold/mailfold/internal/tracing"
	"github.com/mailfold/mailfold/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, s *services.Services, apikey string) {
	if s == nil {
		panic("Services cannot be nil")
	}

	// Add recovery middlewares
	r.Use(gin.Recovery())                                         // Gin's built-in recovery
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer())) // Our custom Jaeger recovery

	// Health check and status endpoints
	r.GET("/health", handlers.HealthCheck)
	r.GET("/status", handlers.Status(s.SyncEngine))

	// API group with version
	api := r.Group("/v1")
	api.Use(middleware.APIKeyMiddleware(apikey))
	api.Use(middleware.TracingMiddleware()) // Add tracing for all /v1/* endpoints
	{
		accounts := api.Group("/accounts")
		{
			accounts.GET("", handlers.ListAccounts(s.SyncEngine))
			accounts.POST("", handlers.AddAccount(s.SyncEngine))
			accounts.DELETE("/:id", handlers.RemoveAccount(s.SyncEngine))
		}
	}
}
