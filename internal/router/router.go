package router

import (
	"github.com/gin-gonic/gin"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/config"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/handler"
	"github.com/supriyavikramsingh-sudo/sakhee-sub003/internal/middleware"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Health *handler.HealthHandler
	Plan   *handler.PlanHandler
	Ingest *handler.IngestHandler
}

// Setup wires middleware and routes onto a fresh engine. The rate limiter may
// be nil when redis is not configured.
func Setup(h Handlers, limiter *middleware.RateLimiter) *gin.Engine {
	if config.GlobalConfig != nil {
		gin.SetMode(ginMode(config.GlobalConfig.App.Mode))
	}

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.RecoveryMiddleware(),
		middleware.LoggingMiddleware(nil),
		middleware.CORSMiddleware(nil),
	)
	if limiter != nil {
		r.Use(limiter.RateLimitMiddleware())
	}

	r.GET("/health", h.Health.Health)

	v1 := r.Group("/api/v1")
	{
		plans := v1.Group("/meal-plans")
		{
			if limiter != nil {
				plans.POST("/generate", limiter.GenerationRateLimitMiddleware(), h.Plan.Generate)
			} else {
				plans.POST("/generate", h.Plan.Generate)
			}
			plans.GET("/stats", h.Plan.Stats)
		}

		admin := v1.Group("/admin")
		{
			admin.POST("/ingest", h.Ingest.Run)
			admin.GET("/index/stats", h.Ingest.IndexStats)
			admin.DELETE("/index", h.Ingest.ClearIndex)
		}
	}

	return r
}

func ginMode(mode string) string {
	switch mode {
	case "release", "test":
		return mode
	default:
		return gin.DebugMode
	}
}
