package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/vehicle-forensics-go/internal/config"
	"github.com/jengzang/vehicle-forensics-go/internal/handler"
	"github.com/jengzang/vehicle-forensics-go/internal/middleware"
	"github.com/jengzang/vehicle-forensics-go/internal/service"
)

// Services bundles what the router serves
type Services struct {
	Tracking *service.TrackingService
	Analysis *service.AnalysisService
	Limiter  *middleware.RateLimiter // nil disables rate limiting
}

// NewLimiter builds the per-IP limiter configured by cfg, or nil when disabled
func NewLimiter(cfg *config.Config) *middleware.RateLimiter {
	if cfg.RateLimit <= 0 {
		return nil
	}
	return middleware.NewRateLimiter(cfg.RateLimit, time.Minute)
}

// SetupRouter sets up the routes
func SetupRouter(cfg *config.Config, svc Services) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger())
	r.MaxMultipartMemory = cfg.MaxUploadBytes()

	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Vehicle forensics API is running",
		})
	})

	vehicleHandler := handler.NewVehicleHandler(svc.Tracking, cfg.MaxUploadBytes())
	wireHandler := handler.NewWireHandler(svc.Tracking)
	streamHandler := handler.NewStreamHandler(svc.Tracking, cfg.AllowedOrigins)
	analysisHandler := handler.NewAnalysisHandler(svc.Analysis)

	// API route group
	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(svc.Limiter), middleware.Auth(cfg.JWTSecret))
	{
		vehicles := api.Group("/vehicles")
		{
			vehicles.POST("", vehicleHandler.Upload)
			vehicles.GET("", vehicleHandler.List)
			vehicles.GET("/:id", vehicleHandler.Get)
			vehicles.DELETE("/:id", vehicleHandler.Delete)
			vehicles.GET("/:id/segments", vehicleHandler.Segments)
			vehicles.GET("/:id/analysis", vehicleHandler.Analysis)
			vehicles.GET("/:id/playback", vehicleHandler.Playback)
			vehicles.GET("/:id/geojson", vehicleHandler.GeoJSON)
			vehicles.GET("/:id/stream", streamHandler.Stream)
		}

		wire := api.Group("/wire")
		{
			wire.POST("/validate", wireHandler.Validate)
			wire.POST("/import", wireHandler.Import)
		}

		analysis := api.Group("/analysis")
		{
			analysis.GET("", analysisHandler.ListAnalyzers)
			analysis.GET("/runs", analysisHandler.ListRuns)
			analysis.GET("/runs/:id", analysisHandler.GetRun)
			analysis.POST("/:name", analysisHandler.Run)
		}
	}

	return r
}
