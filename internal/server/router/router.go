package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/bustrack/internal/server/handlers"
)

// Handlers groups the HTTP adapters mounted by the router.
type Handlers struct {
	Arrivals  *handlers.ArrivalHandler
	Analytics *handlers.AnalyticsHandler
	Trackers  *handlers.TrackerHandler
	Images    *handlers.ImageHandler
	Feed      *handlers.WebSocketHandler
	// Ping checks the backing store for /healthz. Optional.
	Ping func(ctx context.Context) error
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, allowedOrigins []string, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))
	r.Use(cors.New(corsConfig(allowedOrigins)))
	r.MaxMultipartMemory = 8 << 20

	r.GET("/healthz", func(c *gin.Context) {
		if h.Ping != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := h.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	arrivals := api.Group("/arrivals")
	{
		arrivals.POST("", h.Arrivals.Record)
		arrivals.POST("/bulk", h.Arrivals.RecordBatch)
		arrivals.GET("", h.Arrivals.List)
		arrivals.GET("/export", h.Arrivals.Export)
		arrivals.GET("/summary", h.Arrivals.Summary)
		arrivals.GET("/performance/routes", h.Arrivals.RoutePerformance)
		arrivals.GET("/performance/stops", h.Arrivals.StopPerformance)
		arrivals.GET("/route/:routeId", h.Arrivals.RouteArrivals)
		arrivals.GET("/route/:routeId/today", h.Arrivals.TodayArrivals)
		arrivals.GET("/route/:routeId/recent", h.Arrivals.RecentArrivals)
		arrivals.GET("/route/:routeId/stats", h.Arrivals.RouteStats)
		arrivals.GET("/route/:routeId/analytics", h.Arrivals.RouteAnalytics)
		arrivals.PUT("/:id", h.Arrivals.Update)
		arrivals.DELETE("/bulk", h.Arrivals.BulkDelete)
		arrivals.DELETE("/:id", h.Arrivals.Delete)
	}

	analytics := api.Group("/analytics")
	{
		analytics.POST("/update", h.Analytics.Update)
		analytics.GET("/route/:routeId", h.Analytics.RouteAnalytics)
		analytics.GET("/route/:routeId/performance", h.Analytics.Performance)
		analytics.GET("/dashboard/summary", h.Analytics.Dashboard)
		analytics.GET("/issues", h.Analytics.Issues)
		analytics.PATCH("/:analyticsId/issues/:issueId/resolve", h.Analytics.ResolveIssue)
	}

	trackers := api.Group("/trackers")
	{
		trackers.POST("/update-location", h.Trackers.UpdateLocation)
		trackers.GET("", h.Trackers.List)
		trackers.GET("/ws", h.Feed.ServeWs)
		trackers.GET("/dashboard/summary", h.Trackers.Summary)
		trackers.GET("/route/:routeId", h.Trackers.ByRoute)
		trackers.GET("/:trackerId", h.Trackers.Get)
		trackers.PATCH("/:trackerId/status", h.Trackers.UpdateStatus)
		trackers.DELETE("/:trackerId", h.Trackers.Delete)
	}

	images := api.Group("/images")
	{
		images.POST("/upload-profile", h.Images.UploadProfile)
		images.GET("/profile/:userId", h.Images.Profile)
		images.GET("/:filename", h.Images.Serve)
		images.DELETE("/:imageId", h.Images.Delete)
	}

	if logger != nil {
		logger.Info("router initialized", zap.Int("routes", len(r.Routes())))
	}

	return r
}

func corsConfig(allowedOrigins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
		cfg.AllowCredentials = true
	}
	return cfg
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
