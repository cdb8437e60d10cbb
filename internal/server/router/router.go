package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/grainloss/internal/server/handlers"
)

// New wires the Gin engine with required routes and middlewares.
func New(handler *handlers.AnalyticsHandler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/reports/derived", handler.ComputeDerived)
		api.PUT("/reports/:reportId", handler.SaveReport)
		api.GET("/reports/:reportId", handler.GetReport)
		api.DELETE("/reports/:reportId", handler.DeleteReport)

		api.GET("/accumulated", handler.Accumulated)
		api.GET("/risk", handler.Risk)

		api.GET("/silos/overview", handler.Overview)
		api.GET("/silos/:silo/fumigation", handler.Fumigation)
	}

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
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
			zap.String("client_ip", c.ClientIP()),
			zap.String("viewer_role", c.GetHeader(handlers.HeaderViewerRole)))
	}
}
