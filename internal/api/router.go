package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/restaurant-cms-api/internal/config"
	"github.com/restaurant-cms-api/internal/metrics"
	"github.com/restaurant-cms-api/internal/models"
	"github.com/restaurant-cms-api/internal/service"
	"github.com/rs/zerolog"
)

const serviceName = "restaurant-cms-api"

// Database is the part of the connection pool the ops endpoints report on
type Database interface {
	HealthCheck(ctx context.Context) error
	Stats() sql.DBStats
}

// Options carries the optional infrastructure the router is wired with.
// Any field may be nil.
type Options struct {
	Metrics *metrics.Metrics
	Limiter *RateLimiter
	DB      Database
}

// NewRouter creates and configures the Gin router
func NewRouter(services *service.Services, cfg *config.Config, opts Options, log zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log, opts.Metrics))
	router.Use(corsMiddleware(cfg.Server.AllowedOrigins))

	articleHandler := NewArticleHandler(services, log)
	publishHandler := NewPublishHandler(services, log)
	importHandler := NewImportHandler(services, cfg, log)
	exportHandler := NewExportHandler(services, log)

	router.GET("/health", healthCheck(opts.DB))
	router.GET("/metrics", metricsHandler(services, opts.DB))
	router.GET("/metrics/prometheus", gin.WrapH(opts.Metrics.Handler()))

	limited := opts.Limiter.Middleware()

	v1 := router.Group("/v1")
	{
		public := v1.Group("", limited)
		{
			public.GET("/articles", articleHandler.ListPublished)
			public.GET("/articles/:slug", articleHandler.GetPublished)
			public.GET("/categories", articleHandler.ListCategories)
			public.GET("/tags", articleHandler.ListTags)
		}

		cron := v1.Group("/cron", limited, bearerAuth(cfg.Publish.CronSecret, cfg.IsProduction(), log))
		{
			cron.GET("/publish", publishHandler.Sweep)
			cron.POST("/publish", publishHandler.Sweep)
		}

		admin := v1.Group("/admin", bearerAuth(cfg.Admin.Token, cfg.IsProduction(), log))
		{
			articles := admin.Group("/articles")
			{
				articles.GET("", articleHandler.List)
				articles.POST("", articleHandler.Create)
				articles.GET("/:id", articleHandler.Get)
				articles.PUT("/:id", articleHandler.Update)
				articles.DELETE("/:id", articleHandler.Delete)
			}

			admin.POST("/taxonomy/preview", articleHandler.PreviewTaxonomy)
			admin.POST("/publish", publishHandler.Sweep)

			imports := admin.Group("/imports")
			{
				imports.POST("", importHandler.CreateImport)
				imports.GET("/:job_id", importHandler.GetImportStatus)
				imports.GET("/:job_id/errors", importHandler.GetImportErrors)
			}

			admin.GET("/exports", exportHandler.StreamExport)
		}
	}

	return router
}

// healthCheck reports healthy, or 503 when the database does not answer
func healthCheck(db Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.HealthCheck(ctx); err != nil {
				status, code = "unhealthy", http.StatusServiceUnavailable
			}
		}

		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
			"service":   serviceName,
		})
	}
}

// metricsHandler returns article counts by status and pool statistics
func metricsHandler(services *service.Services, db Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		counts := gin.H{}
		for key, status := range map[string]models.ArticleStatus{
			"total":     "",
			"draft":     models.StatusDraft,
			"scheduled": models.StatusScheduled,
			"published": models.StatusPublished,
		} {
			n, err := services.Export.GetCount(ctx, status)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count articles"})
				return
			}
			counts[key] = n
		}

		body := gin.H{
			"articles":  counts,
			"timestamp": time.Now().Format(time.RFC3339),
		}
		if db != nil {
			stats := db.Stats()
			body["database"] = gin.H{
				"open_connections": stats.OpenConnections,
				"in_use":           stats.InUse,
				"idle":             stats.Idle,
				"wait_count":       stats.WaitCount,
			}
		}
		c.JSON(http.StatusOK, body)
	}
}
