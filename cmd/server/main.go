package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/restaurant-cms-api/internal/api"
	"github.com/restaurant-cms-api/internal/cache"
	"github.com/restaurant-cms-api/internal/config"
	"github.com/restaurant-cms-api/internal/database"
	"github.com/restaurant-cms-api/internal/metrics"
	"github.com/restaurant-cms-api/internal/repository"
	"github.com/restaurant-cms-api/internal/service"
	"github.com/restaurant-cms-api/internal/taxonomy"
	"github.com/restaurant-cms-api/pkg/logger"
)

const limiterCleanupInterval = time.Minute

func main() {
	migrateDown := flag.Bool("migrate-down", false, "roll back the latest migration and exit")
	flag.Parse()

	log := logger.New()
	log.Info().Msg("Starting restaurant CMS API server...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "./migrations"
	}
	if *migrateDown {
		if err := db.MigrateDown(migrationsPath); err != nil {
			log.Fatal().Err(err).Msg("Failed to roll back database migrations")
		}
		log.Info().Msg("Latest migration rolled back")
		return
	}
	if err := db.RunMigrations(migrationsPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Root context for background loops; cancelled on shutdown
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	listingCache, err := cache.New(bgCtx, cfg.Cache, log)
	if err != nil {
		// serve uncached rather than not at all
		log.Warn().Err(err).Msg("Listing cache unavailable, continuing without it")
		listingCache = nil
	}
	defer listingCache.Close()

	m := metrics.New()

	inferrer := taxonomy.Default()
	if cfg.Taxonomy.RulesPath != "" {
		rules, err := taxonomy.LoadRules(cfg.Taxonomy.RulesPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load taxonomy rules")
		}
		if inferrer, err = taxonomy.New(rules); err != nil {
			log.Fatal().Err(err).Msg("Invalid taxonomy rules")
		}
		log.Info().Str("path", cfg.Taxonomy.RulesPath).Msg("Taxonomy rules loaded")
	}

	repos := repository.New(db)

	services := service.NewServices(repos, service.Deps{
		Cache:    listingCache,
		Metrics:  m,
		Inferrer: inferrer,
	}, cfg, log)

	go services.Job.StartProcessor(bgCtx)
	go services.Publish.StartScheduler(bgCtx)

	limiter := api.NewRateLimiter(cfg.RateLimit, log)
	go limiter.Cleanup(bgCtx, limiterCleanupInterval)

	router := api.NewRouter(services, cfg, api.Options{
		Metrics: m,
		Limiter: limiter,
		DB:      db,
	}, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("env", cfg.Env).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	services.Publish.StopScheduler()
	services.Job.StopProcessor()
	stopBackground()

	log.Info().Msg("Server exited gracefully")
}
