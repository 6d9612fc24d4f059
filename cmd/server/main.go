package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/visionzero/backend/internal/cache"
	"github.com/visionzero/backend/internal/config"
	"github.com/visionzero/backend/internal/delivery/http"
	"github.com/visionzero/backend/internal/densitymap"
	"github.com/visionzero/backend/internal/logger"
	"github.com/visionzero/backend/internal/repository/memory"
	"github.com/visionzero/backend/internal/repository/postgres"
	"github.com/visionzero/backend/internal/repository/sqlite"
	"github.com/visionzero/backend/internal/service"
	"github.com/visionzero/backend/internal/spatial"
	"github.com/visionzero/backend/internal/summary"
)

func main() {
	// Load environment variables
	envErr := godotenv.Load()

	cfg, err := config.Load()
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)
	if envErr != nil {
		log.Info("no .env file found, using system environment")
	}
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Dependency Injection: Repositories
	dataRepo, closeRepo := openRepository(ctx, cfg)
	defer closeRepo()

	summaryCache := cache.NewRedis(ctx, cfg.Cache.RedisURL, cfg.Cache.TTL)
	defer summaryCache.Close()

	policy, err := summary.ParseStatsPolicy(cfg.StatsPolicy)
	if err != nil {
		log.Error("invalid stats policy", "err", err)
		os.Exit(1)
	}
	fit, err := spatial.ParseFitMode(cfg.Map.Fit)
	if err != nil {
		log.Error("invalid map fit", "err", err)
		os.Exit(1)
	}

	// Dependency Injection: Services
	var src service.Source
	if cfg.Data.BaseURL != "" {
		src = service.NewHTTPSource(cfg.Data.BaseURL, cfg.Data.FetchTimeout)
	} else {
		src = service.NewDirSource(cfg.Data.Dir)
	}
	var incidentSrc service.IncidentSource
	switch cfg.Data.IncidentsSource {
	case config.SourceRepository:
		incidentSrc = service.NewRepositorySource(dataRepo)
	case config.SourceHTTP:
		incidentSrc = service.NewEnvelopeSource(service.NewHTTPSource(cfg.Data.BaseURL, cfg.Data.FetchTimeout), cfg.Data.IncidentsResource)
	default:
		incidentSrc = service.NewEnvelopeSource(service.NewDirSource(cfg.Data.Dir), cfg.Data.IncidentsResource)
	}

	dashboardSvc := service.NewDashboardService(
		service.NewIncidentStore(incidentSrc),
		service.NewLayerStore(src),
		summary.NewEngine(policy),
		densitymap.New(cfg.Map.Width, cfg.Map.Height, fit, spatial.DefaultHeatmapOptions()),
		summaryCache,
		dataRepo,
	)

	// Initial load runs in the background; /api/v1/status reports progress
	go func() {
		reloadCtx, cancel := context.WithTimeout(context.Background(), 2*cfg.Data.FetchTimeout+30*time.Second)
		defer cancel()
		dashboardSvc.Reload(reloadCtx)
	}()

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "Vision Zero API v1.0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: http.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	// Routes
	http.SetupRoutes(app, http.NewHandler(dashboardSvc, 2*cfg.Data.FetchTimeout), cfg.Data.Dir)

	// Graceful shutdown
	go func() {
		log.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Warn("server forced to shutdown", "err", err)
	}
	dashboardSvc.WaitBackground()
	log.Info("server exited gracefully")
}

// openRepository prefers Postgres, then SQLite, then the in-memory repository
func openRepository(ctx context.Context, cfg config.Config) (service.DataRepository, func()) {
	log := logger.L()

	if cfg.DB.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DB.DatabaseURL)
		if err == nil {
			err = pool.Ping(ctx)
		}
		if err == nil {
			repo := postgres.NewPostgresRepository(pool)
			if err = repo.Migrate(ctx); err == nil {
				log.Info("connected to PostgreSQL")
				return repo, pool.Close
			}
		}
		if pool != nil {
			pool.Close()
		}
		log.Warn("could not connect to database", "err", err)
	}

	if cfg.DB.SQLitePath != "" {
		db, err := sqlite.New(cfg.DB.SQLitePath)
		if err == nil {
			if err = db.RunMigrations(); err == nil {
				log.Info("using SQLite", "path", cfg.DB.SQLitePath)
				return sqlite.NewRepository(db), func() { db.Close() }
			}
			db.Close()
		}
		log.Warn("could not open SQLite database", "err", err)
	}

	log.Info("running with in-memory repository")
	return memory.NewRepository(), func() {}
}
