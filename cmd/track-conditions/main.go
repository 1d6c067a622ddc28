package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"golang.org/x/time/rate"

	httpapi "github.com/turfcast/track-conditions/internal/api/http"
	"github.com/turfcast/track-conditions/internal/collector"
	"github.com/turfcast/track-conditions/internal/config"
	"github.com/turfcast/track-conditions/internal/schedule"
	"github.com/turfcast/track-conditions/internal/scheduler"
	"github.com/turfcast/track-conditions/internal/store"
	"github.com/turfcast/track-conditions/internal/weather"
	"github.com/turfcast/track-conditions/internal/weather/providers"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("failed to create data directory: %v", err)
		}
	}

	// Persistent store keyed by race id.
	sqlStore, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer sqlStore.Close()

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// The provider quota is process-wide, so one limiter is shared across
	// every concurrent worker.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	provider := providers.NewOpenMeteoProvider(httpClient, limiter, cfg.OpenMeteoBaseURL, providers.BackoffConfig{
		MaxRetries:      cfg.MaxRetries,
		InitialInterval: cfg.BackoffInitial,
		MaxInterval:     cfg.BackoffMax,
	})

	estimator := weather.NewEstimator(cfg.Estimator)

	col := collector.New(provider, sqlStore, estimator, collector.Config{
		Parallelism:   cfg.Parallelism,
		RefreshMaxAge: cfg.RefreshMaxAge,
		PassTimeout:   cfg.PassTimeout,
		HistoryDays:   cfg.HistoryDays,
	})

	// Scheduler that periodically collects conditions for upcoming races.
	loader := schedule.NewLoader(cfg.GeocoderAPIKey)
	sched := scheduler.New(loader, cfg.SchedulePath, cfg.CollectInterval, cfg.LookAhead, col)
	if err := sched.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Basic app configuration
	app := fiber.New(fiber.Config{
		AppName:               "track-conditions",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "track-conditions",
		})
	})

	// API routes.
	httpapi.RegisterRoutes(app, sqlStore, col)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("error during shutdown: %v", err)
	}
}
