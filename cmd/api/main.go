package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/dental-booking-dashboard/internal/api/router"
	"github.com/wolfman30/dental-booking-dashboard/internal/app/bootstrap"
	"github.com/wolfman30/dental-booking-dashboard/internal/bookings"
	"github.com/wolfman30/dental-booking-dashboard/internal/catalog"
	appconfig "github.com/wolfman30/dental-booking-dashboard/internal/config"
	"github.com/wolfman30/dental-booking-dashboard/internal/dashboard"
	"github.com/wolfman30/dental-booking-dashboard/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/dental-booking-dashboard/internal/http/middleware"
	"github.com/wolfman30/dental-booking-dashboard/internal/locale"
	"github.com/wolfman30/dental-booking-dashboard/internal/observability/metrics"
	"github.com/wolfman30/dental-booking-dashboard/pkg/logging"
)

func main() {
	// Local runs read .env; deployed environments set variables directly.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting dental booking dashboard API",
		"env", cfg.Env,
		"port", cfg.Port,
		"feed_driver", cfg.FeedDriver,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	defaultLang, ok := locale.ParseLanguage(cfg.DefaultLanguage)
	if !ok {
		logger.Warn("unsupported DEFAULT_LANGUAGE, using EN", "value", cfg.DefaultLanguage)
		defaultLang = locale.EN
	}
	loc := bootstrap.ClinicLocation(cfg, logger)

	metricsHandler, dashMetrics := setupMetrics()

	// Backing stores
	pool, err := bootstrap.BuildPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	if pool == nil {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	// Reference data and bookings
	catalogCache := catalog.NewCache(
		bootstrap.BuildCatalogSource(pool, redisClient, cfg, logger),
		catalog.Options{TTL: cfg.CatalogCacheTTL, Logger: logger, Metrics: dashMetrics},
	)
	normalizer := bookings.NewNormalizer(bookings.NormalizerOptions{
		Lookup:             catalogCache,
		DisableNoiseFilter: !cfg.NoiseFilterEnabled,
		Logger:             logger,
	})
	repo := bookings.NewRepository(pool)
	loader := dashboard.NewLoader(repo, normalizer, dashMetrics, logger)
	bookingService := bookings.NewService(repo, logger)

	feed, relay, err := bootstrap.BuildFeed(pool, redisClient, cfg, logger)
	if err != nil {
		logger.Error("failed to build change feed", "error", err)
		os.Exit(1)
	}

	// Initialize handlers
	dashboardHandler := handlers.NewDashboardHandler(loader, handlers.DashboardOptions{
		Feed:            feed,
		DefaultLanguage: defaultLang,
		Location:        loc,
		Debounce:        cfg.FeedDebounce,
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		Metrics:         dashMetrics,
	}, logger)
	bookingsHandler := handlers.NewBookingsHandler(bookingService, relay, logger)
	catalogHandler := handlers.NewCatalogHandler(catalogCache, defaultLang, logger)

	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin routes are unauthenticated")
	}

	// Setup router
	routerCfg := &router.Config{
		Logger:             logger,
		Dashboard:          dashboardHandler,
		Bookings:           bookingsHandler,
		Catalog:            catalogHandler,
		MetricsHandler:     metricsHandler,
		HealthCheck:        pool.Ping,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		WriteLimiter:       httpmiddleware.NewRateLimiter(cfg.WriteRateLimit, cfg.WriteRateBurst),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}
	r := router.New(routerCfg)

	// Create HTTP server. Live websocket writes set their own deadlines, so
	// WriteTimeout only bounds the JSON routes before a connection is hijacked.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics registers runtime and dashboard collectors on a private registry.
func setupMetrics() (http.Handler, *metrics.DashboardMetrics) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	dashMetrics := metrics.NewDashboardMetrics(registry)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), dashMetrics
}
