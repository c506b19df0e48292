// Package main is the solar-fleet control-plane's HTTP entry point: it
// loads configuration, wires the application against either an
// in-memory or Postgres-backed store, mounts the full HTTP surface
// behind the standard middleware chain, and serves until a shutdown
// signal arrives.
package main

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solarfleet/control-plane/infrastructure/middleware"
	slmetrics "github.com/solarfleet/control-plane/infrastructure/metrics"
	"github.com/solarfleet/control-plane/internal/app"
	"github.com/solarfleet/control-plane/internal/config"
	"github.com/solarfleet/control-plane/internal/platform/database"
	"github.com/solarfleet/control-plane/internal/platform/migrations"
	"github.com/solarfleet/control-plane/internal/storage"
	"github.com/solarfleet/control-plane/internal/storage/postgres"
	"github.com/solarfleet/control-plane/pkg/logger"
)

const serviceName = "control-plane"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	log := logger.New(logger.LoggingConfig{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: "stdout"})

	stores, ping, closeStores, err := buildStores(ctx, cfg, log)
	if err != nil {
		log.WithField("error", err.Error()).Fatal("build stores")
	}
	defer closeStores()

	application, err := app.New(stores, cfg, log)
	if err != nil {
		log.WithField("error", err.Error()).Fatal("build application")
	}
	if err := application.Start(ctx); err != nil {
		log.WithField("error", err.Error()).Fatal("start background jobs")
	}

	ready := true
	router := buildRouter(cfg, application, log, ping, &ready)

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Port),
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	shutdown := middleware.NewGracefulShutdown(server, 30*time.Second)
	shutdown.OnShutdown(func() { ready = false })
	shutdown.OnShutdown(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := application.Stop(stopCtx); err != nil {
			log.WithField("error", err.Error()).Warn("stop background jobs")
		}
	})
	shutdown.ListenForSignals()

	go func() {
		log.WithField("port", cfg.Port).Info("control plane listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithField("error", err.Error()).Fatal("server error")
		}
	}()

	shutdown.Wait()
	log.Info("control plane stopped")
}

// buildStores selects a Postgres-backed store when DATABASE_URL names a
// reachable database, falling back to the in-memory store for local
// development. The returned close func releases the pool, if any.
func buildStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (storage.Stores, func() error, func(), error) {
	noopPing := func() error { return nil }
	if cfg.DatabaseURL == "" {
		log.Info("DATABASE_URL unset, using in-memory store")
		return app.NewMemoryStores(), noopPing, func() {}, nil
	}

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return storage.Stores{}, nil, nil, err
	}
	if err := migrations.Apply(ctx, db, log); err != nil {
		_ = db.Close()
		return storage.Stores{}, nil, nil, err
	}

	store := postgres.New(db)
	return storage.Stores{
		Tenants: store, Users: store, Memberships: store, Sites: store, Devices: store,
		DeviceSecrets: store, Telemetry: store, Twins: store, Commands: store,
		Firmware: store, OtaJobs: store, AlertRules: store, AlertEvents: store,
		NotificationChannels: store, NotificationEvents: store, Entitlements: store,
		Rollups: store, Audit: store, Weather: store, SimActions: store,
	}, func() error { return db.PingContext(ctx) }, func() { _ = db.Close() }, nil
}

func buildRouter(cfg *config.Config, application *app.Application, log *logger.Logger, ping func() error, ready *bool) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.NewRecoveryMiddleware(log).Handler)

	if slmetrics.Enabled() {
		collector := slmetrics.Init(serviceName)
		router.Use(middleware.MetricsMiddleware(serviceName, collector))
		router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	router.Use(middleware.NewCORSMiddleware(&middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowCredentials: true,
	}).Handler)
	router.Use(middleware.NewSecurityHeadersMiddleware(nil).Handler)
	router.Use(middleware.NewBodyLimitMiddleware(cfg.MaxRequestBodyMB << 20).Handler)
	router.Use(middleware.NewTimeoutMiddleware(cfg.RequestTimeout).Handler)

	rateLimiter := middleware.NewRateLimiterWithWindow(cfg.RateLimitPerMinute, time.Minute, cfg.RateLimitBurst, log)
	router.Use(rateLimiter.Handler)

	health := middleware.NewHealthChecker(serviceName)
	health.RegisterCheck("store", ping)
	router.Handle("/healthz", health.Handler()).Methods(http.MethodGet)
	router.Handle("/livez", middleware.LivenessHandler()).Methods(http.MethodGet)
	router.Handle("/readyz", middleware.ReadinessHandler(ready)).Methods(http.MethodGet)

	registerRoutes(router, application, log)

	return router
}
