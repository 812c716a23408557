package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/david-crosby/Jamf-Monitor/internal/client"
	"github.com/david-crosby/Jamf-Monitor/internal/config"
	"github.com/david-crosby/Jamf-Monitor/internal/handler"
	"github.com/david-crosby/Jamf-Monitor/internal/health"
	"github.com/david-crosby/Jamf-Monitor/internal/metrics"
	"github.com/david-crosby/Jamf-Monitor/internal/server"
	"github.com/david-crosby/Jamf-Monitor/internal/service"
	"github.com/david-crosby/Jamf-Monitor/internal/store"
	"github.com/david-crosby/Jamf-Monitor/internal/util/workerpool"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting Jamf Monitor Service")

	logger.Info("Configuration loaded",
		zap.Int("port", cfg.Server.Port),
		zap.String("jamf_url", cfg.Jamf.BaseURL),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("settings_backend", cfg.Settings.Backend),
		zap.Duration("cache_ttl", cfg.Cache.TTL))

	// Initialize metrics
	m := metrics.NewMetrics()
	logger.Info("Metrics initialized")

	// PostgreSQL pool is shared by the cache and the settings store
	var pgPool *pgxpool.Pool
	if cfg.Cache.Backend == "postgres" || cfg.Settings.Backend == "postgres" {
		pgPool, err = store.NewPostgresPool(
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.Database,
			cfg.Database.User,
			cfg.Database.Password,
			cfg.Database.MaxConnections,
			cfg.Database.MinConnections,
		)
		if err != nil {
			logger.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
		}
		logger.Info("PostgreSQL pool initialized")
	}

	// Initialize device health cache
	var deviceCache store.DeviceCache
	switch cfg.Cache.Backend {
	case "postgres":
		deviceCache = store.NewPostgresDeviceCache(pgPool, logger)
	case "redis":
		deviceCache, err = store.NewRedisDeviceCache(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			logger,
		)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
	default:
		deviceCache = store.NewMemoryDeviceCache(logger)
	}
	logger.Info("Device cache initialized", zap.String("backend", cfg.Cache.Backend))

	// Initialize settings store
	var settingsStore store.SettingsStore
	if cfg.Settings.Backend == "postgres" {
		settingsStore = store.NewPostgresSettingsStore(pgPool, logger)
	} else {
		settingsStore = store.NewMemorySettingsStore()
	}
	logger.Info("Settings store initialized", zap.String("backend", cfg.Settings.Backend))

	// Initialize Jamf Pro client
	broker := client.NewTokenBroker(
		cfg.Jamf.BaseURL,
		cfg.Jamf.ClientID,
		cfg.Jamf.ClientSecret,
		cfg.Jamf.TokenGracePeriod,
		nil,
		m,
		logger,
	)
	jamfClient := client.NewJamfClient(cfg.Jamf.BaseURL, broker, cfg.Jamf.RequestTimeout, m, logger)
	logger.Info("Jamf client initialized")

	// Initialize services
	settingsService := service.NewSettingsService(settingsStore, logger)
	evaluator := service.NewEvaluator(jamfClient, deviceCache, settingsService, cfg.Cache.TTL, m, logger)

	pool := workerpool.New(&workerpool.Config{
		Name:       "bulk-evaluator",
		MaxWorkers: cfg.Evaluator.MaxConcurrent,
		QueueSize:  cfg.Evaluator.QueueSize,
		Logger:     logger,
	})
	bulkEvaluator := service.NewBulkEvaluator(jamfClient, evaluator, pool, m, logger)

	sweepService := service.NewSweepService(deviceCache, cfg.Cache.SweepInterval, m, logger)
	sweepService.Start()

	logger.Info("All services initialized")

	// Initialize HTTP layer
	errWriter := handler.NewErrorWriter(logger)
	handlers := handler.NewHandlers(evaluator, bulkEvaluator, settingsService, sweepService, jamfClient, errWriter, logger)
	healthChecker := health.NewHealthChecker(deviceCache, settingsStore, logger)

	srv := server.New(cfg, handlers, healthChecker, errWriter, logger)
	srv.SetupRoutes()

	// Start metrics server
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle(cfg.Metrics.Path, promhttp.Handler())
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			logger.Info("Starting metrics server", zap.String("address", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	// Start API server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("Server error", zap.Error(err))
	case sig := <-sigChan:
		logger.Info("Received signal", zap.String("signal", sig.String()))
	}

	// Graceful shutdown
	logger.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	// Stop services
	sweepService.Stop()
	if err := pool.Stop(cfg.Server.ShutdownTimeout); err != nil {
		logger.Warn("Worker pool stop timed out", zap.Error(err))
	}

	// Close stores
	deviceCache.Close()
	settingsStore.Close()
	if pgPool != nil {
		pgPool.Close()
	}

	logger.Info("Monitor service stopped")
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
