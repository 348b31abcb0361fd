package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tenant-metrics/internal/aggregator"
	"tenant-metrics/internal/api"
	"tenant-metrics/internal/auth"
	"tenant-metrics/internal/cache"
	"tenant-metrics/internal/config"
	"tenant-metrics/internal/logger"
	"tenant-metrics/internal/messaging"
	"tenant-metrics/internal/metrics"
	"tenant-metrics/internal/provision"
	"tenant-metrics/internal/registry"
	"tenant-metrics/internal/storage"
	"tenant-metrics/internal/tracking"
)

func main() {
	// Init Metrics
	metrics.Init()

	// Load Configuration
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "tenant-metrics")
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()
	lg.Info("Configuration loaded", zap.String("path", path))

	if err := tracking.Init(cfg.Sentry.DSN, cfg.Sentry.Environment); err != nil {
		lg.Warn("Sentry disabled", zap.Error(err))
	}
	defer tracking.Flush()

	// Setup JWT Secret
	if cfg.Auth.JWTSecret == "" {
		lg.Fatal("JWT secret is required")
	}
	auth.SetSecret(cfg.Auth.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Init PostgreSQL
	db, err := storage.NewStorage(cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MaxIdle)
	if err != nil {
		lg.Fatal("Failed to init DB", zap.Error(err))
	}
	defer db.DB.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		lg.Fatal("Failed to bootstrap schema", zap.Error(err))
	}
	lg.Info("PostgreSQL connected")

	reg := registry.NewPostgres(db.DB)

	opts := []provision.Option{
		provision.WithNotifier(provision.NewWebhookNotifier(cfg.Provisioner.WebhookTimeout), cfg.Provisioner.WebhookURL),
	}

	// RabbitMQ is optional; provisioning still works without the event.
	if cfg.RabbitMQ.URL != "" {
		rabbitClient, err := messaging.NewRabbitClient(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, lg)
		if err != nil {
			lg.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer rabbitClient.Close()
		opts = append(opts, provision.WithPublisher(rabbitClient))
		lg.Info("RabbitMQ connected", zap.String("queue", cfg.RabbitMQ.Queue))
	}

	provisioner := provision.NewProvisioner(db, reg, lg, opts...)

	aggOpts := append(aggregator.DefaultSources(db.DB, cfg.Aggregator.ReadTimeout),
		aggregator.WithConcurrency(cfg.Aggregator.Concurrency),
		aggregator.WithTopCampaigns(cfg.Aggregator.TopCampaigns),
	)
	agg := aggregator.New(db, reg, lg, aggOpts...)

	var reports api.ReportService = agg
	if cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			lg.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer client.Close()
		reportCache := cache.NewReportCache(cache.NewRedisKVStore(client), agg, cfg.Redis.TTL, lg)
		reports = reportCache
		lg.Info("Redis report cache enabled", zap.Duration("ttl", cfg.Redis.TTL))

		if cfg.Aggregator.RefreshInterval > 0 {
			go refreshCurrentMonth(ctx, reportCache, cfg.Aggregator.RefreshInterval, lg)
		}
	}

	// Init API
	apiHandler := api.NewAPI(provisioner, reports, db, lg)
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           apiHandler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.Info("Starting API server", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("Server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	lg.Info("Shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error("HTTP shutdown error", zap.Error(err))
	}

	lg.Info("Graceful shutdown complete")
}

// refreshCurrentMonth keeps the default dashboard report warm.
func refreshCurrentMonth(ctx context.Context, c *cache.ReportCache, every time.Duration, lg *zap.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start, end := aggregator.DefaultRange(time.Now())
			if err := c.Refresh(ctx, nil, start, end); err != nil {
				lg.Warn("Report refresh failed", zap.Error(err))
			}
		}
	}
}
