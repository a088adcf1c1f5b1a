package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/umoja-exchange/settlement-service/internal/api/routes"
	"github.com/umoja-exchange/settlement-service/internal/domain/services"
	"github.com/umoja-exchange/settlement-service/internal/domain/services/deposit"
	"github.com/umoja-exchange/settlement-service/internal/domain/services/monitor"
	"github.com/umoja-exchange/settlement-service/internal/domain/services/treasury"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/cache"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/config"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/database"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/messaging"
	"github.com/umoja-exchange/settlement-service/internal/infrastructure/repositories"
	"github.com/umoja-exchange/settlement-service/internal/workers/confirmation_tracker"
	"github.com/umoja-exchange/settlement-service/internal/workers/deposit_sweep"
	"github.com/umoja-exchange/settlement-service/pkg/graceful"
	"github.com/umoja-exchange/settlement-service/pkg/logger"
	"github.com/umoja-exchange/settlement-service/pkg/metrics"
	"github.com/umoja-exchange/settlement-service/pkg/tracing"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.Environment)

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.Config{
		Enabled:      cfg.Environment != "test",
		CollectorURL: "localhost:4317",
		Environment:  cfg.Environment,
		SampleRate:   1.0,
	}

	tracingShutdown, err := tracing.InitTracer(context.Background(), tracingConfig, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}
	defer tracingShutdown(context.Background())

	// Initialize database
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}

	// Run migrations
	if err := database.RunMigrations(cfg.Database.URL); err != nil {
		log.Fatal("Failed to run migrations", "error", err)
	}

	// Redis-backed address cache; the listeners poll watched addresses every
	// few seconds, the cache keeps that off the database. Redis being down
	// only costs the caching.
	var addrCache *cache.AddressCache
	redisClient, err := cache.NewRedisClient(&cfg.Redis, log.Zap())
	if err != nil {
		log.Warn("Redis unavailable, address caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		addrCache = cache.NewAddressCache(redisClient, time.Duration(cfg.Redis.AddressCacheTTL)*time.Second)
	}

	// Repositories
	depositRepo := repositories.NewDepositRepository(db)
	walletRepo := repositories.NewWalletRepository(db, addrCache)
	treasuryRepo := repositories.NewTreasuryRepository(db)

	// Notification publisher (degrades to log-only when AMQP is absent)
	publisher := messaging.NewPublisher(cfg.AMQP, log)
	notificationService := services.NewNotificationService(publisher, log)

	// Domain services
	treasuryService := treasury.NewService(treasuryRepo, db, cfg.Treasury, log)
	depositService := deposit.NewService(depositRepo, walletRepo, db, cfg.Chains, notificationService, log)
	monitorService := monitor.NewService(cfg.Chains, walletRepo, depositService, log)

	// Start chain listeners
	ctx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	if err := monitorService.Start(ctx); err != nil {
		log.Fatal("Failed to start chain monitor", "error", err)
	}

	// Confirmation tracker: the safety net that promotes deposits even when
	// a listener misses blocks.
	trackerConfig := &confirmation_tracker.Config{
		Interval:     time.Duration(cfg.Tracker.IntervalSeconds) * time.Second,
		BatchTimeout: time.Duration(cfg.Tracker.BatchTimeout) * time.Second,
	}
	tracker := confirmation_tracker.NewWorker(depositService, monitorService, trackerConfig, log)
	go tracker.Start(ctx)

	// Stale-deposit sweep
	sweeper := deposit_sweep.NewWorker(depositRepo, cfg.Sweep.Schedule, cfg.Sweep.StaleAfterHours, log)
	if err := sweeper.Start(); err != nil {
		log.Fatal("Failed to start deposit sweep worker", "error", err)
	}

	// HTTP server
	router := routes.Setup(db.DB, cfg, depositService, treasuryService, monitorService, log)
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	go func() {
		log.Info("Starting server",
			"port", cfg.Server.Port,
			"environment", cfg.Environment,
		)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	// Database pool metrics
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			stats := db.Stats()
			metrics.DatabaseConnectionsGauge.WithLabelValues("open").Set(float64(stats.OpenConnections))
			metrics.DatabaseConnectionsGauge.WithLabelValues("idle").Set(float64(stats.Idle))
			metrics.DatabaseConnectionsGauge.WithLabelValues("in_use").Set(float64(stats.InUse))
		}
	}()

	// Ordered shutdown: stop event producers first, then the workers that
	// consume them, drain treasury retries last so in-flight postings finish.
	shutdown := graceful.NewShutdownManager(server, db.DB, log)
	shutdown.Register("chain monitor", graceful.ShutdownFunc(func(time.Duration) error {
		monitorService.Stop()
		return nil
	}))
	shutdown.Register("workers", graceful.ShutdownFunc(func(time.Duration) error {
		tracker.Stop()
		sweeper.Stop()
		cancelWorkers()
		return nil
	}))
	shutdown.Register("treasury", graceful.ShutdownFunc(func(time.Duration) error {
		treasuryService.Stop()
		return nil
	}))
	shutdown.Register("event publisher", graceful.ShutdownFunc(func(time.Duration) error {
		return publisher.Close()
	}))

	shutdown.WaitForShutdown()
}
