package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DanielPopoola/claims-settlement/internal/application"
	"github.com/DanielPopoola/claims-settlement/internal/application/services"
	"github.com/DanielPopoola/claims-settlement/internal/config"
	"github.com/DanielPopoola/claims-settlement/internal/infrastructure/gateway"
	"github.com/DanielPopoola/claims-settlement/internal/infrastructure/partners"
	"github.com/DanielPopoola/claims-settlement/internal/infrastructure/persistence/memory"
	"github.com/DanielPopoola/claims-settlement/internal/infrastructure/persistence/postgres"
	"github.com/DanielPopoola/claims-settlement/internal/infrastructure/redis"
	"github.com/DanielPopoola/claims-settlement/internal/interfaces/rest"
	"github.com/DanielPopoola/claims-settlement/internal/interfaces/rest/handlers"
	"github.com/DanielPopoola/claims-settlement/internal/metrics"
	"github.com/DanielPopoola/claims-settlement/internal/runner"
	"github.com/DanielPopoola/claims-settlement/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting claims settlement service",
		"port", cfg.Server.Port,
		"store", cfg.Primary.Store,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()
	checks := map[string]handlers.HealthCheck{}

	var store application.Store
	switch cfg.Primary.Store {
	case "memory":
		logger.Warn("using in-memory store; data is lost on restart")
		store = memory.NewStore()
	default:
		db, err := postgres.Connect(ctx, &cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
		store = postgres.NewTransactionCoordinator(db)
		checks["database"] = db.Ping
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	coordinatorOpts := []services.CoordinatorOption{services.WithCoordinatorMetrics(m)}
	var queue application.DeferredQueue
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		coordinatorOpts = append(coordinatorOpts, services.WithPublisher(redis.NewEventPublisher(redisClient)))
		if cfg.Settlement.RetryDeferred {
			queue = redis.NewDeferredQueue(redisClient, logger)
		}
	} else if cfg.Settlement.RetryDeferred {
		logger.Warn("redis not configured; deferred settlements are queued in memory")
		queue = memory.NewDeferredQueue()
	}
	if queue != nil {
		coordinatorOpts = append(coordinatorOpts, services.WithDeferredQueue(queue))
	}

	var gateways []*gateway.Gateway
	for _, client := range partners.NewClients(cfg.Partners) {
		pc := partners.PartnerConfigFor(cfg.Partners, client.Partner())
		gateways = append(gateways, gateway.New(client, gateway.ConfigFrom(pc),
			gateway.WithMetrics(m),
			gateway.WithLogger(logger),
		))
	}
	taskRunner := runner.New(gateway.NewSet(gateways...), cfg.Runner.MaxInFlight, logger)

	coordinator := services.NewSettlementCoordinator(
		store,
		services.NewPaymentLedger(store, logger),
		taskRunner,
		services.CoordinatorConfig{
			Deadline:     cfg.Settlement.Deadline,
			WriteTimeout: cfg.Settlement.WriteTimeout,
		},
		logger,
		coordinatorOpts...,
	)

	doc, err := rest.LoadOpenAPI(ctx)
	if err != nil {
		logger.Error("failed to load openapi document", "error", err)
		os.Exit(1)
	}

	router, err := handlers.NewRouter(handlers.RouterConfig{
		Handlers: handlers.NewHandlers(
			coordinator,
			services.NewClaimService(store, logger),
			services.NewClaimQueryService(store),
			logger,
		),
		OpenAPI:        doc,
		Gatherer:       prometheus.DefaultGatherer,
		HealthChecks:   checks,
		RequestTimeout: cfg.Server.WriteTimeout,
		Logger:         logger,
	})
	if err != nil {
		logger.Error("failed to build router", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	if queue != nil {
		deferredWorker := worker.NewDeferredSettlementWorker(queue, coordinator, worker.Config{
			Interval:    cfg.Worker.Interval,
			BatchSize:   cfg.Worker.BatchSize,
			MaxAttempts: cfg.Worker.MaxAttempts,
		}, m, logger)
		go deferredWorker.Start(workerCtx)
	}

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
