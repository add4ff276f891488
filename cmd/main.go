/**
 * @description
 * This is the main entry point for the admin-service, the backend of the admin
 * console. It wires the Users and Subscriptions gateways into the lifecycle
 * engine, starts the dashboard scheduler and serves the operator API.
 *
 * Redis, PostgreSQL and RabbitMQ are optional: without them the service runs
 * without the action limiter and snapshot cache, the outcome journal, and
 * lifecycle events respectively.
 */
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sophiasearch-2025/admin-interface/internal/api"
	"github.com/sophiasearch-2025/admin-interface/internal/app"
	"github.com/sophiasearch-2025/admin-interface/internal/config"
	"github.com/sophiasearch-2025/admin-interface/internal/store"
	"github.com/sophiasearch-2025/admin-interface/pkg/rabbitmq"
	"github.com/sophiasearch-2025/admin-interface/pkg/subscriptionclient"
	"github.com/sophiasearch-2025/admin-interface/pkg/transport"
	"github.com/sophiasearch-2025/admin-interface/pkg/usersclient"
)

func main() {
	// Load .env file for local development.
	envErr := godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Debug("no .env file found, using environment variables")
	}

	ctx := context.Background()

	// Remote services. Both default to the same base URL.
	users := usersclient.NewClient(transport.NewClient(transport.Options{
		BaseURL: cfg.UsersServiceURL,
		APIKey:  cfg.InternalAPIKey,
		Timeout: cfg.RequestTimeout(),
		Logger:  logger.With("service", "users"),
	}))
	subs := subscriptionclient.NewClient(transport.NewClient(transport.Options{
		BaseURL: cfg.SubscriptionsServiceURL,
		APIKey:  cfg.InternalAPIKey,
		Timeout: cfg.RequestTimeout(),
		Logger:  logger.With("service", "subscriptions"),
	}))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := app.NewMetrics("admin", registry)

	redisClient := connectRedis(ctx, cfg.RedisURL, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var journal app.OutcomeRecorder = store.NopJournal{}
	if cfg.DatabaseURL == "" {
		logger.Warn("database url missing; outcome journal disabled", "env", "DATABASE_URL")
	} else if dbpool, err := pgxpool.New(ctx, cfg.DatabaseURL); err != nil {
		logger.Warn("database connection failed; outcome journal disabled", "error", err)
	} else {
		defer dbpool.Close()
		pgJournal := store.NewJournal(dbpool)
		schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := pgJournal.EnsureSchema(schemaCtx)
		cancel()
		if err != nil {
			logger.Warn("outcome journal schema setup failed; journal disabled", "error", err)
		} else {
			journal = pgJournal
			logger.Info("outcome journal enabled")
		}
	}

	var publisher rabbitmq.Publisher = &rabbitmq.EventProducerFallback{Logger: logger}
	if cfg.RabbitMQURL == "" {
		logger.Warn("rabbitmq url missing; lifecycle events are logged only", "env", "RABBITMQ_URL")
	} else if producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, logger); err != nil {
		logger.Warn("rabbitmq producer unavailable; using fallback", "error", err)
	} else {
		publisher = producer
		logger.Info("rabbitmq producer connected")
	}
	defer publisher.Close()

	recorders := []app.OutcomeRecorder{metrics, journal, app.NewEventRecorder(publisher, cfg.AdminEventsExchange)}

	snapshots := app.NewSnapshotter(users, subs, app.NewAggregator(cfg.StateAuthority(), logger))
	lifecycle := app.NewLifecycle(users, subs, snapshots, app.LifecycleOptions{
		Authority:   cfg.StateAuthority(),
		SettleDelay: cfg.VerifySettleDelay(),
		Plan: app.PlanDefaults{
			ID:    cfg.DefaultPlanID,
			Name:  cfg.DefaultPlanName,
			Price: cfg.DefaultPlanPrice,
		},
		Recorders: recorders,
		Logger:    logger,
	})
	logger.Info("lifecycle engine configured", "authority", lifecycle.Authority(), "settle_delay", cfg.VerifySettleDelay())

	var cache app.SnapshotCache
	var limiter *app.ActionLimiter
	if redisClient != nil {
		cache = app.NewRedisSnapshotCache(redisClient, cfg.RedisSnapshotKey, 10*time.Minute)
		limiter = app.NewActionLimiter(redisClient, cfg.RedisRateLimitPrefix, cfg.ActionRateLimitPerMinute, time.Minute)
	}
	dashboard := app.NewDashboard(snapshots, users, subs, cache, metrics, logger)

	jobs := app.NewJobs(dashboard, subs, logger, time.Minute)
	scheduler := app.NewScheduler(jobs, logger, app.Schedules{
		DashboardRefresh: cfg.DashboardRefreshSchedule,
		ExpiryCheck:      cfg.ExpiryCheckSchedule,
	})
	scheduler.Start()
	go jobs.RefreshDashboard()

	var tokens *api.TokenManager
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set; admin API is unauthenticated")
	} else {
		tokens = api.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL())
	}

	handler := api.NewHandler(api.HandlerDeps{
		Snapshots:   snapshots,
		Lifecycle:   lifecycle,
		Dashboard:   dashboard,
		Subs:        subs,
		Limiter:     limiter,
		Metrics:     metrics,
		Credentials: api.StaticCredentials{Username: cfg.AdminUsername, PasswordHash: cfg.AdminPasswordHash},
		Tokens:      tokens,
		Logger:      logger,
	})
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.AllowedOrigins(),
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Tokens:         tokens,
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("admin-service listening", "port", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}

	<-scheduler.Stop().Done()
	logger.Info("shutdown complete")
}

// connectRedis returns nil when REDIS_URL is empty or unreachable.
func connectRedis(ctx context.Context, url string, logger *slog.Logger) *redis.Client {
	if url == "" {
		logger.Warn("redis url missing; action limiting and snapshot cache disabled", "env", "REDIS_URL")
		return nil
	}
	options, err := redis.ParseURL(url)
	if err != nil {
		logger.Warn("redis url parse failed; action limiting and snapshot cache disabled", "error", err)
		return nil
	}
	client := redis.NewClient(options)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis ping failed; action limiting and snapshot cache disabled", "error", err)
		_ = client.Close()
		return nil
	}
	logger.Info("redis connected")
	return client
}
