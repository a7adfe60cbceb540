// Package main is the entry point for the pickup pooling API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/ecopickup/pooling/internal/auth"
	"github.com/ecopickup/pooling/internal/config"
	"github.com/ecopickup/pooling/internal/events"
	"github.com/ecopickup/pooling/internal/handler"
	"github.com/ecopickup/pooling/internal/middleware"
	"github.com/ecopickup/pooling/internal/repo"
	"github.com/ecopickup/pooling/internal/service"
	"github.com/ecopickup/pooling/internal/storage"
	"github.com/ecopickup/pooling/migrations"
	"github.com/ecopickup/pooling/spec"
)

func main() {
	// --- Config -----------------------------------------------------------
	// A .env file is optional; real environment variables always win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("ignoring unreadable .env file", "error", err)
	}
	cfg, err := config.Load()
	if err != nil {
		// Use the default logger before ours is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	// --- Request store ----------------------------------------------------
	requests, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open request store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// --- Pool events ------------------------------------------------------
	publisher, err := openPublisher(cfg, logger)
	if err != nil {
		logger.Error("failed to open event sink", "sink", cfg.EventSink, "error", err)
		os.Exit(1)
	}
	if c, ok := publisher.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				logger.Warn("closing event sink", "error", err)
			}
		}()
	}

	// --- Services ---------------------------------------------------------
	pooling := service.NewPoolingService(requests, publisher, service.PoolingConfig{
		RadiusKm:     cfg.PoolRadiusKm,
		Threshold:    cfg.PoolThreshold,
		StoreTimeout: cfg.StoreTimeout,
	}, logger)
	lifecycle := service.NewLifecycleService(requests, cfg.StoreTimeout, logger)

	opts := handler.Options{
		OpenAPI: spec.OpenAPI,
		Logger:  logger,
		Items:   service.NewClassifyService(service.KeywordClassifier{}, cfg.StoreTimeout),
	}
	if cfg.PhotoStore.Enabled() {
		photos, err := openPhotoStore(ctx, cfg.PhotoStore)
		if err != nil {
			logger.Error("failed to open photo store", "endpoint", cfg.PhotoStore.Endpoint, "error", err)
			os.Exit(1)
		}
		// Assign only when enabled so a disabled store stays a nil interface.
		opts.Photos = service.NewPhotoService(requests, photos, cfg.StoreTimeout)
		logger.Info("photo storage enabled", "bucket", cfg.PhotoStore.Bucket)
	}

	verifier := auth.NewVerifier(cfg.JWTSecret)
	if verifier == nil {
		logger.Info("bearer auth disabled; user_id is taken from request bodies")
	}

	// --- Router -----------------------------------------------------------
	// RequestID → RealIP → SlogLogger → Recoverer → CORS → Compress →
	// MaxBodySize → auth. The logger sits outside auth so rejected tokens
	// are still logged, and reads the verified user back after the call.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewCompressHandler())
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))
	r.Use(auth.Middleware(verifier))

	handler.NewServer(pooling, lifecycle, opts).Routes(r)

	// --- HTTP Server ------------------------------------------------------
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, then give in-flight requests
	// up to 15 seconds to complete before forcefully closing.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", "addr", srv.Addr,
			"store", cfg.StoreBackend, "events", cfg.EventSink,
			"radius_km", pooling.RadiusKm(), "threshold", pooling.Threshold())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return
	}
	logger.Info("server stopped")
}

// openStore builds the RequestRepo selected by cfg.StoreBackend and returns a
// func that releases its connections.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (repo.RequestRepo, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		// New() does not open connections immediately; Ping does.
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("create database pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("database connection established")
		return repo.NewPostgresRequestRepo(pool), pool.Close, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("redis connection established", "addr", cfg.Redis.Addr)
		return repo.NewRedisRequestRepo(client), func() { _ = client.Close() }, nil

	case config.BackendMemory:
		logger.Warn("using in-memory request store; data is lost on restart")
		return repo.NewMemoryRequestRepo(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

// migrate applies any pending goose migrations through a database/sql view
// of the pool.
func migrate(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	results, err := migrations.Up(ctx, db)
	if err != nil {
		return err
	}
	for _, res := range results {
		logger.Info("migration applied", "version", res.Source.Version, "duration", res.Duration)
	}
	return nil
}

// openPublisher builds the PoolPublisher selected by cfg.EventSink.
// Publishers that hold connections also implement io.Closer.
func openPublisher(cfg config.Config, logger *slog.Logger) (service.PoolPublisher, error) {
	switch cfg.EventSink {
	case config.SinkLog:
		return events.NewLogPublisher(logger), nil
	case config.SinkKafka:
		logger.Info("publishing pool events to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
		return events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic)), nil
	case config.SinkRabbitMQ:
		p, err := events.DialRabbitPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return nil, err
		}
		logger.Info("publishing pool events to rabbitmq", "exchange", cfg.RabbitMQ.Exchange)
		return p, nil
	}
	return nil, fmt.Errorf("unknown event sink %q", cfg.EventSink)
}

func openPhotoStore(ctx context.Context, cfg config.PhotoStoreConfig) (*storage.MinioPhotoStore, error) {
	store, err := storage.NewMinioPhotoStore(storage.MinioConfig{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		UseSSL:    cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.EnsureBucket(ensureCtx); err != nil {
		return nil, err
	}
	return store, nil
}
