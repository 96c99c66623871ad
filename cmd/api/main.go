// @title Match Predictions API
// @version 1.0
// @description Winner probability, spread and total predictions for scheduled games.
// @BasePath /api/v1
// @securityDefinitions.apikey AdminToken
// @in header
// @name X-Admin-Token
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/statstack/predictions-api/docs"
	"github.com/statstack/predictions-api/internal/config"
	"github.com/statstack/predictions-api/internal/handlers"
	"github.com/statstack/predictions-api/internal/logic"
	"github.com/statstack/predictions-api/internal/worker"
)

const connectTimeout = 60 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	if err := run(cfg, logger); err != nil {
		sugar.Fatalw("API server stopped with error", "error", err)
	}
}

// retry keeps calling connect until it succeeds or connectTimeout elapses
func retry(sugar *zap.SugaredLogger, name string, connect func() error) error {
	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = connectTimeout
	return backoff.RetryNotify(connect, strategy, func(err error, wait time.Duration) {
		sugar.Warnw("Connection attempt failed", "db", name, "retryIn", wait, "error", err)
	})
}

func run(cfg *config.Config, logger *zap.Logger) error {
	sugar := logger.Sugar()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var pg *pgxpool.Pool
	if err := retry(sugar, "PostgreSQL", func() error {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return err
		}
		pg = pool
		return nil
	}); err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pg.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := retry(sugar, "Redis", func() error { return rdb.Ping(ctx).Err() }); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	var ch driver.Conn
	if cfg.ClickHouseURL != "" {
		chOpts, err := clickhouse.ParseDSN(cfg.ClickHouseURL)
		if err != nil {
			return fmt.Errorf("invalid CLICKHOUSE_URL: %w", err)
		}
		if err := retry(sugar, "ClickHouse", func() error {
			conn, err := clickhouse.Open(chOpts)
			if err != nil {
				return backoff.Permanent(err)
			}
			if err := conn.Ping(ctx); err != nil {
				conn.Close()
				return err
			}
			ch = conn
			return nil
		}); err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		defer ch.Close()
	} else {
		sugar.Infow("CLICKHOUSE_URL not set, prediction audit log disabled")
	}

	predCfg := logic.PredictionConfig{
		Source:          logic.NewHistoricalDataSource(pg),
		Registry:        logic.NewModelRegistry(pg),
		Cache:           logic.NewRedisCache(rdb, logger),
		Loader:          logic.LoadEnsemble,
		Notifier:        logic.NewActivationNotifier(rdb),
		Logger:          logger,
		FeatureWindow:   cfg.FeatureWindow,
		CacheTTL:        cfg.PredictionCacheTTL,
		WeekConcurrency: cfg.WeekConcurrency,
	}

	var pool *worker.Pool
	if ch != nil {
		pool = worker.NewPool(worker.PoolConfig{
			WorkerCount:   cfg.WorkerCount,
			QueueSize:     cfg.QueueSize,
			BatchSize:     cfg.BatchSize,
			FlushInterval: cfg.FlushInterval,
			ClickHouse:    ch,
			Logger:        logger,
		})
		pool.Start(context.Background())
		defer pool.Stop()
		predCfg.Recorder = pool
	}

	svc := logic.NewPredictionService(predCfg)

	sub := rdb.Subscribe(ctx, logic.ActivationChannel)
	defer sub.Close()
	go logic.ListenForActivations(ctx, sub.Channel(), svc, logger)

	hcfg := handlers.Config{
		Postgres:       pg,
		Redis:          rdb,
		Logger:         logger,
		Prediction:     svc,
		AdminTokenHash: cfg.AdminTokenHash,
	}
	if ch != nil {
		hcfg.ClickHouse = ch
	}
	if pool != nil {
		hcfg.AuditQueue = pool
	}
	router := handlers.NewRouter(handlers.New(hcfg), handlers.RouterOptions{
		AllowedOrigins:     cfg.AllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		sugar.Infow("API server listening", "port", cfg.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	sugar.Info("Shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
