package handlers

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/statstack/predictions-api/internal/logic"
)

// AuditQueue is the prediction audit worker pool as seen by readiness checks
type AuditQueue interface {
	QueueDepth() int
}

// PostgresConn is the subset of pgxpool.Pool used by health and install
type PostgresConn interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// RedisPinger is the subset of the Redis client used by readiness checks
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

type Config struct {
	AuditQueue AuditQueue  // optional
	Postgres   PostgresConn
	ClickHouse driver.Conn // optional
	Redis      RedisPinger
	Logger     *zap.Logger
	// Services
	Prediction logic.PredictionService
	// AdminTokenHash is the hex SHA-256 of the admin token
	AdminTokenHash string
}

type Handler struct {
	queue          AuditQueue
	pg             PostgresConn
	ch             driver.Conn
	redis          RedisPinger
	logger         *zap.SugaredLogger
	validator      *validator.Validate
	prediction     logic.PredictionService
	adminTokenHash string
}

func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Handler{
		queue:          cfg.AuditQueue,
		pg:             cfg.Postgres,
		ch:             cfg.ClickHouse,
		redis:          cfg.Redis,
		logger:         cfg.Logger.Sugar(),
		validator:      validator.New(),
		prediction:     cfg.Prediction,
		adminTokenHash: cfg.AdminTokenHash,
	}
}
