package logic

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"github.com/statstack/predictions-api/internal/features"
	"github.com/statstack/predictions-api/internal/models"
)

// PgPool defines the interface for PostgreSQL connection pool
type PgPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RedisClient defines the interface for Redis client
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// HistoricalDataSource is the read-only view of schedules, results and box scores
type HistoricalDataSource interface {
	features.Source
	MatchByID(ctx context.Context, id string) (*models.Match, error)
	MatchesInWeek(ctx context.Context, season, week int) ([]models.Match, error)
	// PlayedMatches returns completed matches of the given seasons, oldest first.
	PlayedMatches(ctx context.Context, seasons []int) ([]models.Match, error)
}

// ModelRegistry stores ModelVersion records. At most one is active.
type ModelRegistry interface {
	// Active returns nil without error when no version is active.
	Active(ctx context.Context) (*models.ModelVersion, error)
	Get(ctx context.Context, version string) (*models.ModelVersion, error)
	List(ctx context.Context) ([]models.ModelVersion, error)
	Create(ctx context.Context, v models.ModelVersion) error
	Activate(ctx context.Context, version string) error
}

// PredictionCache is a JSON key/value store with expiry
type PredictionCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// PredictionModel is a fitted, read-only ensemble
type PredictionModel interface {
	Predict(x [][]float64) ([]models.Prediction, error)
	FeatureCount() int
	FeatureNames() []string
	FeatureImportance() ([]float64, error)
}

// ModelLoader reads a model from its artifacts
type ModelLoader func(paths models.ArtifactPaths) (PredictionModel, error)

// PredictionRecorder receives an audit event for every computed prediction.
// Record must not block.
type PredictionRecorder interface {
	Record(event models.PredictionEvent) bool
}

// ActivationNotifier tells other processes that the active version changed
type ActivationNotifier interface {
	NotifyActivated(ctx context.Context, version string) error
}

// PredictionService is the façade used by the HTTP layer
type PredictionService interface {
	PredictMatch(ctx context.Context, matchID string, allowPlayed bool) (*models.MatchPrediction, error)
	PredictWeek(ctx context.Context, season, week int, opts WeekOptions) (*models.WeekPredictions, error)
	ModelInfo(ctx context.Context) (*models.ModelInfo, error)
	FeatureImportance(ctx context.Context) ([]models.FeatureImportance, error)
	ActivateVersion(ctx context.Context, version string) error
	Reload()
	ClearCache(ctx context.Context) error
	State() ModelState
}
