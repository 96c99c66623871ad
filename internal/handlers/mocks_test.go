package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"github.com/statstack/predictions-api/internal/logic"
	"github.com/statstack/predictions-api/internal/models"
)

// MockPredictionService
type MockPredictionService struct {
	PredictMatchFunc      func(ctx context.Context, matchID string, allowPlayed bool) (*models.MatchPrediction, error)
	PredictWeekFunc       func(ctx context.Context, season, week int, opts logic.WeekOptions) (*models.WeekPredictions, error)
	ModelInfoFunc         func(ctx context.Context) (*models.ModelInfo, error)
	FeatureImportanceFunc func(ctx context.Context) ([]models.FeatureImportance, error)
	ActivateVersionFunc   func(ctx context.Context, version string) error
	ClearCacheFunc        func(ctx context.Context) error

	ReloadCalls int
	StateValue  logic.ModelState
}

func (m *MockPredictionService) PredictMatch(ctx context.Context, matchID string, allowPlayed bool) (*models.MatchPrediction, error) {
	if m.PredictMatchFunc != nil {
		return m.PredictMatchFunc(ctx, matchID, allowPlayed)
	}
	return &models.MatchPrediction{MatchID: matchID}, nil
}

func (m *MockPredictionService) PredictWeek(ctx context.Context, season, week int, opts logic.WeekOptions) (*models.WeekPredictions, error) {
	if m.PredictWeekFunc != nil {
		return m.PredictWeekFunc(ctx, season, week, opts)
	}
	return &models.WeekPredictions{Season: season, Week: week, Predictions: []models.WeekEntry{}}, nil
}

func (m *MockPredictionService) ModelInfo(ctx context.Context) (*models.ModelInfo, error) {
	if m.ModelInfoFunc != nil {
		return m.ModelInfoFunc(ctx)
	}
	return &models.ModelInfo{Status: models.ModelStatusNoModel}, nil
}

func (m *MockPredictionService) FeatureImportance(ctx context.Context) ([]models.FeatureImportance, error) {
	if m.FeatureImportanceFunc != nil {
		return m.FeatureImportanceFunc(ctx)
	}
	return nil, nil
}

func (m *MockPredictionService) ActivateVersion(ctx context.Context, version string) error {
	if m.ActivateVersionFunc != nil {
		return m.ActivateVersionFunc(ctx, version)
	}
	return nil
}

func (m *MockPredictionService) Reload() { m.ReloadCalls++ }

func (m *MockPredictionService) ClearCache(ctx context.Context) error {
	if m.ClearCacheFunc != nil {
		return m.ClearCacheFunc(ctx)
	}
	return nil
}

func (m *MockPredictionService) State() logic.ModelState { return m.StateValue }

// MockPostgres
type MockPostgres struct {
	PingErr error
	Execs   []string
}

func (m *MockPostgres) Ping(ctx context.Context) error { return m.PingErr }

func (m *MockPostgres) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.Execs = append(m.Execs, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

// MockRedis
type MockRedis struct {
	PingErr error
}

func (m *MockRedis) Ping(ctx context.Context) *redis.StatusCmd {
	if m.PingErr != nil {
		return redis.NewStatusResult("", m.PingErr)
	}
	return redis.NewStatusResult("PONG", nil)
}

// MockClickHouseConn implements driver.Conn for testing
type MockClickHouseConn struct {
	driver.Conn
	PingErr    error
	Statements []string
}

func (m *MockClickHouseConn) Ping(ctx context.Context) error { return m.PingErr }

func (m *MockClickHouseConn) Exec(ctx context.Context, query string, args ...interface{}) error {
	if strings.Contains(query, "BROKEN") {
		return errors.New("syntax error")
	}
	m.Statements = append(m.Statements, query)
	return nil
}

type MockAuditQueue struct{ Depth int }

func (m *MockAuditQueue) QueueDepth() int { return m.Depth }
