package logic

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/statstack/predictions-api/internal/models"
)

const versionColumns = `
	version, created_at, training_seasons, training_samples, feature_count, layout_version,
	winner_accuracy, winner_accuracy_std, spread_mae, spread_mae_std, total_mae, total_mae_std, folds,
	winner_model_path, spread_model_path, total_model_path, is_active`

// activationLockKey serialises activations across processes.
const activationLockKey = 7240113

type pgRegistry struct {
	pg PgPool
}

// NewModelRegistry stores ModelVersion records in the model_versions table.
func NewModelRegistry(pg PgPool) ModelRegistry {
	return &pgRegistry{pg: pg}
}

func scanVersion(row rowScanner) (models.ModelVersion, error) {
	var v models.ModelVersion
	err := row.Scan(
		&v.Version, &v.CreatedAt, &v.TrainingSeasons, &v.TrainingSamples, &v.FeatureCount, &v.LayoutVersion,
		&v.Metrics.WinnerAccuracy, &v.Metrics.WinnerAccuracyStd,
		&v.Metrics.SpreadMAE, &v.Metrics.SpreadMAEStd,
		&v.Metrics.TotalMAE, &v.Metrics.TotalMAEStd, &v.Metrics.Folds,
		&v.Artifacts.Winner, &v.Artifacts.Spread, &v.Artifacts.Total, &v.Active,
	)
	return v, err
}

func (r *pgRegistry) Active(ctx context.Context) (*models.ModelVersion, error) {
	v, err := scanVersion(r.pg.QueryRow(ctx, `SELECT `+versionColumns+`
		FROM model_versions WHERE is_active ORDER BY created_at DESC LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query active model version: %w", err)
	}
	return &v, nil
}

func (r *pgRegistry) Get(ctx context.Context, version string) (*models.ModelVersion, error) {
	v, err := scanVersion(r.pg.QueryRow(ctx, `SELECT `+versionColumns+`
		FROM model_versions WHERE version = $1`, version))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrVersionNotFound, version)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query model version %s: %w", version, err)
	}
	return &v, nil
}

func (r *pgRegistry) List(ctx context.Context) ([]models.ModelVersion, error) {
	rows, err := r.pg.Query(ctx, `SELECT `+versionColumns+`
		FROM model_versions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list model versions: %w", err)
	}
	defer rows.Close()

	out := []models.ModelVersion{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Create inserts an inactive record. Activation is always a separate step.
func (r *pgRegistry) Create(ctx context.Context, v models.ModelVersion) error {
	_, err := r.pg.Exec(ctx, `
		INSERT INTO model_versions (`+versionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, false)`,
		v.Version, v.CreatedAt, v.TrainingSeasons, v.TrainingSamples, v.FeatureCount, v.LayoutVersion,
		v.Metrics.WinnerAccuracy, v.Metrics.WinnerAccuracyStd,
		v.Metrics.SpreadMAE, v.Metrics.SpreadMAEStd,
		v.Metrics.TotalMAE, v.Metrics.TotalMAEStd, v.Metrics.Folds,
		v.Artifacts.Winner, v.Artifacts.Spread, v.Artifacts.Total,
	)
	if err != nil {
		return fmt.Errorf("failed to insert model version %s: %w", v.Version, err)
	}
	return nil
}

// Activate makes version the only active record in one transaction. An
// unknown version rolls back without touching the current one.
func (r *pgRegistry) Activate(ctx context.Context, version string) error {
	tx, err := r.pg.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin activation: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, activationLockKey); err != nil {
		return fmt.Errorf("failed to lock model versions: %w", err)
	}

	var found string
	err = tx.QueryRow(ctx, `SELECT version FROM model_versions WHERE version = $1 FOR UPDATE`, version).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrVersionNotFound, version)
	}
	if err != nil {
		return fmt.Errorf("failed to lock model version %s: %w", version, err)
	}

	if _, err := tx.Exec(ctx, `UPDATE model_versions SET is_active = false WHERE is_active AND version <> $1`, version); err != nil {
		return fmt.Errorf("failed to deactivate model versions: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE model_versions SET is_active = true, activated_at = now() WHERE version = $1`, version); err != nil {
		return fmt.Errorf("failed to activate model version %s: %w", version, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit activation of %s: %w", version, err)
	}
	return nil
}
