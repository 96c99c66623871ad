package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/statstack/predictions-api/internal/features"
	"github.com/statstack/predictions-api/internal/logic"
	"github.com/statstack/predictions-api/internal/ml"
	"github.com/statstack/predictions-api/internal/models"
)

var (
	trainingRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "predictions_training_runs_total",
		Help: "Training runs by outcome",
	}, []string{"result"})

	trainingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "predictions_training_duration_seconds",
		Help:    "Wall time of a full training run",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)

// Config wires a Trainer
type Config struct {
	Source   logic.HistoricalDataSource
	Registry logic.ModelRegistry
	Cache    logic.PredictionCache    // optional, purged on activation
	Notifier logic.ActivationNotifier // optional
	Logger   *zap.Logger

	ModelDir      string
	Params        ml.Hyperparameters
	FeatureWindow int
	Concurrency   int

	// Now is replaced in tests.
	Now func() time.Time
}

// Result summarises a finished run
type Result struct {
	Version   models.ModelVersion
	Skipped   int
	Activated bool
}

type Trainer struct {
	builder  *DatasetBuilder
	registry logic.ModelRegistry
	cache    logic.PredictionCache
	notifier logic.ActivationNotifier
	logger   *zap.SugaredLogger
	modelDir string
	params   ml.Hyperparameters
	now      func() time.Time
}

func NewTrainer(cfg Config) *Trainer {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Trainer{
		builder:  NewDatasetBuilder(cfg.Source, cfg.FeatureWindow, cfg.Concurrency, cfg.Logger),
		registry: cfg.Registry,
		cache:    cfg.Cache,
		notifier: cfg.Notifier,
		logger:   cfg.Logger.Sugar(),
		modelDir: cfg.ModelDir,
		params:   cfg.Params,
		now:      cfg.Now,
	}
}

// NewVersionID returns v<UTC timestamp>-<8 hex chars>.
func NewVersionID(at time.Time) string {
	return fmt.Sprintf("v%s-%s", at.UTC().Format("20060102T150405"), uuid.NewString()[:8])
}

// Run trains on the given seasons, saves the artifacts and registers a new
// version. The currently active version is only touched when activate is set
// and everything before it succeeded.
func (t *Trainer) Run(ctx context.Context, seasons []int, activate bool) (*Result, error) {
	start := t.now()
	res, err := t.run(ctx, seasons, activate)
	if err != nil {
		trainingRuns.WithLabelValues("error").Inc()
		t.logger.Errorw("Training run failed", "seasons", seasons, "error", err)
		return nil, err
	}
	trainingRuns.WithLabelValues("ok").Inc()
	trainingDuration.Observe(time.Since(start).Seconds())
	return res, nil
}

func (t *Trainer) run(ctx context.Context, seasons []int, activate bool) (*Result, error) {
	if len(seasons) == 0 {
		return nil, errors.New("no training seasons given")
	}

	ds, err := t.builder.Build(ctx, seasons)
	if err != nil {
		return nil, err
	}

	x, yWinner, ySpread, yTotal := ds.Matrix()
	ensemble := ml.NewEnsemble(t.params, ds.Names)
	metrics, err := ensemble.Train(x, yWinner, ySpread, yTotal)
	if err != nil {
		return nil, fmt.Errorf("failed to train on %d examples: %w", ds.Len(), err)
	}

	created := t.now().UTC()
	id := NewVersionID(created)
	paths, err := ensemble.Save(t.modelDir, id)
	if err != nil {
		return nil, fmt.Errorf("failed to save artifacts: %w", err)
	}

	version := models.ModelVersion{
		Version:         id,
		CreatedAt:       created,
		TrainingSeasons: seasons,
		TrainingSamples: ds.Len(),
		FeatureCount:    ensemble.FeatureCount(),
		LayoutVersion:   features.LayoutVersion,
		Metrics:         metrics,
		Artifacts:       paths,
	}
	if err := t.registry.Create(ctx, version); err != nil {
		return nil, err
	}
	t.logger.Infow("Registered model version",
		"version", id,
		"samples", ds.Len(),
		"skipped", ds.Skipped,
		"winner_accuracy", metrics.WinnerAccuracy,
		"spread_mae", metrics.SpreadMAE,
		"total_mae", metrics.TotalMAE,
	)

	res := &Result{Version: version, Skipped: ds.Skipped}
	if !activate {
		return res, nil
	}

	if err := t.registry.Activate(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to activate %s: %w", id, err)
	}
	res.Version.Active = true
	res.Activated = true
	t.logger.Infow("Activated model version", "version", id)

	if t.cache != nil {
		if err := logic.PurgePredictions(ctx, t.cache); err != nil {
			t.logger.Warnw("Failed to purge prediction cache", "version", id, "error", err)
		}
	}
	if t.notifier != nil {
		if err := t.notifier.NotifyActivated(ctx, id); err != nil {
			t.logger.Warnw("Failed to announce activation", "version", id, "error", err)
		}
	}
	return res, nil
}
