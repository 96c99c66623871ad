package logic

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/statstack/predictions-api/internal/features"
	"github.com/statstack/predictions-api/internal/ml"
	"github.com/statstack/predictions-api/internal/models"
)

const (
	DefaultCacheTTL            = 15 * time.Minute
	DefaultWeekConcurrency     = 4
	noModelMessage             = "No trained model is active. Run the trainer with -activate first."
	registryUnavailableMessage = "Model registry is unavailable; no model information can be shown."
	genericFailureMessage      = "prediction failed"
	matchDateLayout            = "2006-01-02"
)

// WeekOptions select which matches of a week are predicted
type WeekOptions struct {
	AllowPlayed bool
	Simulation  SimulationContext
}

// PredictionConfig wires the service collaborators
type PredictionConfig struct {
	Source   HistoricalDataSource
	Registry ModelRegistry
	Cache    PredictionCache
	Loader   ModelLoader
	Recorder PredictionRecorder // optional
	Notifier ActivationNotifier // optional
	Logger   *zap.Logger

	FeatureWindow   int
	CacheTTL        time.Duration
	WeekConcurrency int
}

type predictionService struct {
	source    HistoricalDataSource
	registry  ModelRegistry
	cache     PredictionCache
	recorder  PredictionRecorder
	notifier  ActivationNotifier
	holder    *ModelHolder
	extractor *features.Extractor
	logger    *zap.SugaredLogger

	cacheTTL        time.Duration
	weekConcurrency int
}

// LoadEnsemble is the ModelLoader for artifacts written by ml.Ensemble.
func LoadEnsemble(paths models.ArtifactPaths) (PredictionModel, error) {
	e, err := ml.Load(paths)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func NewPredictionService(cfg PredictionConfig) PredictionService {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Loader == nil {
		cfg.Loader = LoadEnsemble
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.WeekConcurrency <= 0 {
		cfg.WeekConcurrency = DefaultWeekConcurrency
	}
	return &predictionService{
		source:          cfg.Source,
		registry:        cfg.Registry,
		cache:           cfg.Cache,
		recorder:        cfg.Recorder,
		notifier:        cfg.Notifier,
		holder:          NewModelHolder(cfg.Registry, cfg.Loader, cfg.Logger),
		extractor:       features.NewExtractor(cfg.Source, cfg.FeatureWindow),
		logger:          cfg.Logger.Sugar(),
		cacheTTL:        cfg.CacheTTL,
		weekConcurrency: cfg.WeekConcurrency,
	}
}

func (s *predictionService) State() ModelState { return s.holder.State() }

// PredictMatch predicts one match. Played matches are refused unless
// allowPlayed is set, in which case the real result is attached.
func (s *predictionService) PredictMatch(ctx context.Context, matchID string, allowPlayed bool) (*models.MatchPrediction, error) {
	key := matchCacheKey(matchID, allowPlayed)
	var cached models.MatchPrediction
	if s.cacheGet(ctx, key, &cached) {
		predictionsServed.WithLabelValues(modeName(allowPlayed), "cache").Inc()
		return &cached, nil
	}

	rm, err := s.holder.Ensure(ctx)
	if err != nil {
		predictionFailures.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	match, err := s.source.MatchByID(ctx, matchID)
	if err != nil {
		predictionFailures.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}
	if match.Played() && !allowPlayed {
		predictionFailures.WithLabelValues("client").Inc()
		return nil, fmt.Errorf("%w: %s; predictions are only for upcoming games (use allow_played=true for diagnostics)",
			ErrAlreadyDecided, matchID)
	}

	pred, err := s.compute(ctx, rm, *match, allowPlayed)
	if err != nil {
		predictionFailures.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}
	s.cacheSet(ctx, key, pred)
	return pred, nil
}

// compute runs features and model for one match. The extractor only ever
// sees the masked copy.
func (s *predictionService) compute(ctx context.Context, rm *ResidentModel, match models.Match, diagnostic bool) (*models.MatchPrediction, error) {
	start := time.Now()
	masked, actual := Mask(match)

	vec, err := s.extractor.BuildMatch(ctx, masked)
	if err != nil {
		if errors.Is(err, features.ErrInsufficientData) {
			return nil, fmt.Errorf("cannot make prediction: %w", err)
		}
		return nil, fmt.Errorf("extract features for %s: %w", match.ID, err)
	}

	preds, err := rm.Model.Predict([][]float64{vec.Values})
	if err != nil {
		return nil, fmt.Errorf("predict %s with %s: %w", match.ID, rm.Version.Version, err)
	}
	pred := preds[0]

	result := &models.MatchPrediction{
		MatchID:      match.ID,
		HomeTeam:     match.HomeAbbreviation(),
		AwayTeam:     match.AwayAbbreviation(),
		Prediction:   pred,
		ModelVersion: rm.Version.Version,
	}
	if !match.Date.IsZero() {
		result.MatchDate = match.Date.Format(matchDateLayout)
	}
	if actual != nil {
		correct := predictedWinner(match, pred) == actual.Winner
		actual.Correct = &correct
		result.Actual = actual
	}

	predictionDuration.Observe(time.Since(start).Seconds())
	predictionsServed.WithLabelValues(modeName(diagnostic), "model").Inc()
	s.record(match, result, diagnostic)
	return result, nil
}

func predictedWinner(m models.Match, p models.Prediction) string {
	if p.PredictedWinner == ml.WinnerHome {
		return m.HomeAbbreviation()
	}
	return m.AwayAbbreviation()
}

func (s *predictionService) record(match models.Match, mp *models.MatchPrediction, diagnostic bool) {
	if s.recorder == nil {
		return
	}
	event := models.PredictionEvent{
		EventID:            uuid.NewString(),
		Timestamp:          time.Now().UTC(),
		MatchID:            match.ID,
		Season:             match.Season,
		Week:               match.Week,
		HomeTeam:           mp.HomeTeam,
		AwayTeam:           mp.AwayTeam,
		ModelVersion:       mp.ModelVersion,
		Diagnostic:         diagnostic,
		HomeWinProbability: mp.Prediction.HomeWinProbability,
		PredictedSpread:    mp.Prediction.PredictedSpread,
		PredictedTotal:     mp.Prediction.PredictedTotal,
		Confidence:         mp.Prediction.Confidence,
	}
	if mp.Actual != nil {
		home, away := mp.Actual.HomeScore, mp.Actual.AwayScore
		event.ActualHomeScore, event.ActualAwayScore = &home, &away
	}
	if !s.recorder.Record(event) {
		s.logger.Warnw("Prediction audit event dropped", "match_id", match.ID)
	}
}

// PredictWeek predicts every eligible match of a week. Per-match failures
// become error entries and never fail the batch.
func (s *predictionService) PredictWeek(ctx context.Context, season, week int, opts WeekOptions) (*models.WeekPredictions, error) {
	key := weekCacheKey(season, week, opts)
	var cached models.WeekPredictions
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	sim, err := resolveSimulation(ctx, s.source, opts.Simulation)
	if err != nil {
		return nil, err
	}
	matches, err := s.source.MatchesInWeek(ctx, season, week)
	if err != nil {
		return nil, err
	}

	var selected []models.Match
	for _, m := range matches {
		if !m.Played() || opts.AllowPlayed || sim.IsFuture(m) {
			selected = append(selected, m)
		}
	}

	result := &models.WeekPredictions{
		Season:      season,
		Week:        week,
		Predictions: make([]models.WeekEntry, len(selected)),
	}
	if len(selected) > 0 {
		rm, loadErr := s.holder.Ensure(ctx)

		var g errgroup.Group
		g.SetLimit(s.weekConcurrency)
		for i, m := range selected {
			g.Go(func() error {
				result.Predictions[i] = s.weekEntry(ctx, rm, loadErr, m)
				return nil
			})
		}
		_ = g.Wait()
	}
	result.Count = len(result.Predictions)

	for _, e := range result.Predictions {
		if e.Error != "" {
			return result, nil
		}
	}
	s.cacheSet(ctx, key, result)
	return result, nil
}

func (s *predictionService) weekEntry(ctx context.Context, rm *ResidentModel, loadErr error, m models.Match) models.WeekEntry {
	entry := models.WeekEntry{
		MatchID:  m.ID,
		HomeTeam: m.HomeAbbreviation(),
		AwayTeam: m.AwayAbbreviation(),
	}
	diagnostic := m.Played()

	key := matchCacheKey(m.ID, diagnostic)
	var mp models.MatchPrediction
	if s.cacheGet(ctx, key, &mp) {
		predictionsServed.WithLabelValues(modeName(diagnostic), "cache").Inc()
		return fromMatchPrediction(mp)
	}

	err := loadErr
	var pred *models.MatchPrediction
	if err == nil {
		pred, err = s.compute(ctx, rm, m, diagnostic)
	}
	if err != nil {
		predictionFailures.WithLabelValues(failureReason(err)).Inc()
		entry.Error = s.publicMessage(err, m.ID)
		return entry
	}
	s.cacheSet(ctx, key, pred)
	return fromMatchPrediction(*pred)
}

func fromMatchPrediction(mp models.MatchPrediction) models.WeekEntry {
	p := mp.Prediction
	return models.WeekEntry{
		MatchID:      mp.MatchID,
		HomeTeam:     mp.HomeTeam,
		AwayTeam:     mp.AwayTeam,
		MatchDate:    mp.MatchDate,
		Prediction:   &p,
		ModelVersion: mp.ModelVersion,
		Actual:       mp.Actual,
	}
}

func (s *predictionService) publicMessage(err error, matchID string) string {
	if IsClientError(err) {
		return err.Error()
	}
	s.logger.Errorw("Week entry prediction failed", "match_id", matchID, "error", err)
	return genericFailureMessage
}

// ModelInfo describes the active version, or reports that none is active.
// An unreachable registry is reported the same way.
func (s *predictionService) ModelInfo(ctx context.Context) (*models.ModelInfo, error) {
	active, err := s.registry.Active(ctx)
	if err != nil {
		s.logger.Errorw("Failed to read active model version", "error", err)
		return &models.ModelInfo{Status: models.ModelStatusNoModel, Message: registryUnavailableMessage}, nil
	}
	if active == nil {
		return &models.ModelInfo{Status: models.ModelStatusNoModel, Message: noModelMessage}, nil
	}

	created := active.CreatedAt
	metrics := active.Metrics
	info := &models.ModelInfo{
		Status:          models.ModelStatusReady,
		Version:         active.Version,
		CreatedAt:       &created,
		TrainingSeasons: active.TrainingSeasons,
		TrainingSamples: active.TrainingSamples,
		Metrics:         &metrics,
	}
	if rm := s.holder.Current(); rm != nil {
		info.Resident = rm.Version.Version
	}
	return info, nil
}

// FeatureImportance ranks the active model's inputs, most important first.
func (s *predictionService) FeatureImportance(ctx context.Context) ([]models.FeatureImportance, error) {
	rm, err := s.holder.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	values, err := rm.Model.FeatureImportance()
	if err != nil {
		return nil, err
	}
	names := rm.Model.FeatureNames()
	if len(names) != len(values) {
		names = features.Names()
	}

	out := make([]models.FeatureImportance, len(values))
	for i, v := range values {
		name := fmt.Sprintf("feature_%d", i)
		if i < len(names) {
			name = names[i]
		}
		out[i] = models.FeatureImportance{Feature: name, Importance: v}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out, nil
}

// ActivateVersion switches the active version, drops the resident model and
// purges cached predictions made by the previous one.
func (s *predictionService) ActivateVersion(ctx context.Context, version string) error {
	if err := s.registry.Activate(ctx, version); err != nil {
		return err
	}
	s.logger.Infow("Activated model version", "version", version)
	s.Reload()
	if err := s.ClearCache(ctx); err != nil {
		s.logger.Warnw("Failed to purge prediction cache after activation", "version", version, "error", err)
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyActivated(ctx, version); err != nil {
			s.logger.Warnw("Failed to announce activation", "version", version, "error", err)
		}
	}
	return nil
}

func (s *predictionService) Reload() {
	s.holder.Invalidate()
}

func (s *predictionService) ClearCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return PurgePredictions(ctx, s.cache)
}

// cacheGet treats every cache failure as a miss.
func (s *predictionService) cacheGet(ctx context.Context, key string, dest any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		s.logger.Warnw("Prediction cache read failed", "key", key, "error", err)
		return false
	}
	return ok
}

func (s *predictionService) cacheSet(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		s.logger.Warnw("Prediction cache write failed", "key", key, "error", err)
	}
}
