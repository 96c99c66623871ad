package ml

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/statstack/predictions-api/internal/models"
)

const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"

	WinnerHome = "home"
	WinnerAway = "away"
)

// Confidence buckets a home-win probability by its distance from a coin flip.
func Confidence(p float64) string {
	switch {
	case p >= 0.65 || p <= 0.35:
		return ConfidenceHigh
	case (p >= 0.55 && p < 0.65) || (p > 0.35 && p <= 0.45):
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Ensemble bundles the winner, spread and total pipelines. It is immutable
// once trained or loaded and safe for concurrent Predict calls.
type Ensemble struct {
	params       Hyperparameters
	featureNames []string
	winner       *Pipeline[*RandomForest]
	spread       *Pipeline[*GradientBoosting]
	total        *Pipeline[*Ridge]
}

// NewEnsemble returns an untrained ensemble. featureNames is optional and only
// used to label importances.
func NewEnsemble(params Hyperparameters, featureNames []string) *Ensemble {
	return &Ensemble{params: params, featureNames: featureNames}
}

func (e *Ensemble) newWinner() *Pipeline[*RandomForest] {
	return &Pipeline[*RandomForest]{Estimator: NewRandomForest(e.params.Forest, e.params.Seed)}
}

func (e *Ensemble) newSpread() *Pipeline[*GradientBoosting] {
	return &Pipeline[*GradientBoosting]{Estimator: NewGradientBoosting(e.params.Boosting)}
}

func (e *Ensemble) newTotal() *Pipeline[*Ridge] {
	return &Pipeline[*Ridge]{Estimator: NewRidge(e.params.Ridge)}
}

func (e *Ensemble) Trained() bool {
	return e.winner != nil && e.spread != nil && e.total != nil
}

// FeatureCount is the row width the ensemble was fitted on, 0 when untrained.
func (e *Ensemble) FeatureCount() int {
	if !e.Trained() {
		return 0
	}
	return e.winner.Width()
}

func (e *Ensemble) FeatureNames() []string { return e.featureNames }

func (e *Ensemble) Hyperparameters() Hyperparameters { return e.params }

// Train validates each pipeline on expanding temporal folds, then fits all
// three on every row. Rows must be in chronological order. The ensemble is
// left untouched when training fails.
func (e *Ensemble) Train(x [][]float64, yWinner, ySpread, yTotal []float64) (models.TrainingMetrics, error) {
	var metrics models.TrainingMetrics
	if err := e.params.Validate(); err != nil {
		return metrics, err
	}
	if err := validateMatrix(x, yWinner, ySpread, yTotal); err != nil {
		return metrics, err
	}
	if e.featureNames != nil && len(e.featureNames) != len(x[0]) {
		return metrics, fmt.Errorf("%w: %d names for %d columns", ErrFeatureMismatch, len(e.featureNames), len(x[0]))
	}
	folds, err := TimeSeriesSplit(len(x), e.params.Folds)
	if err != nil {
		return metrics, err
	}

	winner, spread, total := e.newWinner(), e.newSpread(), e.newTotal()
	var accuracy, spreadErr, totalErr []float64

	var g errgroup.Group
	g.Go(func() error {
		scores, err := crossValidate(folds, x, yWinner, e.newWinner, accuracyScore)
		if err != nil {
			return fmt.Errorf("winner model: %w", err)
		}
		accuracy = scores
		return winner.Fit(x, yWinner)
	})
	g.Go(func() error {
		scores, err := crossValidate(folds, x, ySpread, e.newSpread, absoluteErrorScore)
		if err != nil {
			return fmt.Errorf("spread model: %w", err)
		}
		spreadErr = scores
		return spread.Fit(x, ySpread)
	})
	g.Go(func() error {
		scores, err := crossValidate(folds, x, yTotal, e.newTotal, absoluteErrorScore)
		if err != nil {
			return fmt.Errorf("total model: %w", err)
		}
		totalErr = scores
		return total.Fit(x, yTotal)
	})
	if err := g.Wait(); err != nil {
		return metrics, err
	}

	metrics.WinnerAccuracy, metrics.WinnerAccuracyStd = stat.PopMeanStdDev(accuracy, nil)
	metrics.SpreadMAE, metrics.SpreadMAEStd = stat.PopMeanStdDev(spreadErr, nil)
	metrics.TotalMAE, metrics.TotalMAEStd = stat.PopMeanStdDev(totalErr, nil)
	metrics.Folds = len(folds)

	e.winner, e.spread, e.total = winner, spread, total
	return metrics, nil
}

type scoreFunc func(predicted, actual float64) float64

func accuracyScore(p, actual float64) float64 {
	predicted := 0.0
	if p > 0.5 {
		predicted = 1
	}
	if predicted == actual {
		return 1
	}
	return 0
}

func absoluteErrorScore(predicted, actual float64) float64 {
	return math.Abs(predicted - actual)
}

// crossValidate fits a fresh pipeline per fold and returns the mean score of
// each fold's test block.
func crossValidate[E Estimator](folds []Fold, x [][]float64, y []float64, fresh func() *Pipeline[E], score scoreFunc) ([]float64, error) {
	out := make([]float64, 0, len(folds))
	for i, f := range folds {
		p := fresh()
		if err := p.Fit(x[:f.TrainEnd], y[:f.TrainEnd]); err != nil {
			return nil, fmt.Errorf("fold %d: %w", i, err)
		}
		var sum float64
		for r := f.TestStart; r < f.TestEnd; r++ {
			sum += score(p.Predict(x[r]), y[r])
		}
		out = append(out, sum/float64(f.TestEnd-f.TestStart))
	}
	return out, nil
}

func validateMatrix(x [][]float64, labels ...[]float64) error {
	if len(x) == 0 {
		return fmt.Errorf("%w: empty training set", ErrTooFewSamples)
	}
	width := len(x[0])
	if width == 0 {
		return fmt.Errorf("%w: rows have no columns", ErrFeatureMismatch)
	}
	for i, row := range x {
		if len(row) != width {
			return fmt.Errorf("%w: row %d has %d columns, want %d", ErrFeatureMismatch, i, len(row), width)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("row %d column %d is not finite", i, j)
			}
		}
	}
	for k, y := range labels {
		if len(y) != len(x) {
			return fmt.Errorf("label set %d has %d values for %d rows", k, len(y), len(x))
		}
	}
	return nil
}

// Predict scores every row. Derived scores satisfy home-away == spread and
// home+away == total.
func (e *Ensemble) Predict(x [][]float64) ([]models.Prediction, error) {
	if !e.Trained() {
		return nil, ErrNotTrained
	}
	width := e.FeatureCount()
	out := make([]models.Prediction, 0, len(x))
	for i, row := range x {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d values, model expects %d", ErrFeatureMismatch, i, len(row), width)
		}
		p := e.winner.Predict(row)
		spread := e.spread.Predict(row)
		total := e.total.Predict(row)

		winner := WinnerAway
		if p > 0.5 {
			winner = WinnerHome
		}
		out = append(out, models.Prediction{
			HomeWinProbability: p,
			PredictedWinner:    winner,
			PredictedSpread:    spread,
			PredictedTotal:     total,
			PredictedHomeScore: (total + spread) / 2,
			PredictedAwayScore: (total - spread) / 2,
			Confidence:         Confidence(p),
		})
	}
	return out, nil
}

// FeatureImportance returns the forest's normalised impurity decrease per
// column, in column order.
func (e *Ensemble) FeatureImportance() ([]float64, error) {
	if !e.Trained() {
		return nil, ErrNotTrained
	}
	out := make([]float64, len(e.winner.Estimator.Importances))
	copy(out, e.winner.Estimator.Importances)
	return out, nil
}

// ArtifactPaths names the three files of a version inside dir.
func ArtifactPaths(dir, version string) models.ArtifactPaths {
	return models.ArtifactPaths{
		Winner: filepath.Join(dir, fmt.Sprintf("%s_%s.json", kindWinner, version)),
		Spread: filepath.Join(dir, fmt.Sprintf("%s_%s.json", kindSpread, version)),
		Total:  filepath.Join(dir, fmt.Sprintf("%s_%s.json", kindTotal, version)),
	}
}

// Save writes the three pipelines under dir tagged with version.
func (e *Ensemble) Save(dir, version string) (models.ArtifactPaths, error) {
	if !e.Trained() {
		return models.ArtifactPaths{}, ErrNotTrained
	}
	if version == "" || strings.ContainsAny(version, `/\`) || strings.Contains(version, "..") {
		return models.ArtifactPaths{}, fmt.Errorf("invalid model version %q", version)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return models.ArtifactPaths{}, fmt.Errorf("create model dir: %w", err)
	}

	paths := ArtifactPaths(dir, version)
	now := time.Now().UTC()
	if err := writeArtifact(paths.Winner, envelope(e, kindWinner, version, now, e.winner)); err != nil {
		return models.ArtifactPaths{}, err
	}
	if err := writeArtifact(paths.Spread, envelope(e, kindSpread, version, now, e.spread)); err != nil {
		return models.ArtifactPaths{}, err
	}
	if err := writeArtifact(paths.Total, envelope(e, kindTotal, version, now, e.total)); err != nil {
		return models.ArtifactPaths{}, err
	}
	return paths, nil
}

func envelope[E Estimator](e *Ensemble, kind, version string, at time.Time, p *Pipeline[E]) artifact[E] {
	return artifact[E]{
		Format:          artifactFormat,
		Kind:            kind,
		Version:         version,
		SavedAt:         at,
		FeatureNames:    e.featureNames,
		Hyperparameters: e.params,
		Pipeline:        p,
	}
}

// Load restores an ensemble from its three artifacts. Nothing is returned
// unless all three decode and agree with each other.
func Load(paths models.ArtifactPaths) (*Ensemble, error) {
	w, err := readArtifact[*RandomForest](paths.Winner, kindWinner)
	if err != nil {
		return nil, err
	}
	s, err := readArtifact[*GradientBoosting](paths.Spread, kindSpread)
	if err != nil {
		return nil, err
	}
	t, err := readArtifact[*Ridge](paths.Total, kindTotal)
	if err != nil {
		return nil, err
	}

	width := w.Pipeline.Width()
	if s.Pipeline.Width() != width || t.Pipeline.Width() != width {
		return nil, fmt.Errorf("%w: artifacts disagree on feature count", ErrFeatureMismatch)
	}
	if w.Version != s.Version || w.Version != t.Version {
		return nil, fmt.Errorf("artifacts belong to different versions: %s, %s, %s", w.Version, s.Version, t.Version)
	}

	return &Ensemble{
		params:       w.Hyperparameters,
		featureNames: w.FeatureNames,
		winner:       w.Pipeline,
		spread:       s.Pipeline,
		total:        t.Pipeline,
	}, nil
}
