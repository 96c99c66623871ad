// Package ml implements the three-estimator ensemble behind match predictions:
// a random forest classifier for the winner, gradient boosted trees for the
// spread and ridge regression for the combined total. Every estimator sits
// behind its own standard scaler and the fitted pipelines persist as JSON.
package ml

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNotTrained is returned when predicting or saving before Train or Load.
	ErrNotTrained = errors.New("model has not been trained or loaded")
	// ErrTooFewSamples is returned when the sample count cannot fill the temporal folds.
	ErrTooFewSamples = errors.New("too few samples for temporal cross-validation")
	// ErrFeatureMismatch is returned when an input row does not match the fitted width.
	ErrFeatureMismatch = errors.New("feature vector length does not match model")
)

// ForestParams configure the winner classifier
type ForestParams struct {
	Trees           int    `json:"trees" yaml:"trees"`
	MaxDepth        int    `json:"max_depth" yaml:"max_depth"`
	MinSamplesSplit int    `json:"min_samples_split" yaml:"min_samples_split"`
	MaxFeatures     string `json:"max_features" yaml:"max_features"` // "sqrt", "log2", "all"
}

// BoostingParams configure the spread regressor
type BoostingParams struct {
	Stages          int     `json:"stages" yaml:"stages"`
	LearningRate    float64 `json:"learning_rate" yaml:"learning_rate"`
	MaxDepth        int     `json:"max_depth" yaml:"max_depth"`
	MinSamplesSplit int     `json:"min_samples_split" yaml:"min_samples_split"`
}

// RidgeParams configure the total regressor
type RidgeParams struct {
	Alpha float64 `json:"alpha" yaml:"alpha"`
}

// Hyperparameters for a full ensemble
type Hyperparameters struct {
	Seed     int64          `json:"seed" yaml:"seed"`
	Folds    int            `json:"folds" yaml:"folds"`
	Forest   ForestParams   `json:"forest" yaml:"forest"`
	Boosting BoostingParams `json:"boosting" yaml:"boosting"`
	Ridge    RidgeParams    `json:"ridge" yaml:"ridge"`
}

// DefaultHyperparameters are the production settings.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		Seed:  42,
		Folds: 5,
		Forest: ForestParams{
			Trees:           100,
			MaxDepth:        10,
			MinSamplesSplit: 5,
			MaxFeatures:     "sqrt",
		},
		Boosting: BoostingParams{
			Stages:          100,
			LearningRate:    0.1,
			MaxDepth:        5,
			MinSamplesSplit: 5,
		},
		Ridge: RidgeParams{Alpha: 1.0},
	}
}

// Validate rejects configurations that cannot be fitted.
func (h Hyperparameters) Validate() error {
	switch {
	case h.Folds < 2:
		return fmt.Errorf("folds must be at least 2, got %d", h.Folds)
	case h.Forest.Trees <= 0:
		return fmt.Errorf("forest trees must be positive, got %d", h.Forest.Trees)
	case h.Boosting.Stages <= 0:
		return fmt.Errorf("boosting stages must be positive, got %d", h.Boosting.Stages)
	case h.Boosting.LearningRate <= 0:
		return fmt.Errorf("boosting learning rate must be positive, got %g", h.Boosting.LearningRate)
	case h.Ridge.Alpha <= 0:
		return fmt.Errorf("ridge alpha must be positive, got %g", h.Ridge.Alpha)
	}
	if _, err := resolveMaxFeatures(h.Forest.MaxFeatures, 1); err != nil {
		return err
	}
	return nil
}

func resolveMaxFeatures(mode string, n int) (int, error) {
	var k int
	switch mode {
	case "", "all":
		k = n
	case "sqrt":
		k = int(math.Sqrt(float64(n)))
	case "log2":
		k = int(math.Log2(float64(n)))
	default:
		return 0, fmt.Errorf("unknown max_features %q", mode)
	}
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k, nil
}
