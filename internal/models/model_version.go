package models

import (
	"fmt"
	"time"
)

// ArtifactPaths locates the three fitted pipelines of one version
type ArtifactPaths struct {
	Winner string `json:"winner_model_path"`
	Spread string `json:"spread_model_path"`
	Total  string `json:"total_model_path"`
}

// TrainingMetrics are the rolling-origin validation scores of a training run
type TrainingMetrics struct {
	WinnerAccuracy    float64 `json:"winner_accuracy" yaml:"winner_accuracy"`
	WinnerAccuracyStd float64 `json:"winner_accuracy_std" yaml:"winner_accuracy_std"`
	SpreadMAE         float64 `json:"spread_mae" yaml:"spread_mae"`
	SpreadMAEStd      float64 `json:"spread_mae_std" yaml:"spread_mae_std"`
	TotalMAE          float64 `json:"total_mae" yaml:"total_mae"`
	TotalMAEStd       float64 `json:"total_mae_std" yaml:"total_mae_std"`
	Folds             int     `json:"folds" yaml:"folds"`
}

// ModelVersion is the registry record of a trained artifact set
type ModelVersion struct {
	Version         string          `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
	TrainingSeasons []int           `json:"training_seasons"`
	TrainingSamples int             `json:"training_samples"`
	FeatureCount    int             `json:"feature_count"`
	LayoutVersion   int             `json:"layout_version"`
	Metrics         TrainingMetrics `json:"metrics"`
	Artifacts       ArtifactPaths   `json:"artifacts"`
	Active          bool            `json:"active"`
}

func (v ModelVersion) String() string {
	status := "inactive"
	if v.Active {
		status = "active"
	}
	return fmt.Sprintf("%s (%s) - %.1f%% accuracy", v.Version, status, v.Metrics.WinnerAccuracy*100)
}

// ModelInfo is the introspection response for the active version
type ModelInfo struct {
	Status          string           `json:"status"` // "ready", "no_model"
	Message         string           `json:"message,omitempty"`
	Version         string           `json:"version,omitempty"`
	CreatedAt       *time.Time       `json:"created_at,omitempty"`
	TrainingSeasons []int            `json:"training_seasons,omitempty"`
	TrainingSamples int              `json:"training_samples,omitempty"`
	Metrics         *TrainingMetrics `json:"metrics,omitempty"`
	Resident        string           `json:"resident_version,omitempty"`
}

const (
	ModelStatusReady   = "ready"
	ModelStatusNoModel = "no_model"
)
