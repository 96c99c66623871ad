package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Estimator is a single-output model over scaled rows
type Estimator interface {
	Fit(x [][]float64, y []float64) error
	Predict(row []float64) float64
	// Validate checks a decoded estimator against the feature width it will
	// be fed. It must handle a nil receiver.
	Validate(width int) error
}

// Pipeline scales raw rows with statistics from its own training data before
// handing them to the estimator.
type Pipeline[E Estimator] struct {
	Scaler    *StandardScaler `json:"scaler"`
	Estimator E               `json:"estimator"`
}

func (p *Pipeline[E]) Fit(x [][]float64, y []float64) error {
	scaler, err := FitScaler(x)
	if err != nil {
		return err
	}
	if err := p.Estimator.Fit(scaler.Transform(x), y); err != nil {
		return err
	}
	p.Scaler = scaler
	return nil
}

func (p *Pipeline[E]) Predict(row []float64) float64 {
	return p.Estimator.Predict(p.Scaler.TransformRow(row))
}

func (p *Pipeline[E]) Width() int { return p.Scaler.Width() }

const artifactFormat = 1

const (
	kindWinner = "winner"
	kindSpread = "spread"
	kindTotal  = "total"
)

// artifact is the on-disk envelope of one fitted pipeline
type artifact[E Estimator] struct {
	Format          int             `json:"format"`
	Kind            string          `json:"kind"`
	Version         string          `json:"version"`
	SavedAt         time.Time       `json:"saved_at"`
	FeatureNames    []string        `json:"feature_names,omitempty"`
	Hyperparameters Hyperparameters `json:"hyperparameters"`
	Pipeline        *Pipeline[E]    `json:"pipeline"`
}

// writeArtifact publishes the file with a rename so readers never observe a
// partial write.
func writeArtifact[E Estimator](path string, a artifact[E]) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode %s artifact: %w", a.Kind, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish %s: %w", path, err)
	}
	return nil
}

func readArtifact[E Estimator](path, kind string) (*artifact[E], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s artifact: %w", kind, err)
	}
	var a artifact[E]
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode %s artifact %s: %w", kind, path, err)
	}
	switch {
	case a.Format != artifactFormat:
		return nil, fmt.Errorf("%s artifact %s: unsupported format %d", kind, path, a.Format)
	case a.Kind != kind:
		return nil, fmt.Errorf("%s artifact %s: holds a %q model", kind, path, a.Kind)
	case a.Pipeline == nil:
		return nil, fmt.Errorf("%s artifact %s: missing pipeline", kind, path)
	}
	if err := a.Pipeline.Scaler.Validate(); err != nil {
		return nil, fmt.Errorf("%s artifact %s: %w", kind, path, err)
	}
	if err := a.Pipeline.Estimator.Validate(a.Pipeline.Width()); err != nil {
		return nil, fmt.Errorf("%s artifact %s: %w", kind, path, err)
	}
	return &a, nil
}
