package ml

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// StandardScaler centers each column to zero mean and unit variance using
// statistics from the data it was fitted on.
type StandardScaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

func FitScaler(x [][]float64) (*StandardScaler, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("fit scaler: no rows")
	}
	width := len(x[0])
	s := &StandardScaler{
		Mean:  make([]float64, width),
		Scale: make([]float64, width),
	}
	col := make([]float64, len(x))
	for j := 0; j < width; j++ {
		for i, row := range x {
			col[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		s.Mean[j] = mean
		// Constant columns pass through centered but unscaled.
		if std < 1e-12 {
			std = 1
		}
		s.Scale[j] = std
	}
	return s, nil
}

func (s *StandardScaler) Width() int { return len(s.Mean) }

// Validate rejects scalers that would index out of range or divide by zero.
func (s *StandardScaler) Validate() error {
	switch {
	case s == nil || len(s.Mean) == 0:
		return errors.New("missing scaler")
	case len(s.Scale) != len(s.Mean):
		return fmt.Errorf("scaler has %d means but %d scales", len(s.Mean), len(s.Scale))
	}
	for j, v := range s.Scale {
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("scaler column %d has invalid scale %v", j, v)
		}
	}
	return nil
}

func (s *StandardScaler) TransformRow(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out
}

func (s *StandardScaler) Transform(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		out[i] = s.TransformRow(row)
	}
	return out
}
