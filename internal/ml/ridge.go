package ml

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Ridge is L2-regularised least squares with an unpenalised intercept.
type Ridge struct {
	Alpha     float64   `json:"alpha"`
	Intercept float64   `json:"intercept"`
	Coef      []float64 `json:"coef"`
}

func NewRidge(params RidgeParams) *Ridge {
	return &Ridge{Alpha: params.Alpha}
}

// Fit solves (XcᵀXc + αI)w = Xcᵀyc on column-centered data.
func (r *Ridge) Fit(x [][]float64, y []float64) error {
	if len(x) == 0 {
		return fmt.Errorf("ridge: no rows")
	}
	n, p := len(x), len(x[0])

	colMean := make([]float64, p)
	for _, row := range x {
		for j, v := range row {
			colMean[j] += v
		}
	}
	for j := range colMean {
		colMean[j] /= float64(n)
	}
	var yMean float64
	for _, v := range y {
		yMean += v
	}
	yMean /= float64(n)

	data := make([]float64, 0, n*p)
	for _, row := range x {
		for j, v := range row {
			data = append(data, v-colMean[j])
		}
	}
	yc := make([]float64, n)
	for i, v := range y {
		yc[i] = v - yMean
	}

	xc := mat.NewDense(n, p, data)
	gram := mat.NewSymDense(p, nil)
	gram.SymOuterK(1, xc.T())
	for j := 0; j < p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+r.Alpha)
	}

	var rhs mat.VecDense
	rhs.MulVec(xc.T(), mat.NewVecDense(n, yc))

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return fmt.Errorf("ridge: system is not positive definite (alpha %g)", r.Alpha)
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, &rhs); err != nil {
		return fmt.Errorf("ridge: solve: %w", err)
	}

	r.Coef = make([]float64, p)
	r.Intercept = yMean
	for j := range r.Coef {
		r.Coef[j] = w.AtVec(j)
		r.Intercept -= r.Coef[j] * colMean[j]
	}
	return nil
}

func (r *Ridge) Validate(width int) error {
	switch {
	case r == nil:
		return errors.New("missing ridge model")
	case len(r.Coef) != width:
		return fmt.Errorf("ridge has %d coefficients for %d columns", len(r.Coef), width)
	}
	return nil
}

func (r *Ridge) Predict(row []float64) float64 {
	out := r.Intercept
	for j, v := range row {
		out += r.Coef[j] * v
	}
	return out
}
