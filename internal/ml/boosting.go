package ml

import (
	"errors"
	"fmt"
)

// GradientBoosting fits shallow regression trees to least-squares residuals,
// starting from the target mean.
type GradientBoosting struct {
	Params BoostingParams `json:"params"`
	Init   float64        `json:"init"`
	Trees  []*Tree        `json:"trees"`
}

func NewGradientBoosting(params BoostingParams) *GradientBoosting {
	return &GradientBoosting{Params: params}
}

func (g *GradientBoosting) Fit(x [][]float64, y []float64) error {
	if len(x) == 0 {
		return fmt.Errorf("gradient boosting: no rows")
	}
	n := len(x)
	var sum float64
	for _, v := range y {
		sum += v
	}
	g.Init = sum / float64(n)

	current := make([]float64, n)
	for i := range current {
		current[i] = g.Init
	}
	residual := make([]float64, n)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	params := treeParams{
		maxDepth:        g.Params.MaxDepth,
		minSamplesSplit: g.Params.MinSamplesSplit,
	}

	g.Trees = make([]*Tree, 0, g.Params.Stages)
	for s := 0; s < g.Params.Stages; s++ {
		for i := range residual {
			residual[i] = y[i] - current[i]
		}
		t := fitTree(x, residual, idx, params, nil, nil)
		for i, row := range x {
			current[i] += g.Params.LearningRate * t.Predict(row)
		}
		g.Trees = append(g.Trees, t)
	}
	return nil
}

func (g *GradientBoosting) Validate(width int) error {
	if g == nil {
		return errors.New("missing boosting model")
	}
	return validateTrees(g.Trees, width)
}

func (g *GradientBoosting) Predict(row []float64) float64 {
	out := g.Init
	for _, t := range g.Trees {
		out += g.Params.LearningRate * t.Predict(row)
	}
	return out
}
