package ml

import (
	"errors"
	"fmt"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// RandomForest is a bagged ensemble of probability trees for a binary target.
type RandomForest struct {
	Params      ForestParams `json:"params"`
	Seed        int64        `json:"seed"`
	Trees       []*Tree      `json:"trees"`
	Importances []float64    `json:"importances"`
}

func NewRandomForest(params ForestParams, seed int64) *RandomForest {
	return &RandomForest{Params: params, Seed: seed}
}

// Fit trains every tree on its own bootstrap sample. Each tree draws from a
// generator seeded off the forest seed and its index, so the result does not
// depend on scheduling.
func (f *RandomForest) Fit(x [][]float64, y []float64) error {
	if len(x) == 0 {
		return fmt.Errorf("random forest: no rows")
	}
	for i, v := range y {
		if v != 0 && v != 1 {
			return fmt.Errorf("random forest: label %d is %g, want 0 or 1", i, v)
		}
	}
	width := len(x[0])
	k, err := resolveMaxFeatures(f.Params.MaxFeatures, width)
	if err != nil {
		return err
	}
	params := treeParams{
		maxDepth:        f.Params.MaxDepth,
		minSamplesSplit: f.Params.MinSamplesSplit,
		maxFeatures:     k,
	}

	n := len(x)
	trees := make([]*Tree, f.Params.Trees)
	perTree := make([][]float64, f.Params.Trees)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for t := range trees {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(f.Seed + int64(t)))
			idx := make([]int, n)
			for i := range idx {
				idx[i] = rng.Intn(n)
			}
			imp := make([]float64, width)
			trees[t] = fitTree(x, y, idx, params, rng, imp)
			perTree[t] = normalize(imp)
			return nil
		})
	}
	_ = g.Wait()

	avg := make([]float64, width)
	for _, imp := range perTree {
		for j, v := range imp {
			avg[j] += v
		}
	}
	f.Trees = trees
	f.Importances = normalize(avg)
	return nil
}

// Predict returns the mean class-1 probability across trees.
func (f *RandomForest) Predict(row []float64) float64 {
	var sum float64
	for _, t := range f.Trees {
		sum += t.Predict(row)
	}
	return sum / float64(len(f.Trees))
}

func (f *RandomForest) Validate(width int) error {
	if f == nil {
		return errors.New("missing forest")
	}
	if len(f.Importances) != 0 && len(f.Importances) != width {
		return fmt.Errorf("forest has %d importances for %d columns", len(f.Importances), width)
	}
	return validateTrees(f.Trees, width)
}

func normalize(v []float64) []float64 {
	var total float64
	for _, x := range v {
		total += x
	}
	if total == 0 {
		return v
	}
	for i := range v {
		v[i] /= total
	}
	return v
}
