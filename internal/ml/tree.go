package ml

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

const leaf = -1

// Node is one entry of a flattened regression tree. Leaves carry Feature == -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
}

// Tree is a CART regression tree split on squared-error reduction. On 0/1
// targets the leaf values are class-1 frequencies, which makes it serve as a
// probability tree for the forest as well.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	maxFeatures     int // 0 means every column
}

type treeBuilder struct {
	x          [][]float64
	y          []float64
	params     treeParams
	rng        *rand.Rand
	importance []float64
	nodes      []Node
}

// fitTree grows a tree over the rows listed in idx. Duplicated indices act as
// sample weights. importance, when non-nil, accumulates the squared-error
// decrease of every split per column.
func fitTree(x [][]float64, y []float64, idx []int, params treeParams, rng *rand.Rand, importance []float64) *Tree {
	b := &treeBuilder{
		x:          x,
		y:          y,
		params:     params,
		rng:        rng,
		importance: importance,
	}
	b.grow(idx, 0)
	return &Tree{Nodes: b.nodes}
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	var sum, sumSq float64
	for _, i := range idx {
		sum += b.y[i]
		sumSq += b.y[i] * b.y[i]
	}
	n := float64(len(idx))
	pos := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: leaf, Value: sum / n})

	sse := sumSq - sum*sum/n
	if len(idx) < b.params.minSamplesSplit || len(idx) < 2 || sse <= 1e-12 {
		return pos
	}
	if b.params.maxDepth > 0 && depth >= b.params.maxDepth {
		return pos
	}

	feature, threshold, gain := b.bestSplit(idx, sum, sse)
	if feature == leaf {
		return pos
	}
	if b.importance != nil {
		b.importance[feature] += gain
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[pos].Feature = feature
	b.nodes[pos].Threshold = threshold
	b.nodes[pos].Left = l
	b.nodes[pos].Right = r
	return pos
}

func (b *treeBuilder) candidates() []int {
	width := len(b.x[0])
	k := b.params.maxFeatures
	if k <= 0 || k >= width || b.rng == nil {
		out := make([]int, width)
		for j := range out {
			out[j] = j
		}
		return out
	}
	return b.rng.Perm(width)[:k]
}

// bestSplit scans every candidate column for the threshold with the largest
// squared-error reduction. It returns leaf when no split improves the node.
func (b *treeBuilder) bestSplit(idx []int, total, sse float64) (int, float64, float64) {
	bestFeature, bestThreshold, bestGain := leaf, 0.0, 1e-12
	n := len(idx)
	sorted := make([]int, n)

	for _, f := range b.candidates() {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool { return b.x[sorted[a]][f] < b.x[sorted[c]][f] })

		var leftSum, leftSq float64
		rightSq := 0.0
		for _, i := range sorted {
			rightSq += b.y[i] * b.y[i]
		}
		for k := 0; k < n-1; k++ {
			yi := b.y[sorted[k]]
			leftSum += yi
			leftSq += yi * yi
			rightSq -= yi * yi

			lo, hi := b.x[sorted[k]][f], b.x[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			nl := float64(k + 1)
			nr := float64(n - k - 1)
			rightSum := total - leftSum
			child := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			gain := sse - child
			if gain > bestGain {
				threshold := lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				bestFeature, bestThreshold, bestGain = f, threshold, gain
			}
		}
	}
	return bestFeature, bestThreshold, bestGain
}

func (t *Tree) Predict(row []float64) float64 {
	i := 0
	for {
		nd := t.Nodes[i]
		if nd.Feature == leaf {
			return nd.Value
		}
		if row[nd.Feature] <= nd.Threshold {
			i = nd.Left
		} else {
			i = nd.Right
		}
	}
}

// Validate checks that every split reads a column below width and that
// children always follow their parent, which rules out cycles.
func (t *Tree) Validate(width int) error {
	if t == nil || len(t.Nodes) == 0 {
		return errors.New("empty tree")
	}
	n := len(t.Nodes)
	for i, nd := range t.Nodes {
		if nd.Feature == leaf {
			continue
		}
		switch {
		case nd.Feature < 0 || nd.Feature >= width:
			return fmt.Errorf("node %d splits on column %d of %d", i, nd.Feature, width)
		case nd.Left <= i || nd.Left >= n || nd.Right <= i || nd.Right >= n:
			return fmt.Errorf("node %d has children %d/%d outside (%d, %d)", i, nd.Left, nd.Right, i, n)
		}
	}
	return nil
}

func validateTrees(trees []*Tree, width int) error {
	if len(trees) == 0 {
		return errors.New("no trees")
	}
	for i, t := range trees {
		if err := t.Validate(width); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// Depth is the longest root-to-leaf path, counted in edges.
func (t *Tree) Depth() int {
	var walk func(i int) int
	walk = func(i int) int {
		nd := t.Nodes[i]
		if nd.Feature == leaf {
			return 0
		}
		return 1 + max(walk(nd.Left), walk(nd.Right))
	}
	return walk(0)
}
