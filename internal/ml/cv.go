package ml

import "fmt"

// Fold is one expanding-window split: train on [0, TrainEnd), test on
// [TestStart, TestEnd). Rows must be in chronological order.
type Fold struct {
	TrainEnd  int
	TestStart int
	TestEnd   int
}

// TimeSeriesSplit produces k folds whose test blocks are the last k
// consecutive blocks of n/(k+1) rows. Training rows always precede test rows.
func TimeSeriesSplit(n, k int) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("time series split: need at least 2 folds, got %d", k)
	}
	if n < k+1 {
		return nil, fmt.Errorf("%w: %d samples for %d folds", ErrTooFewSamples, n, k)
	}
	size := n / (k + 1)
	folds := make([]Fold, 0, k)
	for i := 0; i < k; i++ {
		start := n - (k-i)*size
		folds = append(folds, Fold{TrainEnd: start, TestStart: start, TestEnd: start + size})
	}
	return folds, nil
}
