// Package training assembles labelled feature matrices from completed matches
// and turns them into registered model versions.
package training

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/statstack/predictions-api/internal/features"
	"github.com/statstack/predictions-api/internal/logic"
	"github.com/statstack/predictions-api/internal/models"
)

// Example is one labelled training row
type Example struct {
	MatchID  string
	Date     time.Time
	Features []float64
	Winner   float64 // 1 when the home side won
	Spread   float64
	Total    float64
}

// Dataset holds examples in match date order
type Dataset struct {
	Names    []string
	Examples []Example
	// Skipped counts matches where a team had no qualifying history.
	Skipped int
}

func (d *Dataset) Len() int { return len(d.Examples) }

// Matrix splits the examples into the columns the ensemble trains on.
func (d *Dataset) Matrix() (x [][]float64, winner, spread, total []float64) {
	n := len(d.Examples)
	x = make([][]float64, n)
	winner = make([]float64, n)
	spread = make([]float64, n)
	total = make([]float64, n)
	for i, e := range d.Examples {
		x[i] = e.Features
		winner[i] = e.Winner
		spread[i] = e.Spread
		total[i] = e.Total
	}
	return x, winner, spread, total
}

// DatasetBuilder extracts features for completed matches
type DatasetBuilder struct {
	source      logic.HistoricalDataSource
	extractor   *features.Extractor
	concurrency int
	logger      *zap.SugaredLogger
}

func NewDatasetBuilder(source logic.HistoricalDataSource, window, concurrency int, logger *zap.Logger) *DatasetBuilder {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}
	return &DatasetBuilder{
		source:      source,
		extractor:   features.NewExtractor(source, window),
		concurrency: concurrency,
		logger:      logger.Sugar(),
	}
}

// Build returns one example per played match of the given seasons. Matches
// whose teams lack history are skipped; any other failure aborts the build.
func (b *DatasetBuilder) Build(ctx context.Context, seasons []int) (*Dataset, error) {
	matches, err := b.source.PlayedMatches(ctx, seasons)
	if err != nil {
		return nil, fmt.Errorf("failed to list played matches: %w", err)
	}

	rows := make([]*Example, len(matches))
	var skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, m := range matches {
		g.Go(func() error {
			ex, err := b.example(gctx, m)
			if errors.Is(err, features.ErrInsufficientData) {
				skipped.Add(1)
				return nil
			}
			if err != nil {
				return err
			}
			rows[i] = ex
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ds := &Dataset{Names: features.Names(), Skipped: int(skipped.Load())}
	for _, r := range rows {
		if r != nil {
			ds.Examples = append(ds.Examples, *r)
		}
	}

	b.logger.Infow("Built training dataset",
		"seasons", seasons,
		"matches", len(matches),
		"examples", len(ds.Examples),
		"skipped", ds.Skipped,
	)
	return ds, nil
}

func (b *DatasetBuilder) example(ctx context.Context, m models.Match) (*Example, error) {
	masked, _ := logic.Mask(m)
	vec, err := b.extractor.BuildMatch(ctx, masked)
	if err != nil {
		return nil, fmt.Errorf("features for %s: %w", m.ID, err)
	}

	home, away := *m.HomeScore, *m.AwayScore
	ex := &Example{
		MatchID:  m.ID,
		Date:     m.Date,
		Features: vec.Values,
		Spread:   float64(home - away),
		Total:    float64(home + away),
	}
	if m.Result() == models.ResultHome {
		ex.Winner = 1
	}
	return ex, nil
}
