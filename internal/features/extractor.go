// Package features turns a team's recent history into the fixed numeric layout
// consumed by the prediction ensemble.
//
// Every aggregate looks strictly backwards from the target date. The target
// match's own score is never read: diagnostic callers hand in a masked copy.
package features

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/statstack/predictions-api/internal/models"
)

const (
	// LayoutVersion changes whenever names or order of the vector change.
	LayoutVersion = 1

	DefaultWindow      = 5
	DefaultRestDays    = 7
	NeutralTemperature = 65
	NeutralWind        = 0
)

// ErrInsufficientData marks a team/window without a single qualifying prior match.
var ErrInsufficientData = errors.New("insufficient data")

// InsufficientDataError carries the team and cutoff that failed to qualify
type InsufficientDataError struct {
	TeamID int64
	AsOf   time.Time
	Window int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("team %d has no completed games before %s (window %d)",
		e.TeamID, e.AsOf.Format("2006-01-02"), e.Window)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// Source is the read-only history the extractor needs
type Source interface {
	// MatchesForTeam returns played matches with both stat lines strictly
	// before the cutoff, most recent first.
	MatchesForTeam(ctx context.Context, teamID int64, before time.Time, limit int) ([]models.TeamMatch, error)
	// PreviousMatch returns the team's last match before the cutoff, nil if none.
	PreviousMatch(ctx context.Context, teamID int64, before time.Time) (*models.Match, error)
}

// Extractor builds feature vectors from a Source
type Extractor struct {
	source Source
	window int
}

func NewExtractor(source Source, window int) *Extractor {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Extractor{source: source, window: window}
}

func (e *Extractor) Window() int { return e.window }

// Offensive averages the team's own production over the window.
func (e *Extractor) Offensive(ctx context.Context, teamID int64, asOf time.Time) (Set, error) {
	history, err := e.history(ctx, teamID, asOf)
	if err != nil {
		return nil, err
	}
	return offensiveBlock(history), nil
}

// Defensive averages what opponents produced against the team over the window.
func (e *Extractor) Defensive(ctx context.Context, teamID int64, asOf time.Time) (Set, error) {
	history, err := e.history(ctx, teamID, asOf)
	if err != nil {
		return nil, err
	}
	return defensiveBlock(history), nil
}

// Situational describes venue, weather and rest for one side of a match.
func (e *Extractor) Situational(ctx context.Context, m models.Match, teamID int64) (Set, error) {
	prev, err := e.source.PreviousMatch(ctx, teamID, m.Date)
	if err != nil {
		return nil, fmt.Errorf("previous match for team %d: %w", teamID, err)
	}
	return situationalBlock(m, teamID, prev), nil
}

// Trend reports recent win percentage and the current streak. Unlike the
// aggregate blocks it tolerates an empty history.
func (e *Extractor) Trend(ctx context.Context, teamID int64, asOf time.Time) (Set, error) {
	history, err := e.source.MatchesForTeam(ctx, teamID, asOf, e.window)
	if err != nil {
		return nil, fmt.Errorf("history for team %d: %w", teamID, err)
	}
	return trendBlock(history), nil
}

// BuildMatch produces the full home-then-away vector for a match.
func (e *Extractor) BuildMatch(ctx context.Context, m models.Match) (Vector, error) {
	var home, away Set

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := e.teamSide(ctx, m, m.HomeTeam.ID)
		if err != nil {
			return err
		}
		home = s
		return nil
	})
	g.Go(func() error {
		s, err := e.teamSide(ctx, m, m.AwayTeam.ID)
		if err != nil {
			return err
		}
		away = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return Vector{}, err
	}

	return join(home, away), nil
}

// teamSide fetches the window once and derives every block from it.
func (e *Extractor) teamSide(ctx context.Context, m models.Match, teamID int64) (Set, error) {
	history, err := e.history(ctx, teamID, m.Date)
	if err != nil {
		return nil, err
	}
	prev, err := e.source.PreviousMatch(ctx, teamID, m.Date)
	if err != nil {
		return nil, fmt.Errorf("previous match for team %d: %w", teamID, err)
	}
	return sideBlock(history, m, teamID, prev), nil
}

func (e *Extractor) history(ctx context.Context, teamID int64, asOf time.Time) ([]models.TeamMatch, error) {
	history, err := e.source.MatchesForTeam(ctx, teamID, asOf, e.window)
	if err != nil {
		return nil, fmt.Errorf("history for team %d: %w", teamID, err)
	}
	if len(history) == 0 {
		return nil, &InsufficientDataError{TeamID: teamID, AsOf: asOf, Window: e.window}
	}
	return history, nil
}
