package logic

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/statstack/predictions-api/internal/models"
)

// TieWinner names the winner of a drawn match in ActualResult
const TieWinner = "TIE"

// SimulationContext replays a past week as if it were upcoming. Matches at or
// after the cutoff are treated as unplayed and predicted with their results
// held back.
type SimulationContext struct {
	Active bool
	Season int
	Week   int
	// Cutoff is the kickoff of the first match of the simulated week. Zero
	// until resolved against the data source.
	Cutoff time.Time
}

// ParseSimulation reads the simulate_season/simulate_week pair. Anything
// missing or malformed yields an inactive context.
func ParseSimulation(season, week string) SimulationContext {
	if season == "" || week == "" {
		return SimulationContext{}
	}
	s, err := strconv.Atoi(season)
	if err != nil {
		return SimulationContext{}
	}
	w, err := strconv.Atoi(week)
	if err != nil {
		return SimulationContext{}
	}
	return SimulationContext{Active: true, Season: s, Week: w}
}

// IsFuture reports whether m falls on or after the simulated cutoff.
func (c SimulationContext) IsFuture(m models.Match) bool {
	if !c.Active {
		return false
	}
	if !c.Cutoff.IsZero() {
		return !m.Date.Before(c.Cutoff)
	}
	return m.Season > c.Season || (m.Season == c.Season && m.Week >= c.Week)
}

func (c SimulationContext) key() string {
	if !c.Active {
		return ""
	}
	return fmt.Sprintf(":sim%d.%d", c.Season, c.Week)
}

// resolveSimulation pins the cutoff to the first kickoff of the simulated
// week. A week without matches deactivates the simulation.
func resolveSimulation(ctx context.Context, source HistoricalDataSource, c SimulationContext) (SimulationContext, error) {
	if !c.Active || !c.Cutoff.IsZero() {
		return c, nil
	}
	matches, err := source.MatchesInWeek(ctx, c.Season, c.Week)
	if err != nil {
		return c, fmt.Errorf("resolve simulated week %d/%d: %w", c.Season, c.Week, err)
	}
	if len(matches) == 0 {
		return SimulationContext{}, nil
	}
	cutoff := matches[0].Date
	for _, m := range matches[1:] {
		if m.Date.Before(cutoff) {
			cutoff = m.Date
		}
	}
	c.Cutoff = cutoff
	return c, nil
}

// Mask returns a copy of m with the final score removed, plus the withheld
// result when there was one. The input is never modified.
func Mask(m models.Match) (models.Match, *models.ActualResult) {
	masked := m
	masked.HomeScore, masked.AwayScore = nil, nil
	if !m.Played() {
		return masked, nil
	}

	home, away := *m.HomeScore, *m.AwayScore
	actual := &models.ActualResult{
		HomeScore: home,
		AwayScore: away,
		Spread:    home - away,
		Total:     home + away,
	}
	switch m.Result() {
	case models.ResultHome:
		actual.Winner = m.HomeAbbreviation()
	case models.ResultAway:
		actual.Winner = m.AwayAbbreviation()
	default:
		actual.Winner = TieWinner
	}
	return masked, actual
}
