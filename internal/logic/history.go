package logic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/statstack/predictions-api/internal/models"
)

const matchColumns = `
	g.id, g.season, g.week, g.game_date,
	hm.id, hm.abbreviation, hm.name,
	aw.id, aw.abbreviation, aw.name,
	g.home_score, g.away_score, g.temperature, g.wind`

const matchJoins = `
	FROM games g
	JOIN teams hm ON hm.id = g.home_team_id
	JOIN teams aw ON aw.id = g.away_team_id`

const statColumns = `
	%[1]s.pass_attempts, %[1]s.pass_completions, %[1]s.pass_yards, %[1]s.pass_tds,
	%[1]s.rush_attempts, %[1]s.rush_yards, %[1]s.rush_tds,
	%[1]s.interceptions, %[1]s.sacks, %[1]s.fumbles_lost`

// A team's window only counts games where both box score lines exist.
var teamHistoryQuery = `SELECT ` + matchColumns + `,` +
	fmt.Sprintf(statColumns, "own") + `,` +
	fmt.Sprintf(statColumns, "opp") +
	matchJoins + `
	JOIN team_game_stats own ON own.game_id = g.id AND own.team_id = $1
	JOIN team_game_stats opp ON opp.game_id = g.id AND opp.team_id <> $1
	WHERE (g.home_team_id = $1 OR g.away_team_id = $1)
	  AND g.home_score IS NOT NULL AND g.away_score IS NOT NULL
	  AND g.game_date < $2
	ORDER BY g.game_date DESC, g.id DESC
	LIMIT $3`

type rowScanner interface {
	Scan(dest ...any) error
}

type pgHistory struct {
	pg PgPool
}

// NewHistoricalDataSource reads schedule and box score tables from Postgres.
func NewHistoricalDataSource(pg PgPool) HistoricalDataSource {
	return &pgHistory{pg: pg}
}

func scanMatch(row rowScanner, extra ...any) (models.Match, error) {
	var m models.Match
	dest := []any{
		&m.ID, &m.Season, &m.Week, &m.Date,
		&m.HomeTeam.ID, &m.HomeTeam.Abbreviation, &m.HomeTeam.Name,
		&m.AwayTeam.ID, &m.AwayTeam.Abbreviation, &m.AwayTeam.Name,
		&m.HomeScore, &m.AwayScore, &m.Temperature, &m.Wind,
	}
	err := row.Scan(append(dest, extra...)...)
	return m, err
}

func statDest(s *models.TeamGameStats) []any {
	return []any{
		&s.PassAttempts, &s.PassCompletions, &s.PassYards, &s.PassTouchdowns,
		&s.RushAttempts, &s.RushYards, &s.RushTouchdowns,
		&s.Interceptions, &s.Sacks, &s.FumblesLost,
	}
}

func (h *pgHistory) MatchesForTeam(ctx context.Context, teamID int64, before time.Time, limit int) ([]models.TeamMatch, error) {
	rows, err := h.pg.Query(ctx, teamHistoryQuery, teamID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query team history: %w", err)
	}
	defer rows.Close()

	var out []models.TeamMatch
	for rows.Next() {
		tm := models.TeamMatch{TeamID: teamID}
		extra := append(statDest(&tm.For), statDest(&tm.Against)...)
		m, err := scanMatch(rows, extra...)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team history: %w", err)
		}
		tm.Match = m
		out = append(out, tm)
	}
	return out, rows.Err()
}

func (h *pgHistory) PreviousMatch(ctx context.Context, teamID int64, before time.Time) (*models.Match, error) {
	row := h.pg.QueryRow(ctx, `SELECT `+matchColumns+matchJoins+`
		WHERE (g.home_team_id = $1 OR g.away_team_id = $1) AND g.game_date < $2
		ORDER BY g.game_date DESC
		LIMIT 1`, teamID, before)
	m, err := scanMatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query previous match: %w", err)
	}
	return &m, nil
}

func (h *pgHistory) MatchByID(ctx context.Context, id string) (*models.Match, error) {
	row := h.pg.QueryRow(ctx, `SELECT `+matchColumns+matchJoins+` WHERE g.id = $1`, id)
	m, err := scanMatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query match %s: %w", id, err)
	}
	return &m, nil
}

func (h *pgHistory) MatchesInWeek(ctx context.Context, season, week int) ([]models.Match, error) {
	rows, err := h.pg.Query(ctx, `SELECT `+matchColumns+matchJoins+`
		WHERE g.season = $1 AND g.week = $2
		ORDER BY g.game_date, g.id`, season, week)
	if err != nil {
		return nil, fmt.Errorf("failed to query week %d/%d: %w", season, week, err)
	}
	return collectMatches(rows)
}

func (h *pgHistory) PlayedMatches(ctx context.Context, seasons []int) ([]models.Match, error) {
	rows, err := h.pg.Query(ctx, `SELECT `+matchColumns+matchJoins+`
		WHERE g.season = ANY($1)
		  AND g.home_score IS NOT NULL AND g.away_score IS NOT NULL
		ORDER BY g.game_date, g.id`, seasons)
	if err != nil {
		return nil, fmt.Errorf("failed to query played matches: %w", err)
	}
	return collectMatches(rows)
}

func collectMatches(rows pgx.Rows) ([]models.Match, error) {
	defer rows.Close()
	out := []models.Match{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
