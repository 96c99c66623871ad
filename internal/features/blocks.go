package features

import (
	"math"
	"time"

	"github.com/statstack/predictions-api/internal/models"
)

// Feature is one named numeric input
type Feature struct {
	Name  string
	Value float64
}

// Set is an ordered block of features
type Set []Feature

// Map returns the set keyed by name.
func (s Set) Map() map[string]float64 {
	out := make(map[string]float64, len(s))
	for _, f := range s {
		out[f.Name] = f.Value
	}
	return out
}

// Vector is the flat model input with its column names
type Vector struct {
	Names  []string
	Values []float64
}

func (v Vector) Len() int { return len(v.Values) }

const (
	homePrefix = "home_"
	awayPrefix = "away_"
)

// PerTeamCount is the width of one side of the vector.
var PerTeamCount = len(sideBlock(nil, models.Match{}, 0, nil))

// VectorLength is the width of a complete match vector.
var VectorLength = 2 * PerTeamCount

// Names lists the match vector columns in order. It runs the same block
// builders as BuildMatch over empty input so names and positions cannot drift.
func Names() []string {
	side := sideBlock(nil, models.Match{}, 0, nil)
	return join(side, side).Names
}

func join(home, away Set) Vector {
	v := Vector{
		Names:  make([]string, 0, len(home)+len(away)),
		Values: make([]float64, 0, len(home)+len(away)),
	}
	for _, f := range home {
		v.Names = append(v.Names, homePrefix+f.Name)
		v.Values = append(v.Values, f.Value)
	}
	for _, f := range away {
		v.Names = append(v.Names, awayPrefix+f.Name)
		v.Values = append(v.Values, f.Value)
	}
	return v
}

func sideBlock(history []models.TeamMatch, m models.Match, teamID int64, prev *models.Match) Set {
	var s Set
	s = append(s, offensiveBlock(history)...)
	s = append(s, defensiveBlock(history)...)
	s = append(s, situationalBlock(m, teamID, prev)...)
	s = append(s, trendBlock(history)...)
	return s
}

func offensiveBlock(history []models.TeamMatch) Set {
	var passYds, passTDs, compPct, rushYds, rushTDs, totalYds, points, turnovers float64
	for _, tm := range history {
		passYds += float64(tm.For.PassYards)
		passTDs += float64(tm.For.PassTouchdowns)
		compPct += tm.For.CompletionPct()
		rushYds += float64(tm.For.RushYards)
		rushTDs += float64(tm.For.RushTouchdowns)
		totalYds += float64(tm.For.TotalYards())
		points += float64(tm.PointsFor())
		turnovers += float64(tm.For.Turnovers())
	}
	n := float64(len(history))
	return Set{
		{"off_pass_yards", mean(passYds, n)},
		{"off_pass_tds", mean(passTDs, n)},
		{"off_completion_pct", mean(compPct, n)},
		{"off_rush_yards", mean(rushYds, n)},
		{"off_rush_tds", mean(rushTDs, n)},
		{"off_total_yards", mean(totalYds, n)},
		{"off_points_scored", mean(points, n)},
		{"off_turnovers", mean(turnovers, n)},
		{"off_games_played", n},
	}
}

// defensiveBlock reads the opponents' stat lines: what a defense allowed is
// by definition what the other offense produced.
func defensiveBlock(history []models.TeamMatch) Set {
	var passYds, rushYds, totalYds, points, sacks, ints, forced float64
	for _, tm := range history {
		passYds += float64(tm.Against.PassYards)
		rushYds += float64(tm.Against.RushYards)
		totalYds += float64(tm.Against.TotalYards())
		points += float64(tm.PointsAgainst())
		sacks += float64(tm.Against.Sacks)
		ints += float64(tm.Against.Interceptions)
		forced += float64(tm.Against.Turnovers())
	}
	n := float64(len(history))
	return Set{
		{"def_pass_yards_allowed", mean(passYds, n)},
		{"def_rush_yards_allowed", mean(rushYds, n)},
		{"def_total_yards_allowed", mean(totalYds, n)},
		{"def_points_allowed", mean(points, n)},
		{"def_sacks", mean(sacks, n)},
		{"def_interceptions", mean(ints, n)},
		{"def_turnovers_forced", mean(forced, n)},
	}
}

func situationalBlock(m models.Match, teamID int64, prev *models.Match) Set {
	isHome := 0.0
	if m.HomeTeam.ID == teamID {
		isHome = 1
	}

	temperature := float64(NeutralTemperature)
	if m.Temperature != nil {
		temperature = float64(*m.Temperature)
	}
	wind := float64(NeutralWind)
	if m.Wind != nil {
		wind = float64(*m.Wind)
	}

	rest := float64(DefaultRestDays)
	if prev != nil && prev.Season == m.Season && prev.Date.Before(m.Date) {
		rest = float64(daysBetween(prev.Date, m.Date))
	}

	return Set{
		{"is_home", isHome},
		{"temperature", temperature},
		{"wind", wind},
		{"rest_days", rest},
	}
}

// trendBlock expects history most recent first.
func trendBlock(history []models.TeamMatch) Set {
	winPct := 0.5
	if len(history) > 0 {
		var points float64
		for _, tm := range history {
			switch tm.Outcome() {
			case 1:
				points++
			case 0:
				points += 0.5
			}
		}
		winPct = points / float64(len(history))
	}

	return Set{
		{"recent_win_pct", winPct},
		{"current_streak", float64(streak(history))},
	}
}

// streak counts consecutive identical outcomes from the most recent match.
// A tie ends the streak.
func streak(history []models.TeamMatch) int {
	if len(history) == 0 {
		return 0
	}
	first := history[0].Outcome()
	if first == 0 {
		return 0
	}
	n := 0
	for _, tm := range history {
		if tm.Outcome() != first {
			break
		}
		n++
	}
	return n * first
}

func mean(sum, n float64) float64 {
	if n == 0 {
		return 0
	}
	return sum / n
}

func daysBetween(from, to time.Time) int {
	return int(math.Round(to.Sub(from).Hours() / 24))
}
