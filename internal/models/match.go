package models

import "time"

// Team identifies a franchise
type Team struct {
	ID           int64  `json:"id"`
	Abbreviation string `json:"abbreviation"`
	Name         string `json:"name,omitempty"`
}

// Match is a scheduled or completed game between two teams
type Match struct {
	ID          string    `json:"match_id"`
	Season      int       `json:"season"`
	Week        int       `json:"week"`
	Date        time.Time `json:"match_date"`
	HomeTeam    Team      `json:"home_team"`
	AwayTeam    Team      `json:"away_team"`
	HomeScore   *int      `json:"home_score"`
	AwayScore   *int      `json:"away_score"`
	Temperature *int      `json:"temperature,omitempty"`
	Wind        *int      `json:"wind,omitempty"`
}

// Played reports whether both final scores are known.
func (m Match) Played() bool {
	return m.HomeScore != nil && m.AwayScore != nil
}

const (
	ResultHome = "home"
	ResultAway = "away"
	ResultTie  = "tie"
)

// Result names the side that won a played match, "" before kickoff.
func (m Match) Result() string {
	if !m.Played() {
		return ""
	}
	switch {
	case *m.HomeScore > *m.AwayScore:
		return ResultHome
	case *m.AwayScore > *m.HomeScore:
		return ResultAway
	default:
		return ResultTie
	}
}

// HomeAbbreviation falls back to "UNK" for matches with an unresolved team.
func (m Match) HomeAbbreviation() string {
	if m.HomeTeam.Abbreviation == "" {
		return "UNK"
	}
	return m.HomeTeam.Abbreviation
}

func (m Match) AwayAbbreviation() string {
	if m.AwayTeam.Abbreviation == "" {
		return "UNK"
	}
	return m.AwayTeam.Abbreviation
}

// TeamGameStats is one team's box score line for one match
type TeamGameStats struct {
	PassAttempts    int `json:"pass_attempts"`
	PassCompletions int `json:"pass_completions"`
	PassYards       int `json:"pass_yards"`
	PassTouchdowns  int `json:"pass_touchdowns"`
	RushAttempts    int `json:"rush_attempts"`
	RushYards       int `json:"rush_yards"`
	RushTouchdowns  int `json:"rush_touchdowns"`
	Interceptions   int `json:"interceptions"`
	Sacks           int `json:"sacks"`
	FumblesLost     int `json:"fumbles_lost"`
}

// CompletionPct returns completions per 100 attempts, 0 without attempts.
func (s TeamGameStats) CompletionPct() float64 {
	if s.PassAttempts == 0 {
		return 0
	}
	return float64(s.PassCompletions) * 100 / float64(s.PassAttempts)
}

func (s TeamGameStats) TotalYards() int {
	return s.PassYards + s.RushYards
}

func (s TeamGameStats) Turnovers() int {
	return s.Interceptions + s.FumblesLost
}

// TeamMatch is a played match seen from one participant, carrying both stat lines
type TeamMatch struct {
	Match   Match         `json:"match"`
	TeamID  int64         `json:"team_id"`
	For     TeamGameStats `json:"for"`
	Against TeamGameStats `json:"against"`
}

func (t TeamMatch) IsHome() bool {
	return t.Match.HomeTeam.ID == t.TeamID
}

// PointsFor returns the team's final score. Only valid for played matches.
func (t TeamMatch) PointsFor() int {
	if t.IsHome() {
		return *t.Match.HomeScore
	}
	return *t.Match.AwayScore
}

func (t TeamMatch) PointsAgainst() int {
	if t.IsHome() {
		return *t.Match.AwayScore
	}
	return *t.Match.HomeScore
}

// Outcome is +1 for a win, -1 for a loss and 0 for a tie.
func (t TeamMatch) Outcome() int {
	switch pf, pa := t.PointsFor(), t.PointsAgainst(); {
	case pf > pa:
		return 1
	case pf < pa:
		return -1
	default:
		return 0
	}
}
