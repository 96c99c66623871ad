package training

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/statstack/predictions-api/internal/logic"
	"github.com/statstack/predictions-api/internal/models"
)

// memorySource is a read-only schedule with box scores
type memorySource struct {
	matches []models.Match
	stats   map[string]map[int64]models.TeamGameStats
	err     error
}

func (s *memorySource) MatchesForTeam(ctx context.Context, teamID int64, before time.Time, limit int) ([]models.TeamMatch, error) {
	var out []models.TeamMatch
	for _, m := range s.matches {
		if !m.Played() || !m.Date.Before(before) {
			continue
		}
		if m.HomeTeam.ID != teamID && m.AwayTeam.ID != teamID {
			continue
		}
		opp := m.HomeTeam.ID
		if opp == teamID {
			opp = m.AwayTeam.ID
		}
		out = append(out, models.TeamMatch{Match: m, TeamID: teamID, For: s.stats[m.ID][teamID], Against: s.stats[m.ID][opp]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Match.Date.After(out[j].Match.Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memorySource) PreviousMatch(ctx context.Context, teamID int64, before time.Time) (*models.Match, error) {
	var prev *models.Match
	for i, m := range s.matches {
		if (m.HomeTeam.ID == teamID || m.AwayTeam.ID == teamID) && m.Date.Before(before) {
			if prev == nil || m.Date.After(prev.Date) {
				prev = &s.matches[i]
			}
		}
	}
	return prev, nil
}

func (s *memorySource) MatchByID(ctx context.Context, id string) (*models.Match, error) {
	for _, m := range s.matches {
		if m.ID == id {
			return &m, nil
		}
	}
	return nil, logic.ErrNotFound
}

func (s *memorySource) MatchesInWeek(ctx context.Context, season, week int) ([]models.Match, error) {
	out := []models.Match{}
	for _, m := range s.matches {
		if m.Season == season && m.Week == week {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memorySource) PlayedMatches(ctx context.Context, seasons []int) ([]models.Match, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Match
	for _, m := range s.matches {
		for _, season := range seasons {
			if m.Season == season && m.Played() {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

var strength = map[int64]int{1: 7, 2: 3, 3: 0, 4: -4}

// leagueFixture plays two matches per week between four teams of uneven strength.
func leagueFixture(weeks int) *memorySource {
	teams := map[int64]models.Team{
		1: {ID: 1, Abbreviation: "KC"},
		2: {ID: 2, Abbreviation: "BUF"},
		3: {ID: 3, Abbreviation: "NYJ"},
		4: {ID: 4, Abbreviation: "MIA"},
	}
	rounds := [][2][2]int64{
		{{1, 2}, {3, 4}},
		{{1, 3}, {2, 4}},
		{{1, 4}, {2, 3}},
	}
	kickoff := time.Date(2024, 9, 8, 17, 0, 0, 0, time.UTC)

	src := &memorySource{stats: map[string]map[int64]models.TeamGameStats{}}
	for w := 1; w <= weeks; w++ {
		for slot, pair := range rounds[w%3] {
			home, away := pair[0], pair[1]
			if w%2 == 0 {
				home, away = away, home
			}
			hs := 20 + strength[home] + (w*7)%5 + 2
			as := 20 + strength[away] + (w*3)%4
			id := fmt.Sprintf("2024_%02d_%s_%s", w, teams[away].Abbreviation, teams[home].Abbreviation)
			src.matches = append(src.matches, models.Match{
				ID:        id,
				Season:    2024,
				Week:      w,
				Date:      kickoff.AddDate(0, 0, 7*(w-1)).Add(time.Duration(slot) * 3 * time.Hour),
				HomeTeam:  teams[home],
				AwayTeam:  teams[away],
				HomeScore: &hs,
				AwayScore: &as,
			})
			src.stats[id] = map[int64]models.TeamGameStats{home: line(home, w), away: line(away, w)}
		}
	}
	return src
}

func line(team int64, week int) models.TeamGameStats {
	s := strength[team]
	return models.TeamGameStats{
		PassAttempts: 32, PassCompletions: 20 + s/2, PassYards: 220 + 10*s + week%3, PassTouchdowns: 2,
		RushAttempts: 26, RushYards: 110 + 4*s, RushTouchdowns: 1,
		Interceptions: 1, Sacks: 2 - s/4, FumblesLost: week % 2,
	}
}

// recordingRegistry keeps created versions and activation order
type recordingRegistry struct {
	mu         sync.Mutex
	created    []models.ModelVersion
	activated  []string
	createErr  error
	activeName string
}

func (r *recordingRegistry) Active(ctx context.Context) (*models.ModelVersion, error) {
	for _, v := range r.created {
		if v.Version == r.activeName {
			return &v, nil
		}
	}
	return nil, nil
}

func (r *recordingRegistry) Get(ctx context.Context, version string) (*models.ModelVersion, error) {
	return nil, logic.ErrVersionNotFound
}

func (r *recordingRegistry) List(ctx context.Context) ([]models.ModelVersion, error) {
	return r.created, nil
}

func (r *recordingRegistry) Create(ctx context.Context, v models.ModelVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.created = append(r.created, v)
	return nil
}

func (r *recordingRegistry) Activate(ctx context.Context, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.created {
		if v.Version == version {
			r.activated = append(r.activated, version)
			r.activeName = version
			return nil
		}
	}
	return errors.New("unknown version")
}

type purgeRecorder struct {
	prefixes []string
}

func (c *purgeRecorder) Get(ctx context.Context, key string, dest any) (bool, error) {
	return false, nil
}

func (c *purgeRecorder) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return nil
}

func (c *purgeRecorder) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	c.prefixes = append(c.prefixes, prefix)
	return 0, nil
}

type notifierFunc func(ctx context.Context, version string) error

func (f notifierFunc) NotifyActivated(ctx context.Context, version string) error {
	return f(ctx, version)
}
