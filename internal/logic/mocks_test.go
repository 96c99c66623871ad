package logic

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/statstack/predictions-api/internal/features"
	"github.com/statstack/predictions-api/internal/ml"
	"github.com/statstack/predictions-api/internal/models"
)

// MockSource is an in-memory HistoricalDataSource
type MockSource struct {
	mu             sync.Mutex
	matches        []models.Match
	stats          map[string]map[int64]models.TeamGameStats
	MatchByIDCalls int
	WeekErr        error
}

func NewMockSource() *MockSource {
	return &MockSource{stats: make(map[string]map[int64]models.TeamGameStats)}
}

func (s *MockSource) Add(m models.Match, home, away models.TeamGameStats) {
	s.matches = append(s.matches, m)
	s.stats[m.ID] = map[int64]models.TeamGameStats{m.HomeTeam.ID: home, m.AwayTeam.ID: away}
}

func (s *MockSource) MatchesForTeam(ctx context.Context, teamID int64, before time.Time, limit int) ([]models.TeamMatch, error) {
	var out []models.TeamMatch
	for _, m := range s.matches {
		if !m.Played() || !m.Date.Before(before) {
			continue
		}
		var opp int64
		switch teamID {
		case m.HomeTeam.ID:
			opp = m.AwayTeam.ID
		case m.AwayTeam.ID:
			opp = m.HomeTeam.ID
		default:
			continue
		}
		out = append(out, models.TeamMatch{Match: m, TeamID: teamID, For: s.stats[m.ID][teamID], Against: s.stats[m.ID][opp]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Match.Date.After(out[j].Match.Date) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MockSource) PreviousMatch(ctx context.Context, teamID int64, before time.Time) (*models.Match, error) {
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

func (s *MockSource) MatchByID(ctx context.Context, id string) (*models.Match, error) {
	s.mu.Lock()
	s.MatchByIDCalls++
	s.mu.Unlock()
	for _, m := range s.matches {
		if m.ID == id {
			m := m
			return &m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *MockSource) MatchesInWeek(ctx context.Context, season, week int) ([]models.Match, error) {
	if s.WeekErr != nil {
		return nil, s.WeekErr
	}
	out := []models.Match{}
	for _, m := range s.matches {
		if m.Season == season && m.Week == week {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MockSource) PlayedMatches(ctx context.Context, seasons []int) ([]models.Match, error) {
	var out []models.Match
	for _, m := range s.matches {
		for _, season := range seasons {
			if m.Season == season && m.Played() {
				out = append(out, m)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// MockRegistry
type MockRegistry struct {
	ActiveFunc   func(ctx context.Context) (*models.ModelVersion, error)
	ActivateFunc func(ctx context.Context, version string) error
	Created      []models.ModelVersion
	ActiveCalls  atomic.Int32
}

func (m *MockRegistry) Active(ctx context.Context) (*models.ModelVersion, error) {
	m.ActiveCalls.Add(1)
	if m.ActiveFunc != nil {
		return m.ActiveFunc(ctx)
	}
	return nil, nil
}

func (m *MockRegistry) Get(ctx context.Context, version string) (*models.ModelVersion, error) {
	for _, v := range m.Created {
		if v.Version == version {
			return &v, nil
		}
	}
	return nil, ErrVersionNotFound
}

func (m *MockRegistry) List(ctx context.Context) ([]models.ModelVersion, error) {
	return m.Created, nil
}

func (m *MockRegistry) Create(ctx context.Context, v models.ModelVersion) error {
	m.Created = append(m.Created, v)
	return nil
}

func (m *MockRegistry) Activate(ctx context.Context, version string) error {
	if m.ActivateFunc != nil {
		return m.ActivateFunc(ctx, version)
	}
	return nil
}

// MemoryCache is a PredictionCache backed by a map
type MemoryCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	Purged  []string
	SetErr  error
	GetErr  error
	SetKeys []string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string][]byte)}
}

func (c *MemoryCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GetErr != nil {
		return false, c.GetErr
	}
	data, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (c *MemoryCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SetErr != nil {
		return c.SetErr
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = data
	c.SetKeys = append(c.SetKeys, key)
	return nil
}

func (c *MemoryCache) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Purged = append(c.Purged, prefix)
	n := 0
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
			n++
		}
	}
	return n, nil
}

func (c *MemoryCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// FakeModel returns a fixed prediction and remembers its inputs
type FakeModel struct {
	mu     sync.Mutex
	Inputs [][]float64
	Prob   float64
	Width  int
}

func (m *FakeModel) Predict(x [][]float64) ([]models.Prediction, error) {
	m.mu.Lock()
	m.Inputs = append(m.Inputs, x...)
	m.mu.Unlock()

	out := make([]models.Prediction, len(x))
	for i, row := range x {
		if len(row) != m.FeatureCount() {
			return nil, ml.ErrFeatureMismatch
		}
		winner := ml.WinnerAway
		if m.Prob > 0.5 {
			winner = ml.WinnerHome
		}
		out[i] = models.Prediction{
			HomeWinProbability: m.Prob,
			PredictedWinner:    winner,
			PredictedSpread:    3,
			PredictedTotal:     45,
			PredictedHomeScore: 24,
			PredictedAwayScore: 21,
			Confidence:         ml.Confidence(m.Prob),
		}
	}
	return out, nil
}

func (m *FakeModel) FeatureCount() int {
	if m.Width > 0 {
		return m.Width
	}
	return features.VectorLength
}

func (m *FakeModel) FeatureNames() []string { return features.Names() }

func (m *FakeModel) FeatureImportance() ([]float64, error) {
	out := make([]float64, m.FeatureCount())
	for i := range out {
		out[i] = float64(i%5) / 10
	}
	return out, nil
}

// CountingLoader hands out models and counts loads
type CountingLoader struct {
	Calls atomic.Int32
	Err   error
	Model PredictionModel
	Delay time.Duration
}

func (l *CountingLoader) Load(paths models.ArtifactPaths) (PredictionModel, error) {
	l.Calls.Add(1)
	if l.Delay > 0 {
		time.Sleep(l.Delay)
	}
	if l.Err != nil {
		return nil, l.Err
	}
	if l.Model != nil {
		return l.Model, nil
	}
	return &FakeModel{Prob: 0.7}, nil
}

// MockRecorder collects audit events
type MockRecorder struct {
	mu     sync.Mutex
	Events []models.PredictionEvent
}

func (r *MockRecorder) Record(e models.PredictionEvent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, e)
	return true
}

var (
	teamA = models.Team{ID: 1, Abbreviation: "KC"}
	teamB = models.Team{ID: 2, Abbreviation: "BUF"}
	teamC = models.Team{ID: 3, Abbreviation: "NYJ"}
	teamD = models.Team{ID: 4, Abbreviation: "MIA"}
	week1 = time.Date(2025, 9, 7, 17, 0, 0, 0, time.UTC)
)

func intp(v int) *int { return &v }

func boxScore(yds int) models.TeamGameStats {
	return models.TeamGameStats{
		PassAttempts: 30, PassCompletions: 20, PassYards: yds, PassTouchdowns: 2,
		RushAttempts: 25, RushYards: 100, RushTouchdowns: 1,
		Interceptions: 1, Sacks: 2, FumblesLost: 0,
	}
}

// seasonFixture: KC hosts BUF in weeks 1-3 (played), then week 4 has
// KC-BUF and NYJ-MIA, both upcoming. NYJ and MIA have no history.
func seasonFixture() *MockSource {
	src := NewMockSource()
	for w := 1; w <= 3; w++ {
		src.Add(models.Match{
			ID:        "2025_0" + string(rune('0'+w)) + "_BUF_KC",
			Season:    2025,
			Week:      w,
			Date:      week1.AddDate(0, 0, 7*(w-1)),
			HomeTeam:  teamA,
			AwayTeam:  teamB,
			HomeScore: intp(20 + w),
			AwayScore: intp(17),
		}, boxScore(250), boxScore(220))
	}
	src.Add(models.Match{ID: "2025_04_BUF_KC", Season: 2025, Week: 4, Date: week1.AddDate(0, 0, 21), HomeTeam: teamA, AwayTeam: teamB},
		models.TeamGameStats{}, models.TeamGameStats{})
	src.Add(models.Match{ID: "2025_04_MIA_NYJ", Season: 2025, Week: 4, Date: week1.AddDate(0, 0, 21), HomeTeam: teamC, AwayTeam: teamD},
		models.TeamGameStats{}, models.TeamGameStats{})
	return src
}

func activeVersion(v string) func(ctx context.Context) (*models.ModelVersion, error) {
	return func(ctx context.Context) (*models.ModelVersion, error) {
		return &models.ModelVersion{
			Version:         v,
			CreatedAt:       week1,
			TrainingSeasons: []int{2023, 2024},
			TrainingSamples: 512,
			FeatureCount:    features.VectorLength,
			Metrics:         models.TrainingMetrics{WinnerAccuracy: 0.64, SpreadMAE: 10.2, TotalMAE: 9.8, Folds: 5},
			Active:          true,
		}, nil
	}
}
