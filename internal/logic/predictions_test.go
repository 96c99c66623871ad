package logic

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/statstack/predictions-api/internal/features"
	"github.com/statstack/predictions-api/internal/models"
)

type serviceFixture struct {
	svc      PredictionService
	source   *MockSource
	registry *MockRegistry
	cache    *MemoryCache
	loader   *CountingLoader
	recorder *MockRecorder
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		source:   seasonFixture(),
		registry: &MockRegistry{ActiveFunc: activeVersion("v1")},
		cache:    NewMemoryCache(),
		loader:   &CountingLoader{},
		recorder: &MockRecorder{},
	}
	f.svc = NewPredictionService(PredictionConfig{
		Source:   f.source,
		Registry: f.registry,
		Cache:    f.cache,
		Loader:   f.loader.Load,
		Recorder: f.recorder,
		Logger:   zap.NewNop(),
	})
	return f
}

func TestPredictMatch_Upcoming(t *testing.T) {
	f := newServiceFixture(t)

	pred, err := f.svc.PredictMatch(context.Background(), "2025_04_BUF_KC", false)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if pred.HomeTeam != "KC" || pred.AwayTeam != "BUF" {
		t.Errorf("Unexpected teams %s vs %s", pred.HomeTeam, pred.AwayTeam)
	}
	if pred.ModelVersion != "v1" {
		t.Errorf("Expected model version v1, got %s", pred.ModelVersion)
	}
	if pred.MatchDate != "2025-09-28" {
		t.Errorf("Expected match date 2025-09-28, got %s", pred.MatchDate)
	}
	if pred.Actual != nil {
		t.Error("Upcoming match must not carry an actual block")
	}
	if pred.Prediction.Confidence != "high" {
		t.Errorf("Expected high confidence for p=0.7, got %s", pred.Prediction.Confidence)
	}
	if len(f.recorder.Events) != 1 || f.recorder.Events[0].Diagnostic {
		t.Errorf("Expected one live audit event, got %+v", f.recorder.Events)
	}
	if !f.cache.Has("prediction:2025_04_BUF_KC:live") {
		t.Error("Prediction was not cached under the live key")
	}
	if f.svc.State() != ModelLoaded {
		t.Errorf("Expected loaded state, got %s", f.svc.State())
	}
}

func TestPredictMatch_NoModel(t *testing.T) {
	f := newServiceFixture(t)
	f.registry.ActiveFunc = nil

	_, err := f.svc.PredictMatch(context.Background(), "2025_04_BUF_KC", false)
	if !errors.Is(err, ErrNoModel) {
		t.Fatalf("Expected ErrNoModel, got %v", err)
	}
	if f.loader.Calls.Load() != 0 {
		t.Error("Loader must not run without an active version")
	}
	if f.svc.State() != ModelUnloaded {
		t.Errorf("Expected unloaded state, got %s", f.svc.State())
	}
}

func TestPredictMatch_NotFound(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.PredictMatch(context.Background(), "1999_01_AAA_BBB", false)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestPredictMatch_AlreadyDecided(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.PredictMatch(context.Background(), "2025_03_BUF_KC", false)
	if !errors.Is(err, ErrAlreadyDecided) {
		t.Fatalf("Expected ErrAlreadyDecided, got %v", err)
	}
	if !IsClientError(err) {
		t.Error("AlreadyDecided should be a client error")
	}
}

func TestPredictMatch_Diagnostic(t *testing.T) {
	f := newServiceFixture(t)

	pred, err := f.svc.PredictMatch(context.Background(), "2025_03_BUF_KC", true)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if pred.Actual == nil {
		t.Fatal("Diagnostic prediction must include the actual result")
	}
	// 23-17 home win
	if pred.Actual.Winner != "KC" || pred.Actual.Spread != 6 || pred.Actual.Total != 40 {
		t.Errorf("Unexpected actual block %+v", *pred.Actual)
	}
	if pred.Actual.Correct == nil || !*pred.Actual.Correct {
		t.Error("Home pick on a home win should be marked correct")
	}
	if !f.cache.Has("prediction:2025_03_BUF_KC:diagnostic") {
		t.Error("Diagnostic prediction was not cached under the diagnostic key")
	}
	if ev := f.recorder.Events[0]; !ev.Diagnostic || ev.ActualHomeScore == nil || *ev.ActualHomeScore != 23 {
		t.Errorf("Unexpected audit event %+v", ev)
	}
}

func TestPredictMatch_DiagnosticUsesMaskedFeatures(t *testing.T) {
	f := newServiceFixture(t)
	model := &FakeModel{Prob: 0.6}
	f.loader.Model = model

	if _, err := f.svc.PredictMatch(context.Background(), "2025_03_BUF_KC", true); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	m, _ := f.source.MatchByID(context.Background(), "2025_03_BUF_KC")
	masked, _ := Mask(*m)
	want, err := features.NewExtractor(f.source, features.DefaultWindow).BuildMatch(context.Background(), masked)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	got := model.Inputs[0]
	for i := range want.Values {
		if got[i] != want.Values[i] {
			t.Fatalf("Feature %s differs: got %v want %v", want.Names[i], got[i], want.Values[i])
		}
	}
}

func TestPredictMatch_InsufficientData(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.PredictMatch(context.Background(), "2025_04_MIA_NYJ", false)
	if !errors.Is(err, features.ErrInsufficientData) {
		t.Fatalf("Expected insufficient data, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "cannot make prediction") {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestPredictMatch_ServedFromCache(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	first, err := f.svc.PredictMatch(ctx, "2025_04_BUF_KC", false)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := f.svc.PredictMatch(ctx, "2025_04_BUF_KC", false)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if f.source.MatchByIDCalls != 1 {
		t.Errorf("Expected one lookup, got %d", f.source.MatchByIDCalls)
	}
	if first.Prediction != second.Prediction {
		t.Error("Cached prediction differs from computed one")
	}
}

func TestPredictMatch_CacheFailuresAreMisses(t *testing.T) {
	f := newServiceFixture(t)
	f.cache.GetErr = errors.New("connection reset")
	f.cache.SetErr = errors.New("connection reset")

	if _, err := f.svc.PredictMatch(context.Background(), "2025_04_BUF_KC", false); err != nil {
		t.Fatalf("Cache outage must not fail predictions: %v", err)
	}
}

func TestModelHolder_LoadsOncePerVersion(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.svc.PredictMatch(ctx, "2025_04_BUF_KC", true)
		}()
	}
	wg.Wait()

	if n := f.loader.Calls.Load(); n != 1 {
		t.Errorf("Expected a single load, got %d", n)
	}

	f.svc.Reload()
	if f.svc.State() != ModelUnloaded {
		t.Errorf("Expected unloaded after reload, got %s", f.svc.State())
	}
	f.cache.DeletePrefix(ctx, "prediction:")
	if _, err := f.svc.PredictMatch(ctx, "2025_04_BUF_KC", false); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if n := f.loader.Calls.Load(); n != 2 {
		t.Errorf("Expected a reload after Reload(), got %d loads", n)
	}
}

func TestModelHolder_FailedLoadKeepsResident(t *testing.T) {
	var mu sync.Mutex
	version := "v1"
	registry := &MockRegistry{ActiveFunc: func(ctx context.Context) (*models.ModelVersion, error) {
		mu.Lock()
		defer mu.Unlock()
		return activeVersion(version)(ctx)
	}}
	loader := &CountingLoader{}
	holder := NewModelHolder(registry, loader.Load, zap.NewNop())

	first, err := holder.Ensure(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	mu.Lock()
	version = "v2"
	mu.Unlock()
	loader.Err = errors.New("winner artifact: no such file")

	if _, err := holder.Ensure(context.Background()); !errors.Is(err, ErrNoModel) {
		t.Fatalf("Expected ErrNoModel, got %v", err)
	}
	if holder.Current() != first {
		t.Error("Failed load replaced the resident model")
	}
	if holder.State() != ModelLoaded {
		t.Errorf("Expected loaded state, got %s", holder.State())
	}
}

func TestModelHolder_FirstLoadFailure(t *testing.T) {
	registry := &MockRegistry{ActiveFunc: activeVersion("v1")}
	loader := &CountingLoader{Err: errors.New("corrupt")}
	holder := NewModelHolder(registry, loader.Load, zap.NewNop())

	if _, err := holder.Ensure(context.Background()); !errors.Is(err, ErrNoModel) {
		t.Fatalf("Expected ErrNoModel, got %v", err)
	}
	if holder.Current() != nil || holder.State() != ModelUnloaded {
		t.Errorf("Expected nothing resident, got %v in state %s", holder.Current(), holder.State())
	}
}

func TestModelHolder_RejectsWidthMismatch(t *testing.T) {
	registry := &MockRegistry{ActiveFunc: activeVersion("v1")}
	loader := &CountingLoader{Model: &FakeModel{Width: 10}}
	holder := NewModelHolder(registry, loader.Load, zap.NewNop())

	if _, err := holder.Ensure(context.Background()); !errors.Is(err, ErrNoModel) {
		t.Fatalf("Expected ErrNoModel, got %v", err)
	}
}

func TestPredictWeek_Empty(t *testing.T) {
	f := newServiceFixture(t)

	week, err := f.svc.PredictWeek(context.Background(), 2025, 17, WeekOptions{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if week.Count != 0 || week.Predictions == nil || len(week.Predictions) != 0 {
		t.Errorf("Expected empty week, got %+v", week)
	}
}

func TestPredictWeek_PartialResults(t *testing.T) {
	f := newServiceFixture(t)

	week, err := f.svc.PredictWeek(context.Background(), 2025, 4, WeekOptions{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if week.Count != 2 {
		t.Fatalf("Expected 2 entries, got %d", week.Count)
	}

	ok, failed := week.Predictions[0], week.Predictions[1]
	if ok.MatchID != "2025_04_BUF_KC" || ok.Prediction == nil || ok.Error != "" {
		t.Errorf("Unexpected first entry %+v", ok)
	}
	if failed.MatchID != "2025_04_MIA_NYJ" || failed.Prediction != nil {
		t.Errorf("Unexpected second entry %+v", failed)
	}
	if failed.HomeTeam != "NYJ" || failed.AwayTeam != "MIA" || !strings.HasPrefix(failed.Error, "cannot make prediction") {
		t.Errorf("Unexpected error entry %+v", failed)
	}
	if f.cache.Has("predictions:week:2025:4:live") {
		t.Error("Week with failures must not be cached")
	}
}

func TestPredictWeek_PlayedMatchesNeedAllowPlayed(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	live, err := f.svc.PredictWeek(ctx, 2025, 3, WeekOptions{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if live.Count != 0 {
		t.Errorf("Played match leaked into live week: %+v", live.Predictions)
	}

	diag, err := f.svc.PredictWeek(ctx, 2025, 3, WeekOptions{AllowPlayed: true})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if diag.Count != 1 || diag.Predictions[0].Actual == nil {
		t.Fatalf("Expected one diagnostic entry, got %+v", diag.Predictions)
	}
	if !f.cache.Has("predictions:week:2025:3:diagnostic") {
		t.Error("Successful week was not cached")
	}
}

func TestPredictWeek_Simulation(t *testing.T) {
	f := newServiceFixture(t)

	opts := WeekOptions{Simulation: ParseSimulation("2025", "3")}
	week, err := f.svc.PredictWeek(context.Background(), 2025, 3, opts)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if week.Count != 1 {
		t.Fatalf("Simulated week should surface its played match, got %d", week.Count)
	}
	if e := week.Predictions[0]; e.Actual == nil || e.Actual.Winner != "KC" {
		t.Errorf("Expected masked result revealed in actual block, got %+v", e)
	}
	if !f.cache.Has("predictions:week:2025:3:live:sim2025.3") {
		t.Error("Simulated week cached under the wrong key")
	}
}

func TestPredictWeek_NoModelBecomesEntries(t *testing.T) {
	f := newServiceFixture(t)
	f.registry.ActiveFunc = nil

	week, err := f.svc.PredictWeek(context.Background(), 2025, 4, WeekOptions{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for _, e := range week.Predictions {
		if !strings.HasPrefix(e.Error, "no trained model available") {
			t.Errorf("Expected no-model entry, got %+v", e)
		}
	}
}

func TestPredictWeek_SourceFailure(t *testing.T) {
	f := newServiceFixture(t)
	f.source.WeekErr = errors.New("connection refused")

	if _, err := f.svc.PredictWeek(context.Background(), 2025, 4, WeekOptions{}); err == nil {
		t.Fatal("Expected error when the week cannot be listed")
	}
}

func TestModelInfo(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	info, err := f.svc.ModelInfo(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if info.Status != models.ModelStatusReady || info.Version != "v1" || info.Metrics == nil || info.Metrics.WinnerAccuracy != 0.64 {
		t.Errorf("Unexpected info %+v", info)
	}
	if f.loader.Calls.Load() != 0 {
		t.Error("ModelInfo must not load artifacts")
	}

	f.registry.ActiveFunc = nil
	info, err = f.svc.ModelInfo(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if info.Status != models.ModelStatusNoModel || info.Message == "" {
		t.Errorf("Expected no_model status, got %+v", info)
	}
}

func TestModelInfo_RegistryUnavailable(t *testing.T) {
	f := newServiceFixture(t)
	f.registry.ActiveFunc = func(ctx context.Context) (*models.ModelVersion, error) {
		return nil, errors.New("connection refused")
	}

	info, err := f.svc.ModelInfo(context.Background())
	if err != nil {
		t.Fatalf("Expected an empty state instead of an error, got %v", err)
	}
	if info.Status != models.ModelStatusNoModel {
		t.Errorf("Expected no_model status, got %q", info.Status)
	}
	if info.Message == "" || strings.Contains(info.Message, "connection refused") {
		t.Errorf("Expected a generic reason, got %q", info.Message)
	}
}

func TestFeatureImportance_Sorted(t *testing.T) {
	f := newServiceFixture(t)

	ranked, err := f.svc.FeatureImportance(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(ranked) != features.VectorLength {
		t.Fatalf("Expected %d entries, got %d", features.VectorLength, len(ranked))
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i].Importance > ranked[i-1].Importance {
			t.Fatalf("Not sorted at %d: %v > %v", i, ranked[i].Importance, ranked[i-1].Importance)
		}
	}
}

func TestActivateVersion(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	var activated string
	f.registry.ActivateFunc = func(ctx context.Context, version string) error {
		activated = version
		return nil
	}
	if _, err := f.svc.PredictMatch(ctx, "2025_04_BUF_KC", false); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if err := f.svc.ActivateVersion(ctx, "v2"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if activated != "v2" {
		t.Errorf("Registry not asked to activate v2, got %q", activated)
	}
	if f.cache.Has("prediction:2025_04_BUF_KC:live") {
		t.Error("Cached predictions survived activation")
	}
	if len(f.cache.Purged) != 2 || f.cache.Purged[0] != "prediction:" || f.cache.Purged[1] != "predictions:week:" {
		t.Errorf("Unexpected purged prefixes %v", f.cache.Purged)
	}
	if f.svc.State() != ModelUnloaded {
		t.Errorf("Expected unloaded after activation, got %s", f.svc.State())
	}
}

func TestActivateVersion_Unknown(t *testing.T) {
	f := newServiceFixture(t)
	f.registry.ActivateFunc = func(ctx context.Context, version string) error {
		return ErrVersionNotFound
	}

	if err := f.svc.ActivateVersion(context.Background(), "nope"); !errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("Expected ErrVersionNotFound, got %v", err)
	}
	if len(f.cache.Purged) != 0 {
		t.Error("Cache purged for a failed activation")
	}
}
