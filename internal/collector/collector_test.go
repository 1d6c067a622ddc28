package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/turfcast/track-conditions/internal/schedule"
	"github.com/turfcast/track-conditions/internal/store"
	"github.com/turfcast/track-conditions/internal/weather"
)

var passNow = time.Date(2025, time.October, 18, 10, 0, 0, 0, time.UTC)

func testRace(id string) schedule.RaceLocation {
	return schedule.RaceLocation{
		RaceID:      id,
		Venue:       "Newbury",
		Country:     "UK",
		Latitude:    51.4008,
		Longitude:   -1.3267,
		ScheduledAt: passNow.Add(4 * time.Hour),
	}
}

// fullObservation builds a week of hourly data ending at anchor, sufficient
// for a confident estimate.
func fullObservation(anchor time.Time) weather.RawObservation {
	series := func(v float64) []weather.Point {
		pts := make([]weather.Point, 7*24)
		for i := range pts {
			pts[i] = weather.Point{Time: anchor.Add(-time.Duration(7*24-1-i) * time.Hour), Value: v}
		}
		return pts
	}
	return weather.RawObservation{
		Series: map[string][]weather.Point{
			weather.VarPrecipitation:      series(0.2),
			weather.VarRain:               series(0.2),
			weather.VarTemperature:        series(10),
			weather.VarHumidity:           series(80),
			weather.VarSoilMoisture01:     series(0.28),
			weather.VarSoilMoisture13:     series(0.26),
			weather.VarSoilMoisture39:     series(0.24),
			weather.VarEvapotranspiration: series(0.05),
		},
	}
}

type fakeProvider struct {
	mu    sync.Mutex
	calls []string
	fetch func(ctx context.Context, req weather.FetchRequest) (weather.RawObservation, error)
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Fetch(ctx context.Context, req weather.FetchRequest) (weather.RawObservation, error) {
	p.mu.Lock()
	p.calls = append(p.calls, fmt.Sprintf("%.4f,%.4f", req.Latitude, req.Longitude))
	p.mu.Unlock()
	return p.fetch(ctx, req)
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type fakeStore struct {
	mu         sync.Mutex
	records    map[string]weather.WeatherRecord
	fresh      map[string]bool
	upsertErrs map[string]int // remaining failures per race id
	upserts    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records:    make(map[string]weather.WeatherRecord),
		fresh:      make(map[string]bool),
		upsertErrs: make(map[string]int),
	}
}

func (s *fakeStore) Upsert(_ context.Context, rec weather.WeatherRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.upsertErrs[rec.RaceID] > 0 {
		s.upsertErrs[rec.RaceID]--
		return errors.New("disk full")
	}
	s.records[rec.RaceID] = rec
	return nil
}

func (s *fakeStore) Get(_ context.Context, raceID string) (weather.WeatherRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[raceID]
	if !ok {
		return weather.WeatherRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *fakeStore) IsFresh(_ context.Context, raceID string, _ time.Duration, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fresh[raceID], nil
}

func newTestCollector(p weather.Provider, st store.Store) *Collector {
	return New(p, st, weather.NewEstimator(weather.DefaultEstimatorConfig()), Config{
		Parallelism:   2,
		RefreshMaxAge: 2 * time.Hour,
		HistoryDays:   7,
	})
}

func TestFreshRaceSkippedWithoutProviderCall(t *testing.T) {
	provider := &fakeProvider{fetch: func(_ context.Context, req weather.FetchRequest) (weather.RawObservation, error) {
		return fullObservation(req.End), nil
	}}
	st := newFakeStore()
	st.fresh["race-a"] = true

	col := newTestCollector(provider, st)
	summary := col.RunPass(context.Background(), []schedule.RaceLocation{testRace("race-a")}, passNow)

	if len(summary.Skipped) != 1 || summary.Skipped[0] != "race-a" {
		t.Fatalf("skipped = %v, want [race-a]", summary.Skipped)
	}
	if provider.callCount() != 0 {
		t.Fatalf("provider called %d times for a fresh race, want 0", provider.callCount())
	}
}

func TestFailureIsolatedPerRace(t *testing.T) {
	provider := &fakeProvider{fetch: func(_ context.Context, req weather.FetchRequest) (weather.RawObservation, error) {
		// Longitude of race-b is shifted below; reject just that one.
		if req.Longitude > 0 {
			return weather.RawObservation{}, weather.NewProviderError(weather.ProviderRejected,
				errors.New("invalid coordinate"))
		}
		return fullObservation(req.End), nil
	}}
	st := newFakeStore()

	raceB := testRace("race-b")
	raceB.Longitude = 1.0
	races := []schedule.RaceLocation{testRace("race-a"), raceB, testRace("race-c")}

	col := newTestCollector(provider, st)
	summary := col.RunPass(context.Background(), races, passNow)

	if len(summary.Succeeded) != 2 {
		t.Fatalf("succeeded = %v, want race-a and race-c", summary.Succeeded)
	}
	if len(summary.Failures) != 1 {
		t.Fatalf("failures = %+v, want exactly one", summary.Failures)
	}
	f := summary.Failures[0]
	if f.RaceID != "race-b" || f.Kind != FailRejected {
		t.Fatalf("failure = %+v, want race-b/%s", f, FailRejected)
	}

	if _, err := st.Get(context.Background(), "race-a"); err != nil {
		t.Fatalf("race-a record missing: %v", err)
	}
	if _, err := st.Get(context.Background(), "race-b"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("race-b must have no record, got %v", err)
	}
}

func TestPartialObservationStillSucceeds(t *testing.T) {
	provider := &fakeProvider{fetch: func(_ context.Context, req weather.FetchRequest) (weather.RawObservation, error) {
		obs := fullObservation(req.End)
		delete(obs.Series, weather.VarSoilMoisture39)
		obs.Missing = []string{weather.VarSoilMoisture39}
		return obs, weather.NewProviderError(weather.ProviderPartial, errors.New("missing 1 variable"))
	}}
	st := newFakeStore()

	col := newTestCollector(provider, st)
	summary := col.RunPass(context.Background(), []schedule.RaceLocation{testRace("race-a")}, passNow)

	if len(summary.Succeeded) != 1 {
		t.Fatalf("summary = %+v, want race-a succeeded on partial data", summary)
	}

	rec, err := st.Get(context.Background(), "race-a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.DataQuality != weather.QualityPartial {
		t.Fatalf("data quality = %q, want partial", rec.DataQuality)
	}
}

func TestInsufficientDataPreservesPriorRecord(t *testing.T) {
	provider := &fakeProvider{fetch: func(_ context.Context, _ weather.FetchRequest) (weather.RawObservation, error) {
		// Usable response carrying no series at all.
		return weather.RawObservation{Series: map[string][]weather.Point{}}, nil
	}}
	st := newFakeStore()

	prior := weather.WeatherRecord{RaceID: "race-a", Venue: "Newbury", FetchedAt: passNow.Add(-6 * time.Hour)}
	st.records["race-a"] = prior

	col := newTestCollector(provider, st)
	summary := col.RunPass(context.Background(), []schedule.RaceLocation{testRace("race-a")}, passNow)

	if len(summary.Failures) != 1 || summary.Failures[0].Kind != FailInsufficientData {
		t.Fatalf("failures = %+v, want insufficient_data", summary.Failures)
	}

	got, err := st.Get(context.Background(), "race-a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.FetchedAt.Equal(prior.FetchedAt) {
		t.Fatalf("prior record was touched: %+v", got)
	}
}

func TestStoreWriteRetriedOnce(t *testing.T) {
	provider := &fakeProvider{fetch: func(_ context.Context, req weather.FetchRequest) (weather.RawObservation, error) {
		return fullObservation(req.End), nil
	}}
	st := newFakeStore()
	st.upsertErrs["race-a"] = 1 // first write fails, retry succeeds

	col := newTestCollector(provider, st)
	summary := col.RunPass(context.Background(), []schedule.RaceLocation{testRace("race-a")}, passNow)

	if len(summary.Succeeded) != 1 {
		t.Fatalf("summary = %+v, want success after one retry", summary)
	}
	if st.upserts != 2 {
		t.Fatalf("upsert attempts = %d, want 2", st.upserts)
	}

	// Exhausted retries surface as a store failure.
	st2 := newFakeStore()
	st2.upsertErrs["race-a"] = 2
	col2 := newTestCollector(provider, st2)
	summary2 := col2.RunPass(context.Background(), []schedule.RaceLocation{testRace("race-a")}, passNow)
	if len(summary2.Failures) != 1 || summary2.Failures[0].Kind != FailStore {
		t.Fatalf("failures = %+v, want store_error", summary2.Failures)
	}
}

func TestPassTimeoutAbandonsInFlightRaces(t *testing.T) {
	provider := &fakeProvider{fetch: func(ctx context.Context, _ weather.FetchRequest) (weather.RawObservation, error) {
		<-ctx.Done()
		return weather.RawObservation{}, weather.NewProviderError(weather.ProviderUnavailable, ctx.Err())
	}}
	st := newFakeStore()

	col := New(provider, st, weather.NewEstimator(weather.DefaultEstimatorConfig()), Config{
		Parallelism:   1,
		RefreshMaxAge: 2 * time.Hour,
		PassTimeout:   50 * time.Millisecond,
		HistoryDays:   7,
	})

	races := []schedule.RaceLocation{testRace("race-a"), testRace("race-b"), testRace("race-c")}
	summary := col.RunPass(context.Background(), races, passNow)

	if len(summary.Failures) != 3 {
		t.Fatalf("failures = %+v, want all three races failed", summary.Failures)
	}
	for _, f := range summary.Failures {
		if f.Kind != FailTimeout {
			t.Fatalf("failure kind = %s for %s, want %s", f.Kind, f.RaceID, FailTimeout)
		}
	}
}

func TestLastSummaryRetained(t *testing.T) {
	provider := &fakeProvider{fetch: func(_ context.Context, req weather.FetchRequest) (weather.RawObservation, error) {
		return fullObservation(req.End), nil
	}}
	st := newFakeStore()

	col := newTestCollector(provider, st)

	if _, ok := col.LastSummary(); ok {
		t.Fatalf("no summary should exist before the first pass")
	}

	summary := col.RunPass(context.Background(), []schedule.RaceLocation{testRace("race-a")}, passNow)

	last, ok := col.LastSummary()
	if !ok {
		t.Fatalf("summary missing after a pass")
	}
	if last.RunID != summary.RunID {
		t.Fatalf("last summary run id = %s, want %s", last.RunID, summary.RunID)
	}
	if len(last.Succeeded) != 1 {
		t.Fatalf("last summary = %+v", last)
	}
}
