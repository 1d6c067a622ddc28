// Package collector drives one collection pass: for every pending race it
// fetches raw weather, aggregates windows, derives condition indicators and
// upserts the result, with per-race failure isolation.
package collector

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/turfcast/track-conditions/internal/schedule"
	"github.com/turfcast/track-conditions/internal/store"
	"github.com/turfcast/track-conditions/internal/weather"
)

// Failure kinds reported in the run summary.
const (
	FailUnavailable      = "provider_unavailable"
	FailRejected         = "provider_rejected"
	FailInsufficientData = "insufficient_data"
	FailStore            = "store_error"
	FailTimeout          = "timeout"
)

// Config holds the orchestration knobs.
type Config struct {
	// Parallelism bounds the number of races processed concurrently.
	Parallelism int

	// RefreshMaxAge is how recently a record must have been fetched for the
	// race to be skipped on this pass.
	RefreshMaxAge time.Duration

	// PassTimeout is the wall-clock bound for one pass. In-flight races at
	// the deadline are reported as failed with a timeout kind; races already
	// persisted keep their results.
	PassTimeout time.Duration

	// HistoryDays is how far back the provider request reaches for trailing
	// window context.
	HistoryDays int
}

// Failure describes one race that did not produce a record this pass.
type Failure struct {
	RaceID string `json:"raceId"`
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// Summary is the outcome of one collection pass.
type Summary struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Succeeded  []string  `json:"succeeded"`
	Skipped    []string  `json:"skipped"`
	Failures   []Failure `json:"failures"`
}

// FailedIDs lists the race ids that failed, in sorted order.
func (s Summary) FailedIDs() []string {
	ids := make([]string, 0, len(s.Failures))
	for _, f := range s.Failures {
		ids = append(ids, f.RaceID)
	}
	sort.Strings(ids)
	return ids
}

// Collector runs collection passes. Safe for concurrent use; the last
// completed summary is retained for the read API.
type Collector struct {
	provider  weather.Provider
	store     store.Store
	estimator *weather.Estimator
	cfg       Config

	mu   sync.Mutex
	last *Summary
}

// New builds a Collector. Parallelism below 1 is treated as 1.
func New(provider weather.Provider, st store.Store, estimator *weather.Estimator, cfg Config) *Collector {
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 7
	}
	return &Collector{
		provider:  provider,
		store:     st,
		estimator: estimator,
		cfg:       cfg,
	}
}

// LastSummary returns the most recently completed pass summary, if any.
func (c *Collector) LastSummary() (Summary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Summary{}, false
	}
	return *c.last, true
}

type result struct {
	raceID  string
	skipped bool
	failure *Failure
}

// RunPass processes the given races through a bounded worker pool. Order
// across races is not significant; each race runs its three stages strictly
// in sequence. One race's failure never aborts the rest.
func (c *Collector) RunPass(ctx context.Context, races []schedule.RaceLocation, now time.Time) Summary {
	summary := Summary{
		RunID:     uuid.NewString(),
		StartedAt: now.UTC(),
	}

	if c.cfg.PassTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.PassTimeout)
		defer cancel()
	}

	jobs := make(chan schedule.RaceLocation)
	results := make(chan result)

	var wg sync.WaitGroup
	for i := 0; i < c.cfg.Parallelism; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for race := range jobs {
				results <- c.collectOne(ctx, race, now)
			}
		}()
	}

	// Races not yet handed to a worker when the deadline hits are abandoned;
	// the slice is written before jobs closes and read after results drains.
	var notStarted []schedule.RaceLocation
	go func() {
		defer close(jobs)
		for i, race := range races {
			select {
			case jobs <- race:
			case <-ctx.Done():
				notStarted = races[i:]
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		switch {
		case r.failure != nil:
			summary.Failures = append(summary.Failures, *r.failure)
		case r.skipped:
			summary.Skipped = append(summary.Skipped, r.raceID)
		default:
			summary.Succeeded = append(summary.Succeeded, r.raceID)
		}
	}

	for _, race := range notStarted {
		summary.Failures = append(summary.Failures, Failure{
			RaceID: race.RaceID,
			Kind:   FailTimeout,
			Reason: "pass deadline exceeded before start",
		})
	}

	sort.Strings(summary.Succeeded)
	sort.Strings(summary.Skipped)
	sort.Slice(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].RaceID < summary.Failures[j].RaceID
	})
	summary.FinishedAt = time.Now().UTC()

	log.Printf("collector: pass %s done: %d succeeded, %d failed, %d skipped",
		summary.RunID, len(summary.Succeeded), len(summary.Failures), len(summary.Skipped))

	c.mu.Lock()
	c.last = &summary
	c.mu.Unlock()

	return summary
}

// collectOne runs the per-race state machine:
// Pending -> Fetching -> {Succeeded, Failed, Skipped}.
func (c *Collector) collectOne(ctx context.Context, race schedule.RaceLocation, now time.Time) result {
	if ctx.Err() != nil {
		return failed(race.RaceID, FailTimeout, "pass deadline exceeded")
	}

	fresh, err := c.store.IsFresh(ctx, race.RaceID, c.cfg.RefreshMaxAge, now)
	if err != nil {
		// Freshness is an optimization; a read failure only costs a refetch.
		log.Printf("collector: freshness check failed for %s: %v", race.RaceID, err)
	}
	if fresh {
		return result{raceID: race.RaceID, skipped: true}
	}

	anchor := race.ScheduledAt.UTC()
	req := weather.FetchRequest{
		Latitude:  race.Latitude,
		Longitude: race.Longitude,
		Start:     anchor.AddDate(0, 0, -c.cfg.HistoryDays),
		End:       anchor,
		Variables: weather.DefaultVariables(),
		Units:     weather.UnitsForCountry(race.Country),
	}

	obs, err := c.provider.Fetch(ctx, req)
	if err != nil {
		switch weather.ErrorKind(err) {
		case weather.ProviderPartial:
			// Degraded success: estimate from what came back.
			log.Printf("collector: partial observation for %s: %v", race.RaceID, err)
		case weather.ProviderRejected:
			return failed(race.RaceID, FailRejected, err.Error())
		default:
			if ctx.Err() != nil {
				return failed(race.RaceID, FailTimeout, "pass deadline exceeded during fetch")
			}
			return failed(race.RaceID, FailUnavailable, err.Error())
		}
	}

	metrics := weather.Aggregate(obs, anchor)
	soil := weather.SoilMoistureByDepth(obs, anchor)

	indicators, err := c.estimator.Estimate(metrics, soil)
	if err != nil {
		// Prior record, if any, stays untouched; a later pass may retry.
		return failed(race.RaceID, FailInsufficientData, err.Error())
	}

	rec := weather.BuildRecord(weather.RaceMeta{
		RaceID:      race.RaceID,
		Venue:       race.Venue,
		Country:     race.Country,
		ScheduledAt: anchor,
	}, obs, metrics, indicators, now)

	if err := c.upsertWithRetry(ctx, rec); err != nil {
		if ctx.Err() != nil {
			return failed(race.RaceID, FailTimeout, "pass deadline exceeded during store write")
		}
		return failed(race.RaceID, FailStore, err.Error())
	}

	return result{raceID: race.RaceID}
}

// upsertWithRetry retries the store write once; the upsert itself is
// all-or-nothing so a failed attempt cannot corrupt the prior record.
func (c *Collector) upsertWithRetry(ctx context.Context, rec weather.WeatherRecord) error {
	err := c.store.Upsert(ctx, rec)
	if err == nil || ctx.Err() != nil {
		return err
	}
	log.Printf("collector: retrying store write for %s: %v", rec.RaceID, err)
	return c.store.Upsert(ctx, rec)
}

func failed(raceID, kind, reason string) result {
	return result{raceID: raceID, failure: &Failure{RaceID: raceID, Kind: kind, Reason: reason}}
}
