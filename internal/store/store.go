package store

import (
	"context"
	"errors"
	"time"

	"github.com/turfcast/track-conditions/internal/weather"
)

// ErrNotFound is returned when no record exists for a race id.
var ErrNotFound = errors.New("no weather record for race")

// Store is the contract for persisted race weather records: at most one live
// record per race id, replaced whole on every upsert.
type Store interface {
	// Upsert atomically replaces the record for rec.RaceID. Concurrent
	// upserts for the same race id resolve last-write-wins by FetchedAt.
	Upsert(ctx context.Context, rec weather.WeatherRecord) error

	// Get returns the live record for raceID or ErrNotFound.
	Get(ctx context.Context, raceID string) (weather.WeatherRecord, error)

	// IsFresh reports whether the record for raceID was fetched within maxAge
	// of now. A missing record is never fresh.
	IsFresh(ctx context.Context, raceID string, maxAge time.Duration, now time.Time) (bool, error)
}
