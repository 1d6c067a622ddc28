// Package schedule loads the race schedule consumed by the collector. The
// schedule file is produced by an external process and treated as read-only
// input here.
package schedule

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/kelvins/geocoder"
)

// RaceLocation is one schedule entry resolved to a coordinate. Immutable once
// created.
type RaceLocation struct {
	RaceID      string
	Venue       string
	Country     string
	Latitude    float64
	Longitude   float64
	ScheduledAt time.Time // always UTC
}

// entry is the wire format of one schedule row. Latitude/longitude are
// optional; known venues resolve from the coordinate table and everything
// else falls back to geocoding.
type entry struct {
	RaceID    string   `json:"race_id"`
	Venue     string   `json:"venue"`
	Country   string   `json:"country,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	RaceDate  string   `json:"race_date"` // 2006-01-02
	RaceTime  string   `json:"race_time"` // 15:04
}

// Loader reads and resolves schedule files.
type Loader struct {
	geocoderKey string
}

// NewLoader returns a Loader. geocoderKey may be empty, in which case entries
// for unknown venues without explicit coordinates are skipped.
func NewLoader(geocoderKey string) *Loader {
	if geocoderKey != "" {
		geocoder.ApiKey = geocoderKey
	}
	return &Loader{geocoderKey: geocoderKey}
}

// Load parses the schedule file at path and resolves every entry to a
// coordinate. Entries that cannot be resolved are logged and skipped rather
// than failing the load.
func (l *Loader) Load(path string) ([]RaceLocation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule %s: %w", path, err)
	}
	return l.Parse(data)
}

// Parse resolves schedule entries from raw JSON.
func (l *Loader) Parse(data []byte) ([]RaceLocation, error) {
	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}

	races := make([]RaceLocation, 0, len(entries))
	for _, e := range entries {
		race, err := l.resolve(e)
		if err != nil {
			log.Printf("schedule: skipping %s (%s): %v", e.RaceID, e.Venue, err)
			continue
		}
		races = append(races, race)
	}
	return races, nil
}

func (l *Loader) resolve(e entry) (RaceLocation, error) {
	if e.RaceID == "" {
		return RaceLocation{}, fmt.Errorf("missing race_id")
	}

	scheduledAt, err := time.ParseInLocation("2006-01-02T15:04", e.RaceDate+"T"+e.RaceTime, time.UTC)
	if err != nil {
		return RaceLocation{}, fmt.Errorf("invalid race date/time %q %q: %w", e.RaceDate, e.RaceTime, err)
	}

	race := RaceLocation{
		RaceID:      e.RaceID,
		Venue:       e.Venue,
		Country:     e.Country,
		ScheduledAt: scheduledAt,
	}

	switch {
	case e.Latitude != nil && e.Longitude != nil:
		race.Latitude = *e.Latitude
		race.Longitude = *e.Longitude

	default:
		if c, ok := LookupVenue(e.Venue); ok {
			race.Latitude = c.Lat
			race.Longitude = c.Lon
			if race.Country == "" {
				race.Country = c.Country
			}
			break
		}

		if l.geocoderKey == "" {
			return RaceLocation{}, fmt.Errorf("unknown venue and no geocoder key configured")
		}
		loc, err := geocoder.Geocoding(geocoder.Address{
			City:    e.Venue,
			Country: e.Country,
		})
		if err != nil {
			return RaceLocation{}, fmt.Errorf("geocode venue: %w", err)
		}
		race.Latitude = loc.Latitude
		race.Longitude = loc.Longitude
	}

	return race, nil
}

// Upcoming filters races to those starting in (now, now+lookAhead]. Past
// races and races beyond the look-ahead horizon are excluded.
func Upcoming(races []RaceLocation, now time.Time, lookAhead time.Duration) []RaceLocation {
	cutoff := now.Add(lookAhead)
	out := make([]RaceLocation, 0, len(races))
	for _, r := range races {
		if r.ScheduledAt.Before(now) || r.ScheduledAt.After(cutoff) {
			continue
		}
		out = append(out, r)
	}
	return out
}
