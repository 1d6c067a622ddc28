package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/turfcast/track-conditions/internal/weather"
)

// SQLiteStore persists one weather record per race id in a SQLite database.
// Scalar fields of interest get their own columns so the table is queryable
// directly; the full record is additionally kept as JSON so new variables can
// be added without breaking old readers.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL keeps readers of other race ids off the writer's lock.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS weather_records (
		race_id TEXT PRIMARY KEY,
		venue TEXT NOT NULL,
		country TEXT,
		scheduled_at TEXT NOT NULL,

		-- Spot conditions at race hour
		temperature REAL,
		apparent_temperature REAL,
		precipitation_current REAL,
		rain_current REAL,
		wind_speed REAL,
		wind_direction REAL,
		wind_gusts REAL,
		humidity REAL,
		dew_point REAL,
		pressure REAL,
		cloud_cover REAL,
		visibility REAL,
		weather_code REAL,
		precipitation_probability REAL,

		-- Ground conditions
		soil_moisture_0_1cm REAL,
		soil_moisture_1_3cm REAL,
		soil_moisture_3_9cm REAL,
		soil_temperature_0cm REAL,
		soil_temperature_6cm REAL,
		evapotranspiration REAL,

		-- Trailing rainfall
		rainfall_1h REAL,
		rainfall_3h REAL,
		rainfall_6h REAL,
		rainfall_24h REAL,
		rainfall_7d REAL,

		-- Derived indicators
		ground_saturation REAL,
		predicted_going TEXT,
		drying_trend TEXT,
		trend_rate REAL,
		net_moisture_24h REAL,
		hours_since_rain INTEGER,

		-- Metadata
		data_quality TEXT,
		temperature_unit TEXT,
		wind_speed_unit TEXT,
		precipitation_unit TEXT,
		record_json TEXT NOT NULL,
		fetched_at TEXT NOT NULL,
		fetched_at_unix INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_weather_records_venue ON weather_records(venue);
	CREATE INDEX IF NOT EXISTS idx_weather_records_fetched ON weather_records(fetched_at_unix);
	`

	_, err := db.Exec(schema)
	return err
}

// Upsert replaces the whole record for rec.RaceID. The conflict clause makes
// concurrent upserts for the same race id resolve last-write-wins by
// FetchedAt; a stale write leaves the newer row untouched.
func (s *SQLiteStore) Upsert(ctx context.Context, rec weather.WeatherRecord) error {
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	const q = `
	INSERT INTO weather_records (
		race_id, venue, country, scheduled_at,
		temperature, apparent_temperature, precipitation_current, rain_current,
		wind_speed, wind_direction, wind_gusts, humidity, dew_point,
		pressure, cloud_cover, visibility, weather_code, precipitation_probability,
		soil_moisture_0_1cm, soil_moisture_1_3cm, soil_moisture_3_9cm,
		soil_temperature_0cm, soil_temperature_6cm, evapotranspiration,
		rainfall_1h, rainfall_3h, rainfall_6h, rainfall_24h, rainfall_7d,
		ground_saturation, predicted_going, drying_trend, trend_rate,
		net_moisture_24h, hours_since_rain,
		data_quality, temperature_unit, wind_speed_unit, precipitation_unit,
		record_json, fetched_at, fetched_at_unix
	) VALUES (
		?, ?, ?, ?,
		?, ?, ?, ?,
		?, ?, ?, ?, ?,
		?, ?, ?, ?, ?,
		?, ?, ?,
		?, ?, ?,
		?, ?, ?, ?, ?,
		?, ?, ?, ?,
		?, ?,
		?, ?, ?, ?,
		?, ?, ?
	)
	ON CONFLICT(race_id) DO UPDATE SET
		venue = excluded.venue,
		country = excluded.country,
		scheduled_at = excluded.scheduled_at,
		temperature = excluded.temperature,
		apparent_temperature = excluded.apparent_temperature,
		precipitation_current = excluded.precipitation_current,
		rain_current = excluded.rain_current,
		wind_speed = excluded.wind_speed,
		wind_direction = excluded.wind_direction,
		wind_gusts = excluded.wind_gusts,
		humidity = excluded.humidity,
		dew_point = excluded.dew_point,
		pressure = excluded.pressure,
		cloud_cover = excluded.cloud_cover,
		visibility = excluded.visibility,
		weather_code = excluded.weather_code,
		precipitation_probability = excluded.precipitation_probability,
		soil_moisture_0_1cm = excluded.soil_moisture_0_1cm,
		soil_moisture_1_3cm = excluded.soil_moisture_1_3cm,
		soil_moisture_3_9cm = excluded.soil_moisture_3_9cm,
		soil_temperature_0cm = excluded.soil_temperature_0cm,
		soil_temperature_6cm = excluded.soil_temperature_6cm,
		evapotranspiration = excluded.evapotranspiration,
		rainfall_1h = excluded.rainfall_1h,
		rainfall_3h = excluded.rainfall_3h,
		rainfall_6h = excluded.rainfall_6h,
		rainfall_24h = excluded.rainfall_24h,
		rainfall_7d = excluded.rainfall_7d,
		ground_saturation = excluded.ground_saturation,
		predicted_going = excluded.predicted_going,
		drying_trend = excluded.drying_trend,
		trend_rate = excluded.trend_rate,
		net_moisture_24h = excluded.net_moisture_24h,
		hours_since_rain = excluded.hours_since_rain,
		data_quality = excluded.data_quality,
		temperature_unit = excluded.temperature_unit,
		wind_speed_unit = excluded.wind_speed_unit,
		precipitation_unit = excluded.precipitation_unit,
		record_json = excluded.record_json,
		fetched_at = excluded.fetched_at,
		fetched_at_unix = excluded.fetched_at_unix
	WHERE excluded.fetched_at_unix >= weather_records.fetched_at_unix`

	fetchedAt := rec.FetchedAt.UTC()

	_, err = s.db.ExecContext(ctx, q,
		rec.RaceID, rec.Venue, rec.Country, rec.ScheduledAt.UTC().Format(time.RFC3339),
		nf(rec.Spot.Temperature), nf(rec.Spot.ApparentTemperature), nf(rec.Spot.Precipitation), nf(rec.Spot.Rain),
		nf(rec.Spot.WindSpeed), nf(rec.Spot.WindDirection), nf(rec.Spot.WindGusts), nf(rec.Spot.Humidity), nf(rec.Spot.DewPoint),
		nf(rec.Spot.Pressure), nf(rec.Spot.CloudCover), nf(rec.Spot.Visibility), nf(rec.Spot.WeatherCode), nf(rec.Spot.PrecipProbability),
		nf(rec.Spot.SoilMoisture01), nf(rec.Spot.SoilMoisture13), nf(rec.Spot.SoilMoisture39),
		nf(rec.Spot.SoilTemperature0), nf(rec.Spot.SoilTemperature6), nf(rec.Spot.Evapotranspiration),
		nf(rec.Rainfall.Rain1h), nf(rec.Rainfall.Rain3h), nf(rec.Rainfall.Rain6h), nf(rec.Rainfall.Rain24h), nf(rec.Rainfall.Rain7d),
		rec.Indicators.GroundSaturation, string(rec.Indicators.PredictedGoing), string(rec.Indicators.DryingTrend), rec.Indicators.TrendRate,
		nf(rec.NetMoisture24h), ni(rec.HoursSinceRain),
		rec.DataQuality, rec.TemperatureUnit, rec.WindSpeedUnit, rec.PrecipUnit,
		string(recJSON), fetchedAt.Format(time.RFC3339Nano), fetchedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert record for %s: %w", rec.RaceID, err)
	}
	return nil
}

// Get returns the live record for raceID.
func (s *SQLiteStore) Get(ctx context.Context, raceID string) (weather.WeatherRecord, error) {
	var recJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT record_json FROM weather_records WHERE race_id = ?`, raceID).Scan(&recJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.WeatherRecord{}, ErrNotFound
	}
	if err != nil {
		return weather.WeatherRecord{}, fmt.Errorf("read record for %s: %w", raceID, err)
	}

	var rec weather.WeatherRecord
	if err := json.Unmarshal([]byte(recJSON), &rec); err != nil {
		return weather.WeatherRecord{}, fmt.Errorf("decode record for %s: %w", raceID, err)
	}
	return rec, nil
}

// IsFresh reports whether the record for raceID is younger than maxAge.
func (s *SQLiteStore) IsFresh(ctx context.Context, raceID string, maxAge time.Duration, now time.Time) (bool, error) {
	var fetchedUnix int64
	err := s.db.QueryRowContext(ctx,
		`SELECT fetched_at_unix FROM weather_records WHERE race_id = ?`, raceID).Scan(&fetchedUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read freshness for %s: %w", raceID, err)
	}

	age := now.UTC().Sub(time.Unix(0, fetchedUnix))
	return age < maxAge, nil
}

func nf(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func ni(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
