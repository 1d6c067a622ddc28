package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/turfcast/track-conditions/internal/weather"
)

var validate = validator.New()

type AppConfig struct {
	// Provider settings.
	OpenMeteoBaseURL string
	HTTPTimeout      time.Duration `validate:"gt=0"`
	MaxRetries       int           `validate:"gte=0"`
	BackoffInitial   time.Duration `validate:"gt=0"`
	BackoffMax       time.Duration `validate:"gt=0"`

	// Process-wide provider request budget shared by all workers.
	RateLimitPerSec float64 `validate:"gt=0"`
	RateLimitBurst  int     `validate:"gte=1"`

	// Collection settings.
	SchedulePath    string        `validate:"required"`
	GeocoderAPIKey  string
	CollectInterval time.Duration `validate:"gt=0"`
	RefreshMaxAge   time.Duration `validate:"gt=0"`
	LookAhead       time.Duration `validate:"gt=0"`
	PassTimeout     time.Duration `validate:"gt=0"`
	Parallelism     int           `validate:"gte=1"`
	HistoryDays     int           `validate:"gte=1,lte=14"`

	// Persistence.
	DBPath string `validate:"required"`

	// Estimator coefficients.
	Estimator weather.EstimatorConfig

	Port string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{
		OpenMeteoBaseURL: os.Getenv("OPEN_METEO_BASE_URL"),
		GeocoderAPIKey:   os.Getenv("GEOCODER_API_KEY"),
		SchedulePath:     getenvDefault("SCHEDULE_PATH", "race_schedule.json"),
		DBPath:           getenvDefault("DB_PATH", "data/weather.db"),
		Port:             getenvDefault("PORT", "8080"),
		MaxRetries:       getenvInt("PROVIDER_MAX_RETRIES", 3),
		Parallelism:      getenvInt("COLLECT_PARALLELISM", 4),
		HistoryDays:      getenvInt("HISTORY_DAYS", 7),
		RateLimitPerSec:  getenvFloat("RATE_LIMIT_PER_SEC", 5),
		RateLimitBurst:   getenvInt("RATE_LIMIT_BURST", 10),
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.BackoffInitial, err = getenvDuration("PROVIDER_BACKOFF_INITIAL", "500ms"); err != nil {
		return nil, err
	}
	if cfg.BackoffMax, err = getenvDuration("PROVIDER_BACKOFF_MAX", "5s"); err != nil {
		return nil, err
	}
	if cfg.CollectInterval, err = getenvDuration("COLLECT_INTERVAL", "2h"); err != nil {
		return nil, err
	}
	if cfg.RefreshMaxAge, err = getenvDuration("REFRESH_MAX_AGE", "2h"); err != nil {
		return nil, err
	}
	if cfg.LookAhead, err = getenvDuration("SCHEDULE_LOOK_AHEAD", "48h"); err != nil {
		return nil, err
	}
	if cfg.PassTimeout, err = getenvDuration("PASS_TIMEOUT", "10m"); err != nil {
		return nil, err
	}

	est, err := loadEstimator()
	if err != nil {
		return nil, err
	}
	cfg.Estimator = est

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.Estimator.Validate(); err != nil {
		return nil, fmt.Errorf("invalid estimator configuration: %w", err)
	}

	return cfg, nil
}

// loadEstimator overlays environment values onto the calibration defaults.
func loadEstimator() (weather.EstimatorConfig, error) {
	est := weather.DefaultEstimatorConfig()

	if v := os.Getenv("SATURATION_DEPTH_WEIGHTS"); v != "" {
		ws, err := parseFloats(v, 3)
		if err != nil {
			return est, fmt.Errorf("invalid SATURATION_DEPTH_WEIGHTS: %w", err)
		}
		copy(est.DepthWeights[:], ws)
	}
	if v := os.Getenv("GOING_THRESHOLDS"); v != "" {
		ts, err := parseFloats(v, 5)
		if err != nil {
			return est, fmt.Errorf("invalid GOING_THRESHOLDS: %w", err)
		}
		copy(est.GoingThresholds[:], ts)
	}

	est.SoilMoistureScale = getenvFloat("SOIL_MOISTURE_SCALE", est.SoilMoistureScale)
	est.SoilWeight = getenvFloat("SATURATION_SOIL_WEIGHT", est.SoilWeight)
	est.Rain24Weight = getenvFloat("SATURATION_RAIN24_WEIGHT", est.Rain24Weight)
	est.Rain7dWeight = getenvFloat("SATURATION_RAIN7D_WEIGHT", est.Rain7dWeight)
	est.Rain24ScaleMm = getenvFloat("RAIN24_SCALE_MM", est.Rain24ScaleMm)
	est.Rain7dScaleMm = getenvFloat("RAIN7D_SCALE_MM", est.Rain7dScaleMm)
	est.FreshRain1hCoeff = getenvFloat("FRESH_RAIN_1H_COEFF", est.FreshRain1hCoeff)
	est.FreshRain3hCoeff = getenvFloat("FRESH_RAIN_3H_COEFF", est.FreshRain3hCoeff)
	est.TrendToleranceMmPerHour = getenvFloat("TREND_TOLERANCE_MM_PER_HOUR", est.TrendToleranceMmPerHour)
	est.MaxMissingInputs = getenvInt("MAX_MISSING_INPUTS", est.MaxMissingInputs)

	return est, nil
}

func parseFloats(s string, want int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != want {
		return nil, fmt.Errorf("expected %d comma-separated values, got %d", want, len(parts))
	}
	out := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	v := getenvDefault(key, def)
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
