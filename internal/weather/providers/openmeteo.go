package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/turfcast/track-conditions/internal/weather"
)

// hourlyTimeLayout is the timestamp format of Open-Meteo hourly responses
// when a timezone is requested explicitly.
const hourlyTimeLayout = "2006-01-02T15:04"

// OpenMeteoProvider implements weather.Provider against the Open-Meteo
// forecast API. All variables for one race go out in a single batched
// request; the API needs no key.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewOpenMeteoProvider builds a provider sharing the given HTTP client and
// process-wide rate limiter across all callers.
func NewOpenMeteoProvider(client *http.Client, limiter *rate.Limiter, baseURL string, backoff BackoffConfig) *OpenMeteoProvider {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
	})

	if baseURL == "" {
		baseURL = "https://api.open-meteo.com/v1/forecast"
	}

	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: backoff,
			Limiter: limiter,
		},
		circuit: cb,
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// Fetch retrieves hourly series for every requested variable over the
// requested date range. Missing variables are listed in
// RawObservation.Missing and reported as a partial error alongside the
// usable observation.
func (p *OpenMeteoProvider) Fetch(ctx context.Context, req weather.FetchRequest) (weather.RawObservation, error) {
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		return weather.RawObservation{}, weather.NewProviderError(weather.ProviderRejected,
			fmt.Errorf("invalid coordinate %.4f,%.4f", req.Latitude, req.Longitude))
	}
	if len(req.Variables) == 0 {
		req.Variables = weather.DefaultVariables()
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%.4f", req.Latitude))
		values.Set("longitude", fmt.Sprintf("%.4f", req.Longitude))
		values.Set("hourly", strings.Join(req.Variables, ","))
		values.Set("temperature_unit", req.Units.Temperature)
		values.Set("wind_speed_unit", req.Units.WindSpeed)
		values.Set("precipitation_unit", req.Units.Precipitation)
		values.Set("timezone", "UTC")
		values.Set("start_date", req.Start.UTC().Format("2006-01-02"))
		values.Set("end_date", req.End.UTC().Format("2006-01-02"))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		httpReq, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		return httpReq, nil
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		if isRejected(err) {
			return weather.RawObservation{}, weather.NewProviderError(weather.ProviderRejected, err)
		}
		return weather.RawObservation{}, weather.NewProviderError(weather.ProviderUnavailable, err)
	}
	defer resp.Body.Close()

	var payload struct {
		Hourly map[string]json.RawMessage `json:"hourly"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.RawObservation{}, weather.NewProviderError(weather.ProviderUnavailable,
			fmt.Errorf("decode response: %w", err))
	}

	times, err := parseHourlyTimes(payload.Hourly["time"])
	if err != nil {
		return weather.RawObservation{}, weather.NewProviderError(weather.ProviderUnavailable, err)
	}

	obs := weather.RawObservation{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Series:    make(map[string][]weather.Point, len(req.Variables)),
	}

	for _, variable := range req.Variables {
		raw, ok := payload.Hourly[variable]
		if !ok {
			obs.Missing = append(obs.Missing, variable)
			continue
		}

		var values []*float64
		if err := json.Unmarshal(raw, &values); err != nil {
			obs.Missing = append(obs.Missing, variable)
			continue
		}

		series := make([]weather.Point, 0, len(values))
		for i, v := range values {
			if v == nil || i >= len(times) {
				continue
			}
			series = append(series, weather.Point{Time: times[i], Value: *v})
		}
		if len(series) == 0 {
			obs.Missing = append(obs.Missing, variable)
			continue
		}
		obs.Series[variable] = series
	}

	if len(obs.Missing) > 0 {
		// Degraded success: the observation remains usable, absent variables
		// are flagged rather than fabricated.
		return obs, weather.NewProviderError(weather.ProviderPartial,
			fmt.Errorf("response missing %d of %d variables", len(obs.Missing), len(req.Variables)))
	}

	return obs, nil
}

func parseHourlyTimes(raw json.RawMessage) ([]time.Time, error) {
	if raw == nil {
		return nil, fmt.Errorf("response has no hourly time axis")
	}
	var stamps []string
	if err := json.Unmarshal(raw, &stamps); err != nil {
		return nil, fmt.Errorf("decode hourly time axis: %w", err)
	}
	times := make([]time.Time, len(stamps))
	for i, s := range stamps {
		ts, err := time.ParseInLocation(hourlyTimeLayout, s, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse hourly timestamp %q: %w", s, err)
		}
		times[i] = ts
	}
	return times, nil
}
