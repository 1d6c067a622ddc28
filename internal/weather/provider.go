package weather

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Units selects the measurement units requested from the provider. US tracks
// report in fahrenheit/mph/inch, everything else in metric.
type Units struct {
	Temperature   string // "celsius" or "fahrenheit"
	WindSpeed     string // "ms" or "mph"
	Precipitation string // "mm" or "inch"
}

// MetricUnits are the default request units.
func MetricUnits() Units {
	return Units{Temperature: "celsius", WindSpeed: "ms", Precipitation: "mm"}
}

// USUnits are the request units for USA venues.
func USUnits() Units {
	return Units{Temperature: "fahrenheit", WindSpeed: "mph", Precipitation: "inch"}
}

// UnitsForCountry picks request units based on the venue's country code.
func UnitsForCountry(country string) Units {
	if country == "USA" || country == "US" {
		return USUnits()
	}
	return MetricUnits()
}

// FetchRequest describes one batched provider call: all variables for one
// coordinate over one time range.
type FetchRequest struct {
	Latitude  float64
	Longitude float64
	Start     time.Time
	End       time.Time
	Variables []string
	Units     Units
}

// Provider abstracts the weather-observation source.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, req FetchRequest) (RawObservation, error)
}

// ProviderErrorKind classifies provider failures so callers can decide
// between retry, surfacing, and degraded continuation.
type ProviderErrorKind string

const (
	// ProviderUnavailable covers network failures and 5xx responses. Callers
	// may retry with backoff.
	ProviderUnavailable ProviderErrorKind = "unavailable"
	// ProviderRejected covers 4xx responses and invalid coordinates. Not
	// retryable.
	ProviderRejected ProviderErrorKind = "rejected"
	// ProviderPartial marks a response missing some requested variables. The
	// returned RawObservation is still usable; missing variables are listed
	// in RawObservation.Missing.
	ProviderPartial ProviderErrorKind = "partial"
)

// ProviderError carries a machine-distinguishable failure kind alongside the
// underlying cause.
type ProviderError struct {
	Kind ProviderErrorKind
	Err  error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider error: %s", e.Kind)
	}
	return fmt.Sprintf("provider error (%s): %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps err with a classification kind.
func NewProviderError(kind ProviderErrorKind, err error) *ProviderError {
	return &ProviderError{Kind: kind, Err: err}
}

// ErrorKind extracts the provider failure kind from err, or "" if err is not
// a provider error.
func ErrorKind(err error) ProviderErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
