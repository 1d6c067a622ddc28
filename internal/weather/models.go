package weather

import (
	"time"
)

// Hourly variables requested from the provider for every race, batched into a
// single request to conserve quota.
const (
	VarTemperature         = "temperature_2m"
	VarApparentTemperature = "apparent_temperature"
	VarPrecipitation       = "precipitation"
	VarRain                = "rain"
	VarWindSpeed           = "wind_speed_10m"
	VarWindDirection       = "wind_direction_10m"
	VarWindGusts           = "wind_gusts_10m"
	VarHumidity            = "relative_humidity_2m"
	VarDewPoint            = "dew_point_2m"
	VarSoilMoisture01      = "soil_moisture_0_to_1cm"
	VarSoilMoisture13      = "soil_moisture_1_to_3cm"
	VarSoilMoisture39      = "soil_moisture_3_to_9cm"
	VarSoilTemperature0    = "soil_temperature_0cm"
	VarSoilTemperature6    = "soil_temperature_6cm"
	VarEvapotranspiration  = "et0_fao_evapotranspiration"
	VarPressure            = "pressure_msl"
	VarCloudCover          = "cloud_cover"
	VarVisibility          = "visibility"
	VarWeatherCode         = "weather_code"
	VarPrecipProbability   = "precipitation_probability"
)

// DefaultVariables is the full batched variable set, in request order.
func DefaultVariables() []string {
	return []string{
		VarTemperature,
		VarApparentTemperature,
		VarPrecipitation,
		VarRain,
		VarWindSpeed,
		VarWindDirection,
		VarWindGusts,
		VarHumidity,
		VarDewPoint,
		VarSoilMoisture01,
		VarSoilMoisture13,
		VarSoilMoisture39,
		VarSoilTemperature0,
		VarSoilTemperature6,
		VarEvapotranspiration,
		VarPressure,
		VarCloudCover,
		VarVisibility,
		VarWeatherCode,
		VarPrecipProbability,
	}
}

// Point is one (timestamp, value) sample of an hourly series. Timestamps are
// always UTC.
type Point struct {
	Time  time.Time
	Value float64
}

// RawObservation is one provider response for a coordinate: hourly series per
// variable name. Missing lists requested variables the provider did not
// return; they are recorded as absent, never defaulted to zero. RawObservation
// is held only for the duration of a single collection pass.
type RawObservation struct {
	Latitude  float64
	Longitude float64
	Series    map[string][]Point
	Missing   []string
}

// Latest returns the most recent sample of a variable at or before t.
func (o RawObservation) Latest(variable string, t time.Time) (Point, bool) {
	series, ok := o.Series[variable]
	if !ok {
		return Point{}, false
	}
	for i := len(series) - 1; i >= 0; i-- {
		if !series[i].Time.After(t) {
			return series[i], true
		}
	}
	return Point{}, false
}

// Window is a trailing look-back duration for aggregation.
type Window time.Duration

// The fixed aggregation windows, smallest first.
const (
	Window1h  = Window(1 * time.Hour)
	Window3h  = Window(3 * time.Hour)
	Window6h  = Window(6 * time.Hour)
	Window24h = Window(24 * time.Hour)
	Window7d  = Window(7 * 24 * time.Hour)
)

// Windows returns all aggregation windows in ascending order.
func Windows() []Window {
	return []Window{Window1h, Window3h, Window6h, Window24h, Window7d}
}

func (w Window) Duration() time.Duration { return time.Duration(w) }

// Label renders a window as its short name ("1h", "24h", "7d").
func (w Window) Label() string {
	switch w {
	case Window1h:
		return "1h"
	case Window3h:
		return "3h"
	case Window6h:
		return "6h"
	case Window24h:
		return "24h"
	case Window7d:
		return "7d"
	default:
		return time.Duration(w).String()
	}
}

// MetricKey identifies one aggregated value: a variable over a window.
type MetricKey struct {
	Variable string
	Window   Window
}

// WindowedMetric is the aggregate of one variable over one trailing window.
// Insufficient is set when no sample fell inside the window, which downstream
// consumers must treat differently from a genuine zero.
type WindowedMetric struct {
	Value        float64
	Samples      int
	Insufficient bool
}

// Going is the predicted ground firmness, ordered from firmest to softest.
type Going string

const (
	GoingFirm       Going = "firm"
	GoingGoodToFirm Going = "good_to_firm"
	GoingGood       Going = "good"
	GoingGoodToSoft Going = "good_to_soft"
	GoingSoft       Going = "soft"
	GoingHeavy      Going = "heavy"
)

// GoingScale returns the going categories ordered firmest first.
func GoingScale() []Going {
	return []Going{GoingFirm, GoingGoodToFirm, GoingGood, GoingGoodToSoft, GoingSoft, GoingHeavy}
}

// Trend is the direction of change of track moisture.
type Trend string

const (
	TrendDrying  Trend = "drying"
	TrendSteady  Trend = "steady"
	TrendWetting Trend = "wetting"
)

// ConditionIndicators are the derived track-condition outputs. They are a pure
// function of windowed metrics and soil-moisture readings.
type ConditionIndicators struct {
	GroundSaturation float64 `json:"groundSaturation"` // bounded to [0,1]
	PredictedGoing   Going   `json:"predictedGoing"`
	DryingTrend      Trend   `json:"dryingTrend"`
	TrendRate        float64 `json:"trendRateMmPerHour"` // signed; positive = wetting
}
