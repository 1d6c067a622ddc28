package weather

import (
	"sort"
	"time"
)

// Data-quality labels recorded on every persisted record.
const (
	QualityComprehensive = "comprehensive"
	QualityPartial       = "partial"
)

// SpotConditions are the hourly readings closest to the race time, one per
// requested variable. Pointers distinguish "absent from response" from a
// genuine zero.
type SpotConditions struct {
	Temperature         *float64 `json:"temperature"`
	ApparentTemperature *float64 `json:"apparentTemperature"`
	Precipitation       *float64 `json:"precipitation"`
	Rain                *float64 `json:"rain"`
	WindSpeed           *float64 `json:"windSpeed"`
	WindDirection       *float64 `json:"windDirection"`
	WindGusts           *float64 `json:"windGusts"`
	Humidity            *float64 `json:"humidity"`
	DewPoint            *float64 `json:"dewPoint"`
	SoilMoisture01      *float64 `json:"soilMoisture0To1cm"`
	SoilMoisture13      *float64 `json:"soilMoisture1To3cm"`
	SoilMoisture39      *float64 `json:"soilMoisture3To9cm"`
	SoilTemperature0    *float64 `json:"soilTemperature0cm"`
	SoilTemperature6    *float64 `json:"soilTemperature6cm"`
	Evapotranspiration  *float64 `json:"evapotranspiration"`
	Pressure            *float64 `json:"pressure"`
	CloudCover          *float64 `json:"cloudCover"`
	Visibility          *float64 `json:"visibility"`
	WeatherCode         *float64 `json:"weatherCode"`
	PrecipProbability   *float64 `json:"precipitationProbability"`
}

// RainfallWindows are the trailing precipitation sums. Nil means the window
// held no samples, which is reported distinctly from zero rainfall.
type RainfallWindows struct {
	Rain1h  *float64 `json:"rainfall1h"`
	Rain3h  *float64 `json:"rainfall3h"`
	Rain6h  *float64 `json:"rainfall6h"`
	Rain24h *float64 `json:"rainfall24h"`
	Rain7d  *float64 `json:"rainfall7d"`
}

// WeatherRecord is the persisted unit: one live record per race id,
// replaced whole on every successful collection.
type WeatherRecord struct {
	RaceID      string    `json:"raceId"`
	Venue       string    `json:"venue"`
	Country     string    `json:"country"`
	ScheduledAt time.Time `json:"scheduledAt"`

	Spot     SpotConditions  `json:"spot"`
	Rainfall RainfallWindows `json:"rainfall"`

	// Windowed holds every aggregated (variable, window) value keyed as
	// "<variable>_<window>", e.g. "temperature_2m_24h". Only pairs with data
	// appear; the set grows additively as variables are added.
	Windowed map[string]float64 `json:"windowed"`

	Indicators ConditionIndicators `json:"indicators"`

	NetMoisture24h *float64 `json:"netMoisture24h"` // rain24h minus 24h ET0
	HoursSinceRain *int     `json:"hoursSinceRain"`

	TemperatureUnit string `json:"temperatureUnit"`
	WindSpeedUnit   string `json:"windSpeedUnit"`
	PrecipUnit      string `json:"precipitationUnit"`

	DataQuality      string   `json:"dataQuality"`
	MissingVariables []string `json:"missingVariables,omitempty"`

	FetchedAt time.Time `json:"fetchedAt"` // always UTC
}

// RaceMeta identifies the race a record belongs to.
type RaceMeta struct {
	RaceID      string
	Venue       string
	Country     string
	ScheduledAt time.Time
}

// BuildRecord assembles the full persisted record from a raw observation, its
// aggregates, and the derived indicators. Pure given fetchedAt.
func BuildRecord(meta RaceMeta, obs RawObservation, metrics map[MetricKey]WindowedMetric, ind ConditionIndicators, fetchedAt time.Time) WeatherRecord {
	now := meta.ScheduledAt

	rec := WeatherRecord{
		RaceID:      meta.RaceID,
		Venue:       meta.Venue,
		Country:     meta.Country,
		ScheduledAt: meta.ScheduledAt,
		Spot: SpotConditions{
			Temperature:         spot(obs, VarTemperature, now),
			ApparentTemperature: spot(obs, VarApparentTemperature, now),
			Precipitation:       spot(obs, VarPrecipitation, now),
			Rain:                spot(obs, VarRain, now),
			WindSpeed:           spot(obs, VarWindSpeed, now),
			WindDirection:       spot(obs, VarWindDirection, now),
			WindGusts:           spot(obs, VarWindGusts, now),
			Humidity:            spot(obs, VarHumidity, now),
			DewPoint:            spot(obs, VarDewPoint, now),
			SoilMoisture01:      spot(obs, VarSoilMoisture01, now),
			SoilMoisture13:      spot(obs, VarSoilMoisture13, now),
			SoilMoisture39:      spot(obs, VarSoilMoisture39, now),
			SoilTemperature0:    spot(obs, VarSoilTemperature0, now),
			SoilTemperature6:    spot(obs, VarSoilTemperature6, now),
			Evapotranspiration:  spot(obs, VarEvapotranspiration, now),
			Pressure:            spot(obs, VarPressure, now),
			CloudCover:          spot(obs, VarCloudCover, now),
			Visibility:          spot(obs, VarVisibility, now),
			WeatherCode:         spot(obs, VarWeatherCode, now),
			PrecipProbability:   spot(obs, VarPrecipProbability, now),
		},
		Rainfall: RainfallWindows{
			Rain1h:  windowed(metrics, VarPrecipitation, Window1h),
			Rain3h:  windowed(metrics, VarPrecipitation, Window3h),
			Rain6h:  windowed(metrics, VarPrecipitation, Window6h),
			Rain24h: windowed(metrics, VarPrecipitation, Window24h),
			Rain7d:  windowed(metrics, VarPrecipitation, Window7d),
		},
		Windowed:   flattenMetrics(metrics),
		Indicators: ind,
		FetchedAt:  fetchedAt.UTC(),
	}

	units := UnitsForCountry(meta.Country)
	rec.TemperatureUnit = units.Temperature
	rec.WindSpeedUnit = units.WindSpeed
	rec.PrecipUnit = units.Precipitation

	if rec.Rainfall.Rain24h != nil {
		if et := spot(obs, VarEvapotranspiration, now); et != nil {
			net := *rec.Rainfall.Rain24h - *et*24
			rec.NetMoisture24h = &net
		}
	}
	if hours, ok := HoursSinceRain(obs, now); ok {
		rec.HoursSinceRain = &hours
	}

	if len(obs.Missing) > 0 {
		rec.DataQuality = QualityPartial
		rec.MissingVariables = append([]string(nil), obs.Missing...)
		sort.Strings(rec.MissingVariables)
	} else {
		rec.DataQuality = QualityComprehensive
	}

	return rec
}

func spot(obs RawObservation, variable string, t time.Time) *float64 {
	p, ok := obs.Latest(variable, t)
	if !ok {
		return nil
	}
	v := p.Value
	return &v
}

func windowed(metrics map[MetricKey]WindowedMetric, variable string, w Window) *float64 {
	m, ok := metrics[MetricKey{Variable: variable, Window: w}]
	if !ok || m.Insufficient {
		return nil
	}
	v := m.Value
	return &v
}

func flattenMetrics(metrics map[MetricKey]WindowedMetric) map[string]float64 {
	out := make(map[string]float64, len(metrics))
	for k, m := range metrics {
		if m.Insufficient {
			continue
		}
		out[k.Variable+"_"+k.Window.Label()] = m.Value
	}
	return out
}
