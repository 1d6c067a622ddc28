package weather

import "time"

// Variables whose window aggregate is a sum rather than an average. These are
// depth-per-hour quantities; everything else (temperatures, humidity, wind)
// is an instantaneous reading and gets averaged.
var sumVariables = map[string]bool{
	VarPrecipitation:      true,
	VarRain:               true,
	VarEvapotranspiration: true,
}

// IsCumulative reports whether a variable is summed over windows.
func IsCumulative(variable string) bool {
	return sumVariables[variable]
}

// Aggregate computes one WindowedMetric per (variable, window) pair from the
// raw series. A sample at timestamp ts contributes to a window w when
// ts ∈ (now-w, now]. Windows with no samples are marked Insufficient so that
// "no data" never masquerades as "no rain". The function is pure: identical
// inputs always produce identical output.
func Aggregate(obs RawObservation, now time.Time) map[MetricKey]WindowedMetric {
	out := make(map[MetricKey]WindowedMetric, len(obs.Series)*len(Windows()))

	for variable, series := range obs.Series {
		cumulative := IsCumulative(variable)

		for _, w := range Windows() {
			start := now.Add(-w.Duration())

			var sum float64
			var n int
			for _, p := range series {
				if p.Time.After(start) && !p.Time.After(now) {
					sum += p.Value
					n++
				}
			}

			m := WindowedMetric{Samples: n}
			switch {
			case n == 0:
				m.Insufficient = true
			case cumulative:
				m.Value = sum
			default:
				m.Value = sum / float64(n)
			}
			out[MetricKey{Variable: variable, Window: w}] = m
		}
	}

	return out
}

// rainEpsilonMm is the precipitation threshold below which an hour counts as
// dry when computing HoursSinceRain (matches the provider's drizzle noise
// floor).
const rainEpsilonMm = 0.1

// HoursSinceRain walks the precipitation series backwards from now and counts
// consecutive dry hours. The second return is false when the observation has
// no precipitation series at all.
func HoursSinceRain(obs RawObservation, now time.Time) (int, bool) {
	series, ok := obs.Series[VarPrecipitation]
	if !ok || len(series) == 0 {
		return 0, false
	}

	hours := 0
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].Time.After(now) {
			continue
		}
		if series[i].Value > rainEpsilonMm {
			break
		}
		hours++
	}
	return hours, true
}

// SoilMoistureByDepth extracts the most recent soil-moisture reading for each
// depth from the observation. Depths missing from the response are absent
// from the returned map rather than zeroed.
func SoilMoistureByDepth(obs RawObservation, now time.Time) map[string]float64 {
	depths := []string{VarSoilMoisture01, VarSoilMoisture13, VarSoilMoisture39}
	out := make(map[string]float64, len(depths))
	for _, d := range depths {
		if p, ok := obs.Latest(d, now); ok {
			out[d] = p.Value
		}
	}
	return out
}
