package weather

import (
	"errors"
	"reflect"
	"testing"
)

// rainMetrics builds a metrics map with the given precipitation sums per
// window. Values < 0 mark the window as insufficient.
func rainMetrics(rain1h, rain3h, rain6h, rain24h, rain7d float64) map[MetricKey]WindowedMetric {
	metrics := make(map[MetricKey]WindowedMetric)
	set := func(w Window, v float64) {
		if v < 0 {
			metrics[MetricKey{Variable: VarPrecipitation, Window: w}] = WindowedMetric{Insufficient: true}
			return
		}
		metrics[MetricKey{Variable: VarPrecipitation, Window: w}] = WindowedMetric{Value: v, Samples: 1}
	}
	set(Window1h, rain1h)
	set(Window3h, rain3h)
	set(Window6h, rain6h)
	set(Window24h, rain24h)
	set(Window7d, rain7d)
	return metrics
}

func allDepths(v float64) map[string]float64 {
	return map[string]float64{
		VarSoilMoisture01: v,
		VarSoilMoisture13: v,
		VarSoilMoisture39: v,
	}
}

func goingIndex(t *testing.T, g Going) int {
	t.Helper()
	for i, c := range GoingScale() {
		if c == g {
			return i
		}
	}
	t.Fatalf("unknown going category %q", g)
	return -1
}

func TestEstimateIsPure(t *testing.T) {
	est := NewEstimator(DefaultEstimatorConfig())
	metrics := rainMetrics(0.5, 1.5, 3, 8, 15)
	soil := allDepths(0.25)

	first, err := est.Estimate(metrics, soil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := est.Estimate(metrics, soil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("identical inputs produced different indicators: %+v vs %+v", first, second)
	}
}

func TestGoingMonotonicInSaturation(t *testing.T) {
	est := NewEstimator(DefaultEstimatorConfig())
	metrics := rainMetrics(0, 0, 0, 5, 10)

	lastIdx := -1
	lastSat := -1.0
	for moisture := 0.0; moisture <= 0.50; moisture += 0.01 {
		ind, err := est.Estimate(metrics, allDepths(moisture))
		if err != nil {
			t.Fatalf("unexpected error at moisture %.2f: %v", moisture, err)
		}
		if ind.GroundSaturation < 0 || ind.GroundSaturation > 1 {
			t.Fatalf("saturation %.3f out of [0,1] at moisture %.2f", ind.GroundSaturation, moisture)
		}
		if ind.GroundSaturation < lastSat {
			t.Fatalf("saturation decreased from %.3f to %.3f as moisture rose", lastSat, ind.GroundSaturation)
		}
		idx := goingIndex(t, ind.PredictedGoing)
		if idx < lastIdx {
			t.Fatalf("going firmed from %s to %s as saturation rose",
				GoingScale()[lastIdx], ind.PredictedGoing)
		}
		lastIdx = idx
		lastSat = ind.GroundSaturation
	}
}

func TestWetScenario(t *testing.T) {
	// 20mm in the last 24h and nothing older, soil near saturation at every
	// depth, fresh rain still falling.
	est := NewEstimator(DefaultEstimatorConfig())
	metrics := rainMetrics(2, 6, 10, 20, 20)

	ind, err := est.Estimate(metrics, allDepths(0.42))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ind.GroundSaturation < 0.75 {
		t.Fatalf("ground saturation = %.3f, expected near upper bound", ind.GroundSaturation)
	}
	if ind.PredictedGoing != GoingSoft && ind.PredictedGoing != GoingHeavy {
		t.Fatalf("predicted going = %s, want soft or heavy", ind.PredictedGoing)
	}
	if ind.DryingTrend != TrendWetting || ind.TrendRate <= 0 {
		t.Fatalf("trend = %s (rate %.3f), want wetting with positive rate", ind.DryingTrend, ind.TrendRate)
	}
}

func TestDryScenario(t *testing.T) {
	est := NewEstimator(DefaultEstimatorConfig())
	metrics := rainMetrics(0, 0, 0, 0, 0)

	ind, err := est.Estimate(metrics, allDepths(0.05))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ind.PredictedGoing != GoingFirm && ind.PredictedGoing != GoingGoodToFirm {
		t.Fatalf("predicted going = %s, want firm or good_to_firm", ind.PredictedGoing)
	}
	if ind.DryingTrend != TrendSteady && ind.DryingTrend != TrendDrying {
		t.Fatalf("trend = %s, want steady or drying", ind.DryingTrend)
	}
}

func TestMissingSoilDepthStillEstimates(t *testing.T) {
	// Depth 3-9cm missing, everything else present: graceful degradation.
	est := NewEstimator(DefaultEstimatorConfig())
	metrics := rainMetrics(0.2, 0.8, 1.5, 4, 9)
	soil := map[string]float64{
		VarSoilMoisture01: 0.22,
		VarSoilMoisture13: 0.20,
	}

	ind, err := est.Estimate(metrics, soil)
	if err != nil {
		t.Fatalf("estimate failed on a single missing depth: %v", err)
	}
	if ind.PredictedGoing == "" {
		t.Fatalf("expected a going category")
	}
}

func TestTooManyMissingInputsFails(t *testing.T) {
	est := NewEstimator(DefaultEstimatorConfig())

	// All rainfall windows insufficient and no soil readings at all.
	metrics := rainMetrics(-1, -1, -1, -1, -1)
	_, err := est.Estimate(metrics, nil)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestTrendToleranceReportsSteady(t *testing.T) {
	cfg := DefaultEstimatorConfig()
	cfg.TrendToleranceMmPerHour = 0.5
	est := NewEstimator(cfg)

	// Recent intensity 1.0mm/h vs baseline 0.75mm/h: inside the band.
	metrics := rainMetrics(1, 3, 6, 18, 30)
	ind, err := est.Estimate(metrics, allDepths(0.25))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ind.DryingTrend != TrendSteady {
		t.Fatalf("trend = %s (rate %.3f), want steady within tolerance", ind.DryingTrend, ind.TrendRate)
	}
}

func TestEstimatorConfigValidation(t *testing.T) {
	cfg := DefaultEstimatorConfig()
	cfg.GoingThresholds = [5]float64{0.4, 0.3, 0.5, 0.6, 0.7}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation failure for non-ascending thresholds")
	}

	cfg = DefaultEstimatorConfig()
	cfg.DepthWeights = [3]float64{0, 0, 0}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation failure for all-zero depth weights")
	}
}
