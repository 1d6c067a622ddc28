package weather

import (
	"errors"
	"fmt"
	"math"
)

// ErrInsufficientData is returned when too many estimator inputs are missing
// to support a confident indicator. Callers must not persist a record in that
// case; retrying on a later pass is fine.
var ErrInsufficientData = errors.New("insufficient data for condition estimate")

// EstimatorConfig holds the tunable coefficients of the condition estimator.
// Nothing in the algorithm hard-codes these; they load from the environment
// with defaults matching the values the going model was calibrated with.
type EstimatorConfig struct {
	// Depth weights for the soil-moisture component, surface first
	// (0-1cm, 1-3cm, 3-9cm). Renormalized over the depths actually present.
	DepthWeights [3]float64 `validate:"required"`

	// SoilMoistureScale is the volumetric soil-moisture value (m3/m3) treated
	// as full saturation when normalizing into [0,1].
	SoilMoistureScale float64 `validate:"gt=0"`

	// Component weights for the saturation score.
	SoilWeight   float64 `validate:"gte=0"`
	Rain24Weight float64 `validate:"gte=0"`
	Rain7dWeight float64 `validate:"gte=0"`

	// Rainfall sums (mm) treated as fully saturating for their component.
	Rain24ScaleMm float64 `validate:"gt=0"`
	Rain7dScaleMm float64 `validate:"gt=0"`

	// Fresh-rain boost applied to the going mapping: recent rain softens the
	// going more than old rain that has already drained.
	FreshRain1hCoeff float64 `validate:"gte=0"`
	FreshRain3hCoeff float64 `validate:"gte=0"`

	// GoingThresholds are the five ascending cut points over the effective
	// saturation score that separate the six going categories.
	GoingThresholds [5]float64 `validate:"required"`

	// TrendToleranceMmPerHour is the band around zero within which the trend
	// reports steady, to avoid flapping between drying and wetting on noise.
	TrendToleranceMmPerHour float64 `validate:"gte=0"`

	// MaxMissingInputs is how many of the required estimator inputs may be
	// absent before estimation fails with ErrInsufficientData.
	MaxMissingInputs int `validate:"gte=0"`
}

// DefaultEstimatorConfig returns the calibration defaults.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		DepthWeights:            [3]float64{0.5, 0.3, 0.2},
		SoilMoistureScale:       0.45,
		SoilWeight:              0.7,
		Rain24Weight:            0.2,
		Rain7dWeight:            0.1,
		Rain24ScaleMm:           25,
		Rain7dScaleMm:           60,
		FreshRain1hCoeff:        0.02,
		FreshRain3hCoeff:        0.01,
		GoingThresholds:         [5]float64{0.25, 0.40, 0.55, 0.67, 0.80},
		TrendToleranceMmPerHour: 0.1,
		MaxMissingInputs:        2,
	}
}

// Validate checks internal consistency beyond what struct tags express.
func (c EstimatorConfig) Validate() error {
	for i := 1; i < len(c.GoingThresholds); i++ {
		if c.GoingThresholds[i] <= c.GoingThresholds[i-1] {
			return fmt.Errorf("going thresholds must be strictly ascending, got %v", c.GoingThresholds)
		}
	}
	var wsum float64
	for _, w := range c.DepthWeights {
		if w < 0 {
			return fmt.Errorf("depth weights must be non-negative, got %v", c.DepthWeights)
		}
		wsum += w
	}
	if wsum == 0 {
		return errors.New("depth weights must not all be zero")
	}
	return nil
}

// Estimator derives track-condition indicators from windowed metrics and
// soil-moisture readings. It is stateless and safe for concurrent use.
type Estimator struct {
	cfg EstimatorConfig
}

// NewEstimator returns an Estimator using cfg.
func NewEstimator(cfg EstimatorConfig) *Estimator {
	return &Estimator{cfg: cfg}
}

// soil depth order must match EstimatorConfig.DepthWeights.
var soilDepthVars = [3]string{VarSoilMoisture01, VarSoilMoisture13, VarSoilMoisture39}

// Estimate converts aggregated rainfall and per-depth soil moisture into
// ConditionIndicators. It is pure: no clock, no randomness. Missing inputs
// degrade the estimate gracefully until MaxMissingInputs is exceeded, at
// which point it fails with ErrInsufficientData.
func (e *Estimator) Estimate(metrics map[MetricKey]WindowedMetric, soilMoistureByDepth map[string]float64) (ConditionIndicators, error) {
	rain1h, ok1h := precipSum(metrics, Window1h)
	rain3h, ok3h := precipSum(metrics, Window3h)
	rain24h, ok24h := precipSum(metrics, Window24h)
	rain7d, ok7d := precipSum(metrics, Window7d)

	missing := 0
	for _, ok := range []bool{ok1h, ok3h, ok24h, ok7d} {
		if !ok {
			missing++
		}
	}
	for _, depth := range soilDepthVars {
		if _, ok := soilMoistureByDepth[depth]; !ok {
			missing++
		}
	}
	if missing > e.cfg.MaxMissingInputs {
		return ConditionIndicators{}, fmt.Errorf("%w: %d of %d required inputs missing", ErrInsufficientData, missing, 4+len(soilDepthVars))
	}

	// Soil component: weighted average over present depths, weights
	// renormalized so a missing depth does not drag the score toward dry.
	var soilScore float64
	var soilWeightSum float64
	soilPresent := false
	for i, depth := range soilDepthVars {
		v, ok := soilMoistureByDepth[depth]
		if !ok {
			continue
		}
		soilScore += e.cfg.DepthWeights[i] * v
		soilWeightSum += e.cfg.DepthWeights[i]
		soilPresent = true
	}
	if soilPresent && soilWeightSum > 0 {
		soilScore = clamp01(soilScore / soilWeightSum / e.cfg.SoilMoistureScale)
	}

	// Rain components.
	rain24Score := clamp01(rain24h / e.cfg.Rain24ScaleMm)
	rain7dScore := clamp01(rain7d / e.cfg.Rain7dScaleMm)

	// Combine; drop weights whose input is absent and renormalize so the
	// score stays comparable across degraded and complete inputs.
	var score, weightSum float64
	if soilPresent {
		score += e.cfg.SoilWeight * soilScore
		weightSum += e.cfg.SoilWeight
	}
	if ok24h {
		score += e.cfg.Rain24Weight * rain24Score
		weightSum += e.cfg.Rain24Weight
	}
	if ok7d {
		score += e.cfg.Rain7dWeight * rain7dScore
		weightSum += e.cfg.Rain7dWeight
	}
	if weightSum == 0 {
		return ConditionIndicators{}, fmt.Errorf("%w: no saturation inputs available", ErrInsufficientData)
	}
	saturation := clamp01(score / weightSum)

	// Going: monotonic step function over saturation boosted by fresh rain,
	// which softens the going faster than rain already in the ground.
	effective := saturation
	if ok1h {
		effective += e.cfg.FreshRain1hCoeff * rain1h
	}
	if ok3h {
		effective += e.cfg.FreshRain3hCoeff * rain3h
	}
	going := e.goingFor(clamp01(effective))

	// Trend: recent rainfall intensity against the 24h baseline intensity.
	trend, rate := e.trendFor(rain1h, rain3h, rain24h, ok1h, ok3h, ok24h)

	return ConditionIndicators{
		GroundSaturation: saturation,
		PredictedGoing:   going,
		DryingTrend:      trend,
		TrendRate:        rate,
	}, nil
}

// goingFor maps an effective saturation score onto the going scale. Total and
// order-preserving: a higher score never yields a firmer category.
func (e *Estimator) goingFor(score float64) Going {
	scale := GoingScale()
	for i, threshold := range e.cfg.GoingThresholds {
		if score < threshold {
			return scale[i]
		}
	}
	return scale[len(scale)-1]
}

// trendFor compares short-window rain intensity with the 24h baseline. The
// 3h window is preferred for the recent intensity; 1h is the fallback.
func (e *Estimator) trendFor(rain1h, rain3h, rain24h float64, ok1h, ok3h, ok24h bool) (Trend, float64) {
	var recent float64
	switch {
	case ok3h:
		recent = rain3h / 3
	case ok1h:
		recent = rain1h
	default:
		return TrendSteady, 0
	}

	var base float64
	if ok24h {
		base = rain24h / 24
	}

	rate := recent - base
	switch {
	case math.Abs(rate) <= e.cfg.TrendToleranceMmPerHour:
		return TrendSteady, rate
	case rate > 0:
		return TrendWetting, rate
	default:
		return TrendDrying, rate
	}
}

// precipSum pulls the precipitation sum for a window, distinguishing a true
// zero from missing data.
func precipSum(metrics map[MetricKey]WindowedMetric, w Window) (float64, bool) {
	m, ok := metrics[MetricKey{Variable: VarPrecipitation, Window: w}]
	if !ok || m.Insufficient {
		return 0, false
	}
	return m.Value, true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
