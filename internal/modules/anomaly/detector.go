// Package anomaly flags statistical outliers in the trailing window's NVT
// and velocity behavior.
package anomaly

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/chainquant/nvtengine/internal/domain"
	"github.com/chainquant/nvtengine/internal/modules/metrics"
	"github.com/chainquant/nvtengine/pkg/formulas"
)

// Anomaly type labels.
const (
	TypeNVTSpike         = "nvt_spike"
	TypeNVTDrop          = "nvt_drop"
	TypeVolumeDisconnect = "volume_disconnect"
	TypeVelocityAnomaly  = "velocity_anomaly"
)

// Severity labels.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

const (
	windowSize          = 30
	highSeveritySigma   = 3.0
	disconnectThreshold = -0.5
)

// Anomaly is one flagged deviation of the latest observation.
type Anomaly struct {
	Score           float64  `json:"score"`
	IsAnomaly       bool     `json:"is_anomaly"`
	Type            string   `json:"type"`
	Severity        string   `json:"severity"`
	AffectedMetrics []string `json:"affected_metrics"`
	CandidateCauses []string `json:"candidate_causes"`
	MarketImpact    string   `json:"market_impact"`
}

// Detector flags z-score deviations of the latest NVT and velocity values
// against their trailing-window distribution.
type Detector struct {
	threshold float64
	calc      *metrics.Calculator
	log       zerolog.Logger
}

// NewDetector creates a detector. Non-positive thresholds fall back to 2.5.
func NewDetector(threshold float64, log zerolog.Logger) *Detector {
	if threshold <= 0 {
		threshold = 2.5
	}
	return &Detector{
		threshold: threshold,
		calc:      metrics.NewCalculator(log),
		log:       log.With().Str("component", "anomaly").Logger(),
	}
}

// Detect returns the anomalies of the latest observation. Series under 30
// points yield an empty list.
func (d *Detector) Detect(series domain.Series) []Anomaly {
	if series.Len() < windowSize {
		return []Anomaly{}
	}

	window := series.Tail(windowSize)
	nvtSeries := make([]float64, window.Len())
	velocitySeries := make([]float64, window.Len())
	for i := range window {
		m := d.calc.Compute(window[:i+1])
		nvtSeries[i] = m.NVTRatio
		velocitySeries[i] = m.Velocity
	}

	found := []Anomaly{}
	if a, ok := d.zScoreAnomaly(nvtSeries); ok {
		found = append(found, a)
	}
	if a, ok := d.velocityAnomaly(velocitySeries); ok {
		found = append(found, a)
	}
	if a, ok := d.disconnectAnomaly(window); ok {
		found = append(found, a)
	}
	return found
}

// zScoreAnomaly tests the latest NVT against the window distribution.
func (d *Detector) zScoreAnomaly(nvtSeries []float64) (Anomaly, bool) {
	current := nvtSeries[len(nvtSeries)-1]
	mean := formulas.Mean(nvtSeries)
	sigma := guardedSigma(formulas.StdDev(nvtSeries), mean)

	z := (current - mean) / sigma
	if math.Abs(z) <= d.threshold {
		return Anomaly{}, false
	}

	a := Anomaly{
		Score:           math.Abs(z),
		IsAnomaly:       true,
		Severity:        severityFor(math.Abs(z)),
		AffectedMetrics: []string{"nvt_ratio"},
	}
	if z > 0 {
		a.Type = TypeNVTSpike
		a.CandidateCauses = []string{"market_cap_increase", "volume_decrease"}
		a.MarketImpact = "bearish"
	} else {
		a.Type = TypeNVTDrop
		a.CandidateCauses = []string{"market_cap_decrease", "volume_increase"}
		a.MarketImpact = "bullish"
	}
	return a, true
}

// velocityAnomaly tests the latest velocity; these are always reported as
// medium severity with neutral impact.
func (d *Detector) velocityAnomaly(velocitySeries []float64) (Anomaly, bool) {
	current := velocitySeries[len(velocitySeries)-1]
	mean := formulas.Mean(velocitySeries)
	sigma := guardedSigma(formulas.StdDev(velocitySeries), mean)

	z := (current - mean) / sigma
	if math.Abs(z) <= d.threshold {
		return Anomaly{}, false
	}

	return Anomaly{
		Score:           math.Abs(z),
		IsAnomaly:       true,
		Type:            TypeVelocityAnomaly,
		Severity:        SeverityMedium,
		AffectedMetrics: []string{"velocity"},
		CandidateCauses: []string{"trading_activity_change", "network_usage_shift"},
		MarketImpact:    "neutral",
	}, true
}

// disconnectAnomaly flags a strongly negative price-volume correlation over
// the window.
func (d *Detector) disconnectAnomaly(window domain.Series) (Anomaly, bool) {
	corr := formulas.RollingCorrelLast(window.Prices(), window.Volumes(), windowSize)
	if corr >= disconnectThreshold {
		return Anomaly{}, false
	}
	return Anomaly{
		Score:           math.Abs(corr),
		IsAnomaly:       true,
		Type:            TypeVolumeDisconnect,
		Severity:        SeverityMedium,
		AffectedMetrics: []string{"price", "volume"},
		CandidateCauses: []string{"price_volume_divergence", "speculative_flow"},
		MarketImpact:    "uncertain",
	}, true
}

// guardedSigma keeps a zero standard deviation from producing an infinite
// z-score while leaving real dispersion untouched.
func guardedSigma(sigma, mean float64) float64 {
	floor := 1e-9 * (1 + math.Abs(mean))
	if sigma < floor {
		return floor
	}
	return sigma
}

func severityFor(z float64) string {
	if z > highSeveritySigma {
		return SeverityHigh
	}
	return SeverityMedium
}
