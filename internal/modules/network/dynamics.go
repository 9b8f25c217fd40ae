// Package network derives secondary diagnostics from the velocity, fee and
// utility structure of the observation series. These are descriptive
// heuristics layered on top of the core metrics, not fitted models.
package network

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/chainquant/nvtengine/internal/domain"
	"github.com/chainquant/nvtengine/internal/modules/metrics"
	"github.com/chainquant/nvtengine/internal/modules/patterns"
	"github.com/chainquant/nvtengine/pkg/formulas"
)

// Velocity regime labels relative to the historical band.
const (
	RegimeHighVelocity   = "high_velocity"
	RegimeNormalVelocity = "normal_velocity"
	RegimeLowVelocity    = "low_velocity"
)

const analysisWindow = 30

// VelocityDynamics describes the shape and motion of the velocity series.
type VelocityDynamics struct {
	Momentum                   float64 `json:"momentum"`
	Acceleration               float64 `json:"acceleration"`
	Persistence                float64 `json:"persistence"`
	Regime                     string  `json:"regime"`
	CongestionAdjustedVelocity float64 `json:"congestion_adjusted_velocity"`
	Skewness                   float64 `json:"skewness"`
	Kurtosis                   float64 `json:"kurtosis"`
	P25                        float64 `json:"p25"`
	Median                     float64 `json:"median"`
	P75                        float64 `json:"p75"`
	PriceCorrelation           float64 `json:"price_correlation"`
	VolatilityIndex            float64 `json:"volatility_index"`
	TrendStrength              float64 `json:"trend_strength"`
}

// FeeDynamics describes the fee market around the latest observation.
type FeeDynamics struct {
	MeanFee                 float64 `json:"mean_fee"`
	FeeVolatility           float64 `json:"fee_volatility"`
	PressureIndex           float64 `json:"pressure_index"`
	MarketEfficiency        float64 `json:"market_efficiency"`
	CongestionFeeMultiplier float64 `json:"congestion_fee_multiplier"`
	FeeAdjustedNVT          float64 `json:"fee_adjusted_nvt"`
	RevenueSustainability   float64 `json:"revenue_sustainability"`
}

// UtilityValue splits activity into utility and speculative components
// using the pattern posteriors.
type UtilityValue struct {
	UtilityShare            float64 `json:"utility_share"`
	SpeculativeShare        float64 `json:"speculative_share"`
	ProductiveActivity      float64 `json:"productive_activity"`
	NetworkUtilityScore     float64 `json:"network_utility_score"`
	RealEconomicValue       float64 `json:"real_economic_value"`
	NetworkEffectMultiplier float64 `json:"network_effect_multiplier"`
	SustainabilityIndex     float64 `json:"sustainability_index"`
	MaturityScore           float64 `json:"maturity_score"`
}

// Analyzer computes the supplementary network diagnostics.
type Analyzer struct {
	log zerolog.Logger
}

// NewAnalyzer creates a network analyzer.
func NewAnalyzer(log zerolog.Logger) *Analyzer {
	return &Analyzer{log: log.With().Str("component", "network").Logger()}
}

// VelocityDynamics characterizes the per-observation velocity series.
func (a *Analyzer) VelocityDynamics(series domain.Series, m metrics.TransactionMetrics) VelocityDynamics {
	velocities := velocitySeries(series)
	out := VelocityDynamics{Regime: RegimeNormalVelocity}
	if len(velocities) < 3 {
		return out
	}

	changes := formulas.PctChanges(velocities)
	out.Momentum = formulas.TailMean(changes, 7)

	n := len(velocities)
	out.Acceleration = velocities[n-1] - 2*velocities[n-2] + velocities[n-3]
	out.Persistence = math.Abs(formulas.Autocorrelation(velocities, 1))

	mean := formulas.Mean(velocities)
	std := formulas.StdDev(velocities)
	current := velocities[n-1]
	switch {
	case current > mean+std:
		out.Regime = RegimeHighVelocity
	case current < mean-std:
		out.Regime = RegimeLowVelocity
	}

	if m.CongestionIndex > 0 {
		out.CongestionAdjustedVelocity = current / m.CongestionIndex
	}

	out.Skewness = formulas.Skewness(velocities)
	out.Kurtosis = formulas.ExKurtosis(velocities)
	out.P25 = formulas.Quantile(0.25, velocities)
	out.Median = formulas.Quantile(0.5, velocities)
	out.P75 = formulas.Quantile(0.75, velocities)
	out.PriceCorrelation = formulas.Correlation(velocities, series.Prices())
	if mean > 0 {
		out.VolatilityIndex = std / mean
	}
	out.TrendStrength = math.Abs(formulas.Correlation(velocities, indexRamp(n)))
	return out
}

// FeeDynamics summarizes the fee market over the trailing window.
func (a *Analyzer) FeeDynamics(series domain.Series, m metrics.TransactionMetrics) FeeDynamics {
	fees := formulas.Tail(series.Fees(), analysisWindow)
	out := FeeDynamics{
		CongestionFeeMultiplier: 1 + 2*m.CongestionIndex,
		FeeAdjustedNVT:          m.NVTRatio,
		MarketEfficiency:        1,
	}
	if len(fees) == 0 {
		return out
	}

	out.MeanFee = formulas.Mean(fees)
	std := formulas.StdDev(fees)
	if out.MeanFee > 0 {
		out.FeeVolatility = std / out.MeanFee
	}

	sigma := math.Max(std, 1e-9*(1+math.Abs(out.MeanFee)))
	out.PressureIndex = (fees[len(fees)-1] - out.MeanFee) / sigma
	out.MarketEfficiency = 1 / (1 + out.FeeVolatility)
	out.FeeAdjustedNVT = m.NVTRatio * (1 + 0.1*out.PressureIndex)
	out.RevenueSustainability = formulas.Clamp(
		out.MarketEfficiency*(1-math.Min(math.Abs(out.PressureIndex)/5, 1)), 0, 1)
	return out
}

// UtilityValue splits activity along the utility/speculation axis. Absent
// pattern evidence both shares sit at the neutral 0.25 prior.
func (a *Analyzer) UtilityValue(series domain.Series, m metrics.TransactionMetrics, found []patterns.Pattern) UtilityValue {
	out := UtilityValue{UtilityShare: 0.25, SpeculativeShare: 0.25}
	for _, p := range found {
		switch p.Type {
		case patterns.TypeUtility:
			out.UtilityShare = p.Strength
		case patterns.TypeSpeculation:
			out.SpeculativeShare = p.Strength
		}
	}

	out.ProductiveActivity = m.Utilization * out.UtilityShare
	out.NetworkUtilityScore = formulas.Clamp(
		0.5*out.UtilityShare+0.5*formulas.Clamp(1-m.NVTRatio/200, 0, 1), 0, 1)
	out.RealEconomicValue = m.Volume * out.UtilityShare
	out.NetworkEffectMultiplier = formulas.Clamp(
		math.Log1p(series.Last().ActiveAddresses)/math.Log1p(1e7), 0, 2)
	out.SustainabilityIndex = out.UtilityShare / (out.UtilityShare + out.SpeculativeShare + 1e-9)

	velocities := velocitySeries(series)
	cv := 0.0
	if mean := formulas.Mean(velocities); mean > 0 {
		cv = formulas.StdDev(velocities) / mean
	}
	out.MaturityScore = formulas.Clamp(float64(series.Len())/730, 0, 1) / (1 + cv)
	return out
}

func velocitySeries(series domain.Series) []float64 {
	out := make([]float64, series.Len())
	for i, obs := range series {
		if obs.MarketCap > 0 {
			out[i] = obs.TransactionVolume / obs.MarketCap
		}
	}
	return out
}

func indexRamp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}
