// Package risk folds the computed metrics, velocity behavior and cluster
// structure into a composite transaction risk score.
package risk

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/chainquant/nvtengine/internal/modules/clustering"
	"github.com/chainquant/nvtengine/internal/modules/metrics"
	"github.com/chainquant/nvtengine/internal/modules/velocity"
)

// mitigationThreshold is the factor level above which mitigation advice is
// attached.
const mitigationThreshold = 0.7

// defaultConcentration applies when no clusters are available.
const defaultConcentration = 0.5

// Assessment is the composite risk snapshot, every factor in [0,1].
type Assessment struct {
	Overall       float64  `json:"overall"`
	Liquidity     float64  `json:"liquidity"`
	Concentration float64  `json:"concentration"`
	Velocity      float64  `json:"velocity"`
	Settlement    float64  `json:"settlement"`
	Congestion    float64  `json:"congestion"`
	Mitigations   []string `json:"mitigations"`
}

var mitigations = map[string]string{
	"liquidity":     "monitor_market_depth_and_stagger_large_settlements",
	"concentration": "diversify_counterparty_exposure_across_cohorts",
	"velocity":      "widen_rebalancing_bands_during_velocity_swings",
	"settlement":    "increase_settlement_reserve_buffers",
	"congestion":    "defer_non_urgent_transactions_to_off_peak_windows",
}

// Assessor scores composite transaction risk.
type Assessor struct {
	log zerolog.Logger
}

// NewAssessor creates a risk assessor.
func NewAssessor(log zerolog.Logger) *Assessor {
	return &Assessor{log: log.With().Str("component", "risk").Logger()}
}

// Assess combines five bounded factors into the overall score.
func (a *Assessor) Assess(m metrics.TransactionMetrics, v velocity.Analysis, clusters []clustering.Cluster) Assessment {
	out := Assessment{
		Liquidity:     1 - math.Min(10*m.Velocity, 1),
		Concentration: concentrationRisk(clusters),
		Velocity:      math.Min(5*v.Volatility, 1),
		Settlement:    1 - m.SettlementRatio,
		Congestion:    math.Min(m.CongestionIndex/3, 1),
	}
	out.Overall = (out.Liquidity + out.Concentration + out.Velocity + out.Settlement + out.Congestion) / 5

	out.Mitigations = []string{}
	for factor, value := range map[string]float64{
		"liquidity":     out.Liquidity,
		"concentration": out.Concentration,
		"velocity":      out.Velocity,
		"settlement":    out.Settlement,
		"congestion":    out.Congestion,
	} {
		if value > mitigationThreshold {
			out.Mitigations = append(out.Mitigations, mitigations[factor])
		}
	}
	sort.Strings(out.Mitigations)
	return out
}

// concentrationRisk is the largest single-cluster share of window volume.
func concentrationRisk(clusters []clustering.Cluster) float64 {
	if len(clusters) == 0 {
		return defaultConcentration
	}
	var maxImpact float64
	for _, c := range clusters {
		if c.NVTImpact > maxImpact {
			maxImpact = c.NVTImpact
		}
	}
	return math.Min(maxImpact, 1)
}
