package engine

import (
	"fmt"
	"math"

	"github.com/chainquant/nvtengine/internal/modules/anomaly"
	"github.com/chainquant/nvtengine/internal/modules/patterns"
)

// Recommendation thresholds, shared with the prediction regime bounds.
const (
	accumulationNVT   = 20.0
	overvaluationNVT  = 100.0
	elevatedRisk      = 0.7
	forecastDeviation = 0.10
)

// recommend turns the assembled result into ordered, human-readable
// guidance. At least one entry is always returned.
func (e *Engine) recommend(out *Result) []string {
	recs := []string{}

	nvt := out.Metrics.NVTRatio
	switch {
	case nvt < accumulationNVT:
		recs = append(recs, fmt.Sprintf(
			"NVT ratio %.1f signals potential undervaluation, consider accumulation opportunities", nvt))
	case nvt > overvaluationNVT:
		recs = append(recs, fmt.Sprintf(
			"NVT ratio %.1f signals potential overvaluation, review exposure and exit criteria", nvt))
	}

	if hasHighSeverity(out.Anomalies) {
		recs = append(recs, "high severity anomaly detected, investigate recent network activity before acting")
	}

	if out.Risk.Overall > elevatedRisk {
		recs = append(recs, fmt.Sprintf(
			"overall risk %.2f is elevated, reduce position sizing until conditions normalize", out.Risk.Overall))
	}

	for _, p := range out.Patterns {
		switch p.Type {
		case patterns.TypeAccumulation:
			recs = append(recs, fmt.Sprintf(
				"accumulation pattern active (strength %.2f), sustained demand may support valuations", p.Strength))
		case patterns.TypeDistribution:
			recs = append(recs, fmt.Sprintf(
				"distribution pattern active (strength %.2f), supply overhang may pressure valuations", p.Strength))
		}
	}

	if rec := forecastRecommendation(out, nvt); rec != "" {
		recs = append(recs, rec)
	}

	if len(recs) == 0 {
		recs = append(recs, "network metrics within normal ranges, no action required")
	}
	return recs
}

// forecastRecommendation compares the shortest-horizon NVT forecast with
// the current value and flags moves beyond the deviation band.
func forecastRecommendation(out *Result, nvt float64) string {
	if len(out.Predictions) == 0 || nvt == 0 {
		return ""
	}
	shortest := out.Predictions[0]
	for _, p := range out.Predictions[1:] {
		if p.Horizon < shortest.Horizon {
			shortest = p
		}
	}
	change := (shortest.PredictedNVT - nvt) / math.Abs(nvt)
	switch {
	case change > forecastDeviation:
		return fmt.Sprintf(
			"%d period forecast expects NVT to rise %.0f%%, valuation pressure may build", shortest.Horizon, change*100)
	case change < -forecastDeviation:
		return fmt.Sprintf(
			"%d period forecast expects NVT to fall %.0f%%, conditions may improve", shortest.Horizon, -change*100)
	}
	return ""
}

func hasHighSeverity(anomalies []anomaly.Anomaly) bool {
	for _, a := range anomalies {
		if a.Severity == anomaly.SeverityHigh {
			return true
		}
	}
	return false
}
