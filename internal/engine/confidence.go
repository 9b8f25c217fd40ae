package engine

import (
	"github.com/chainquant/nvtengine/internal/domain"
	"github.com/chainquant/nvtengine/pkg/formulas"
)

// Confidence factor constants. The score is the mean of four equally
// weighted factors, each in [0, 1].
const (
	dataFactorFloor    = 0.2
	unfittedPrediction = 0.3
	valuationInBand    = 0.8
	valuationOutOfBand = 0.4
	valuationBandLower = 10.0
	valuationBandUpper = 200.0
)

// confidenceScore blends data coverage, model agreement, risk, and
// valuation plausibility into one [0, 1] score.
func (e *Engine) confidenceScore(series domain.Series, out *Result) float64 {
	coverage := 1.0
	if e.cfg.LookbackPeriod > 0 {
		coverage = formulas.Clamp(float64(series.Len())/float64(e.cfg.LookbackPeriod), 0, 1)
	}
	dataFactor := dataFactorFloor + (1-dataFactorFloor)*coverage

	predFactor := unfittedPrediction
	if len(out.Predictions) > 0 {
		sum := 0.0
		for _, p := range out.Predictions {
			sum += p.ModelConfidence
		}
		predFactor = sum / float64(len(out.Predictions))
	}

	riskFactor := formulas.Clamp(1-out.Risk.Overall, 0, 1)

	valuationFactor := valuationOutOfBand
	if out.Metrics.NVTRatio >= valuationBandLower && out.Metrics.NVTRatio <= valuationBandUpper {
		valuationFactor = valuationInBand
	}

	score := (dataFactor + predFactor + riskFactor + valuationFactor) / 4
	return formulas.Clamp(score, 0, 1)
}
