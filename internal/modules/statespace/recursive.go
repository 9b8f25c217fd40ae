package statespace

import "errors"

// Simplified recursive filter constants: additive process-noise inflation
// per step and the observation-noise term in the gain.
const (
	processNoiseStep = 0.1
	observationNoise = 0.5
)

// simplifiedRecursive is a scalar exponential-style filter: inflate the
// error estimate, blend the observation in proportion to it, shrink the
// error by the gain. No backward pass, no likelihood.
type simplifiedRecursive struct{}

func (s *simplifiedRecursive) Name() string { return "simplified_recursive" }

func (s *simplifiedRecursive) Estimate(series []float64) (SeriesEstimate, error) {
	if len(series) == 0 {
		return SeriesEstimate{}, errors.New("simplified filter: empty series")
	}

	filtered := make([]float64, len(series))
	variance := make([]float64, len(series))

	estimate := series[0]
	errEstimate := 1.0
	for i, obs := range series {
		errEstimate += processNoiseStep
		gain := errEstimate / (errEstimate + observationNoise)
		estimate += gain * (obs - estimate)
		errEstimate *= 1 - gain

		filtered[i] = estimate
		variance[i] = errEstimate
	}

	return SeriesEstimate{
		Filtered: filtered,
		Smoothed: append([]float64(nil), filtered...),
		Variance: variance,
		Trend:    diffTrend(filtered),
	}, nil
}
