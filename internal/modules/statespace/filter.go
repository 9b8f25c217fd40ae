// Package statespace smooths the noisy NVT and NVM ratio series with a
// local-linear-trend model. Two interchangeable estimators are provided:
// the full forward-backward Kalman treatment and a scalar recursive
// fallback that is always available.
package statespace

import (
	"github.com/rs/zerolog"

	"github.com/chainquant/nvtengine/internal/domain"
	"github.com/chainquant/nvtengine/internal/modules/metrics"
	"github.com/chainquant/nvtengine/pkg/formulas"
)

// Mode selects the estimation strategy at construction.
type Mode string

const (
	// ModeFull runs forward filtering, backward smoothing and parameter
	// selection by likelihood.
	ModeFull Mode = "full"
	// ModeSimplified runs the scalar recursive filter.
	ModeSimplified Mode = "simplified"
)

// minPoints is the shortest series the filter operates on.
const minPoints = 30

// TrendFilter estimates level and trend for one metric series.
type TrendFilter interface {
	Name() string
	Estimate(series []float64) (SeriesEstimate, error)
}

// SeriesEstimate is the per-metric filtering output.
type SeriesEstimate struct {
	Filtered      []float64 `json:"filtered"`
	Smoothed      []float64 `json:"smoothed"`
	Variance      []float64 `json:"variance"`
	Trend         []float64 `json:"trend"`
	LogLikelihood float64   `json:"log_likelihood"`
}

// Result combines the NVT and NVM estimates.
type Result struct {
	NVT                 SeriesEstimate `json:"nvt"`
	NVM                 SeriesEstimate `json:"nvm"`
	NoiseReductionRatio float64        `json:"noise_reduction_ratio"`
	Mode                string         `json:"mode"`
	Applied             bool           `json:"applied"`
}

// Filter runs a TrendFilter over the engine's ratio series.
type Filter struct {
	impl TrendFilter
	log  zerolog.Logger
}

// NewFilter creates a filter in the given mode. Unknown modes fall back to
// the simplified estimator.
func NewFilter(mode Mode, log zerolog.Logger) *Filter {
	var impl TrendFilter
	if mode == ModeFull {
		impl = &fullStateSpace{}
	} else {
		impl = &simplifiedRecursive{}
	}
	return &Filter{impl: impl, log: log.With().Str("component", "statespace").Logger()}
}

// Apply filters the per-observation NVT and NVM series. Short or degenerate
// input degrades to a neutral pass-through result, never an error.
func (f *Filter) Apply(series domain.Series) Result {
	nvtSeries, nvmSeries := ratioSeries(series)

	out := Result{Mode: f.impl.Name()}
	if len(nvtSeries) < minPoints {
		out.NVT = passthrough(nvtSeries)
		out.NVM = passthrough(nvmSeries)
		return out
	}

	nvt, errNvt := f.impl.Estimate(nvtSeries)
	if errNvt != nil {
		f.log.Warn().Err(errNvt).Msg("nvt estimation degraded to pass-through")
		nvt = passthrough(nvtSeries)
	}
	nvm, errNvm := f.impl.Estimate(nvmSeries)
	if errNvm != nil {
		f.log.Warn().Err(errNvm).Msg("nvm estimation degraded to pass-through")
		nvm = passthrough(nvmSeries)
	}

	out.NVT = nvt
	out.NVM = nvm
	out.Applied = errNvt == nil && errNvm == nil
	out.NoiseReductionRatio = noiseReduction(nvtSeries, nvt.Filtered)
	return out
}

// ratioSeries builds the per-observation capped NVT and NVM values.
func ratioSeries(series domain.Series) (nvt, nvm []float64) {
	nvt = make([]float64, series.Len())
	nvm = make([]float64, series.Len())
	for i, obs := range series {
		nvt[i] = metrics.CappedRatio(obs.MarketCap, obs.TransactionVolume)
		nvm[i] = metrics.CappedRatio(obs.MarketCap, obs.ActiveAddresses*obs.ActiveAddresses)
	}
	return nvt, nvm
}

// passthrough is the neutral degradation: raw values, zero trend.
func passthrough(series []float64) SeriesEstimate {
	filtered := append([]float64(nil), series...)
	return SeriesEstimate{
		Filtered: filtered,
		Smoothed: append([]float64(nil), series...),
		Variance: make([]float64, len(series)),
		Trend:    make([]float64, len(series)),
	}
}

// noiseReduction is the variance removed by filtering, clamped to [0,1].
func noiseReduction(raw, filtered []float64) float64 {
	rawVar := formulas.PopVariance(raw)
	if rawVar <= 0 {
		return 0
	}
	return formulas.Clamp(1-formulas.PopVariance(filtered)/rawVar, 0, 1)
}

// diffTrend is the first difference of a filtered series, 0 at the origin.
func diffTrend(filtered []float64) []float64 {
	trend := make([]float64, len(filtered))
	for i := 1; i < len(filtered); i++ {
		trend[i] = filtered[i] - filtered[i-1]
	}
	return trend
}
