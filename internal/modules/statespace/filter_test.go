package statespace

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainquant/nvtengine/internal/domain"
	"github.com/chainquant/nvtengine/pkg/formulas"
)

// noisyTrend is a rising level with deterministic pseudo-noise.
func noisyTrend(n int, seed int64) []float64 {
	//nolint:gosec // G404: test data generation
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = 50 + 0.2*float64(i) + 5*rng.NormFloat64()
	}
	return out
}

func ratioObservations(n int, volume func(i int) float64) domain.Series {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(domain.Series, n)
	for i := range s {
		s[i] = domain.Observation{
			Timestamp:         start.AddDate(0, 0, i),
			TransactionVolume: volume(i),
			MarketCap:         1e12,
			ActiveAddresses:   1e6,
		}
	}
	return s
}

func TestSimplifiedFilterTracksLevel(t *testing.T) {
	impl := &simplifiedRecursive{}
	series := noisyTrend(100, 1)

	est, err := impl.Estimate(series)
	require.NoError(t, err)
	require.Len(t, est.Filtered, len(series))

	assert.Less(t, formulas.PopVariance(diffTrend(est.Filtered)), formulas.PopVariance(diffTrend(series)),
		"filtered steps should be calmer than raw steps")
	assert.InDelta(t, series[len(series)-1], est.Filtered[len(series)-1], 20,
		"filter keeps up with the level")

	_, err = impl.Estimate(nil)
	assert.Error(t, err)
}

func TestFullStateSpaceSmoothsNoise(t *testing.T) {
	impl := &fullStateSpace{}
	series := noisyTrend(150, 2)

	est, err := impl.Estimate(series)
	require.NoError(t, err)
	require.Len(t, est.Smoothed, len(series))

	// Smoothed residuals around the true trend line shrink vs raw.
	rawErr, smoothErr := 0.0, 0.0
	for i, v := range series {
		truth := 50 + 0.2*float64(i)
		rawErr += math.Abs(v - truth)
		smoothErr += math.Abs(est.Smoothed[i] - truth)
	}
	assert.Less(t, smoothErr, rawErr)

	assert.Less(t, est.LogLikelihood, 0.0)
	for _, v := range est.Variance {
		assert.False(t, math.IsNaN(v))
	}
	// Positive slope recovered on a rising series.
	assert.Greater(t, est.Trend[len(est.Trend)-1], 0.0)
}

func TestApplyShortSeriesPassthrough(t *testing.T) {
	f := NewFilter(ModeFull, zerolog.Nop())
	obs := ratioObservations(10, func(int) float64 { return 1e9 })

	out := f.Apply(obs)
	assert.False(t, out.Applied)
	assert.Len(t, out.NVT.Filtered, 10)
	assert.Equal(t, out.NVT.Filtered, out.NVT.Smoothed)
	assert.Zero(t, out.NoiseReductionRatio)
}

func TestApplyReducesNoise(t *testing.T) {
	//nolint:gosec // G404: test data generation
	rng := rand.New(rand.NewSource(3))
	obs := ratioObservations(120, func(int) float64 {
		return 1e9 * (1 + 0.3*rng.Float64())
	})

	for _, mode := range []Mode{ModeFull, ModeSimplified} {
		out := NewFilter(mode, zerolog.Nop()).Apply(obs)
		assert.True(t, out.Applied, string(mode))
		assert.GreaterOrEqual(t, out.NoiseReductionRatio, 0.0, string(mode))
		assert.LessOrEqual(t, out.NoiseReductionRatio, 1.0, string(mode))
		assert.Len(t, out.NVM.Filtered, 120, string(mode))
	}
}

func TestApplyFlatSeries(t *testing.T) {
	f := NewFilter(ModeFull, zerolog.Nop())
	obs := ratioObservations(60, func(int) float64 { return 1e9 })

	out := f.Apply(obs)
	assert.True(t, out.Applied)
	assert.InDelta(t, 1000.0, out.NVT.Filtered[59], 1.0, "flat ratio stays put")
	assert.Zero(t, out.NoiseReductionRatio, "no variance to remove")
}

func TestModeSelection(t *testing.T) {
	assert.Equal(t, "full_state_space", NewFilter(ModeFull, zerolog.Nop()).impl.Name())
	assert.Equal(t, "simplified_recursive", NewFilter(ModeSimplified, zerolog.Nop()).impl.Name())
	assert.Equal(t, "simplified_recursive", NewFilter(Mode("??"), zerolog.Nop()).impl.Name())
}
