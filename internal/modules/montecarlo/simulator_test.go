package montecarlo

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainquant/nvtengine/internal/domain"
)

func flatSeries(n int) domain.Series {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(domain.Series, n)
	for i := range s {
		s[i] = domain.Observation{
			Timestamp:         start.AddDate(0, 0, i),
			TransactionVolume: 1e9,
			MarketCap:         1e12,
			ActiveAddresses:   1e6,
		}
	}
	return s
}

func noisySeries(n int) domain.Series {
	s := flatSeries(n)
	for i := range s {
		s[i].TransactionVolume = 1e9 * (1 + 0.4*math.Sin(float64(i)/5) + 0.1*math.Cos(float64(i)*1.7))
	}
	return s
}

func TestSimulateRequiresHistory(t *testing.T) {
	sim := NewSimulator(100, 42, zerolog.Nop())
	_, ok := sim.Simulate(flatSeries(49))
	assert.False(t, ok)
}

func TestFlatSeriesStaysFlat(t *testing.T) {
	sim := NewSimulator(1000, 42, zerolog.Nop())
	out, ok := sim.Simulate(flatSeries(400))
	require.True(t, ok)

	assert.Equal(t, 30, out.Steps, "min(30, 400/4)")
	assert.Equal(t, 1000, out.Paths)

	for _, v := range out.NVT.MeanPath {
		assert.InDelta(t, 1000.0, v, 1e-6, "zero variance keeps the mean path at the current level")
	}
	assert.InDelta(t, 0.5, out.NVT.Risk.ProbabilityOfDecline, 1e-9,
		"all-tie terminal distribution scores one half")
	assert.InDelta(t, 0.0, out.NVT.Risk.ExpectedReturn, 1e-9)
	assert.InDelta(t, 0.0, out.NVT.Terminal.Std, 1e-9)
}

func TestSimulationDeterministicBySeed(t *testing.T) {
	series := noisySeries(300)

	a, ok := NewSimulator(200, 7, zerolog.Nop()).Simulate(series)
	require.True(t, ok)
	b, ok := NewSimulator(200, 7, zerolog.Nop()).Simulate(series)
	require.True(t, ok)
	assert.Equal(t, a, b, "same seed, same result")

	c, ok := NewSimulator(200, 8, zerolog.Nop()).Simulate(series)
	require.True(t, ok)
	assert.NotEqual(t, a.NVT.Terminal.Mean, c.NVT.Terminal.Mean, "different seed moves the draw")
}

func TestBandsAreOrdered(t *testing.T) {
	out, ok := NewSimulator(500, 42, zerolog.Nop()).Simulate(noisySeries(300))
	require.True(t, ok)

	for t2 := 0; t2 < out.Steps; t2++ {
		assert.LessOrEqual(t, out.NVT.Band95.Lower[t2], out.NVT.Band68.Lower[t2])
		assert.LessOrEqual(t, out.NVT.Band68.Lower[t2], out.NVT.MeanPath[t2])
		assert.LessOrEqual(t, out.NVT.MeanPath[t2], out.NVT.Band68.Upper[t2])
		assert.LessOrEqual(t, out.NVT.Band68.Upper[t2], out.NVT.Band95.Upper[t2])
	}

	assert.LessOrEqual(t, out.NVT.Stress.P1, out.NVT.Terminal.P5)
	assert.LessOrEqual(t, out.NVT.Terminal.P95, out.NVT.Stress.P99)
}

func TestScenarioProbabilitiesBounded(t *testing.T) {
	out, ok := NewSimulator(500, 42, zerolog.Nop()).Simulate(noisySeries(300))
	require.True(t, ok)

	for name, p := range map[string]float64{
		"nvt_over":  out.Scenarios.NVTOvervaluation,
		"nvt_under": out.Scenarios.NVTUndervaluation,
		"nvm_grow":  out.Scenarios.NVMGrowth,
		"nvm_fall":  out.Scenarios.NVMDecline,
	} {
		assert.GreaterOrEqual(t, p, 0.0, name)
		assert.LessOrEqual(t, p, 1.0, name)
	}
}

func TestPathsFlooredPositive(t *testing.T) {
	// Crashing volume drives NVT upward; floors still hold on every path.
	series := flatSeries(200)
	for i := range series {
		series[i].TransactionVolume = 1e9 / (1 + float64(i))
	}
	out, ok := NewSimulator(300, 42, zerolog.Nop()).Simulate(series)
	require.True(t, ok)

	for _, v := range out.NVT.MeanPath {
		assert.GreaterOrEqual(t, v, nvtFloor)
		assert.False(t, math.IsInf(v, 0))
	}
}
