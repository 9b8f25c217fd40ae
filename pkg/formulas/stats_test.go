package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil), "empty input should return 0")
	assert.InDelta(t, 2.0, Mean([]float64{1, 2, 3}), 1e-12)
}

func TestStdDevPopulationForm(t *testing.T) {
	// Single observation must yield 0, not NaN.
	assert.Equal(t, 0.0, StdDev([]float64{5}))

	// Population std of {2, 4, 4, 4, 5, 5, 7, 9} is exactly 2.
	data := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 2.0, StdDev(data), 1e-12)
}

func TestCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 4, 6, 8, 10}
	assert.InDelta(t, 1.0, Correlation(x, y), 1e-12, "perfectly linear series")

	constant := []float64{3, 3, 3, 3, 3}
	assert.Equal(t, 0.0, Correlation(x, constant), "degenerate input should return 0, not NaN")

	assert.Equal(t, 0.0, Correlation(x, y[:3]), "mismatched lengths should return 0")
}

func TestPctChanges(t *testing.T) {
	changes := PctChanges([]float64{100, 110, 99})
	assert.Len(t, changes, 2)
	assert.InDelta(t, 0.10, changes[0], 1e-12)
	assert.InDelta(t, -0.10, changes[1], 1e-12)

	// Zero level must not produce Inf.
	changes = PctChanges([]float64{0, 10})
	assert.Equal(t, 0.0, changes[0])

	// A subnormal level passes the zero check but overflows the division.
	changes = PctChanges([]float64{5e-310, 1e9})
	assert.Equal(t, 0.0, changes[0])

	assert.Empty(t, PctChanges([]float64{42}))
}

func TestLogReturns(t *testing.T) {
	returns := LogReturns([]float64{100, 100 * math.E}, 0)
	assert.Len(t, returns, 1)
	assert.InDelta(t, 1.0, returns[0], 1e-12)

	// Epsilon keeps zero levels finite.
	returns = LogReturns([]float64{0, 1}, 1e-10)
	assert.False(t, math.IsInf(returns[0], 0))
}

func TestQuantile(t *testing.T) {
	data := []float64{9, 1, 5, 3, 7}
	assert.InDelta(t, 5.0, Quantile(0.5, data), 1e-12)
	assert.InDelta(t, 1.0, Quantile(0.0, data), 1e-12)
	assert.InDelta(t, 9.0, Quantile(1.0, data), 1e-12)
	assert.Equal(t, []float64{9, 1, 5, 3, 7}, data, "input must not be reordered")
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-1, 0, 1))
	assert.Equal(t, 1.0, Clamp(2, 0, 1))
	assert.Equal(t, 0.5, Clamp(0.5, 0, 1))
}

func TestAutocorrelation(t *testing.T) {
	// Alternating series has strong negative lag-1 autocorrelation.
	data := []float64{1, -1, 1, -1, 1, -1, 1, -1}
	assert.Less(t, Autocorrelation(data, 1), -0.9)
	assert.Equal(t, 0.0, Autocorrelation(data, 100), "lag beyond length")
	assert.Equal(t, 0.0, Autocorrelation(data, 0), "non-positive lag")
}
