package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the population standard deviation of a slice of float64
// values. Population form (divisor N) so that a single observation yields 0,
// not NaN, which the rolling anomaly baselines rely on.
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return math.Sqrt(PopVariance(data))
}

// Variance calculates the sample variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// PopVariance calculates the population variance (divisor N, not N-1)
func PopVariance(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	m := stat.Mean(data, nil)
	var ss float64
	for _, v := range data {
		d := v - m
		ss += d * d
	}
	return ss / float64(len(data))
}

// Correlation calculates the Pearson correlation coefficient between two
// datasets. Returns 0 for mismatched lengths or degenerate (constant) inputs.
func Correlation(x, y []float64) float64 {
	if len(x) == 0 || len(y) == 0 || len(x) != len(y) {
		return 0
	}
	c := stat.Correlation(x, y, nil)
	if math.IsNaN(c) {
		return 0
	}
	return c
}

// PctChanges converts a series of levels into period-over-period fractional
// changes. A zero previous level, or one small enough to overflow the
// division, produces a 0 change instead of Inf.
// PctChanges[i] = (data[i+1] - data[i]) / data[i]
func PctChanges(data []float64) []float64 {
	if len(data) < 2 {
		return []float64{}
	}
	changes := make([]float64, len(data)-1)
	for i := 1; i < len(data); i++ {
		if data[i-1] == 0 {
			continue
		}
		c := (data[i] - data[i-1]) / data[i-1]
		if math.IsInf(c, 0) || math.IsNaN(c) {
			continue
		}
		changes[i-1] = c
	}
	return changes
}

// LogReturns converts a series of levels into log returns with an epsilon
// guard so zero levels never reach the logarithm.
func LogReturns(data []float64, eps float64) []float64 {
	if len(data) < 2 {
		return []float64{}
	}
	returns := make([]float64, len(data)-1)
	for i := 1; i < len(data); i++ {
		returns[i-1] = math.Log(data[i]+eps) - math.Log(data[i-1]+eps)
	}
	return returns
}

// Quantile returns the empirical p-quantile of data. The input is copied and
// sorted, so callers keep ownership of their slice.
func Quantile(p float64, data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

// Clamp bounds v to the [lo, hi] interval
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Skewness returns the sample skewness of data, 0 for degenerate input
func Skewness(data []float64) float64 {
	if len(data) < 3 {
		return 0
	}
	s := stat.Skew(data, nil)
	if math.IsNaN(s) || math.IsInf(s, 0) {
		return 0
	}
	return s
}

// ExKurtosis returns the sample excess kurtosis of data, 0 for degenerate input
func ExKurtosis(data []float64) float64 {
	if len(data) < 4 {
		return 0
	}
	k := stat.ExKurtosis(data, nil)
	if math.IsNaN(k) || math.IsInf(k, 0) {
		return 0
	}
	return k
}

// Autocorrelation returns the lag-k autocorrelation of data, 0 when the
// series is too short or has no variance.
func Autocorrelation(data []float64, lag int) float64 {
	if lag <= 0 || len(data) <= lag {
		return 0
	}
	return Correlation(data[:len(data)-lag], data[lag:])
}
