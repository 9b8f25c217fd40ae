package formulas

import (
	"github.com/markcheno/go-talib"
)

// Tail returns the last n elements of data (the whole slice when shorter).
// The returned slice aliases the input.
func Tail(data []float64, n int) []float64 {
	if n <= 0 || len(data) == 0 {
		return []float64{}
	}
	if len(data) <= n {
		return data
	}
	return data[len(data)-n:]
}

// TailMean returns the mean of the last n elements of data
func TailMean(data []float64, n int) float64 {
	return Mean(Tail(data, n))
}

// TailStd returns the population standard deviation of the last n elements
func TailStd(data []float64, n int) float64 {
	return StdDev(Tail(data, n))
}

// TailSum returns the sum of the last n elements of data
func TailSum(data []float64, n int) float64 {
	var sum float64
	for _, v := range Tail(data, n) {
		sum += v
	}
	return sum
}

// SmaLast returns the latest value of a period-length simple moving average.
// Series shorter than the period fall back to the plain mean.
func SmaLast(data []float64, period int) float64 {
	if period <= 1 || len(data) < period {
		return Mean(data)
	}
	sma := talib.Sma(data, period)
	return sma[len(sma)-1]
}

// RollingStdLast returns the latest value of a period-length rolling standard
// deviation. Series shorter than the period fall back to the full-series std.
func RollingStdLast(data []float64, period int) float64 {
	if period <= 1 || len(data) < period {
		return StdDev(data)
	}
	std := talib.StdDev(data, period, 1.0)
	return std[len(std)-1]
}

// RocLast returns the latest period-over-period rate of change as a fraction
// (0.05 means +5%). Series shorter than period+1 return 0.
func RocLast(data []float64, period int) float64 {
	if period <= 0 || len(data) <= period {
		return 0
	}
	roc := talib.Roc(data, period)
	return roc[len(roc)-1] / 100.0
}

// RollingCorrelLast returns the latest period-length rolling Pearson
// correlation between x and y. Shorter series use the full overlap.
func RollingCorrelLast(x, y []float64, period int) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	if len(x) < period || period < 2 {
		return Correlation(x, y)
	}
	corr := talib.Correl(x, y, period)
	c := corr[len(corr)-1]
	if c != c { // NaN
		return 0
	}
	return c
}
