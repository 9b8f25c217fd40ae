package patterns

import (
	"github.com/chainquant/nvtengine/internal/domain"
	"github.com/chainquant/nvtengine/internal/modules/metrics"
	"github.com/chainquant/nvtengine/pkg/formulas"
)

// WindowSize is the trailing window a feature vector describes.
const WindowSize = 30

// featureDim is the length of the window feature vector.
const featureDim = 8

var featureNames = [featureDim]string{
	"volume_trend",
	"volume_volatility",
	"count_trend",
	"count_volatility",
	"price_volume_correlation",
	"nvt_ratio",
	"velocity",
	"utilization",
}

// windowFeatures summarizes a 30-observation window into the 8 scalars the
// mixture model is trained on.
func windowFeatures(window domain.Series) []float64 {
	volumes := window.Volumes()
	counts := window.Counts()

	volumeChanges := formulas.PctChanges(volumes)
	countChanges := formulas.PctChanges(counts)

	last := window.Last()
	velocity := 0.0
	if last.MarketCap > 0 {
		velocity = last.TransactionVolume / last.MarketCap
	}
	utilization := 0.0
	if meanAddr := formulas.Mean(window.Addresses()); meanAddr > 0 {
		utilization = formulas.Mean(counts) / meanAddr
	}

	return []float64{
		formulas.Mean(volumeChanges),
		formulas.StdDev(volumeChanges),
		formulas.Mean(countChanges),
		formulas.StdDev(countChanges),
		formulas.RollingCorrelLast(window.Prices(), volumes, WindowSize),
		metrics.CappedRatio(last.MarketCap, last.TransactionVolume),
		velocity,
		utilization,
	}
}

// trainingWindows builds one feature row per trailing window position.
func trainingWindows(series domain.Series) [][]float64 {
	if series.Len() < WindowSize {
		return nil
	}
	rows := make([][]float64, 0, series.Len()-WindowSize+1)
	for end := WindowSize; end <= series.Len(); end++ {
		rows = append(rows, windowFeatures(series[end-WindowSize:end]))
	}
	return rows
}
