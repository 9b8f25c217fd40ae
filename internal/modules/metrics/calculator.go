// Package metrics computes the per-reference-point NVT/NVM transaction
// metrics snapshot. Every function here is total: any series length,
// including empty, yields a finite result.
package metrics

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/chainquant/nvtengine/internal/domain"
	"github.com/chainquant/nvtengine/pkg/formulas"
)

// RatioCap is the sentinel for NVT/NVM ratios whose denominator is zero.
// Capped finite values keep rolling means and standard deviations usable.
const RatioCap = 1000.0

const (
	shortWindow     = 7
	mediumWindow    = 30
	longWindow      = 90
	efficiencyCeil  = 10.0
	utilizationCeil = 100.0
)

// TransactionMetrics is the snapshot at the most recent observation of a series.
type TransactionMetrics struct {
	Volume          float64 `json:"volume"`
	Count           float64 `json:"count"`
	AvgSize         float64 `json:"avg_size"`
	Velocity        float64 `json:"velocity"`
	NVTRatio        float64 `json:"nvt_ratio"`
	NVMRatio        float64 `json:"nvm_ratio"`
	AdjustedNVT     float64 `json:"adjusted_nvt"`
	Efficiency      float64 `json:"efficiency"`
	Utilization     float64 `json:"utilization"`
	FeePressure     float64 `json:"fee_pressure"`
	CongestionIndex float64 `json:"congestion_index"`
	SettlementRatio float64 `json:"settlement_ratio"`
}

// Calculator derives TransactionMetrics from an observation series.
type Calculator struct {
	log zerolog.Logger
}

// NewCalculator creates a metrics calculator
func NewCalculator(log zerolog.Logger) *Calculator {
	return &Calculator{log: log.With().Str("component", "metrics").Logger()}
}

// Compute returns the metrics snapshot for the last observation of the
// series. An empty series yields the documented defaults.
func (c *Calculator) Compute(series domain.Series) TransactionMetrics {
	if series.Len() == 0 {
		return TransactionMetrics{FeePressure: 1.0, CongestionIndex: 1.0, SettlementRatio: 0.5, Efficiency: 1.0}
	}

	last := series.Last()
	volume := last.TransactionVolume
	count := last.TransactionCount
	marketCap := last.MarketCap

	m := TransactionMetrics{
		Volume: volume,
		Count:  count,
	}

	if count > 0 {
		m.AvgSize = volume / count
	}
	if marketCap > 0 {
		m.Velocity = volume / marketCap
	}

	m.NVTRatio = CappedRatio(marketCap, volume)
	m.NVMRatio = CappedRatio(marketCap, last.ActiveAddresses*last.ActiveAddresses)
	m.AdjustedNVT = c.adjustedNVT(series, m.NVTRatio)
	m.Efficiency = c.efficiency(series)
	m.Utilization = c.utilization(series)
	m.FeePressure = c.feePressure(series)
	m.CongestionIndex = c.congestionIndex(series)
	m.SettlementRatio = c.settlementRatio(series)

	return m
}

// CappedRatio divides num by denom, substituting the RatioCap sentinel when
// the denominator is not positive or the quotient overflows. A subnormal
// denominator can overflow the division even though it passes the sign
// check, so the quotient is guarded too.
func CappedRatio(num, denom float64) float64 {
	if denom <= 0 {
		return RatioCap
	}
	r := num / denom
	if math.IsInf(r, 0) || math.IsNaN(r) {
		return RatioCap
	}
	return r
}

// adjustedNVT smooths the denominator with a trailing 90-period mean volume.
// Falls back to the raw ratio below 90 points.
func (c *Calculator) adjustedNVT(series domain.Series, nvt float64) float64 {
	if series.Len() < longWindow {
		return nvt
	}
	meanVolume := formulas.TailMean(series.Volumes(), longWindow)
	return CappedRatio(series.Last().MarketCap, meanVolume)
}

// efficiency compares 30-period volume growth against count growth.
func (c *Calculator) efficiency(series domain.Series) float64 {
	window := series.Tail(mediumWindow)
	volumeGrowth := formulas.Mean(formulas.PctChanges(window.Volumes()))
	countGrowth := formulas.Mean(formulas.PctChanges(window.Counts()))
	if countGrowth == 0 {
		return 1.0
	}
	return formulas.Clamp(volumeGrowth/countGrowth, 0, efficiencyCeil)
}

func (c *Calculator) utilization(series domain.Series) float64 {
	meanAddresses := formulas.TailMean(series.Addresses(), mediumWindow)
	if meanAddresses <= 0 {
		return 0
	}
	meanCount := formulas.TailMean(series.Counts(), mediumWindow)
	return formulas.Clamp(meanCount/meanAddresses, 0, utilizationCeil)
}

func (c *Calculator) feePressure(series domain.Series) float64 {
	meanFee := formulas.TailMean(series.Fees(), mediumWindow)
	if meanFee <= 0 {
		return 1.0
	}
	pressure := series.Last().AverageFee / meanFee
	if pressure < 0 {
		return 0
	}
	return pressure
}

// congestionIndex is the ratio of short-run to long-run mean transaction
// count. Neutral 1.0 below 90 points.
func (c *Calculator) congestionIndex(series domain.Series) float64 {
	if series.Len() < longWindow {
		return 1.0
	}
	counts := series.Counts()
	longMean := formulas.TailMean(counts, longWindow)
	if longMean <= 0 {
		return 1.0
	}
	return formulas.TailMean(counts, shortWindow) / longMean
}

func (c *Calculator) settlementRatio(series domain.Series) float64 {
	meanCap := formulas.TailMean(series.MarketCaps(), mediumWindow)
	if meanCap <= 0 {
		return 0
	}
	meanVolume := formulas.TailMean(series.Volumes(), mediumWindow)
	return formulas.Clamp(meanVolume/meanCap, 0, 1)
}
