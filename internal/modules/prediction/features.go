package prediction

import (
	"math"

	"github.com/chainquant/nvtengine/internal/domain"
	"github.com/chainquant/nvtengine/internal/modules/metrics"
	"github.com/chainquant/nvtengine/internal/modules/velocity"
	"github.com/chainquant/nvtengine/pkg/formulas"
)

// nvtTargetCap bounds the training target so a single near-zero-volume day
// cannot dominate the squared-error fit.
const nvtTargetCap = 1000.0

// featureNames indexes the 19-scalar feature vector: the ten derived
// transaction metrics, the five velocity fields, volume moving averages and
// their ratio, and price momentum.
var featureNames = []string{
	"avg_size",
	"velocity",
	"nvt_ratio",
	"nvm_ratio",
	"adjusted_nvt",
	"efficiency",
	"utilization",
	"fee_pressure",
	"congestion_index",
	"settlement_ratio",
	"daily_velocity",
	"weekly_velocity",
	"monthly_velocity",
	"velocity_volatility",
	"turnover",
	"volume_ma7",
	"volume_ma30",
	"volume_ma_ratio",
	"price_momentum",
}

// featureExtractor turns a series prefix into the model feature vector.
type featureExtractor struct {
	calc *metrics.Calculator
	vel  *velocity.Analyzer
}

func (fe *featureExtractor) vector(prefix domain.Series) []float64 {
	m := fe.calc.Compute(prefix)
	v := fe.vel.Analyze(prefix, m.Utilization)

	volumes := prefix.Volumes()
	ma7 := formulas.SmaLast(volumes, 7)
	ma30 := formulas.SmaLast(volumes, 30)
	maRatio := 1.0
	if ma30 > 0 {
		maRatio = ma7 / ma30
	}

	return []float64{
		m.AvgSize,
		m.Velocity,
		m.NVTRatio,
		m.NVMRatio,
		m.AdjustedNVT,
		m.Efficiency,
		m.Utilization,
		m.FeePressure,
		m.CongestionIndex,
		m.SettlementRatio,
		v.DailyVelocity,
		v.WeeklyVelocity,
		v.MonthlyVelocity,
		v.Volatility,
		v.Turnover,
		ma7,
		ma30,
		maRatio,
		formulas.RocLast(prefix.Prices(), 7),
	}
}

// trainingSet builds walk-forward rows: features from each prefix ending at
// index i, targets from index i+1. Rows with non-finite values are skipped.
func (fe *featureExtractor) trainingSet(series domain.Series) (x [][]float64, yNvt, yNvm []float64) {
	for i := 30; i <= series.Len()-2; i++ {
		row := fe.vector(series[:i+1])
		if !finite(row) {
			continue
		}
		next := series[i+1]
		tNvt := math.Min(metrics.CappedRatio(next.MarketCap, next.TransactionVolume), nvtTargetCap)
		tNvm := metrics.CappedRatio(next.MarketCap, next.ActiveAddresses*next.ActiveAddresses)
		if math.IsNaN(tNvt) || math.IsNaN(tNvm) {
			continue
		}
		x = append(x, row)
		yNvt = append(yNvt, tNvt)
		yNvm = append(yNvm, tNvm)
	}
	return x, yNvt, yNvm
}

func finite(row []float64) bool {
	for _, v := range row {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
