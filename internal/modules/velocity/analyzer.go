// Package velocity measures how fast value circulates relative to the
// network's capitalization, over multiple windows.
package velocity

import (
	"github.com/rs/zerolog"

	"github.com/chainquant/nvtengine/internal/domain"
	"github.com/chainquant/nvtengine/pkg/formulas"
)

// Trend labels for the 30-vs-30 velocity comparison.
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// seasonalFactors is a static month lookup, not a fitted seasonal model.
// Applied only when at least a full year of history exists.
var seasonalFactors = map[int]float64{
	1: 0.9, 2: 0.95, 3: 1.0, 4: 1.05, 5: 1.1, 6: 1.05,
	7: 1.0, 8: 0.95, 9: 1.0, 10: 1.05, 11: 1.1, 12: 0.9,
}

// Analysis is the multi-window velocity snapshot.
type Analysis struct {
	DailyVelocity      float64 `json:"daily_velocity"`
	WeeklyVelocity     float64 `json:"weekly_velocity"`
	MonthlyVelocity    float64 `json:"monthly_velocity"`
	Trend              string  `json:"trend"`
	Volatility         float64 `json:"volatility"`
	SeasonalAdjustment float64 `json:"seasonal_adjustment"`
	Efficiency         float64 `json:"efficiency"`
	Turnover           float64 `json:"turnover"`
}

// Analyzer computes velocity analyses over configurable windows.
type Analyzer struct {
	windows [3]int // daily, weekly, monthly
	log     zerolog.Logger
}

// NewAnalyzer creates a velocity analyzer. windows holds the daily, weekly
// and monthly window lengths; non-positive entries fall back to 1/7/30.
func NewAnalyzer(windows []int, log zerolog.Logger) *Analyzer {
	w := [3]int{1, 7, 30}
	for i := 0; i < len(windows) && i < 3; i++ {
		if windows[i] > 0 {
			w[i] = windows[i]
		}
	}
	return &Analyzer{windows: w, log: log.With().Str("component", "velocity").Logger()}
}

// Analyze returns the velocity snapshot for the series. Short series
// degrade to zeros and a stable trend.
func (a *Analyzer) Analyze(series domain.Series, utilization float64) Analysis {
	out := Analysis{
		DailyVelocity:      WindowVelocity(series, a.windows[0]),
		WeeklyVelocity:     WindowVelocity(series, a.windows[1]),
		MonthlyVelocity:    WindowVelocity(series, a.windows[2]),
		Trend:              a.trend(series),
		Volatility:         a.volatility(series),
		SeasonalAdjustment: a.seasonal(series),
		Turnover:           a.turnover(series),
	}
	if utilization > 0 {
		out.Efficiency = formulas.Clamp(out.MonthlyVelocity/utilization, 0, 10)
	}
	return out
}

// WindowVelocity is mean(volume)/mean(marketCap) over the trailing window.
// Returns 0 when the series is shorter than the window or degenerate.
func WindowVelocity(series domain.Series, window int) float64 {
	if window <= 0 || series.Len() < window {
		return 0
	}
	tail := series.Tail(window)
	meanCap := formulas.Mean(tail.MarketCaps())
	if meanCap <= 0 {
		return 0
	}
	return formulas.Mean(tail.Volumes()) / meanCap
}

// trend compares the most recent 30-period velocity against the preceding
// 30 periods. Requires 60 points, otherwise stable.
func (a *Analyzer) trend(series domain.Series) string {
	if series.Len() < 60 {
		return TrendStable
	}
	recent := WindowVelocity(series, 30)
	historical := WindowVelocity(series[:series.Len()-30], 30)
	if historical <= 0 {
		return TrendStable
	}
	change := (recent - historical) / historical
	switch {
	case change > 0.1:
		return TrendIncreasing
	case change < -0.1:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// volatility is the standard deviation of the rolling series of 30-period
// velocities. Requires 60 points, the same floor as the trend comparison,
// so the estimate never rests on fewer than 30 rolling samples.
func (a *Analyzer) volatility(series domain.Series) float64 {
	if series.Len() < 60 {
		return 0
	}
	velocities := make([]float64, 0, series.Len()-30)
	for i := 30; i < series.Len(); i++ {
		velocities = append(velocities, WindowVelocity(series[i-30:i], 30))
	}
	return formulas.StdDev(velocities)
}

// seasonal applies the fixed month table using the last observation's month,
// keeping the adjustment deterministic for a given series.
func (a *Analyzer) seasonal(series domain.Series) float64 {
	if series.Len() < 365 {
		return 1.0
	}
	if f, ok := seasonalFactors[int(series.Last().Timestamp.Month())]; ok {
		return f
	}
	return 1.0
}

// turnover is total volume over at most a year divided by mean market cap
// over the same stretch.
func (a *Analyzer) turnover(series domain.Series) float64 {
	tail := series.Tail(365)
	meanCap := formulas.Mean(tail.MarketCaps())
	if meanCap <= 0 {
		return 0
	}
	var total float64
	for _, v := range tail.Volumes() {
		total += v
	}
	return total / meanCap
}
