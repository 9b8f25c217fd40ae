package engine

import (
	"math"

	"github.com/chainquant/nvtengine/internal/domain"
	"github.com/chainquant/nvtengine/internal/modules/metrics"
)

// Backtest window and the minimum prefix Predict accepts.
const (
	backtestWindow    = 30
	minPredictHistory = 31
)

// backtest walks the trailing window, predicting each step from the
// history before it and scoring against the realized capped NVT. Nil when
// the engine is unfitted or the series cannot support the walk.
func (e *Engine) backtest(series domain.Series, fitted *fittedModels) *ModelPerformance {
	if fitted == nil || series.Len() < minPredictHistory+backtestWindow {
		return nil
	}

	var predicted, actual []float64
	for i := series.Len() - backtestWindow; i < series.Len(); i++ {
		preds := fitted.ensemble.Predict(series.Prefix(i))
		if len(preds) == 0 {
			continue
		}
		obs := series[i]
		target := math.Min(metrics.CappedRatio(obs.MarketCap, obs.TransactionVolume), metrics.RatioCap)
		if math.IsNaN(target) {
			continue
		}
		predicted = append(predicted, preds[0].PredictedNVT)
		actual = append(actual, target)
	}
	if len(actual) == 0 {
		return nil
	}

	mean := 0.0
	for _, v := range actual {
		mean += v
	}
	mean /= float64(len(actual))

	var sse, sae, sst float64
	for i := range actual {
		err := predicted[i] - actual[i]
		sse += err * err
		sae += math.Abs(err)
		sst += (actual[i] - mean) * (actual[i] - mean)
	}
	n := float64(len(actual))

	r2 := 0.0
	switch {
	case sst > 1e-12:
		r2 = 1 - sse/sst
	case sse/n < 1e-9:
		// Constant realized target hit almost exactly.
		r2 = 1
	}

	return &ModelPerformance{
		MSE:         sse / n,
		MAE:         sae / n,
		R2:          r2,
		SampleCount: len(actual),
	}
}
