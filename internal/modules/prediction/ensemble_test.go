package prediction

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/chainquant/nvtengine/internal/domain"
)

// waveSeries carries a slow volume cycle so NVT has learnable structure.
func waveSeries(n int) domain.Series {
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	s := make(domain.Series, n)
	for i := range s {
		phase := float64(i) / 20
		s[i] = domain.Observation{
			Timestamp:         start.AddDate(0, 0, i),
			TransactionVolume: 1e9 * (1 + 0.3*math.Sin(phase)),
			TransactionCount:  1e5 * (1 + 0.1*math.Cos(phase)),
			MarketCap:         5e10,
			ActiveAddresses:   2e5,
			AverageFee:        0.5 + 0.1*math.Sin(phase/2),
			Price:             50000 * (1 + 0.05*math.Sin(phase)),
		}
	}
	return s
}

func testConfig() Config {
	return Config{
		Horizons:        []int{7, 30, 90},
		VelocityWindows: []int{1, 7, 30},
		ConfidenceLevel: 0.95,
		Seed:            42,
	}
}

func TestFitProducesEightCVScores(t *testing.T) {
	e := NewEnsemble(testConfig(), zerolog.Nop())
	scores, err := e.Fit(waveSeries(400))
	require.NoError(t, err)
	require.True(t, e.Fitted())

	expected := []string{
		"nvt_random_forest", "nvt_gradient_boosting", "nvt_ridge", "nvt_elastic_net",
		"nvm_random_forest", "nvm_gradient_boosting", "nvm_ridge", "nvm_elastic_net",
	}
	assert.Len(t, scores, len(expected))
	for _, key := range expected {
		assert.Contains(t, scores, key)
	}
}

func TestTrainingRowsTracked(t *testing.T) {
	e := NewEnsemble(testConfig(), zerolog.Nop())
	assert.Zero(t, e.TrainingRows(), "unfitted ensemble has no rows")

	series := waveSeries(200)
	_, err := e.Fit(series)
	require.NoError(t, err)

	x, _, _, err := e.TrainingSet(series)
	require.NoError(t, err)
	assert.Equal(t, len(x), e.TrainingRows(), "row count matches the walk-forward set")
}

func TestFitFailsOnTooShortSeries(t *testing.T) {
	e := NewEnsemble(testConfig(), zerolog.Nop())
	_, err := e.Fit(waveSeries(20))
	assert.Error(t, err, "no usable feature rows")
	assert.False(t, e.Fitted())
}

func TestPredictUnfittedReturnsEmpty(t *testing.T) {
	e := NewEnsemble(testConfig(), zerolog.Nop())
	assert.Empty(t, e.Predict(waveSeries(400)))
}

func TestPredictOnePerHorizon(t *testing.T) {
	series := waveSeries(400)
	e := NewEnsemble(testConfig(), zerolog.Nop())
	_, err := e.Fit(series)
	require.NoError(t, err)

	preds := e.Predict(series)
	require.Len(t, preds, 3)

	for i, horizon := range []int{7, 30, 90} {
		p := preds[i]
		assert.Equal(t, horizon, p.Horizon)
		assert.False(t, math.IsNaN(p.PredictedNVT))
		assert.False(t, math.IsNaN(p.PredictedNVM))
		assert.LessOrEqual(t, p.ConfidenceIntervalNVT.Lower, p.PredictedNVT)
		assert.GreaterOrEqual(t, p.ConfidenceIntervalNVT.Upper, p.PredictedNVT)
		assert.GreaterOrEqual(t, p.ModelConfidence, 0.0)
		assert.LessOrEqual(t, p.ModelConfidence, 1.0)
		assert.NotEmpty(t, p.MarketRegime)
		assert.NotEmpty(t, p.FeatureImportance)
	}

	// The true next-day NVT stays around 5e10/1e9 = 50; a sane ensemble
	// forecast should land in the same order of magnitude.
	assert.Greater(t, preds[0].PredictedNVT, 10.0)
	assert.Less(t, preds[0].PredictedNVT, 200.0)
}

func TestPredictDeterministicAcrossFits(t *testing.T) {
	series := waveSeries(365)

	a := NewEnsemble(testConfig(), zerolog.Nop())
	b := NewEnsemble(testConfig(), zerolog.Nop())
	_, err := a.Fit(series)
	require.NoError(t, err)
	_, err = b.Fit(series)
	require.NoError(t, err)

	pa := a.Predict(series)
	pb := b.Predict(series)
	require.Equal(t, len(pa), len(pb))
	for i := range pa {
		assert.InDelta(t, pa[i].PredictedNVT, pb[i].PredictedNVT, 1e-9)
		assert.InDelta(t, pa[i].PredictedNVM, pb[i].PredictedNVM, 1e-9)
	}
}

func TestExtendedHorizonRiskFactor(t *testing.T) {
	series := waveSeries(365)
	e := NewEnsemble(testConfig(), zerolog.Nop())
	_, err := e.Fit(series)
	require.NoError(t, err)

	preds := e.Predict(series)
	require.Len(t, preds, 3)
	assert.NotContains(t, preds[0].RiskFactors, "extended_forecast_horizon")
	assert.Contains(t, preds[2].RiskFactors, "extended_forecast_horizon")
}

func TestSnapshotRoundTrip(t *testing.T) {
	series := waveSeries(365)
	e := NewEnsemble(testConfig(), zerolog.Nop())
	_, err := e.Fit(series)
	require.NoError(t, err)

	snap := e.Snapshot()
	require.NotNil(t, snap)

	raw, err := msgpack.Marshal(snap)
	require.NoError(t, err)

	var decoded EnsembleSnapshot
	require.NoError(t, msgpack.Unmarshal(raw, &decoded))

	restored := NewEnsemble(testConfig(), zerolog.Nop())
	require.NoError(t, restored.Restore(&decoded))

	original := e.Predict(series)
	roundTripped := restored.Predict(series)
	require.Equal(t, len(original), len(roundTripped))
	for i := range original {
		assert.InDelta(t, original[i].PredictedNVT, roundTripped[i].PredictedNVT, 1e-9)
		assert.InDelta(t, original[i].PredictedNVM, roundTripped[i].PredictedNVM, 1e-9)
	}
}

func TestClassifyRegime(t *testing.T) {
	assert.Equal(t, RegimeUndervalued, classifyRegime(10, 0.01))
	assert.Equal(t, RegimeOvervalued, classifyRegime(150, 0.01))
	assert.Equal(t, RegimeHighActivity, classifyRegime(50, 0.2))
	assert.Equal(t, RegimeNormal, classifyRegime(50, 0.01))
}
