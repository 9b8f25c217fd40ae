// Package prediction forecasts NVT and NVM ratios with an ensemble of four
// regressor families per target, validated walk-forward.
package prediction

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/chainquant/nvtengine/internal/domain"
	"github.com/chainquant/nvtengine/internal/modules/metrics"
	"github.com/chainquant/nvtengine/internal/modules/velocity"
	"github.com/chainquant/nvtengine/pkg/formulas"
)

// Market regime labels derived from NVT and velocity thresholds.
const (
	RegimeUndervalued  = "undervalued"
	RegimeOvervalued   = "overvalued"
	RegimeHighActivity = "high_activity"
	RegimeNormal       = "normal"
)

// regressor is one member of the per-target ensemble.
type regressor interface {
	Name() string
	Fit(x [][]float64, y []float64) error
	Predict(row []float64) (float64, error)
	Clone() regressor
}

// importanceReporter is implemented by the tree-based members.
type importanceReporter interface {
	FeatureImportances() []float64
}

// Interval is a symmetric confidence interval.
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Prediction is the ensemble forecast for one horizon.
type Prediction struct {
	PredictedNVT          float64            `json:"predicted_nvt"`
	PredictedNVM          float64            `json:"predicted_nvm"`
	ConfidenceIntervalNVT Interval           `json:"confidence_interval_nvt"`
	ConfidenceIntervalNVM Interval           `json:"confidence_interval_nvm"`
	Horizon               int                `json:"horizon"`
	ModelConfidence       float64            `json:"model_confidence"`
	FeatureImportance     map[string]float64 `json:"feature_importance"`
	MarketRegime          string             `json:"market_regime"`
	RiskFactors           []string           `json:"risk_factors"`
}

// Config holds the ensemble knobs.
type Config struct {
	Horizons        []int
	VelocityWindows []int
	ConfidenceLevel float64
	Seed            int64
}

// Ensemble trains and serves the 8-regressor forecaster. Fit installs a
// complete fitted state; Predict reads it without mutation, so a fitted
// ensemble is safe for concurrent Predict calls.
type Ensemble struct {
	cfg Config
	fe  featureExtractor
	log zerolog.Logger

	fitted *fittedState
}

// fittedState is the immutable product of one Fit call.
type fittedState struct {
	scaler      *RobustScaler
	nvtModels   []regressor
	nvmModels   []regressor
	cvScores    map[string]float64
	importances map[string]float64
	rows        int
}

// NewEnsemble creates an unfitted prediction ensemble.
func NewEnsemble(cfg Config, log zerolog.Logger) *Ensemble {
	if len(cfg.Horizons) == 0 {
		cfg.Horizons = []int{7, 30, 90}
	}
	if cfg.ConfidenceLevel == 0 {
		cfg.ConfidenceLevel = 0.95
	}
	return &Ensemble{
		cfg: cfg,
		fe: featureExtractor{
			calc: metrics.NewCalculator(log),
			vel:  velocity.NewAnalyzer(cfg.VelocityWindows, log),
		},
		log: log.With().Str("component", "prediction").Logger(),
	}
}

// Fitted reports whether the ensemble carries trained models.
func (e *Ensemble) Fitted() bool { return e.fitted != nil }

// CVScores returns the per-model cross-validation R² from the last Fit.
func (e *Ensemble) CVScores() map[string]float64 {
	if e.fitted == nil {
		return nil
	}
	return e.fitted.cvScores
}

// TrainingRows reports the walk-forward row count from the last Fit, 0 when
// unfitted.
func (e *Ensemble) TrainingRows() int {
	if e.fitted == nil {
		return 0
	}
	return e.fitted.rows
}

func (e *Ensemble) newModels() []regressor {
	return []regressor{
		NewForest(100, 10, e.cfg.Seed),
		NewGradientBoosting(100, 3, 0.1, e.cfg.Seed+1),
		NewRidge(1.0),
		NewElasticNet(1.0, 0.5),
	}
}

// Fit builds the walk-forward training set, cross-validates each of the 8
// regressors, then refits them on the full set. The only fatal condition is
// an empty training set; individual model failures are excluded and logged.
func (e *Ensemble) Fit(series domain.Series) (map[string]float64, error) {
	x, yNvt, yNvm, err := e.TrainingSet(series)
	if err != nil {
		return nil, err
	}

	scaler := FitScaler(x)
	scaled := scaler.TransformAll(x)

	type target struct {
		name string
		y    []float64
	}
	targets := []target{{"nvt", yNvt}, {"nvm", yNvm}}

	state := &fittedState{
		scaler:   scaler,
		cvScores: make(map[string]float64),
		rows:     len(x),
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, tgt := range targets {
		models := e.newModels()
		for _, model := range models {
			tgt, model := tgt, model
			g.Go(func() error {
				score := crossValidate(model, scaled, tgt.y)
				fitErr := model.Fit(scaled, tgt.y)

				mu.Lock()
				defer mu.Unlock()
				state.cvScores[tgt.name+"_"+model.Name()] = score
				if fitErr != nil {
					e.log.Warn().Err(fitErr).
						Str("target", tgt.name).
						Str("model", model.Name()).
						Msg("regressor excluded from ensemble")
					return nil
				}
				if tgt.name == "nvt" {
					state.nvtModels = append(state.nvtModels, model)
				} else {
					state.nvmModels = append(state.nvmModels, model)
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	state.importances = aggregateImportances(state.nvtModels, state.nvmModels)
	e.fitted = state
	e.log.Info().
		Int("rows", len(x)).
		Int("nvt_models", len(state.nvtModels)).
		Int("nvm_models", len(state.nvmModels)).
		Msg("ensemble fitted")
	return state.cvScores, nil
}

// TrainingSet exposes the walk-forward rows, failing only when no usable
// row can be built.
func (e *Ensemble) TrainingSet(series domain.Series) (x [][]float64, yNvt, yNvm []float64, err error) {
	x, yNvt, yNvm = e.fe.trainingSet(series)
	if len(x) == 0 {
		return nil, nil, nil, errors.New("prediction: no usable feature rows")
	}
	return x, yNvt, yNvm, nil
}

// Predict returns one forecast per configured horizon. Unfitted ensembles
// and targets with zero surviving models yield an empty list, never an
// error.
func (e *Ensemble) Predict(series domain.Series) []Prediction {
	state := e.fitted
	if state == nil || series.Len() < 31 {
		return []Prediction{}
	}

	row := e.fe.vector(series)
	if !finite(row) {
		e.log.Warn().Msg("non-finite feature vector, skipping prediction")
		return []Prediction{}
	}
	scaled := state.scaler.Transform(row)

	nvtPreds := collectPredictions(state.nvtModels, scaled)
	nvmPreds := collectPredictions(state.nvmModels, scaled)
	if len(nvtPreds) == 0 || len(nvmPreds) == 0 {
		return []Prediction{}
	}

	nvtMean := formulas.Mean(nvtPreds)
	nvmMean := formulas.Mean(nvmPreds)
	nvtStd := formulas.StdDev(nvtPreds)
	nvmStd := formulas.StdDev(nvmPreds)

	multiplier := 1.96
	if e.cfg.ConfidenceLevel != 0.95 {
		multiplier = 2.58
	}
	confidence := formulas.Clamp(1-(nvtStd+nvmStd)/(math.Abs(nvtMean)+math.Abs(nvmMean)+1), 0, 1)

	m := e.fe.calc.Compute(series)
	v := e.fe.vel.Analyze(series, m.Utilization)
	regime := classifyRegime(m.NVTRatio, m.Velocity)

	out := make([]Prediction, 0, len(e.cfg.Horizons))
	for _, horizon := range e.cfg.Horizons {
		out = append(out, Prediction{
			PredictedNVT: nvtMean,
			PredictedNVM: nvmMean,
			ConfidenceIntervalNVT: Interval{
				Lower: nvtMean - multiplier*nvtStd,
				Upper: nvtMean + multiplier*nvtStd,
			},
			ConfidenceIntervalNVM: Interval{
				Lower: nvmMean - multiplier*nvmStd,
				Upper: nvmMean + multiplier*nvmStd,
			},
			Horizon:           horizon,
			ModelConfidence:   confidence,
			FeatureImportance: state.importances,
			MarketRegime:      regime,
			RiskFactors:       riskFactors(series.Len(), horizon, m, v),
		})
	}
	return out
}

func collectPredictions(models []regressor, row []float64) []float64 {
	preds := make([]float64, 0, len(models))
	for _, model := range models {
		p, err := model.Predict(row)
		if err != nil || math.IsNaN(p) || math.IsInf(p, 0) {
			continue
		}
		preds = append(preds, p)
	}
	return preds
}

func classifyRegime(nvt, vel float64) string {
	switch {
	case nvt < 20:
		return RegimeUndervalued
	case nvt > 100:
		return RegimeOvervalued
	case vel > 0.1:
		return RegimeHighActivity
	default:
		return RegimeNormal
	}
}

func riskFactors(historyLen, horizon int, m metrics.TransactionMetrics, v velocity.Analysis) []string {
	factors := []string{}
	if historyLen < 180 {
		factors = append(factors, "limited_historical_data")
	}
	if m.CongestionIndex > 2 {
		factors = append(factors, "network_congestion")
	}
	if m.FeePressure > 2 {
		factors = append(factors, "elevated_fee_pressure")
	}
	if v.Volatility > 0.05 {
		factors = append(factors, "high_velocity_volatility")
	}
	if horizon > 30 {
		factors = append(factors, "extended_forecast_horizon")
	}
	return factors
}

// aggregateImportances averages impurity importances across every
// tree-based model of both targets.
func aggregateImportances(nvtModels, nvmModels []regressor) map[string]float64 {
	total := make([]float64, len(featureNames))
	reporters := 0
	for _, model := range append(append([]regressor{}, nvtModels...), nvmModels...) {
		r, ok := model.(importanceReporter)
		if !ok {
			continue
		}
		imp := r.FeatureImportances()
		if len(imp) != len(total) {
			continue
		}
		for j, v := range imp {
			total[j] += v
		}
		reporters++
	}
	out := make(map[string]float64, len(featureNames))
	if reporters == 0 {
		return out
	}
	for j, name := range featureNames {
		out[name] = total[j] / float64(reporters)
	}
	return out
}

// Snapshot exports the fitted state for serialization, nil when unfitted.
func (e *Ensemble) Snapshot() *EnsembleSnapshot {
	state := e.fitted
	if state == nil {
		return nil
	}
	return &EnsembleSnapshot{
		Scaler:      state.scaler,
		NVT:         snapshotTarget(state.nvtModels),
		NVM:         snapshotTarget(state.nvmModels),
		CVScores:    state.cvScores,
		Importances: state.importances,
	}
}

// Restore installs a previously exported fitted state.
func (e *Ensemble) Restore(snap *EnsembleSnapshot) error {
	if snap == nil || snap.Scaler == nil {
		return fmt.Errorf("prediction: empty snapshot")
	}
	e.fitted = &fittedState{
		scaler:      snap.Scaler,
		nvtModels:   snap.NVT.models(),
		nvmModels:   snap.NVM.models(),
		cvScores:    snap.CVScores,
		importances: snap.Importances,
	}
	return nil
}

// EnsembleSnapshot is the serializable form of a fitted ensemble.
type EnsembleSnapshot struct {
	Scaler      *RobustScaler      `msgpack:"scaler"`
	NVT         TargetSnapshot     `msgpack:"nvt"`
	NVM         TargetSnapshot     `msgpack:"nvm"`
	CVScores    map[string]float64 `msgpack:"cv_scores"`
	Importances map[string]float64 `msgpack:"importances"`
}

// TargetSnapshot holds the surviving models for one target. Nil slots are
// models excluded during Fit.
type TargetSnapshot struct {
	Forest     *Forest           `msgpack:"forest"`
	Boosting   *GradientBoosting `msgpack:"boosting"`
	Ridge      *Ridge            `msgpack:"ridge"`
	ElasticNet *ElasticNet       `msgpack:"elastic_net"`
}

func snapshotTarget(models []regressor) TargetSnapshot {
	var t TargetSnapshot
	for _, model := range models {
		switch m := model.(type) {
		case *Forest:
			t.Forest = m
		case *GradientBoosting:
			t.Boosting = m
		case *Ridge:
			t.Ridge = m
		case *ElasticNet:
			t.ElasticNet = m
		}
	}
	return t
}

func (t TargetSnapshot) models() []regressor {
	var out []regressor
	if t.Forest != nil {
		out = append(out, t.Forest)
	}
	if t.Boosting != nil {
		out = append(out, t.Boosting)
	}
	if t.Ridge != nil {
		out = append(out, t.Ridge)
	}
	if t.ElasticNet != nil {
		out = append(out, t.ElasticNet)
	}
	return out
}
