// Package engine orchestrates the NVT/NVM analysis pipeline behind a
// fit/analyze lifecycle.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chainquant/nvtengine/internal/domain"
	"github.com/chainquant/nvtengine/internal/modules/anomaly"
	"github.com/chainquant/nvtengine/internal/modules/clustering"
	"github.com/chainquant/nvtengine/internal/modules/metrics"
	"github.com/chainquant/nvtengine/internal/modules/montecarlo"
	"github.com/chainquant/nvtengine/internal/modules/network"
	"github.com/chainquant/nvtengine/internal/modules/patterns"
	"github.com/chainquant/nvtengine/internal/modules/prediction"
	"github.com/chainquant/nvtengine/internal/modules/risk"
	"github.com/chainquant/nvtengine/internal/modules/statespace"
	"github.com/chainquant/nvtengine/internal/modules/velocity"
)

// Fit error conditions. These are the only errors the engine surfaces;
// Analyze never fails.
var (
	ErrInsufficientHistory = errors.New("series shorter than the configured lookback")
	ErrNoTrainingData      = errors.New("no usable feature rows")
)

// minMonteCarloHistory mirrors the simulator's calibration minimum, used
// for diagnostics before invoking it.
const minMonteCarloHistory = 50

// Engine is the stateful analysis pipeline. The only cross-call state is
// the fitted model set, replaced atomically by Fit; Analyze reads an
// immutable snapshot and is safe to call concurrently with Fit.
type Engine struct {
	cfg Config
	log zerolog.Logger

	calc      *metrics.Calculator
	velocity  *velocity.Analyzer
	clusterer *clustering.Clusterer
	detector  *anomaly.Detector
	assessor  *risk.Assessor
	filter    *statespace.Filter
	simulator *montecarlo.Simulator
	network   *network.Analyzer

	mu     sync.RWMutex
	fitted *fittedModels
}

// fittedModels is the swap-on-completion product of one Fit call.
type fittedModels struct {
	classifier *patterns.Classifier
	ensemble   *prediction.Ensemble
	cvScores   map[string]float64
	fittedAt   time.Time
	trainRows  int
}

// New creates an engine. The config is normalized in place; invalid
// configurations are rejected here, not during analysis.
func New(cfg Config, log zerolog.Logger) (*Engine, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	filterMode := statespace.ModeSimplified
	if cfg.FilterMode == "full" {
		filterMode = statespace.ModeFull
	}
	clusterMethod := clustering.MethodPartitional
	if cfg.ClusteringMethod == "density" {
		clusterMethod = clustering.MethodDensity
	}

	return &Engine{
		cfg:       cfg,
		log:       log.With().Str("component", "engine").Logger(),
		calc:      metrics.NewCalculator(log),
		velocity:  velocity.NewAnalyzer(cfg.VelocityWindows, log),
		clusterer: clustering.NewClusterer(clusterMethod, log),
		detector:  anomaly.NewDetector(cfg.AnomalyThreshold, log),
		assessor:  risk.NewAssessor(log),
		filter:    statespace.NewFilter(filterMode, log),
		simulator: montecarlo.NewSimulator(cfg.MonteCarloSimulations, cfg.Seed, log),
		network:   network.NewAnalyzer(log),
	}, nil
}

// Fitted reports whether the engine carries trained models.
func (e *Engine) Fitted() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.fitted != nil
}

// Fit trains the pattern classifier and the prediction ensemble, then
// swaps them in atomically. Re-fitting replaces the previous parameters.
func (e *Engine) Fit(series domain.Series) (map[string]float64, error) {
	if series.Len() < e.cfg.LookbackPeriod {
		return nil, fmt.Errorf("engine fit: %w: have %d, need %d",
			ErrInsufficientHistory, series.Len(), e.cfg.LookbackPeriod)
	}

	ensemble := prediction.NewEnsemble(prediction.Config{
		Horizons:        e.cfg.PredictionHorizons,
		VelocityWindows: e.cfg.VelocityWindows,
		ConfidenceLevel: e.cfg.ConfidenceLevel,
		Seed:            e.cfg.Seed,
	}, e.log)

	started := time.Now()
	cvScores, err := ensemble.Fit(series)
	if err != nil {
		return nil, fmt.Errorf("engine fit: %w", ErrNoTrainingData)
	}

	classifier := patterns.NewClassifier(e.log)
	if err := classifier.Fit(series); err != nil {
		// Pattern detection degrades to an empty list; forecasting is
		// unaffected.
		e.log.Warn().Err(err).Msg("pattern classifier unavailable")
	}

	models := &fittedModels{
		classifier: classifier,
		ensemble:   ensemble,
		cvScores:   cvScores,
		fittedAt:   time.Now(),
		trainRows:  ensemble.TrainingRows(),
	}

	e.mu.Lock()
	e.fitted = models
	e.mu.Unlock()

	e.log.Info().
		Int("rows", models.trainRows).
		Dur("elapsed", time.Since(started)).
		Msg("engine fitted")
	return cvScores, nil
}

// Analyze runs the full pipeline and always returns a complete Result.
// Stages below their data minimums contribute documented defaults plus a
// reason-coded diagnostic; nothing here returns an error.
func (e *Engine) Analyze(series domain.Series) Result {
	e.mu.RLock()
	fitted := e.fitted
	e.mu.RUnlock()

	out := Result{
		ID:          uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Diagnostics: []Diagnostic{},
	}

	out.Metrics = e.calc.Compute(series)
	out.Velocity = e.velocity.Analyze(series, out.Metrics.Utilization)

	out.Patterns = e.classifyPatterns(series, fitted, &out)
	out.Clusters = e.clusterer.Cluster(series)
	if len(out.Clusters) == 0 && series.Len() > 0 {
		out.Diagnostics = append(out.Diagnostics, Diagnostic{
			Stage: "clustering", Reason: ReasonInsufficientData,
		})
	}

	out.Anomalies = e.detector.Detect(series)
	out.Risk = e.assessor.Assess(out.Metrics, out.Velocity, out.Clusters)

	out.Predictions = e.predict(series, fitted, &out)
	out.StateSpace = e.smooth(series, &out)
	out.MonteCarlo = e.simulate(series, &out)
	out.ModelPerformance = e.backtest(series, fitted)

	out.VelocityDynamics = e.network.VelocityDynamics(series, out.Metrics)
	out.FeeDynamics = e.network.FeeDynamics(series, out.Metrics)
	out.UtilityValue = e.network.UtilityValue(series, out.Metrics, out.Patterns)

	out.ConfidenceScore = e.confidenceScore(series, &out)
	out.Recommendations = e.recommend(&out)
	return out
}

func (e *Engine) classifyPatterns(series domain.Series, fitted *fittedModels, out *Result) []patterns.Pattern {
	if fitted == nil || !fitted.classifier.Fitted() {
		reason := ReasonNotFitted
		if fitted != nil {
			reason = ReasonDegraded
		}
		out.Diagnostics = append(out.Diagnostics, Diagnostic{Stage: "patterns", Reason: reason})
		return []patterns.Pattern{}
	}
	return fitted.classifier.Classify(series)
}

func (e *Engine) predict(series domain.Series, fitted *fittedModels, out *Result) []prediction.Prediction {
	if fitted == nil {
		out.Diagnostics = append(out.Diagnostics, Diagnostic{Stage: "prediction", Reason: ReasonNotFitted})
		return []prediction.Prediction{}
	}
	preds := fitted.ensemble.Predict(series)
	if len(preds) == 0 {
		out.Diagnostics = append(out.Diagnostics, Diagnostic{
			Stage: "prediction", Reason: ReasonInsufficientData,
			Detail: "no surviving models or series too short",
		})
	}
	return preds
}

func (e *Engine) smooth(series domain.Series, out *Result) *statespace.Result {
	if !e.cfg.StateSpaceEnabled() {
		out.Diagnostics = append(out.Diagnostics, Diagnostic{Stage: "statespace", Reason: ReasonDisabled})
		return nil
	}
	result := e.filter.Apply(series)
	if !result.Applied {
		out.Diagnostics = append(out.Diagnostics, Diagnostic{Stage: "statespace", Reason: ReasonInsufficientData})
	}
	return &result
}

func (e *Engine) simulate(series domain.Series, out *Result) *montecarlo.Result {
	if !e.cfg.MonteCarloEnabled() {
		out.Diagnostics = append(out.Diagnostics, Diagnostic{Stage: "montecarlo", Reason: ReasonDisabled})
		return nil
	}
	if series.Len() < minMonteCarloHistory {
		out.Diagnostics = append(out.Diagnostics, Diagnostic{Stage: "montecarlo", Reason: ReasonInsufficientData})
		return nil
	}
	result, ok := e.simulator.Simulate(series)
	if !ok {
		out.Diagnostics = append(out.Diagnostics, Diagnostic{Stage: "montecarlo", Reason: ReasonInsufficientData})
		return nil
	}
	return &result
}
