// Package montecarlo simulates forward NVT and NVM paths as mean-reverting
// log processes calibrated on the historical series.
package montecarlo

import (
	"math"
	"sync"

	"github.com/rs/zerolog"
	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/chainquant/nvtengine/internal/domain"
	"github.com/chainquant/nvtengine/internal/modules/metrics"
	"github.com/chainquant/nvtengine/pkg/formulas"
)

const (
	// minHistory is the shortest series the simulator calibrates on.
	minHistory = 50
	// maxSteps caps the simulated horizon.
	maxSteps = 30
	// logEpsilon guards the logarithm against zero levels.
	logEpsilon = 1e-10
	// reversionStrength pulls the log level toward its historical mean.
	reversionStrength = 0.1

	nvtFloor = 0.01
	nvmFloor = 1e-10
)

// Scenario thresholds relative to the current level.
const (
	nvtOvervaluedMult  = 1.5
	nvtUndervaluedMult = 0.7
	nvmGrowthMult      = 1.2
	nvmDeclineMult     = 0.8
)

// Band is a pair of per-step percentile envelopes.
type Band struct {
	Lower []float64 `json:"lower"`
	Upper []float64 `json:"upper"`
}

// TerminalSummary describes the distribution of final simulated values.
type TerminalSummary struct {
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Median float64 `json:"median"`
	P5     float64 `json:"p5"`
	P95    float64 `json:"p95"`
}

// RiskMetrics are derived from the terminal distribution.
type RiskMetrics struct {
	ProbabilityOfDecline float64 `json:"probability_of_decline"`
	ExpectedReturn       float64 `json:"expected_return"`
	ValueAtRisk5         float64 `json:"value_at_risk_5"`
}

// StressExtremes are the 1st/99th terminal percentiles.
type StressExtremes struct {
	P1  float64 `json:"p1"`
	P99 float64 `json:"p99"`
}

// PathResult aggregates one metric's simulation.
type PathResult struct {
	MeanPath []float64       `json:"mean_path"`
	Band68   Band            `json:"band_68"`
	Band95   Band            `json:"band_95"`
	Terminal TerminalSummary `json:"terminal"`
	Risk     RiskMetrics     `json:"risk"`
	Stress   StressExtremes  `json:"stress"`
}

// ScenarioProbabilities are fixed-threshold terminal outcome frequencies.
type ScenarioProbabilities struct {
	NVTOvervaluation  float64 `json:"nvt_overvaluation"`
	NVTUndervaluation float64 `json:"nvt_undervaluation"`
	NVMGrowth         float64 `json:"nvm_growth"`
	NVMDecline        float64 `json:"nvm_decline"`
}

// Result is the combined NVT and NVM simulation output.
type Result struct {
	NVT       PathResult            `json:"nvt"`
	NVM       PathResult            `json:"nvm"`
	Scenarios ScenarioProbabilities `json:"scenarios"`
	Steps     int                   `json:"steps"`
	Paths     int                   `json:"paths"`
}

// Simulator runs seeded Monte Carlo scenario analysis.
type Simulator struct {
	simulations int
	seed        int64
	log         zerolog.Logger
}

// NewSimulator creates a simulator. Non-positive counts fall back to 1000.
func NewSimulator(simulations int, seed int64, log zerolog.Logger) *Simulator {
	if simulations <= 0 {
		simulations = 1000
	}
	return &Simulator{
		simulations: simulations,
		seed:        seed,
		log:         log.With().Str("component", "montecarlo").Logger(),
	}
}

// Simulate runs both metric simulations. The second return value is false
// when the history is too short to calibrate.
func (s *Simulator) Simulate(series domain.Series) (Result, bool) {
	if series.Len() < minHistory {
		return Result{}, false
	}

	nvtSeries := make([]float64, series.Len())
	nvmSeries := make([]float64, series.Len())
	for i, obs := range series {
		nvtSeries[i] = metrics.CappedRatio(obs.MarketCap, obs.TransactionVolume)
		nvmSeries[i] = metrics.CappedRatio(obs.MarketCap, obs.ActiveAddresses*obs.ActiveAddresses)
	}

	steps := series.Len() / 4
	if steps > maxSteps {
		steps = maxSteps
	}

	nvtPaths := s.simulatePaths(nvtSeries, steps, nvtFloor, s.seed)
	nvmPaths := s.simulatePaths(nvmSeries, steps, nvmFloor, s.seed+int64(s.simulations))

	currentNvt := nvtSeries[len(nvtSeries)-1]
	currentNvm := nvmSeries[len(nvmSeries)-1]

	out := Result{
		NVT:   aggregate(nvtPaths, currentNvt),
		NVM:   aggregate(nvmPaths, currentNvm),
		Steps: steps,
		Paths: s.simulations,
	}
	out.Scenarios = scenarios(terminals(nvtPaths), terminals(nvmPaths), currentNvt, currentNvm)
	return out, true
}

// simulatePaths runs the mean-reverting log walk, one goroutine per path.
// Each path derives its own generator from the base seed, so results do not
// depend on scheduling order.
func (s *Simulator) simulatePaths(history []float64, steps int, floor float64, seed int64) [][]float64 {
	returns := formulas.LogReturns(history, logEpsilon)
	meanReturn := formulas.Mean(returns)
	sigma := formulas.StdDev(returns)
	logMean := math.Log(formulas.Mean(history) + logEpsilon)
	current := history[len(history)-1]

	paths := make([][]float64, s.simulations)
	var wg sync.WaitGroup
	for p := 0; p < s.simulations; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			normal := distuv.Normal{
				Mu:    0,
				Sigma: 1,
				Src:   exprand.NewSource(uint64(seed) + uint64(p)),
			}

			path := make([]float64, steps)
			logV := math.Log(current + logEpsilon)
			for t := 0; t < steps; t++ {
				logV += meanReturn - reversionStrength*(logV-logMean) + sigma*normal.Rand()
				path[t] = math.Max(math.Exp(logV), floor)
			}
			paths[p] = path
		}(p)
	}
	wg.Wait()
	return paths
}

func terminals(paths [][]float64) []float64 {
	out := make([]float64, len(paths))
	for i, path := range paths {
		out[i] = path[len(path)-1]
	}
	return out
}

func aggregate(paths [][]float64, current float64) PathResult {
	steps := len(paths[0])
	out := PathResult{
		MeanPath: make([]float64, steps),
		Band68:   Band{Lower: make([]float64, steps), Upper: make([]float64, steps)},
		Band95:   Band{Lower: make([]float64, steps), Upper: make([]float64, steps)},
	}

	column := make([]float64, len(paths))
	for t := 0; t < steps; t++ {
		for p, path := range paths {
			column[p] = path[t]
		}
		out.MeanPath[t] = formulas.Mean(column)
		out.Band68.Lower[t] = formulas.Quantile(0.16, column)
		out.Band68.Upper[t] = formulas.Quantile(0.84, column)
		out.Band95.Lower[t] = formulas.Quantile(0.025, column)
		out.Band95.Upper[t] = formulas.Quantile(0.975, column)
	}

	final := terminals(paths)
	out.Terminal = TerminalSummary{
		Mean:   formulas.Mean(final),
		Std:    formulas.StdDev(final),
		Median: formulas.Quantile(0.5, final),
		P5:     formulas.Quantile(0.05, final),
		P95:    formulas.Quantile(0.95, final),
	}
	out.Risk = RiskMetrics{
		ProbabilityOfDecline: declineProbability(final, current),
		ExpectedReturn:       expectedReturn(out.Terminal.Mean, current),
		ValueAtRisk5:         out.Terminal.P5 - current,
	}
	out.Stress = StressExtremes{
		P1:  formulas.Quantile(0.01, final),
		P99: formulas.Quantile(0.99, final),
	}
	return out
}

// declineProbability counts declines and half-weights ties, so a
// zero-variance simulation reports 0.5 rather than 0. The tie band absorbs
// the epsilon the log guard introduces.
func declineProbability(final []float64, current float64) float64 {
	tolerance := 1e-9 * (1 + math.Abs(current))
	var score float64
	for _, v := range final {
		switch {
		case v < current-tolerance:
			score++
		case v <= current+tolerance:
			score += 0.5
		}
	}
	return score / float64(len(final))
}

func expectedReturn(meanTerminal, current float64) float64 {
	if current == 0 {
		return 0
	}
	return (meanTerminal - current) / current
}

func scenarios(nvtFinal, nvmFinal []float64, currentNvt, currentNvm float64) ScenarioProbabilities {
	frequency := func(final []float64, test func(float64) bool) float64 {
		var count int
		for _, v := range final {
			if test(v) {
				count++
			}
		}
		return float64(count) / float64(len(final))
	}
	return ScenarioProbabilities{
		NVTOvervaluation:  frequency(nvtFinal, func(v float64) bool { return v > nvtOvervaluedMult*currentNvt }),
		NVTUndervaluation: frequency(nvtFinal, func(v float64) bool { return v < nvtUndervaluedMult*currentNvt }),
		NVMGrowth:         frequency(nvmFinal, func(v float64) bool { return v > nvmGrowthMult*currentNvm }),
		NVMDecline:        frequency(nvmFinal, func(v float64) bool { return v < nvmDeclineMult*currentNvm }),
	}
}
