package statespace

import (
	"errors"
	"math"

	"github.com/chainquant/nvtengine/pkg/formulas"
)

// fullStateSpace is the local-linear-trend Kalman treatment: state (level,
// slope), forward filter, Rauch-Tung-Striebel backward smoother, and noise
// parameters chosen by likelihood over a small grid.
type fullStateSpace struct{}

func (f *fullStateSpace) Name() string { return "full_state_space" }

// qFactors and rFactors scale the diffused-series and series variances into
// the process/observation noise candidates.
var (
	qFactors = [3]float64{0.01, 0.1, 1.0}
	rFactors = [3]float64{0.25, 0.5, 1.0}
)

type mat2 [2][2]float64

type vec2 [2]float64

// kalmanRun holds one forward pass over the series.
type kalmanRun struct {
	predState []vec2
	predCov   []mat2
	filtState []vec2
	filtCov   []mat2
	logLik    float64
}

func (f *fullStateSpace) Estimate(series []float64) (SeriesEstimate, error) {
	if len(series) < 2 {
		return SeriesEstimate{}, errors.New("full state space: series too short")
	}

	diffs := make([]float64, len(series)-1)
	for i := 1; i < len(series); i++ {
		diffs[i-1] = series[i] - series[i-1]
	}
	qBase := math.Max(formulas.PopVariance(diffs), 1e-4)
	rBase := math.Max(formulas.PopVariance(series), 1e-4)

	var best *kalmanRun
	for _, qf := range qFactors {
		for _, rf := range rFactors {
			run := forwardFilter(series, qf*qBase, rf*rBase)
			if best == nil || run.logLik > best.logLik {
				best = run
			}
		}
	}

	smoothState, smoothCov := rtsSmooth(best)

	n := len(series)
	out := SeriesEstimate{
		Filtered:      make([]float64, n),
		Smoothed:      make([]float64, n),
		Variance:      make([]float64, n),
		Trend:         make([]float64, n),
		LogLikelihood: best.logLik,
	}
	for t := 0; t < n; t++ {
		out.Filtered[t] = best.filtState[t][0]
		out.Smoothed[t] = smoothState[t][0]
		out.Variance[t] = smoothCov[t][0][0]
		out.Trend[t] = smoothState[t][1]
	}
	return out, nil
}

// forwardFilter runs the Kalman recursion with transition [[1,1],[0,1]] and
// observation of the level only.
func forwardFilter(series []float64, q, r float64) *kalmanRun {
	n := len(series)
	run := &kalmanRun{
		predState: make([]vec2, n),
		predCov:   make([]mat2, n),
		filtState: make([]vec2, n),
		filtCov:   make([]mat2, n),
	}

	state := vec2{series[0], 0}
	cov := mat2{{formulas.PopVariance(series) + 1, 0}, {0, 1}}

	for t := 0; t < n; t++ {
		// Predict.
		pred := vec2{state[0] + state[1], state[1]}
		p := cov
		predCov := mat2{
			{p[0][0] + p[1][0] + p[0][1] + p[1][1] + q, p[0][1] + p[1][1]},
			{p[1][0] + p[1][1], p[1][1] + q},
		}
		run.predState[t] = pred
		run.predCov[t] = predCov

		// Update.
		innovation := series[t] - pred[0]
		s := predCov[0][0] + r
		k0 := predCov[0][0] / s
		k1 := predCov[1][0] / s

		state = vec2{pred[0] + k0*innovation, pred[1] + k1*innovation}
		cov = mat2{
			{(1 - k0) * predCov[0][0], (1 - k0) * predCov[0][1]},
			{predCov[1][0] - k1*predCov[0][0], predCov[1][1] - k1*predCov[0][1]},
		}
		run.filtState[t] = state
		run.filtCov[t] = cov

		run.logLik += -0.5 * (math.Log(2*math.Pi*s) + innovation*innovation/s)
	}
	return run
}

// rtsSmooth runs the backward Rauch-Tung-Striebel pass.
func rtsSmooth(run *kalmanRun) ([]vec2, []mat2) {
	n := len(run.filtState)
	smoothState := make([]vec2, n)
	smoothCov := make([]mat2, n)
	smoothState[n-1] = run.filtState[n-1]
	smoothCov[n-1] = run.filtCov[n-1]

	for t := n - 2; t >= 0; t-- {
		inv, ok := invert2(run.predCov[t+1])
		if !ok {
			smoothState[t] = run.filtState[t]
			smoothCov[t] = run.filtCov[t]
			continue
		}

		// Gain C = P_f Fᵀ P_pred⁻¹ with F = [[1,1],[0,1]].
		pf := run.filtCov[t]
		pfFt := mat2{
			{pf[0][0] + pf[0][1], pf[0][1]},
			{pf[1][0] + pf[1][1], pf[1][1]},
		}
		c := mulMat2(pfFt, inv)

		dState := vec2{
			smoothState[t+1][0] - run.predState[t+1][0],
			smoothState[t+1][1] - run.predState[t+1][1],
		}
		smoothState[t] = vec2{
			run.filtState[t][0] + c[0][0]*dState[0] + c[0][1]*dState[1],
			run.filtState[t][1] + c[1][0]*dState[0] + c[1][1]*dState[1],
		}

		dCov := subMat2(smoothCov[t+1], run.predCov[t+1])
		smoothCov[t] = addMat2(pf, mulMat2(mulMat2(c, dCov), transpose2(c)))
	}
	return smoothState, smoothCov
}

func invert2(m mat2) (mat2, bool) {
	det := m[0][0]*m[1][1] - m[0][1]*m[1][0]
	if math.Abs(det) < 1e-12 {
		return mat2{}, false
	}
	return mat2{
		{m[1][1] / det, -m[0][1] / det},
		{-m[1][0] / det, m[0][0] / det},
	}, true
}

func mulMat2(a, b mat2) mat2 {
	return mat2{
		{a[0][0]*b[0][0] + a[0][1]*b[1][0], a[0][0]*b[0][1] + a[0][1]*b[1][1]},
		{a[1][0]*b[0][0] + a[1][1]*b[1][0], a[1][0]*b[0][1] + a[1][1]*b[1][1]},
	}
}

func addMat2(a, b mat2) mat2 {
	return mat2{
		{a[0][0] + b[0][0], a[0][1] + b[0][1]},
		{a[1][0] + b[1][0], a[1][1] + b[1][1]},
	}
}

func subMat2(a, b mat2) mat2 {
	return mat2{
		{a[0][0] - b[0][0], a[0][1] - b[0][1]},
		{a[1][0] - b[1][0], a[1][1] - b[1][1]},
	}
}

func transpose2(m mat2) mat2 {
	return mat2{{m[0][0], m[1][0]}, {m[0][1], m[1][1]}}
}
