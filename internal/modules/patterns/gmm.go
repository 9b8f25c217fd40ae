package patterns

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/chainquant/nvtengine/pkg/formulas"
)

const (
	gmmMaxIter       = 100
	gmmTolerance     = 1e-6
	gmmVarianceFloor = 1e-6
)

// Mixture is a diagonal-covariance Gaussian mixture fit by EM. The
// deterministic quantile-based initialization keeps repeated fits on the
// same data identical.
type Mixture struct {
	Components int         `msgpack:"components"`
	Weights    []float64   `msgpack:"weights"`
	Means      [][]float64 `msgpack:"means"`
	Variances  [][]float64 `msgpack:"variances"`
}

// fitMixture estimates a k-component mixture over rows. Requires at least
// k rows.
func fitMixture(rows [][]float64, k int) (*Mixture, error) {
	if len(rows) < k {
		return nil, errors.New("fewer rows than mixture components")
	}
	dim := len(rows[0])

	m := &Mixture{
		Components: k,
		Weights:    make([]float64, k),
		Means:      make([][]float64, k),
		Variances:  make([][]float64, k),
	}
	m.initialize(rows, dim)

	resp := make([][]float64, len(rows))
	for i := range resp {
		resp[i] = make([]float64, k)
	}

	prevLogLik := math.Inf(-1)
	for iter := 0; iter < gmmMaxIter; iter++ {
		logLik := m.expectation(rows, resp)
		m.maximization(rows, resp, dim)
		if math.Abs(logLik-prevLogLik) < gmmTolerance {
			break
		}
		prevLogLik = logLik
	}
	return m, nil
}

// initialize seeds components from contiguous chunks of rows ordered by a
// standardized scalar projection.
func (m *Mixture) initialize(rows [][]float64, dim int) {
	colMean := make([]float64, dim)
	colStd := make([]float64, dim)
	for j := 0; j < dim; j++ {
		col := column(rows, j)
		colMean[j] = formulas.Mean(col)
		colStd[j] = formulas.StdDev(col)
	}

	type projected struct {
		idx   int
		score float64
	}
	order := make([]projected, len(rows))
	for i, row := range rows {
		var score float64
		for j, v := range row {
			if colStd[j] > 0 {
				score += (v - colMean[j]) / colStd[j]
			}
		}
		order[i] = projected{idx: i, score: score}
	}
	sort.SliceStable(order, func(a, b int) bool { return order[a].score < order[b].score })

	chunk := len(rows) / m.Components
	for c := 0; c < m.Components; c++ {
		start := c * chunk
		end := start + chunk
		if c == m.Components-1 {
			end = len(rows)
		}
		members := make([][]float64, 0, end-start)
		for _, p := range order[start:end] {
			members = append(members, rows[p.idx])
		}
		m.Weights[c] = float64(len(members)) / float64(len(rows))
		m.Means[c] = columnMeans(members, dim)
		m.Variances[c] = columnVariances(members, m.Means[c], dim)
	}
}

// expectation fills responsibilities and returns the total log-likelihood.
func (m *Mixture) expectation(rows [][]float64, resp [][]float64) float64 {
	var logLik float64
	logProbs := make([]float64, m.Components)
	for i, row := range rows {
		for c := 0; c < m.Components; c++ {
			logProbs[c] = math.Log(m.Weights[c]+1e-300) + m.logGaussian(row, c)
		}
		total := floats.LogSumExp(logProbs)
		logLik += total
		for c := 0; c < m.Components; c++ {
			resp[i][c] = math.Exp(logProbs[c] - total)
		}
	}
	return logLik
}

func (m *Mixture) maximization(rows [][]float64, resp [][]float64, dim int) {
	for c := 0; c < m.Components; c++ {
		var weight float64
		mean := make([]float64, dim)
		for i, row := range rows {
			r := resp[i][c]
			weight += r
			for j, v := range row {
				mean[j] += r * v
			}
		}
		if weight < 1e-12 {
			continue // empty component keeps its previous parameters
		}
		for j := range mean {
			mean[j] /= weight
		}
		variance := make([]float64, dim)
		for i, row := range rows {
			r := resp[i][c]
			for j, v := range row {
				d := v - mean[j]
				variance[j] += r * d * d
			}
		}
		for j := range variance {
			variance[j] = math.Max(variance[j]/weight, gmmVarianceFloor)
		}
		m.Weights[c] = weight / float64(len(rows))
		m.Means[c] = mean
		m.Variances[c] = variance
	}
}

func (m *Mixture) logGaussian(row []float64, c int) float64 {
	var ll float64
	for j, v := range row {
		variance := m.Variances[c][j]
		d := v - m.Means[c][j]
		ll += -0.5*math.Log(2*math.Pi*variance) - d*d/(2*variance)
	}
	return ll
}

// posteriors returns the component membership probabilities for one row.
func (m *Mixture) posteriors(row []float64) []float64 {
	logProbs := make([]float64, m.Components)
	for c := 0; c < m.Components; c++ {
		logProbs[c] = math.Log(m.Weights[c]+1e-300) + m.logGaussian(row, c)
	}
	total := floats.LogSumExp(logProbs)
	post := make([]float64, m.Components)
	for c := range post {
		post[c] = math.Exp(logProbs[c] - total)
	}
	return post
}

func column(rows [][]float64, j int) []float64 {
	col := make([]float64, len(rows))
	for i, row := range rows {
		col[i] = row[j]
	}
	return col
}

func columnMeans(rows [][]float64, dim int) []float64 {
	means := make([]float64, dim)
	if len(rows) == 0 {
		return means
	}
	for _, row := range rows {
		for j, v := range row {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= float64(len(rows))
	}
	return means
}

func columnVariances(rows [][]float64, means []float64, dim int) []float64 {
	variances := make([]float64, dim)
	for _, row := range rows {
		for j, v := range row {
			d := v - means[j]
			variances[j] += d * d
		}
	}
	for j := range variances {
		if len(rows) > 0 {
			variances[j] /= float64(len(rows))
		}
		variances[j] = math.Max(variances[j], gmmVarianceFloor)
	}
	return variances
}
