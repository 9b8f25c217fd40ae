package prediction

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Ridge is L2-regularized least squares solved in closed form.
type Ridge struct {
	Alpha     float64   `msgpack:"alpha"`
	Coeffs    []float64 `msgpack:"coeffs"`
	Intercept float64   `msgpack:"intercept"`
	IsFit     bool      `msgpack:"is_fit"`
}

// NewRidge creates an unfitted ridge regressor.
func NewRidge(alpha float64) *Ridge { return &Ridge{Alpha: alpha} }

// Name implements regressor.
func (r *Ridge) Name() string { return "ridge" }

// Clone returns a fresh unfitted ridge with the same penalty.
func (r *Ridge) Clone() regressor { return NewRidge(r.Alpha) }

// Fit solves the normal equations (XᵀX + αI)w = Xᵀy on centered data.
func (r *Ridge) Fit(x [][]float64, y []float64) error {
	n := len(x)
	if n == 0 || n != len(y) {
		return errors.New("ridge: empty or mismatched training set")
	}
	dim := len(x[0])

	xMeans, yMean := columnAndTargetMeans(x, y)

	z := mat.NewDense(n, dim, nil)
	for i, row := range x {
		for j, v := range row {
			z.Set(i, j, v-xMeans[j])
		}
	}
	centered := mat.NewVecDense(n, nil)
	for i, v := range y {
		centered.SetVec(i, v-yMean)
	}

	var gram mat.Dense
	gram.Mul(z.T(), z)
	for j := 0; j < dim; j++ {
		gram.Set(j, j, gram.At(j, j)+r.Alpha)
	}
	var rhs mat.VecDense
	rhs.MulVec(z.T(), centered)

	var w mat.VecDense
	if err := w.SolveVec(&gram, &rhs); err != nil {
		return fmt.Errorf("ridge: singular system: %w", err)
	}

	r.Coeffs = make([]float64, dim)
	r.Intercept = yMean
	for j := 0; j < dim; j++ {
		r.Coeffs[j] = w.AtVec(j)
		r.Intercept -= r.Coeffs[j] * xMeans[j]
	}
	r.IsFit = true
	return nil
}

// Predict evaluates the fitted linear form.
func (r *Ridge) Predict(row []float64) (float64, error) {
	if !r.IsFit {
		return 0, errors.New("ridge: not fitted")
	}
	return r.Intercept + dot(r.Coeffs, row), nil
}

// ElasticNet mixes L1 and L2 penalties, fit by cyclic coordinate descent.
type ElasticNet struct {
	Alpha     float64   `msgpack:"alpha"`
	L1Ratio   float64   `msgpack:"l1_ratio"`
	Coeffs    []float64 `msgpack:"coeffs"`
	Intercept float64   `msgpack:"intercept"`
	IsFit     bool      `msgpack:"is_fit"`
}

const (
	elasticMaxIter   = 1000
	elasticTolerance = 1e-6
)

// NewElasticNet creates an unfitted elastic-net regressor.
func NewElasticNet(alpha, l1Ratio float64) *ElasticNet {
	return &ElasticNet{Alpha: alpha, L1Ratio: l1Ratio}
}

// Name implements regressor.
func (e *ElasticNet) Name() string { return "elastic_net" }

// Clone returns a fresh unfitted elastic net with the same penalties.
func (e *ElasticNet) Clone() regressor { return NewElasticNet(e.Alpha, e.L1Ratio) }

// Fit minimizes (1/2n)‖y−Xw‖² + α(ρ‖w‖₁ + (1−ρ)/2‖w‖²) on centered data.
func (e *ElasticNet) Fit(x [][]float64, y []float64) error {
	n := len(x)
	if n == 0 || n != len(y) {
		return errors.New("elastic net: empty or mismatched training set")
	}
	dim := len(x[0])

	xMeans, yMean := columnAndTargetMeans(x, y)

	z := make([][]float64, n)
	for i, row := range x {
		z[i] = make([]float64, dim)
		for j, v := range row {
			z[i][j] = v - xMeans[j]
		}
	}

	colNorm := make([]float64, dim) // (1/n) Σ z_ij²
	for j := 0; j < dim; j++ {
		for i := 0; i < n; i++ {
			colNorm[j] += z[i][j] * z[i][j]
		}
		colNorm[j] /= float64(n)
	}

	w := make([]float64, dim)
	residual := make([]float64, n)
	for i, v := range y {
		residual[i] = v - yMean
	}

	l1Penalty := e.Alpha * e.L1Ratio
	l2Penalty := e.Alpha * (1 - e.L1Ratio)

	for iter := 0; iter < elasticMaxIter; iter++ {
		maxDelta := 0.0
		for j := 0; j < dim; j++ {
			if colNorm[j] == 0 {
				continue
			}
			// Partial residual correlation with coordinate j.
			var rho float64
			for i := 0; i < n; i++ {
				rho += z[i][j] * (residual[i] + w[j]*z[i][j])
			}
			rho /= float64(n)

			updated := softThreshold(rho, l1Penalty) / (colNorm[j] + l2Penalty)
			delta := updated - w[j]
			if delta != 0 {
				for i := 0; i < n; i++ {
					residual[i] -= delta * z[i][j]
				}
				w[j] = updated
			}
			if math.Abs(delta) > maxDelta {
				maxDelta = math.Abs(delta)
			}
		}
		if maxDelta < elasticTolerance {
			break
		}
	}

	e.Coeffs = w
	e.Intercept = yMean
	for j := 0; j < dim; j++ {
		e.Intercept -= w[j] * xMeans[j]
	}
	e.IsFit = true
	return nil
}

// Predict evaluates the fitted linear form.
func (e *ElasticNet) Predict(row []float64) (float64, error) {
	if !e.IsFit {
		return 0, errors.New("elastic net: not fitted")
	}
	return e.Intercept + dot(e.Coeffs, row), nil
}

func softThreshold(v, threshold float64) float64 {
	switch {
	case v > threshold:
		return v - threshold
	case v < -threshold:
		return v + threshold
	default:
		return 0
	}
}

func columnAndTargetMeans(x [][]float64, y []float64) ([]float64, float64) {
	dim := len(x[0])
	xMeans := make([]float64, dim)
	var yMean float64
	for i, row := range x {
		for j, v := range row {
			xMeans[j] += v
		}
		yMean += y[i]
	}
	for j := range xMeans {
		xMeans[j] /= float64(len(x))
	}
	return xMeans, yMean / float64(len(x))
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
