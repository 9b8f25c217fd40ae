package prediction

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepData is a univariate step function trees should fit exactly.
func stepData() ([][]float64, []float64) {
	x := make([][]float64, 40)
	y := make([]float64, 40)
	for i := range x {
		x[i] = []float64{float64(i)}
		if i < 20 {
			y[i] = 1.0
		} else {
			y[i] = 5.0
		}
	}
	return x, y
}

func TestTreeFitsStepFunction(t *testing.T) {
	x, y := stepData()
	indices := make([]int, len(x))
	for i := range indices {
		indices[i] = i
	}
	//nolint:gosec // G404: test determinism
	tree := growTree(x, y, indices, 5, 1, 0, rand.New(rand.NewSource(1)), nil)

	assert.InDelta(t, 1.0, tree.Predict([]float64{3}), 1e-9)
	assert.InDelta(t, 5.0, tree.Predict([]float64{33}), 1e-9)
}

func TestForestDeterministicBySeed(t *testing.T) {
	x, y := stepData()

	a := NewForest(25, 6, 42)
	b := NewForest(25, 6, 42)
	require.NoError(t, a.Fit(x, y))
	require.NoError(t, b.Fit(x, y))

	pa, _ := a.Predict([]float64{10})
	pb, _ := b.Predict([]float64{10})
	assert.Equal(t, pa, pb)

	c := NewForest(25, 6, 7)
	require.NoError(t, c.Fit(x, y))
	// Importances always normalize to 1 for a univariate problem.
	assert.InDelta(t, 1.0, a.Importances[0], 1e-9)
	assert.InDelta(t, 1.0, c.Importances[0], 1e-9)
}

func TestGradientBoostingReducesResiduals(t *testing.T) {
	x, y := stepData()
	gb := NewGradientBoosting(50, 3, 0.1, 1)
	require.NoError(t, gb.Fit(x, y))

	low, err := gb.Predict([]float64{5})
	require.NoError(t, err)
	high, err := gb.Predict([]float64{35})
	require.NoError(t, err)
	assert.Less(t, low, 2.0)
	assert.Greater(t, high, 4.0)
}

func TestRidgeRecoversLinearRelation(t *testing.T) {
	// y = 3 + 2a - b with two informative features.
	x := make([][]float64, 50)
	y := make([]float64, 50)
	for i := range x {
		a := float64(i)
		b := float64(i % 7)
		x[i] = []float64{a, b}
		y[i] = 3 + 2*a - b
	}

	r := NewRidge(1e-6)
	require.NoError(t, r.Fit(x, y))
	assert.InDelta(t, 2.0, r.Coeffs[0], 1e-3)
	assert.InDelta(t, -1.0, r.Coeffs[1], 1e-3)
	assert.InDelta(t, 3.0, r.Intercept, 1e-2)

	p, err := r.Predict([]float64{10, 3})
	require.NoError(t, err)
	assert.InDelta(t, 20.0, p, 1e-2)
}

func TestElasticNetShrinksNoiseFeature(t *testing.T) {
	// Second feature is constant; its coefficient must be 0.
	x := make([][]float64, 60)
	y := make([]float64, 60)
	for i := range x {
		x[i] = []float64{float64(i), 1.0}
		y[i] = 4 * float64(i)
	}

	e := NewElasticNet(0.1, 0.5)
	require.NoError(t, e.Fit(x, y))
	assert.Equal(t, 0.0, e.Coeffs[1])
	assert.Greater(t, e.Coeffs[0], 3.0)

	_, err := NewElasticNet(1, 0.5).Predict([]float64{1, 1})
	assert.Error(t, err, "unfitted model must refuse to predict")
}

func TestUnfittedModelsError(t *testing.T) {
	_, err := NewForest(10, 5, 1).Predict([]float64{1})
	assert.Error(t, err)
	_, err = NewGradientBoosting(10, 3, 0.1, 1).Predict([]float64{1})
	assert.Error(t, err)
	_, err = NewRidge(1).Predict([]float64{1})
	assert.Error(t, err)
}

func TestRobustScaler(t *testing.T) {
	rows := [][]float64{{1, 10}, {2, 10}, {3, 10}, {4, 10}, {100, 10}}
	s := FitScaler(rows)

	scaled := s.Transform([]float64{3, 10})
	assert.InDelta(t, 0.0, scaled[0], 1e-9, "median maps to 0")
	assert.Equal(t, 0.0, scaled[1], "constant feature centers to 0")

	// Outlier does not blow up the scale the way min-max would.
	outlier := s.Transform([]float64{100, 10})
	assert.Less(t, outlier[0], 100.0)
}
