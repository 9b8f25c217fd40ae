package prediction

import (
	"errors"
	"math/rand"
)

// Forest is a bagged ensemble of regression trees with per-split feature
// subsampling.
type Forest struct {
	Trees       []*Tree   `msgpack:"trees"`
	Importances []float64 `msgpack:"importances"`

	TreeCount int   `msgpack:"tree_count"`
	MaxDepth  int   `msgpack:"max_depth"`
	Seed      int64 `msgpack:"seed"`
}

// NewForest creates an unfitted random forest.
func NewForest(treeCount, maxDepth int, seed int64) *Forest {
	return &Forest{TreeCount: treeCount, MaxDepth: maxDepth, Seed: seed}
}

// Name implements regressor.
func (f *Forest) Name() string { return "random_forest" }

// Clone returns a fresh unfitted forest with the same configuration.
func (f *Forest) Clone() regressor { return NewForest(f.TreeCount, f.MaxDepth, f.Seed) }

// Fit grows TreeCount trees on bootstrap resamples of the training set.
func (f *Forest) Fit(x [][]float64, y []float64) error {
	if len(x) == 0 || len(x) != len(y) {
		return errors.New("random forest: empty or mismatched training set")
	}
	dim := len(x[0])
	mtry := dim / 3
	if mtry < 1 {
		mtry = 1
	}

	//nolint:gosec // G404: deterministic model training, not cryptography
	rng := rand.New(rand.NewSource(f.Seed))

	f.Trees = make([]*Tree, 0, f.TreeCount)
	f.Importances = make([]float64, dim)
	for t := 0; t < f.TreeCount; t++ {
		sample := make([]int, len(x))
		for i := range sample {
			sample[i] = rng.Intn(len(x))
		}
		f.Trees = append(f.Trees, growTree(x, y, sample, f.MaxDepth, 2, mtry, rng, f.Importances))
	}

	normalize(f.Importances)
	return nil
}

// Predict averages the per-tree predictions.
func (f *Forest) Predict(row []float64) (float64, error) {
	if len(f.Trees) == 0 {
		return 0, errors.New("random forest: not fitted")
	}
	var sum float64
	for _, t := range f.Trees {
		sum += t.Predict(row)
	}
	return sum / float64(len(f.Trees)), nil
}

// FeatureImportances returns normalized impurity-decrease importances.
func (f *Forest) FeatureImportances() []float64 { return f.Importances }

func normalize(weights []float64) {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return
	}
	for i := range weights {
		weights[i] /= total
	}
}
