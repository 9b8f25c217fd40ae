package prediction

import (
	"errors"
	"math/rand"
)

// GradientBoosting is a stagewise ensemble of shallow regression trees fit
// to the running residuals.
type GradientBoosting struct {
	Base        float64   `msgpack:"base"`
	Trees       []*Tree   `msgpack:"trees"`
	Importances []float64 `msgpack:"importances"`

	Stages       int     `msgpack:"stages"`
	MaxDepth     int     `msgpack:"max_depth"`
	LearningRate float64 `msgpack:"learning_rate"`
	Seed         int64   `msgpack:"seed"`
}

// NewGradientBoosting creates an unfitted boosting model.
func NewGradientBoosting(stages, maxDepth int, learningRate float64, seed int64) *GradientBoosting {
	return &GradientBoosting{Stages: stages, MaxDepth: maxDepth, LearningRate: learningRate, Seed: seed}
}

// Name implements regressor.
func (g *GradientBoosting) Name() string { return "gradient_boosting" }

// Clone returns a fresh unfitted model with the same configuration.
func (g *GradientBoosting) Clone() regressor {
	return NewGradientBoosting(g.Stages, g.MaxDepth, g.LearningRate, g.Seed)
}

// Fit runs least-squares gradient boosting: each stage grows a shallow tree
// on the residuals and shrinks its contribution by the learning rate.
func (g *GradientBoosting) Fit(x [][]float64, y []float64) error {
	if len(x) == 0 || len(x) != len(y) {
		return errors.New("gradient boosting: empty or mismatched training set")
	}

	var sum float64
	for _, v := range y {
		sum += v
	}
	g.Base = sum / float64(len(y))

	//nolint:gosec // G404: deterministic model training, not cryptography
	rng := rand.New(rand.NewSource(g.Seed))

	residuals := make([]float64, len(y))
	for i, v := range y {
		residuals[i] = v - g.Base
	}
	all := make([]int, len(x))
	for i := range all {
		all[i] = i
	}

	g.Trees = make([]*Tree, 0, g.Stages)
	g.Importances = make([]float64, len(x[0]))
	for stage := 0; stage < g.Stages; stage++ {
		tree := growTree(x, residuals, all, g.MaxDepth, 1, 0, rng, g.Importances)
		g.Trees = append(g.Trees, tree)
		for i, row := range x {
			residuals[i] -= g.LearningRate * tree.Predict(row)
		}
	}

	normalize(g.Importances)
	return nil
}

// Predict sums the shrunken stage contributions on top of the base value.
func (g *GradientBoosting) Predict(row []float64) (float64, error) {
	if len(g.Trees) == 0 {
		return 0, errors.New("gradient boosting: not fitted")
	}
	pred := g.Base
	for _, t := range g.Trees {
		pred += g.LearningRate * t.Predict(row)
	}
	return pred, nil
}

// FeatureImportances returns normalized impurity-decrease importances.
func (g *GradientBoosting) FeatureImportances() []float64 { return g.Importances }
