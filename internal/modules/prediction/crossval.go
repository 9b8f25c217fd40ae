package prediction

import "github.com/chainquant/nvtengine/pkg/formulas"

// cvFolds is the number of expanding-window validation folds.
const cvFolds = 3

// split is one walk-forward fold: train on everything before the
// validation block, validate on the block.
type split struct {
	trainEnd int // exclusive
	valEnd   int // exclusive
}

// expandingWindowSplits produces cvFolds contiguous validation blocks with
// strictly growing training prefixes, never shuffling time order.
func expandingWindowSplits(n int) []split {
	blockSize := n / (cvFolds + 1)
	if blockSize < 1 {
		return nil
	}
	splits := make([]split, 0, cvFolds)
	for fold := 0; fold < cvFolds; fold++ {
		valEnd := n - (cvFolds-1-fold)*blockSize
		splits = append(splits, split{trainEnd: valEnd - blockSize, valEnd: valEnd})
	}
	return splits
}

// rSquared is the coefficient of determination; degenerate targets score 0.
func rSquared(actual, predicted []float64) float64 {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return 0
	}
	mean := formulas.Mean(actual)
	var ssRes, ssTot float64
	for i, a := range actual {
		d := a - predicted[i]
		ssRes += d * d
		t := a - mean
		ssTot += t * t
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

// crossValidate scores one regressor configuration by mean fold R². Folds
// whose fit or predict fails contribute a 0 score rather than aborting.
func crossValidate(model regressor, x [][]float64, y []float64) float64 {
	splits := expandingWindowSplits(len(x))
	if len(splits) == 0 {
		return 0
	}

	var total float64
	for _, s := range splits {
		if s.trainEnd < 2 {
			continue
		}
		fold := model.Clone()
		if err := fold.Fit(x[:s.trainEnd], y[:s.trainEnd]); err != nil {
			continue
		}
		actual := y[s.trainEnd:s.valEnd]
		predicted := make([]float64, 0, len(actual))
		ok := true
		for _, row := range x[s.trainEnd:s.valEnd] {
			p, err := fold.Predict(row)
			if err != nil {
				ok = false
				break
			}
			predicted = append(predicted, p)
		}
		if ok {
			total += rSquared(actual, predicted)
		}
	}
	return total / float64(len(splits))
}
