package prediction

import (
	"math/rand"
	"sort"
)

// TreeNode is one node of a regression tree, stored flat so fitted trees
// serialize without pointer chasing. Left/Right are -1 on leaves.
type TreeNode struct {
	Feature   int     `msgpack:"feature"`
	Threshold float64 `msgpack:"threshold"`
	Left      int     `msgpack:"left"`
	Right     int     `msgpack:"right"`
	Value     float64 `msgpack:"value"`
}

// Tree is a CART regression tree grown by variance reduction.
type Tree struct {
	Nodes []TreeNode `msgpack:"nodes"`
}

// treeGrower holds the knobs and scratch state for growing one tree.
type treeGrower struct {
	x           [][]float64
	y           []float64
	maxDepth    int
	minLeaf     int
	mtry        int // feature subset size per split, 0 means all
	rng         *rand.Rand
	importances []float64
	tree        *Tree
}

func growTree(x [][]float64, y []float64, indices []int, maxDepth, minLeaf, mtry int, rng *rand.Rand, importances []float64) *Tree {
	g := &treeGrower{
		x: x, y: y,
		maxDepth: maxDepth, minLeaf: minLeaf, mtry: mtry,
		rng: rng, importances: importances,
		tree: &Tree{},
	}
	g.build(indices, 0)
	return g.tree
}

func (g *treeGrower) build(indices []int, depth int) int {
	sum, sumSq := momentsOf(g.y, indices)
	n := float64(len(indices))
	mean := sum / n
	sse := sumSq - sum*sum/n

	nodeIdx := len(g.tree.Nodes)
	g.tree.Nodes = append(g.tree.Nodes, TreeNode{Feature: -1, Left: -1, Right: -1, Value: mean})

	if depth >= g.maxDepth || len(indices) < 2*g.minLeaf || sse < 1e-12 {
		return nodeIdx
	}

	feature, threshold, gain := g.bestSplit(indices, sse)
	if gain <= 0 {
		return nodeIdx
	}
	if g.importances != nil {
		g.importances[feature] += gain
	}

	var left, right []int
	for _, idx := range indices {
		if g.x[idx][feature] <= threshold {
			left = append(left, idx)
		} else {
			right = append(right, idx)
		}
	}
	if len(left) < g.minLeaf || len(right) < g.minLeaf {
		return nodeIdx
	}

	g.tree.Nodes[nodeIdx].Feature = feature
	g.tree.Nodes[nodeIdx].Threshold = threshold
	leftIdx := g.build(left, depth+1)
	rightIdx := g.build(right, depth+1)
	g.tree.Nodes[nodeIdx].Left = leftIdx
	g.tree.Nodes[nodeIdx].Right = rightIdx
	return nodeIdx
}

// bestSplit scans candidate features for the threshold with the largest
// sum-of-squared-errors reduction.
func (g *treeGrower) bestSplit(indices []int, parentSSE float64) (int, float64, float64) {
	dim := len(g.x[indices[0]])
	features := g.candidateFeatures(dim)

	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0
	sorted := make([]int, len(indices))

	for _, f := range features {
		copy(sorted, indices)
		sort.SliceStable(sorted, func(a, b int) bool {
			return g.x[sorted[a]][f] < g.x[sorted[b]][f]
		})

		var leftSum, leftSumSq float64
		totalSum, totalSumSq := momentsOf(g.y, sorted)
		n := float64(len(sorted))

		for i := 0; i < len(sorted)-1; i++ {
			yv := g.y[sorted[i]]
			leftSum += yv
			leftSumSq += yv * yv

			// Split only between distinct feature values.
			cur, next := g.x[sorted[i]][f], g.x[sorted[i+1]][f]
			if cur == next {
				continue
			}
			nl := float64(i + 1)
			nr := n - nl
			if int(nl) < g.minLeaf || int(nr) < g.minLeaf {
				continue
			}
			sseLeft := leftSumSq - leftSum*leftSum/nl
			rightSum := totalSum - leftSum
			sseRight := (totalSumSq - leftSumSq) - rightSum*rightSum/nr
			gain := parentSSE - sseLeft - sseRight
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (cur + next) / 2
			}
		}
	}
	return bestFeature, bestThreshold, bestGain
}

func (g *treeGrower) candidateFeatures(dim int) []int {
	if g.mtry <= 0 || g.mtry >= dim {
		all := make([]int, dim)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return g.rng.Perm(dim)[:g.mtry]
}

// Predict walks the tree for one feature row.
func (t *Tree) Predict(row []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.Left < 0 {
			return node.Value
		}
		if row[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

func momentsOf(y []float64, indices []int) (sum, sumSq float64) {
	for _, idx := range indices {
		v := y[idx]
		sum += v
		sumSq += v * v
	}
	return sum, sumSq
}
