package clustering

import (
	"math"
	"sort"
)

const kmeansMaxIter = 25

// kmeans partitions points into k groups. Initialization picks centers at
// evenly spaced quantiles of a scalar projection, so repeated runs on the
// same window produce identical assignments.
func kmeans(points []point, k int) [][]int {
	if k <= 0 || len(points) == 0 {
		return nil
	}
	if k > len(points) {
		k = len(points)
	}

	order := make([]int, len(points))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return projection(points[order[a]]) < projection(points[order[b]])
	})

	centers := make([][4]float64, k)
	for c := 0; c < k; c++ {
		idx := order[c*(len(points)-1)/maxInt(k-1, 1)]
		centers[c] = points[idx].features
	}

	assignment := make([]int, len(points))
	for iter := 0; iter < kmeansMaxIter; iter++ {
		changed := false
		for i, p := range points {
			best := 0
			bestDist := math.Inf(1)
			for c := range centers {
				d := centerDistance(p.features, centers[c])
				if d < bestDist {
					bestDist = d
					best = c
				}
			}
			if assignment[i] != best {
				assignment[i] = best
				changed = true
			}
		}

		counts := make([]int, k)
		sums := make([][4]float64, k)
		for i, p := range points {
			c := assignment[i]
			counts[c]++
			for j := 0; j < 4; j++ {
				sums[c][j] += p.features[j]
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue // empty cluster keeps its center
			}
			for j := 0; j < 4; j++ {
				centers[c][j] = sums[c][j] / float64(counts[c])
			}
		}

		if !changed && iter > 0 {
			break
		}
	}

	groups := make([][]int, k)
	for i, c := range assignment {
		groups[c] = append(groups[c], i)
	}
	return groups
}

func projection(p point) float64 {
	var sum float64
	for _, v := range p.features {
		sum += v
	}
	return sum
}

func centerDistance(a, b [4]float64) float64 {
	var sum float64
	for j := 0; j < 4; j++ {
		d := a[j] - b[j]
		sum += d * d
	}
	return sum
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
