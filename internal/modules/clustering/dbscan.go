package clustering

// dbscan clusters points by density: a point with at least minPts neighbors
// within eps seeds a cluster that expands through other dense points.
// Noise points are dropped.
func dbscan(points []point, eps float64, minPts int) [][]int {
	const (
		unvisited = 0
		noise     = -1
	)

	labels := make([]int, len(points)) // 0 unvisited, -1 noise, >0 cluster id
	nextCluster := 0

	neighborsOf := func(i int) []int {
		var out []int
		for j := range points {
			if distance(points[i], points[j]) <= eps {
				out = append(out, j)
			}
		}
		return out
	}

	for i := range points {
		if labels[i] != unvisited {
			continue
		}
		neighbors := neighborsOf(i)
		if len(neighbors) < minPts {
			labels[i] = noise
			continue
		}

		nextCluster++
		labels[i] = nextCluster

		// Expand the cluster through density-reachable points.
		queue := append([]int(nil), neighbors...)
		for head := 0; head < len(queue); head++ {
			j := queue[head]
			if labels[j] == noise {
				labels[j] = nextCluster
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = nextCluster
			further := neighborsOf(j)
			if len(further) >= minPts {
				queue = append(queue, further...)
			}
		}
	}

	groups := make([][]int, nextCluster)
	for i, label := range labels {
		if label > 0 {
			groups[label-1] = append(groups[label-1], i)
		}
	}
	return groups
}
