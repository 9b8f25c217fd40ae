// Package clustering groups the observations of a trailing window into
// behavioral cohorts.
package clustering

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/chainquant/nvtengine/internal/domain"
	"github.com/chainquant/nvtengine/pkg/formulas"
)

// Method selects the clustering strategy at construction.
type Method string

const (
	// MethodPartitional runs fixed-k k-means.
	MethodPartitional Method = "partitional"
	// MethodDensity runs density-based clustering and discards noise points.
	MethodDensity Method = "density"
)

const (
	windowSize    = 30
	partitionK    = 5
	densityEps    = 0.5
	densityMinPts = 5
)

// clusterTypes is a fixed labeling vocabulary assigned round-robin, a
// naming convention rather than a learned classification.
var clusterTypes = [5]string{"whale", "retail", "exchange", "defi", "institutional"}

// Cluster describes one behavioral cohort of window observations.
type Cluster struct {
	ID              int     `json:"id"`
	Type            string  `json:"type"`
	MemberCount     int     `json:"member_count"`
	TotalVolume     float64 `json:"total_volume"`
	AverageSize     float64 `json:"average_size"`
	BehavioralScore float64 `json:"behavioral_score"`
	RiskProfile     string  `json:"risk_profile"`
	NVTImpact       float64 `json:"nvt_impact"`
}

// point is one observation's clustering feature vector plus the raw values
// cluster statistics are computed from.
type point struct {
	features [4]float64 // standardized: volume, avgSize, addresses, price
	volume   float64
	avgSize  float64
}

// Clusterer groups trailing-window observations by behavior.
type Clusterer struct {
	method Method
	log    zerolog.Logger
}

// NewClusterer creates a clusterer using the given strategy. Unknown
// methods fall back to partitional.
func NewClusterer(method Method, log zerolog.Logger) *Clusterer {
	if method != MethodDensity {
		method = MethodPartitional
	}
	return &Clusterer{method: method, log: log.With().Str("component", "clustering").Logger()}
}

// Cluster assigns the trailing-window observations to behavioral cohorts.
// Short windows return an empty list.
func (c *Clusterer) Cluster(series domain.Series) []Cluster {
	window := series.Tail(windowSize)
	points := buildPoints(window)
	if len(points) < densityMinPts {
		return []Cluster{}
	}

	var groups [][]int
	if c.method == MethodDensity {
		groups = dbscan(points, densityEps, densityMinPts)
	} else {
		k := partitionK
		if len(points) < k {
			k = len(points)
		}
		groups = kmeans(points, k)
	}

	windowVolume := 0.0
	for _, p := range points {
		windowVolume += p.volume
	}

	return summarize(points, groups, windowVolume)
}

// buildPoints extracts feature vectors and standardizes each dimension so
// distance is not dominated by the volume scale.
func buildPoints(window domain.Series) []point {
	if window.Len() == 0 {
		return nil
	}
	raw := make([][4]float64, window.Len())
	points := make([]point, window.Len())
	for i, obs := range window {
		avgSize := 0.0
		if obs.TransactionCount > 0 {
			avgSize = obs.TransactionVolume / obs.TransactionCount
		}
		raw[i] = [4]float64{obs.TransactionVolume, avgSize, obs.ActiveAddresses, obs.Price}
		points[i] = point{volume: obs.TransactionVolume, avgSize: avgSize}
	}

	for j := 0; j < 4; j++ {
		col := make([]float64, len(raw))
		for i := range raw {
			col[i] = raw[i][j]
		}
		mean := formulas.Mean(col)
		std := formulas.StdDev(col)
		for i := range points {
			if std > 0 {
				points[i].features[j] = (raw[i][j] - mean) / std
			}
		}
	}
	return points
}

// summarize converts index groups into Cluster values, ordered by
// descending total volume so output is stable across runs.
func summarize(points []point, groups [][]int, windowVolume float64) []Cluster {
	clusters := make([]Cluster, 0, len(groups))
	for _, members := range groups {
		if len(members) == 0 {
			continue
		}
		volumes := make([]float64, len(members))
		sizes := make([]float64, len(members))
		var total float64
		for i, idx := range members {
			volumes[i] = points[idx].volume
			sizes[i] = points[idx].avgSize
			total += points[idx].volume
		}

		impact := 0.0
		if windowVolume > 0 {
			impact = total / windowVolume
		}

		clusters = append(clusters, Cluster{
			MemberCount:     len(members),
			TotalVolume:     total,
			AverageSize:     formulas.Mean(sizes),
			BehavioralScore: behavioralScore(volumes, sizes),
			RiskProfile:     riskProfile(points, volumes),
			NVTImpact:       impact,
		})
	}

	sort.SliceStable(clusters, func(a, b int) bool {
		return clusters[a].TotalVolume > clusters[b].TotalVolume
	})
	for i := range clusters {
		clusters[i].ID = i
		clusters[i].Type = clusterTypes[i%len(clusterTypes)]
	}
	return clusters
}

// behavioralScore rewards internal consistency: clusters whose volume and
// transaction size barely vary score near 1.
func behavioralScore(volumes, sizes []float64) float64 {
	consistency := func(data []float64) float64 {
		return 1 - formulas.StdDev(data)/(formulas.Mean(data)+1)
	}
	score := (consistency(volumes) + consistency(sizes)) / 2
	return formulas.Clamp(score, 0, 1)
}

// riskProfile applies a volume-percentile and dispersion heuristic.
func riskProfile(points []point, clusterVolumes []float64) string {
	all := make([]float64, len(points))
	for i, p := range points {
		all[i] = p.volume
	}
	p90 := formulas.Quantile(0.9, all)
	p25 := formulas.Quantile(0.25, all)

	mean := formulas.Mean(clusterVolumes)
	std := formulas.StdDev(clusterVolumes)
	cv := 0.0
	if mean > 0 {
		cv = std / mean
	}

	switch {
	case mean > p90 || cv > 1:
		return "high"
	case mean < p25 && cv < 0.5:
		return "low"
	default:
		return "medium"
	}
}

func distance(a, b point) float64 {
	var sum float64
	for j := 0; j < 4; j++ {
		d := a.features[j] - b.features[j]
		sum += d * d
	}
	return math.Sqrt(sum)
}
