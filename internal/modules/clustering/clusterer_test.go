package clustering

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainquant/nvtengine/internal/domain"
)

// cohortSeries mixes small retail-like days with a handful of very large
// whale-like days inside the trailing window.
func cohortSeries(n int) domain.Series {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(domain.Series, n)
	for i := range s {
		volume := 1e8 + 1e6*float64(i%5)
		count := 1e5
		if i%6 == 0 {
			volume = 5e9 + 1e8*float64(i%3)
			count = 1e3
		}
		s[i] = domain.Observation{
			Timestamp:         start.AddDate(0, 0, i),
			TransactionVolume: volume,
			TransactionCount:  count,
			MarketCap:         1e12,
			ActiveAddresses:   1e6 + 1e3*float64(i%4),
			Price:             50000 + 100*float64(i%9),
		}
	}
	return s
}

func TestPartitionalClustering(t *testing.T) {
	c := NewClusterer(MethodPartitional, zerolog.Nop())
	clusters := c.Cluster(cohortSeries(120))

	require.NotEmpty(t, clusters)
	assert.LessOrEqual(t, len(clusters), partitionK)

	totalMembers := 0
	var totalImpact float64
	for i, cl := range clusters {
		totalMembers += cl.MemberCount
		totalImpact += cl.NVTImpact
		assert.Equal(t, i, cl.ID, "ids follow volume ordering")
		assert.GreaterOrEqual(t, cl.BehavioralScore, 0.0)
		assert.LessOrEqual(t, cl.BehavioralScore, 1.0)
		assert.Contains(t, []string{"low", "medium", "high"}, cl.RiskProfile)
		assert.NotEmpty(t, cl.Type)
	}
	assert.Equal(t, windowSize, totalMembers, "partitional clustering keeps every point")
	assert.InDelta(t, 1.0, totalImpact, 1e-9, "impacts partition the window volume")
}

func TestClustersOrderedByVolume(t *testing.T) {
	c := NewClusterer(MethodPartitional, zerolog.Nop())
	clusters := c.Cluster(cohortSeries(120))
	for i := 1; i < len(clusters); i++ {
		assert.GreaterOrEqual(t, clusters[i-1].TotalVolume, clusters[i].TotalVolume)
	}
}

func TestDensityClusteringDropsNoise(t *testing.T) {
	c := NewClusterer(MethodDensity, zerolog.Nop())
	clusters := c.Cluster(cohortSeries(120))

	totalMembers := 0
	for _, cl := range clusters {
		totalMembers += cl.MemberCount
		assert.GreaterOrEqual(t, cl.MemberCount, 1)
	}
	assert.LessOrEqual(t, totalMembers, windowSize, "noise points are discarded")
}

func TestClusteringDeterministic(t *testing.T) {
	series := cohortSeries(120)
	c := NewClusterer(MethodPartitional, zerolog.Nop())

	a := c.Cluster(series)
	b := c.Cluster(series)
	assert.Equal(t, a, b)
}

func TestClusteringShortSeries(t *testing.T) {
	c := NewClusterer(MethodPartitional, zerolog.Nop())
	assert.Empty(t, c.Cluster(cohortSeries(3)))
	assert.Empty(t, c.Cluster(domain.Series{}))
}

func TestUnknownMethodFallsBack(t *testing.T) {
	c := NewClusterer(Method("centroid-ish"), zerolog.Nop())
	assert.Equal(t, MethodPartitional, c.method)
}
