package anomaly

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainquant/nvtengine/internal/domain"
)

func stableSeries(n int) domain.Series {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := make(domain.Series, n)
	for i := range s {
		s[i] = domain.Observation{
			Timestamp:         start.AddDate(0, 0, i),
			TransactionVolume: 1e9,
			TransactionCount:  1e5,
			MarketCap:         1e12,
			ActiveAddresses:   1e6,
			AverageFee:        0.5,
			Price:             50000,
		}
	}
	return s
}

func TestStableHistoryHasNoAnomalies(t *testing.T) {
	d := NewDetector(2.5, zerolog.Nop())
	assert.Empty(t, d.Detect(stableSeries(400)))
}

func TestVolumeCollapseFlagsNVTSpike(t *testing.T) {
	d := NewDetector(2.5, zerolog.Nop())

	s := stableSeries(400)
	s[len(s)-1].TransactionVolume = 1e7 // 1% of the trailing mean

	found := d.Detect(s)
	require.NotEmpty(t, found)

	var spike *Anomaly
	for i := range found {
		if found[i].Type == TypeNVTSpike {
			spike = &found[i]
		}
	}
	require.NotNil(t, spike, "volume collapse must register as an NVT spike")
	assert.Equal(t, SeverityHigh, spike.Severity)
	assert.Equal(t, "bearish", spike.MarketImpact)
	assert.True(t, spike.IsAnomaly)
	assert.Greater(t, spike.Score, 2.5)
}

func TestVolumeSurgeFlagsNVTDrop(t *testing.T) {
	d := NewDetector(2.5, zerolog.Nop())

	s := stableSeries(400)
	s[len(s)-1].TransactionVolume = 1e11 // 100x the trailing mean

	found := d.Detect(s)
	var drop *Anomaly
	for i := range found {
		if found[i].Type == TypeNVTDrop {
			drop = &found[i]
		}
	}
	require.NotNil(t, drop)
	assert.Equal(t, "bullish", drop.MarketImpact)
}

func TestRaisingThresholdNeverAddsAnomalies(t *testing.T) {
	s := stableSeries(400)
	s[len(s)-1].TransactionVolume = 5e8

	loose := NewDetector(1.0, zerolog.Nop()).Detect(s)
	strict := NewDetector(4.0, zerolog.Nop()).Detect(s)
	assert.LessOrEqual(t, len(strict), len(loose))
}

func TestShortSeriesReturnsEmpty(t *testing.T) {
	d := NewDetector(2.5, zerolog.Nop())
	assert.Empty(t, d.Detect(stableSeries(29)))
	assert.Empty(t, d.Detect(domain.Series{}))
}

func TestPriceVolumeDisconnect(t *testing.T) {
	d := NewDetector(2.5, zerolog.Nop())

	s := stableSeries(400)
	// Price rises while volume falls across the trailing window.
	for i := len(s) - 30; i < len(s); i++ {
		step := float64(i - (len(s) - 30))
		s[i].Price = 50000 + 1000*step
		s[i].TransactionVolume = 1e9 - 2e7*step
	}

	found := d.Detect(s)
	var disconnect *Anomaly
	for i := range found {
		if found[i].Type == TypeVolumeDisconnect {
			disconnect = &found[i]
		}
	}
	require.NotNil(t, disconnect)
	assert.Equal(t, SeverityMedium, disconnect.Severity)
	assert.Equal(t, "uncertain", disconnect.MarketImpact)
}
