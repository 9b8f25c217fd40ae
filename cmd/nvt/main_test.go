package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainquant/nvtengine/internal/engine"
)

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.New(engine.Config{}, zerolog.Nop())
	require.NoError(t, err)
	return eng
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	eng := testEngine(t)

	loaded, err := loadSnapshot(eng, filepath.Join(t.TempDir(), "absent.msgpack"))
	require.NoError(t, err, "a missing snapshot is not an error")
	assert.False(t, loaded)
	assert.False(t, eng.Fitted())
}

func TestLoadSnapshotUnreadablePath(t *testing.T) {
	eng := testEngine(t)

	// A directory exists but cannot be read as a snapshot file.
	_, err := loadSnapshot(eng, t.TempDir())
	require.Error(t, err)
	assert.False(t, os.IsNotExist(err))
}

func TestLoadSnapshotCorruptData(t *testing.T) {
	eng := testEngine(t)

	path := filepath.Join(t.TempDir(), "corrupt.msgpack")
	require.NoError(t, os.WriteFile(path, []byte("not a snapshot"), 0o600))

	loaded, err := loadSnapshot(eng, path)
	require.Error(t, err)
	assert.False(t, loaded)
	assert.False(t, eng.Fitted())
}

func TestReadSeriesParsesObservations(t *testing.T) {
	csv := strings.Join([]string{
		"timestamp,transaction_volume,transaction_count,market_cap,active_addresses,average_fee,price",
		"2025-01-01T00:00:00Z,1e9,100000,1e12,1000000,0.5,50000",
		"1735776000,2e9,110000,1.1e12,1100000,0.6,51000",
	}, "\n")

	path := filepath.Join(t.TempDir(), "obs.csv")
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o600))

	series, err := readSeries(path)
	require.NoError(t, err)
	require.Equal(t, 2, series.Len())
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), series[0].Timestamp)
	assert.Equal(t, 1e9, series[0].TransactionVolume)
	assert.Equal(t, 2e9, series[1].TransactionVolume, "unix-second timestamps parse too")
}

func TestReadSeriesRejectsBadRows(t *testing.T) {
	for name, body := range map[string]string{
		"wrong column count": "timestamp,transaction_volume\n2025-01-01T00:00:00Z,1e9",
		"bad timestamp": "timestamp,transaction_volume,transaction_count,market_cap,active_addresses,average_fee,price\n" +
			"someday,1e9,1e5,1e12,1e6,0.5,50000",
		"bad number": "timestamp,transaction_volume,transaction_count,market_cap,active_addresses,average_fee,price\n" +
			"2025-01-01T00:00:00Z,lots,1e5,1e12,1e6,0.5,50000",
	} {
		path := filepath.Join(t.TempDir(), "obs.csv")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

		_, err := readSeries(path)
		assert.Error(t, err, name)
	}
}
