// Package main is the command line entry point for the NVT/NVM analysis
// engine. It reads an observation series from CSV, optionally fits the
// predictive models, and prints the full analysis result as JSON.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/chainquant/nvtengine/internal/domain"
	"github.com/chainquant/nvtengine/internal/engine"
	"github.com/chainquant/nvtengine/pkg/logger"
)

// Expected CSV header, one observation per row.
var csvColumns = []string{
	"timestamp", "transaction_volume", "transaction_count",
	"market_cap", "active_addresses", "average_fee", "price",
}

func main() {
	input := flag.String("input", "", "observation CSV file (default stdin)")
	snapshotPath := flag.String("snapshot", "", "fitted model snapshot to load or save")
	fit := flag.Bool("fit", true, "fit models before analyzing")
	lookback := flag.Int("lookback", 365, "minimum history required for fitting")
	simulations := flag.Int("simulations", 1000, "Monte Carlo path count")
	seed := flag.Int64("seed", 42, "seed for stochastic components")
	logLevel := flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	pretty := flag.Bool("pretty", false, "indent the JSON output")
	flag.Parse()

	// Stdout carries the JSON result, logs go to stderr.
	log := logger.New(logger.Config{Level: *logLevel}).
		Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})

	series, err := readSeries(*input)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read observations")
	}
	log.Info().Int("observations", series.Len()).Msg("series loaded")

	eng, err := engine.New(engine.Config{
		LookbackPeriod:        *lookback,
		MonteCarloSimulations: *simulations,
		Seed:                  *seed,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if *snapshotPath != "" {
		loaded, err := loadSnapshot(eng, *snapshotPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *snapshotPath).Msg("failed to load snapshot")
		}
		if loaded {
			log.Info().Str("path", *snapshotPath).Msg("snapshot loaded")
		}
	}

	if *fit && !eng.Fitted() {
		if _, err := eng.Fit(series); err != nil {
			log.Warn().Err(err).Msg("fit skipped, analysis will run without predictive models")
		} else if *snapshotPath != "" {
			if err := saveSnapshot(eng, *snapshotPath); err != nil {
				log.Error().Err(err).Str("path", *snapshotPath).Msg("failed to save snapshot")
			}
		}
	}

	result := eng.Analyze(series)

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(result); err != nil {
		log.Fatal().Err(err).Msg("failed to encode result")
	}
}

// loadSnapshot restores a fitted state from path. A missing file is normal
// (the engine fits fresh); any other read or decode failure is an error.
func loadSnapshot(eng *engine.Engine, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read snapshot: %w", err)
	}
	if err := eng.ImportSnapshot(data); err != nil {
		return false, err
	}
	return true, nil
}

func saveSnapshot(eng *engine.Engine, path string) error {
	data, err := eng.ExportSnapshot()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// readSeries parses the observation CSV. The header row is required and
// column order must match csvColumns. Timestamps are RFC 3339 or unix
// seconds.
func readSeries(path string) (domain.Series, error) {
	var in io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		in = f
	}

	r := csv.NewReader(in)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) != len(csvColumns) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(csvColumns), len(header))
	}

	var series domain.Series
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		obs, err := parseObservation(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		series = append(series, obs)
	}
	return series, nil
}

func parseObservation(record []string) (domain.Observation, error) {
	ts, err := parseTimestamp(record[0])
	if err != nil {
		return domain.Observation{}, err
	}

	fields := make([]float64, len(record)-1)
	for i, raw := range record[1:] {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.Observation{}, fmt.Errorf("column %q: %w", csvColumns[i+1], err)
		}
		fields[i] = v
	}

	return domain.Observation{
		Timestamp:         ts,
		TransactionVolume: fields[0],
		TransactionCount:  fields[1],
		MarketCap:         fields[2],
		ActiveAddresses:   fields[3],
		AverageFee:        fields[4],
		Price:             fields[5],
	}, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}
