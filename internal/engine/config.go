package engine

import (
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

// Config is the engine's full tuning surface. Zero values are filled with
// the documented defaults, then validated.
type Config struct {
	// LookbackPeriod is the minimum history Fit requires.
	LookbackPeriod int `default:"365" validate:"gte=30"`
	// PredictionHorizons are the forecast horizons in periods.
	PredictionHorizons []int `default:"[7,30,90]" validate:"min=1,dive,gt=0"`
	// VelocityWindows are the daily/weekly/monthly analysis windows.
	VelocityWindows []int `default:"[1,7,30]" validate:"min=1,dive,gt=0"`
	// AnomalyThreshold is the z-score above which deviations are flagged.
	AnomalyThreshold float64 `default:"2.5" validate:"gt=0"`
	// ConfidenceLevel drives the CI multiplier (1.96 or 2.58).
	ConfidenceLevel float64 `default:"0.95" validate:"oneof=0.95 0.99"`
	// ClusteringMethod selects the behavioral clustering strategy.
	ClusteringMethod string `default:"partitional" validate:"oneof=partitional density"`
	// FilterMode selects the trend filter implementation.
	FilterMode string `default:"full" validate:"oneof=full simplified"`
	// EnableStateSpaceFilter toggles the smoothing stage.
	EnableStateSpaceFilter *bool `default:"true"`
	// EnableMonteCarlo toggles the scenario simulation stage.
	EnableMonteCarlo *bool `default:"true"`
	// MonteCarloSimulations is the simulated path count.
	MonteCarloSimulations int `default:"1000" validate:"gt=0"`
	// Seed drives every stochastic component; fixed seeds give fully
	// reproducible fits and simulations.
	Seed int64 `default:"42"`
}

// Normalize fills defaults and validates the result.
func (c *Config) Normalize() error {
	if err := defaults.Set(c); err != nil {
		return fmt.Errorf("config defaults: %w", err)
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	return nil
}

// StateSpaceEnabled reports the smoothing toggle with its default applied.
func (c *Config) StateSpaceEnabled() bool {
	return c.EnableStateSpaceFilter == nil || *c.EnableStateSpaceFilter
}

// MonteCarloEnabled reports the simulation toggle with its default applied.
func (c *Config) MonteCarloEnabled() bool {
	return c.EnableMonteCarlo == nil || *c.EnableMonteCarlo
}

// ConfidenceMultiplier maps the confidence level to its CI multiplier.
func (c *Config) ConfidenceMultiplier() float64 {
	if c.ConfidenceLevel == 0.95 {
		return 1.96
	}
	return 2.58
}
