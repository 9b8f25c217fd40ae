package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/chainquant/nvtengine/internal/modules/patterns"
	"github.com/chainquant/nvtengine/internal/modules/prediction"
)

// ErrNotFitted is returned when exporting before a successful Fit.
var ErrNotFitted = errors.New("engine is not fitted")

// Snapshot is the serializable fitted state. Importing it on an engine
// with the same configuration reproduces the exporting engine's forecasts.
type Snapshot struct {
	Ensemble   *prediction.EnsembleSnapshot `msgpack:"ensemble"`
	Classifier *patterns.Mixture            `msgpack:"classifier"`
	CVScores   map[string]float64           `msgpack:"cv_scores"`
	FittedAt   time.Time                    `msgpack:"fitted_at"`
	TrainRows  int                          `msgpack:"train_rows"`
}

// ExportSnapshot serializes the fitted models with msgpack.
func (e *Engine) ExportSnapshot() ([]byte, error) {
	e.mu.RLock()
	fitted := e.fitted
	e.mu.RUnlock()

	if fitted == nil {
		return nil, fmt.Errorf("engine export: %w", ErrNotFitted)
	}
	snap := Snapshot{
		Ensemble:   fitted.ensemble.Snapshot(),
		Classifier: fitted.classifier.Snapshot(),
		CVScores:   fitted.cvScores,
		FittedAt:   fitted.fittedAt,
		TrainRows:  fitted.trainRows,
	}
	data, err := msgpack.Marshal(&snap)
	if err != nil {
		return nil, fmt.Errorf("engine export: %w", err)
	}
	return data, nil
}

// ImportSnapshot restores a previously exported fitted state, replacing
// any models the engine currently holds.
func (e *Engine) ImportSnapshot(data []byte) error {
	var snap Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("engine import: %w", err)
	}

	ensemble := prediction.NewEnsemble(prediction.Config{
		Horizons:        e.cfg.PredictionHorizons,
		VelocityWindows: e.cfg.VelocityWindows,
		ConfidenceLevel: e.cfg.ConfidenceLevel,
		Seed:            e.cfg.Seed,
	}, e.log)
	if err := ensemble.Restore(snap.Ensemble); err != nil {
		return fmt.Errorf("engine import: %w", err)
	}

	classifier := patterns.NewClassifier(e.log)
	classifier.Restore(snap.Classifier)

	e.mu.Lock()
	e.fitted = &fittedModels{
		classifier: classifier,
		ensemble:   ensemble,
		cvScores:   snap.CVScores,
		fittedAt:   snap.FittedAt,
		trainRows:  snap.TrainRows,
	}
	e.mu.Unlock()
	return nil
}
