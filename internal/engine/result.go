package engine

import (
	"time"

	"github.com/chainquant/nvtengine/internal/modules/anomaly"
	"github.com/chainquant/nvtengine/internal/modules/clustering"
	"github.com/chainquant/nvtengine/internal/modules/metrics"
	"github.com/chainquant/nvtengine/internal/modules/montecarlo"
	"github.com/chainquant/nvtengine/internal/modules/network"
	"github.com/chainquant/nvtengine/internal/modules/patterns"
	"github.com/chainquant/nvtengine/internal/modules/prediction"
	"github.com/chainquant/nvtengine/internal/modules/risk"
	"github.com/chainquant/nvtengine/internal/modules/statespace"
	"github.com/chainquant/nvtengine/internal/modules/velocity"
)

// ModelPerformance is the trailing-holdout backtest of the NVT ensemble.
type ModelPerformance struct {
	MSE         float64 `json:"mse"`
	MAE         float64 `json:"mae"`
	R2          float64 `json:"r2"`
	SampleCount int     `json:"sample_count"`
}

// Result is the complete output of one Analyze call. It is a fresh,
// independently owned value: nothing in it aliases engine state.
type Result struct {
	ID          string    `json:"id"`
	GeneratedAt time.Time `json:"generated_at"`

	Metrics     metrics.TransactionMetrics `json:"metrics"`
	Velocity    velocity.Analysis          `json:"velocity"`
	Patterns    []patterns.Pattern         `json:"patterns"`
	Clusters    []clustering.Cluster       `json:"clusters"`
	Predictions []prediction.Prediction    `json:"predictions"`
	Anomalies   []anomaly.Anomaly          `json:"anomalies"`
	Risk        risk.Assessment            `json:"risk"`

	StateSpace *statespace.Result `json:"state_space,omitempty"`
	MonteCarlo *montecarlo.Result `json:"monte_carlo,omitempty"`

	VelocityDynamics network.VelocityDynamics `json:"velocity_dynamics"`
	FeeDynamics      network.FeeDynamics      `json:"fee_dynamics"`
	UtilityValue     network.UtilityValue     `json:"utility_value"`

	ModelPerformance *ModelPerformance `json:"model_performance,omitempty"`

	ConfidenceScore float64      `json:"confidence_score"`
	Recommendations []string     `json:"recommendations"`
	Diagnostics     []Diagnostic `json:"diagnostics"`
}
