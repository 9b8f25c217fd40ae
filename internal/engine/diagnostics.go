package engine

// Diagnostic reason codes. Low-signal outcomes (empty lists, skipped
// stages) are normal; the codes make the cause inspectable.
const (
	ReasonInsufficientData = "insufficient_data"
	ReasonNotFitted        = "not_fitted"
	ReasonDisabled         = "disabled"
	ReasonDegraded         = "degraded"
)

// Diagnostic records why a stage produced a default or partial output.
type Diagnostic struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}
