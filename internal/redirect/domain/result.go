package domain

// Stage tags reported in results.
const (
	StageGenesisComplete    = "genesis_complete"
	StageGenesisFailed      = "genesis_failed"
	StageValidationComplete = "validation_complete"
	StageValidationFailed   = "validation_failed"
	StageRoutingComplete    = "routing_complete"
	StageRoutingFailed      = "routing_failed"
)

// Result is returned by every pipeline stage. Stages never return Go errors;
// failures are reported with Success=false and an Error message.
type Result struct {
	Success           bool           `json:"success"`
	RedirectURL       string         `json:"redirect_url,omitempty"`
	FinalURL          string         `json:"final_url,omitempty"`
	ClickID           string         `json:"click_id,omitempty"`
	ProcessingTimeMS  float64        `json:"processing_time_ms"`
	Stage             string         `json:"stage"`
	Error             string         `json:"error,omitempty"`
	SecurityViolation Reason         `json:"security_violation,omitempty"`
	LogData           map[string]any `json:"log_data,omitempty"`
}
