package models

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is returned by the health endpoints of both servers
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// RecognitionResponse is the body of a successful tag server reply. Clients
// only look at ServiceTag; the rest is diagnostic.
type RecognitionResponse struct {
	ServiceTag string   `json:"service_tag"`
	Pass       string   `json:"pass,omitempty"`
	Sharpness  float64  `json:"sharpness,omitempty"`
	Blurry     bool     `json:"blurry,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
	ElapsedMs  int64    `json:"elapsed_ms,omitempty"`
}

// PipelineMetrics aggregates pipeline runs since process start
type PipelineMetrics struct {
	RunsStarted     int64   `json:"runs_started"`
	Detected        int64   `json:"detected"`
	NotDetected     int64   `json:"not_detected"`
	TransportFailed int64   `json:"transport_failed"`
	CaptureFailed   int64   `json:"capture_failed"`
	Cancelled       int64   `json:"cancelled"`
	AvgRunSeconds   float64 `json:"avg_run_seconds"`
	LastRunID       string  `json:"last_run_id,omitempty"`
}
