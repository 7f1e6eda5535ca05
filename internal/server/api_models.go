package server

import "time"

// StartScanRequest represents the payload required to start a scan.
type StartScanRequest struct {
	URL string `json:"url" example:"https://example.com"`
}

// StartScanResponse acknowledges an accepted scan.
type StartScanResponse struct {
	ScanID  int64  `json:"scanId" example:"1"`
	Status  string `json:"status" example:"scanning"`
	Message string `json:"message" example:"Scan started for https://example.com"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status    string    `json:"status" example:"ok"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"not found"`
}
