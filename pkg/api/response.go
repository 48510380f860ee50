package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// ErrorBody is the uniform error envelope. Every failed request, on any
// service, answers {"error": "<message>"} with the appropriate status code.
type ErrorBody struct {
	Error string `json:"error"`
}

// HealthBody is the /healthz payload.
type HealthBody struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// JSON writes a JSON response with the given status code.
//
// The response is written with Content-Type: application/json header.
// If encoding fails, an error response is written instead.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// If encoding fails, attempt to write a basic error
		// This is a last resort and may not succeed
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes the uniform error envelope with the given status code.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Error: message})
}
