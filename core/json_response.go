// Package core holds the JSON response envelope shared by all HTTP
// handlers.
package core

import (
	"encoding/json"
	"net/http"

	"github.com/oneuni/oneuni-backend/pkg/requestid"
)

// JSONResponse is the standard response body. Exactly one of Data and
// Error is set.
type JSONResponse struct {
	Data  any          `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail carries the machine-readable error code and the request
// correlation id so clients can report failures precisely.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// JSON writes data wrapped in the standard envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, JSONResponse{Data: data})
}

// Error writes an error envelope with the correlation id from the request
// context.
func Error(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, JSONResponse{Error: &ErrorDetail{
		Code:      code,
		Message:   message,
		RequestID: requestid.FromContext(r.Context()),
	}})
}

func writeJSON(w http.ResponseWriter, status int, body JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
