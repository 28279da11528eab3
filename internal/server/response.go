package server

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error codes
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeCapability     = "CAPABILITY_ERROR"
	ErrCodeConfiguration  = "CONFIGURATION_ERROR"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeInternalError  = "INTERNAL_ERROR"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an HTTP-level error response (bad JSON body, wrong
// method, etc.) using the {error: {...}} envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	})
}

// writeCommandOK writes a successful {success:true, ...} command reply,
// status 200, with fields merged in alongside success at the top level.
func writeCommandOK(w http.ResponseWriter, fields map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}

// writeCommandError writes a failed {success:false, error} command reply.
// Unlike writeError this is still HTTP 200: the request reached and ran
// the command, the command itself reported failure (unknown session,
// capability violation, bad arguments).
func writeCommandError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
}
