package httputil

import (
	"encoding/json"
	"net/http"
)

// Envelope is the response wrapper every endpoint returns. Success carries
// data; failure carries a machine-readable error.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody is the error half of the envelope. Details holds field-level
// violations for validation failures.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// WriteJSON writes a raw JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 envelope.
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// WriteCreated writes a 201 envelope.
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, Envelope{Success: true, Data: data})
}

// WriteNoContent writes a 204 with no body.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteErrorBody writes a failure envelope with the given status.
func WriteErrorBody(w http.ResponseWriter, status int, code, message string, details interface{}) {
	WriteJSON(w, status, Envelope{
		Success: false,
		Error:   &ErrorBody{Code: code, Message: message, Details: details},
	})
}

// WriteBadRequest writes a bad request error (400).
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorBody(w, http.StatusBadRequest, "bad_request", message, nil)
}

// WriteValidationError writes a 400 with field-level details.
func WriteValidationError(w http.ResponseWriter, message string, details interface{}) {
	WriteErrorBody(w, http.StatusBadRequest, "validation_failed", message, details)
}

// WriteUnauthorized writes an unauthorized error (401).
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorBody(w, http.StatusUnauthorized, "unauthorized", message, nil)
}

// WriteNotFound writes a not found error (404).
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteErrorBody(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteTooManyRequests writes a rate limit error (429).
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteErrorBody(w, http.StatusTooManyRequests, "rate_limited", message, nil)
}

// WriteInternalError writes an internal server error (500). The underlying
// error never reaches the client.
func WriteInternalError(w http.ResponseWriter) {
	WriteErrorBody(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
}

// WriteServiceUnavailable writes a service unavailable error (503).
func WriteServiceUnavailable(w http.ResponseWriter, message string) {
	WriteErrorBody(w, http.StatusServiceUnavailable, "unavailable", message, nil)
}
