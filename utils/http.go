package utils

import (
	"encoding/json"
	"net/http"
)

// Error codes carried in the "error" field of every JSON error body.
const (
	CodeBadRequest   = "bad_request"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeRateLimited  = "rate_limit_exceeded"
	CodeBadGateway   = "bad_gateway"
	CodeInternal     = "internal_error"
)

// ErrorResponse is the body of every JSON error. Details carries
// per-field validation messages, the role a guard required, or the
// upstream status of a failed catalog call.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SuccessResponse wraps successful JSON payloads as {"data": ...}.
type SuccessResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// WriteJSON writes data with the given status. A nil data writes no body.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteData wraps data in the success envelope.
func WriteData(w http.ResponseWriter, status int, data interface{}) error {
	return WriteJSON(w, status, SuccessResponse{Data: data})
}

// WriteOK writes a 200 with data in the success envelope.
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteData(w, http.StatusOK, data)
}

func writeError(w http.ResponseWriter, status int, code, message, fallback string, details map[string]interface{}) error {
	if message == "" {
		message = fallback
	}
	return WriteJSON(w, status, ErrorResponse{Error: code, Message: message, Details: details})
}

func WriteBadRequest(w http.ResponseWriter, message string, details map[string]interface{}) error {
	return writeError(w, http.StatusBadRequest, CodeBadRequest, message, "Invalid request", details)
}

func WriteUnauthorized(w http.ResponseWriter, message string) error {
	return writeError(w, http.StatusUnauthorized, CodeUnauthorized, message, "Authentication required", nil)
}

func WriteForbidden(w http.ResponseWriter, message string) error {
	return writeError(w, http.StatusForbidden, CodeForbidden, message, "Access forbidden", nil)
}

// WriteRoleRequired writes a 403 naming the role requirement the caller
// failed, e.g. "librarian or admin".
func WriteRoleRequired(w http.ResponseWriter, message, requirement string) error {
	return writeError(w, http.StatusForbidden, CodeForbidden, message, "Insufficient permissions",
		map[string]interface{}{"required_role": requirement})
}

func WriteNotFound(w http.ResponseWriter, message string) error {
	return writeError(w, http.StatusNotFound, CodeNotFound, message, "Resource not found", nil)
}

func WriteConflict(w http.ResponseWriter, message string, details map[string]interface{}) error {
	return writeError(w, http.StatusConflict, CodeConflict, message, "Conflict", details)
}

func WriteTooManyRequests(w http.ResponseWriter, message string, details map[string]interface{}) error {
	return writeError(w, http.StatusTooManyRequests, CodeRateLimited, message, "Rate limit exceeded", details)
}

// WriteBadGateway reports a failure of the catalog API.
func WriteBadGateway(w http.ResponseWriter, message string, details map[string]interface{}) error {
	return writeError(w, http.StatusBadGateway, CodeBadGateway, message, "Catalog service unavailable", details)
}

func WriteInternalServerError(w http.ResponseWriter, message string) error {
	return writeError(w, http.StatusInternalServerError, CodeInternal, message, "Internal server error", nil)
}
