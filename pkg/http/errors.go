package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/catkeep/authcore/internal/models"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Error   string `json:"error"`             // Machine-readable error code
	Message string `json:"message"`           // Human-readable message
	Details string `json:"details,omitempty"` // Optional additional context
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error:   errorCode,
		Message: message,
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// WriteModelError maps a service-layer sentinel error to its HTTP response.
// Invalid credentials, unknown accounts, and disabled accounts all surface as
// the same 401 so responses don't reveal which part of the check failed; the
// locked state is the deliberate exception, since the client must tell the
// user to wait.
func WriteModelError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidCredentials), errors.Is(err, models.ErrAccountDisabled):
		WriteUnauthorized(w, "Invalid username or password")
	case errors.Is(err, models.ErrAccountLocked):
		WriteError(w, http.StatusTooManyRequests, "account_locked", "Account temporarily locked due to repeated failures")
	case errors.Is(err, models.ErrMFAInvalidCode):
		WriteUnauthorized(w, "Invalid verification code")
	case errors.Is(err, models.ErrMFANotConfigured):
		WriteError(w, http.StatusConflict, "mfa_not_configured", "Multi-factor authentication is not set up")
	case errors.Is(err, models.ErrDuplicateActiveAdmin):
		WriteConflict(w, "Another active admin already exists")
	case errors.Is(err, models.ErrInsufficientPrivilege), errors.Is(err, models.ErrForbidden):
		WriteForbidden(w, "Insufficient privileges")
	case errors.Is(err, models.ErrNotFound):
		WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrConflict):
		WriteConflict(w, "Resource already exists")
	case errors.Is(err, models.ErrBadRequest):
		WriteBadRequest(w, "Invalid request")
	default:
		WriteInternalError(w, "Internal server error")
	}
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, "forbidden", message)
}

func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message)
}

func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, "conflict", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}

// WriteJSON writes a JSON success response.
func WriteJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
