// Package handlers exposes the funding lifecycle over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sub0-labs/funding-oracle/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeDomainError maps lifecycle errors to HTTP responses. Unknown errors
// become a 500 and are logged with full detail; the client only sees a
// generic message.
func writeDomainError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		status, code = http.StatusBadRequest, "validation_failed"
	case errors.Is(err, apperrors.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrDuplicateProject):
		status, code = http.StatusConflict, "duplicate_project"
	case errors.Is(err, apperrors.ErrTerminalState):
		status, code = http.StatusConflict, "terminal_state"
	case errors.Is(err, apperrors.ErrIllegalTransition):
		status, code = http.StatusConflict, "illegal_transition"
	case errors.Is(err, apperrors.ErrAlreadyDeployed):
		status, code = http.StatusConflict, "already_deployed"
	case errors.Is(err, apperrors.ErrNotApproved):
		status, code = http.StatusConflict, "not_approved"
	case errors.Is(err, apperrors.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, apperrors.ErrCollaboratorTimeout):
		status, code = http.StatusGatewayTimeout, "collaborator_timeout"
	case errors.Is(err, apperrors.ErrCollaboratorUnavailable):
		status, code = http.StatusBadGateway, "collaborator_unavailable"
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
		message = "internal error"
	}
	if writeErr := ErrorResponse(w, status, code, message); writeErr != nil {
		logger.Error("Failed to write error response", zap.Error(writeErr))
	}
}
