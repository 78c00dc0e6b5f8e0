package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/terrasurvey-io/terrasurvey-auth/pkg/apperrors"
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
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteServiceError maps a service-layer error onto the HTTP status for it
// and writes the JSON error body. Unknown errors become a 500.
func WriteServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var (
		status = http.StatusInternalServerError
		code   = "internal_error"
	)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status, code = http.StatusBadRequest, "not_found"
	case errors.Is(err, apperrors.ErrConflict):
		status, code = http.StatusBadRequest, "conflict"
	case errors.Is(err, apperrors.ErrInvalidArgument):
		status, code = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, apperrors.ErrInvalidState):
		status, code = http.StatusBadRequest, "invalid_state"
	case errors.Is(err, apperrors.ErrUnauthorized):
		status, code = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperrors.ErrUpstreamFailure):
		status, code = http.StatusBadGateway, "upstream_failure"
	case errors.Is(err, apperrors.ErrInconsistentState):
		status, code = http.StatusInternalServerError, "inconsistent_state"
	default:
		logger.Error("Unhandled service error", zap.Error(err))
	}
	if werr := ErrorResponse(w, status, code, err.Error()); werr != nil {
		logger.Error("Failed to write error response", zap.Error(werr))
	}
}
