package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"loan-engine/internal/api/handler/dto"
	"loan-engine/internal/domain/access"
	"loan-engine/internal/pkg/apperrors"

	"github.com/go-chi/chi/v5"
)

const unexpectedErrorMessage = "An unexpected error occurred."

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return fmt.Errorf("no request body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":{"message":"Internal server error"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, message, field := http.StatusInternalServerError, unexpectedErrorMessage, ""
	var validationErr *apperrors.ValidationError

	switch {
	case errors.As(err, &validationErr):
		status, message, field = http.StatusBadRequest, validationErr.Message, validationErr.Field
	case errors.Is(err, apperrors.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, apperrors.ErrInvalidRequest),
		errors.Is(err, apperrors.ErrInvalidArgument),
		errors.Is(err, apperrors.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperrors.ErrAccessDenied):
		status, message = http.StatusForbidden, err.Error()
	case errors.Is(err, apperrors.ErrUnauthorized):
		status, message = http.StatusUnauthorized, err.Error()
	default:
		logger.Error("Unhandled internal error", slog.Any("error", err))
	}

	respondJSON(w, status, dto.ErrorResponse{
		Error: dto.ErrorDetail{
			Message: message,
			Field:   field,
		},
	})
}

func requestIdentity(r *http.Request) (access.Identity, error) {
	id, ok := access.IdentityFrom(r.Context())
	if !ok || id.Username == "" {
		return access.Identity{}, fmt.Errorf("%w: no authenticated identity on request", apperrors.ErrUnauthorized)
	}
	return id, nil
}

func positiveIDParam(value, name string) (int64, error) {
	if value == "" {
		return 0, fmt.Errorf("%w: %s is required", apperrors.ErrInvalidArgument, name)
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s: %s", apperrors.ErrInvalidArgument, name, value)
	}
	return id, nil
}

func getLoanIDFromURL(r *http.Request) (int64, error) {
	return positiveIDParam(chi.URLParam(r, "loanID"), "loanID")
}
