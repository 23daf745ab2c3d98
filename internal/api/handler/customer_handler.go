package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"loan-engine/internal/api/handler/dto"
	"loan-engine/internal/domain/customer"
	"loan-engine/internal/pkg/apperrors"
)

type CustomerHandler struct {
	service   customer.CustomerService
	adminRole string
	logger    *slog.Logger
}

func NewCustomerHandler(s customer.CustomerService, adminRole string, l *slog.Logger) *CustomerHandler {
	if s == nil {
		panic("customer service cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &CustomerHandler{
		service:   s,
		adminRole: adminRole,
		logger:    l.With("component", "CustomerHandler"),
	}
}

// GetCurrentCustomer handles GET /api/customers/me and reports the caller's credit position.
func (h *CustomerHandler) GetCurrentCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := requestIdentity(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	c, err := h.service.GetCustomerByUsername(r.Context(), id.Username)
	if err != nil {
		level := slog.LevelWarn
		if !errors.Is(err, apperrors.ErrNotFound) {
			level = slog.LevelError
		}
		h.logger.Log(r.Context(), level, "Service failed to get customer", slog.String("username", id.Username), slog.Any("error", err))
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewCustomerResponse(c))
}

// ListCustomers handles GET /api/customers. Administrators only.
func (h *CustomerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	id, err := requestIdentity(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if !id.HasRole(h.adminRole) {
		h.logger.WarnContext(r.Context(), "Non-admin tried to list customers", slog.String("username", id.Username))
		respondError(w, h.logger, fmt.Errorf("%w: listing customers requires %s", apperrors.ErrAccessDenied, h.adminRole))
		return
	}

	customers, err := h.service.ListCustomers(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Service failed to list customers", slog.Any("error", err))
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewCustomerResponses(customers))
}
