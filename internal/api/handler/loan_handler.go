package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"loan-engine/internal/api/handler/dto"
	"loan-engine/internal/domain/loan"
	"loan-engine/internal/pkg/apperrors"
)

type LoanHandler struct {
	service loan.GuardedService
	logger  *slog.Logger
}

func NewLoanHandler(s loan.GuardedService, l *slog.Logger) *LoanHandler {
	if s == nil {
		panic("loan service cannot be nil")
	}
	return &LoanHandler{
		service: s,
		logger:  l.With("component", "LoanHandler"),
	}
}

// CreateLoan handles POST /api/loans.
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	id, err := requestIdentity(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	var req dto.CreateLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, h.logger, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, h.logger, err)
		return
	}

	result, err := h.service.CreateLoan(r.Context(), id, req.ToDomain())
	if err != nil {
		h.logFailure(r, "Create loan failed", err)
		respondError(w, h.logger, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Loan created", slog.Int64("loanID", result.LoanID))
	respondJSON(w, http.StatusCreated, dto.NewCreateLoanResponse(result))
}

// ListLoans handles GET /api/loans?customerId=&isPaid=&numberOfInstallments=.
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	id, err := requestIdentity(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	query := r.URL.Query()
	customerID, err := positiveIDParam(query.Get("customerId"), "customerId")
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	filter, err := parseListFilter(query.Get("isPaid"), query.Get("numberOfInstallments"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	loans, err := h.service.ListLoans(r.Context(), id, customerID, filter)
	if err != nil {
		h.logFailure(r, "List loans failed", err)
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewLoanResponses(loans))
}

func parseListFilter(isPaid, installments string) (loan.ListFilter, error) {
	var filter loan.ListFilter
	if isPaid != "" {
		v, err := strconv.ParseBool(isPaid)
		if err != nil {
			return filter, apperrors.NewValidationError("isPaid", "isPaid must be true or false")
		}
		filter.IsPaid = &v
	}
	if installments != "" {
		v, err := strconv.Atoi(installments)
		if err != nil {
			return filter, apperrors.NewValidationError("numberOfInstallments", "numberOfInstallments must be a number")
		}
		filter.NumberOfInstallments = &v
	}
	return filter, nil
}

// ListInstallments handles GET /api/loans/{loanID}/installments.
func (h *LoanHandler) ListInstallments(w http.ResponseWriter, r *http.Request) {
	id, err := requestIdentity(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	loanID, err := getLoanIDFromURL(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	installments, err := h.service.ListInstallments(r.Context(), id, loanID)
	if err != nil {
		h.logFailure(r, "List installments failed", err, slog.Int64("loanID", loanID))
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewInstallmentResponses(installments))
}

// PayLoan handles POST /api/loans/{loanID}/pay.
func (h *LoanHandler) PayLoan(w http.ResponseWriter, r *http.Request) {
	id, err := requestIdentity(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	loanID, err := getLoanIDFromURL(r)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	var req dto.PayLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, h.logger, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, h.logger, err)
		return
	}

	result, err := h.service.PayLoan(r.Context(), id, loanID, req.Amount)
	if err != nil {
		h.logFailure(r, "Pay loan failed", err, slog.Int64("loanID", loanID))
		respondError(w, h.logger, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Payment applied",
		slog.Int64("loanID", loanID),
		slog.Int("installmentsPaid", result.InstallmentsPaid),
		slog.Bool("loanFullyPaid", result.LoanFullyPaid),
	)
	respondJSON(w, http.StatusOK, dto.NewPaymentResponse(result))
}

// logFailure logs caller mistakes at warn and everything else at error.
func (h *LoanHandler) logFailure(r *http.Request, msg string, err error, attrs ...any) {
	level := slog.LevelError
	if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrInvalidRequest) ||
		errors.Is(err, apperrors.ErrAccessDenied) || errors.Is(err, apperrors.ErrValidation) {
		level = slog.LevelWarn
	}
	h.logger.Log(r.Context(), level, msg, append(attrs, slog.Any("error", err))...)
}
