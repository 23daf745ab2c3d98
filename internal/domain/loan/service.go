package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"loan-engine/internal/domain/customer"
	"loan-engine/internal/event"
	"loan-engine/internal/infrastructure/monitoring"
	"loan-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type LoanService interface {
	CreateLoan(ctx context.Context, req CreateLoanRequest) (*CreateLoanResult, error)

	ListLoans(ctx context.Context, customerID int64, filter ListFilter) ([]Loan, error)

	ListInstallments(ctx context.Context, loanID int64) ([]Installment, error)

	PayLoan(ctx context.Context, loanID int64, amount decimal.Decimal) (*PaymentResult, error)

	// LoanOwnerID returns the customer that owns loanID.
	LoanOwnerID(ctx context.Context, loanID int64) (int64, error)
}

type Option func(*loanServiceImpl)

// WithClock replaces time.Now as the source of "today".
func WithClock(now func() time.Time) Option {
	return func(s *loanServiceImpl) { s.now = now }
}

// WithEligibilityWindow sets how many months past today an installment may be due and
// still be settled by a payment. Non-positive values keep the default.
func WithEligibilityWindow(months int) Option {
	return func(s *loanServiceImpl) {
		if months > 0 {
			s.windowMonths = months
		}
	}
}

type loanServiceImpl struct {
	repo         Repository
	customers    customer.CustomerRepository
	publisher    event.EventPublisher
	now          func() time.Time
	windowMonths int
	logger       *slog.Logger
}

func NewLoanService(r Repository, customers customer.CustomerRepository, publisher event.EventPublisher, logger *slog.Logger, opts ...Option) LoanService {
	if publisher == nil {
		publisher = event.NoopPublisher{}
	}
	s := &loanServiceImpl{
		repo:         r,
		customers:    customers,
		publisher:    publisher,
		now:          time.Now,
		windowMonths: DefaultEligibilityWindowMonths,
		logger:       logger.With(slog.String("component", "loanService")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *loanServiceImpl) today() time.Time {
	return dateOf(s.now())
}

func (s *loanServiceImpl) CreateLoan(ctx context.Context, req CreateLoanRequest) (result *CreateLoanResult, err error) {
	logger := s.logger.With(slog.Int64("customerID", req.CustomerID))
	logger.InfoContext(ctx, "Creating new loan",
		slog.String("amount", req.Amount.String()),
		slog.String("interestRate", req.InterestRate.String()),
		slog.Int("numberOfInstallments", req.NumberOfInstallments))

	if err := ValidateInstallmentCount(req.NumberOfInstallments); err != nil {
		monitoring.RecordOrigination("invalid")
		return nil, err
	}
	if err := ValidateInterestRate(req.InterestRate); err != nil {
		monitoring.RecordOrigination("invalid")
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = s.repo.RollbackTx(ctx, tx)
			panic(p)
		}
		if err != nil {
			monitoring.RecordOrigination(originationStatus(err))
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	cust, err := s.customers.FindByIDForUpdate(ctx, tx, req.CustomerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.WarnContext(ctx, "Customer not found")
			return nil, apperrors.NewNotFound("Customer", req.CustomerID)
		}
		logger.ErrorContext(ctx, "Failed to lock customer", slog.Any("error", err))
		return nil, fmt.Errorf("%w: could not load customer %d: %v", apperrors.ErrInternalServer, req.CustomerID, err)
	}

	total := TotalPayable(req.Amount, req.InterestRate)
	if err = cust.Reserve(total); err != nil {
		logger.WarnContext(ctx, "Credit limit not enough", slog.Any("error", err))
		return nil, apperrors.NewInvalidRequest(err)
	}

	today := s.today()
	newLoan := &Loan{
		CustomerID:           req.CustomerID,
		LoanAmount:           total,
		NumberOfInstallments: req.NumberOfInstallments,
		CreateDate:           today,
		IsPaid:               false,
	}
	installments := GenerateInstallments(total, req.NumberOfInstallments, today)

	created, err := s.repo.CreateLoanInTx(ctx, tx, newLoan, installments)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to save loan and installments", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to save loan: %v", apperrors.ErrInternalServer, err)
	}

	if err = s.customers.UpdateCreditInTx(ctx, tx, cust); err != nil {
		logger.ErrorContext(ctx, "Failed to update customer credit", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to update customer credit: %v", apperrors.ErrInternalServer, err)
	}

	if err = s.repo.CommitTx(ctx, tx); err != nil {
		logger.ErrorContext(ctx, "Failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%w: could not commit transaction: %v", apperrors.ErrInternalServer, err)
	}

	monitoring.RecordOrigination("success")
	logger.InfoContext(ctx, "Loan created successfully", slog.Int64("loanID", created.ID), slog.String("total", total.String()))

	if pubErr := s.publisher.PublishLoanCreated(ctx, event.LoanCreatedEvent{
		LoanID:               created.ID,
		CustomerID:           created.CustomerID,
		TotalAmount:          total,
		NumberOfInstallments: created.NumberOfInstallments,
		Timestamp:            s.now().UTC(),
	}); pubErr != nil {
		logger.WarnContext(ctx, "Failed to publish loan created event", slog.Any("error", pubErr))
	}

	return &CreateLoanResult{LoanID: created.ID, TotalAmount: total, IsPaid: created.IsPaid}, nil
}

func originationStatus(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrCreditLimitExceeded):
		return "credit_exceeded"
	case errors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	default:
		return "failure_internal"
	}
}

func (s *loanServiceImpl) ListLoans(ctx context.Context, customerID int64, filter ListFilter) ([]Loan, error) {
	logger := s.logger.With(slog.Int64("customerID", customerID))
	logger.InfoContext(ctx, "Listing loans")

	if filter.NumberOfInstallments != nil {
		if err := ValidateInstallmentCount(*filter.NumberOfInstallments); err != nil {
			return nil, err
		}
	}

	exists, err := s.repo.ExistsForCustomer(ctx, customerID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to check loans for customer", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to list loans: %v", apperrors.ErrInternalServer, err)
	}
	if !exists {
		logger.WarnContext(ctx, "No loans found for customer")
		return nil, apperrors.NewNotFound("Customer", customerID)
	}

	loans, err := s.repo.ListByCustomer(ctx, customerID, filter)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list loans", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to list loans: %v", apperrors.ErrInternalServer, err)
	}
	return loans, nil
}

func (s *loanServiceImpl) ListInstallments(ctx context.Context, loanID int64) ([]Installment, error) {
	logger := s.logger.With(slog.Int64("loanID", loanID))
	logger.InfoContext(ctx, "Listing installments")

	if _, err := s.getLoan(ctx, loanID); err != nil {
		return nil, err
	}

	installments, err := s.repo.GetInstallmentsByLoanID(ctx, loanID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list installments", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to list installments for loan %d: %v", apperrors.ErrInternalServer, loanID, err)
	}
	return installments, nil
}

func (s *loanServiceImpl) LoanOwnerID(ctx context.Context, loanID int64) (int64, error) {
	l, err := s.getLoan(ctx, loanID)
	if err != nil {
		return 0, err
	}
	return l.CustomerID, nil
}

func (s *loanServiceImpl) getLoan(ctx context.Context, loanID int64) (*Loan, error) {
	l, err := s.repo.GetLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
			s.logger.WarnContext(ctx, "Loan not found", slog.Int64("loanID", loanID))
			return nil, apperrors.NewNotFound("Loan", loanID)
		}
		s.logger.ErrorContext(ctx, "Failed to get loan", slog.Int64("loanID", loanID), slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get loan %d: %v", apperrors.ErrInternalServer, loanID, err)
	}
	return l, nil
}

func (s *loanServiceImpl) PayLoan(ctx context.Context, loanID int64, amount decimal.Decimal) (result *PaymentResult, err error) {
	logger := s.logger.With(slog.Int64("loanID", loanID))
	logger.InfoContext(ctx, "Paying loan", slog.String("amount", amount.String()))

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}
	defer func() {
		if p := recover(); p != nil {
			logger.ErrorContext(ctx, "Panic occurred during payment processing", slog.Any("error", p))
			_ = s.repo.RollbackTx(ctx, tx)
			panic(p)
		}
		if err != nil {
			monitoring.RecordPayment(paymentStatus(err), 0)
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	l, err := s.repo.GetLoanForUpdate(ctx, tx, loanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.WarnContext(ctx, "Loan not found")
			return nil, apperrors.NewNotFound("Loan", loanID)
		}
		logger.ErrorContext(ctx, "Failed to lock loan", slog.Any("error", err))
		return nil, fmt.Errorf("%w: could not load loan %d: %v", apperrors.ErrInternalServer, loanID, err)
	}
	if l.IsPaid {
		logger.WarnContext(ctx, "Loan is already fully paid")
		return nil, apperrors.NewInvalidRequest(apperrors.ErrLoanFullyPaid)
	}

	cust, err := s.customers.FindByIDForUpdate(ctx, tx, l.CustomerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.ErrorContext(ctx, "Loan owner not found", slog.Int64("customerID", l.CustomerID))
			return nil, apperrors.NewNotFound("Customer", l.CustomerID)
		}
		logger.ErrorContext(ctx, "Failed to lock loan owner", slog.Any("error", err))
		return nil, fmt.Errorf("%w: could not load customer %d: %v", apperrors.ErrInternalServer, l.CustomerID, err)
	}

	unpaid, err := s.repo.GetUnpaidInstallmentsForUpdate(ctx, tx, loanID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load unpaid installments", slog.Any("error", err))
		return nil, fmt.Errorf("%w: could not load installments: %v", apperrors.ErrInternalServer, err)
	}

	today := s.today()
	candidates := eligibleInstallments(unpaid, addMonths(today, s.windowMonths))
	if len(candidates) == 0 {
		logger.WarnContext(ctx, "No installments eligible for payment")
		return nil, apperrors.NewInvalidRequest(apperrors.ErrNoEligibleInstallments)
	}

	settled, totalPaid := allocate(candidates, amount, today)

	if len(settled) > 0 {
		if err = s.repo.UpdateInstallmentsInTx(ctx, tx, settled); err != nil {
			logger.ErrorContext(ctx, "Failed to update installments", slog.Any("error", err))
			return nil, fmt.Errorf("%w: could not update installments: %v", apperrors.ErrInternalServer, err)
		}
	}

	remaining, err := s.repo.CountUnpaidInstallmentsInTx(ctx, tx, loanID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to count unpaid installments", slog.Any("error", err))
		return nil, fmt.Errorf("%w: could not check remaining installments: %v", apperrors.ErrInternalServer, err)
	}
	fullyPaid := remaining == 0
	if fullyPaid {
		if err = s.repo.MarkLoanPaidInTx(ctx, tx, loanID); err != nil {
			logger.ErrorContext(ctx, "Failed to mark loan as paid", slog.Any("error", err))
			return nil, fmt.Errorf("%w: could not mark loan as paid: %v", apperrors.ErrInternalServer, err)
		}
	}

	cust.Release(totalPaid)
	if err = s.customers.UpdateCreditInTx(ctx, tx, cust); err != nil {
		logger.ErrorContext(ctx, "Failed to update customer credit", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to update customer credit: %v", apperrors.ErrInternalServer, err)
	}

	if err = s.repo.CommitTx(ctx, tx); err != nil {
		logger.ErrorContext(ctx, "Failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%w: could not commit transaction: %v", apperrors.ErrInternalServer, err)
	}

	result = &PaymentResult{
		InstallmentsPaid: len(settled),
		TotalPaid:        totalPaid,
		LoanFullyPaid:    fullyPaid,
	}
	monitoring.RecordPayment("success", result.InstallmentsPaid)
	logger.InfoContext(ctx, "Payment processed successfully",
		slog.Int("installmentsPaid", result.InstallmentsPaid),
		slog.String("totalPaid", totalPaid.String()),
		slog.Bool("loanFullyPaid", fullyPaid))

	if pubErr := s.publisher.PublishPaymentApplied(ctx, event.PaymentAppliedEvent{
		LoanID:           loanID,
		CustomerID:       l.CustomerID,
		InstallmentsPaid: result.InstallmentsPaid,
		TotalPaid:        totalPaid,
		LoanFullyPaid:    fullyPaid,
		Timestamp:        s.now().UTC(),
	}); pubErr != nil {
		logger.WarnContext(ctx, "Failed to publish payment applied event", slog.Any("error", pubErr))
	}

	return result, nil
}

func paymentStatus(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrLoanFullyPaid):
		return "failure_fully_paid"
	case errors.Is(err, apperrors.ErrNoEligibleInstallments):
		return "failure_not_eligible"
	case errors.Is(err, apperrors.ErrNotFound):
		return "failure_not_found"
	default:
		return "failure_internal"
	}
}

// eligibleInstallments keeps the unpaid installments due on or before limit, in
// ascending due date order. Equal due dates keep their input order.
func eligibleInstallments(installments []Installment, limit time.Time) []Installment {
	limit = dateOf(limit)
	eligible := make([]Installment, 0, len(installments))
	for _, inst := range installments {
		if !inst.IsPaid && !dateOf(inst.DueDate).After(limit) {
			eligible = append(eligible, inst)
		}
	}
	slices.SortStableFunc(eligible, func(a, b Installment) int {
		return dateOf(a.DueDate).Compare(dateOf(b.DueDate))
	})
	return eligible
}

// allocate settles candidates in order while the payment covers them whole. It stops at
// the first installment the remainder cannot cover.
func allocate(candidates []Installment, amount decimal.Decimal, today time.Time) ([]Installment, decimal.Decimal) {
	remaining := amount
	totalPaid := decimal.Zero
	settled := make([]Installment, 0, len(candidates))
	for _, inst := range candidates {
		if remaining.LessThan(inst.Amount) {
			break
		}
		remaining = remaining.Sub(inst.Amount)
		totalPaid = totalPaid.Add(inst.Amount)
		inst.Settle(today)
		settled = append(settled, inst)
	}
	return settled, totalPaid
}
