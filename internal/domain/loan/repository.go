package loan

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Repository persists loans and their installments. Lookups that find nothing
// return apperrors.ErrNotFound.
type Repository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)

	CommitTx(ctx context.Context, tx pgx.Tx) error

	RollbackTx(ctx context.Context, tx pgx.Tx) error

	// CreateLoanInTx stores the loan and its installments and returns the loan with its ID.
	CreateLoanInTx(ctx context.Context, tx pgx.Tx, loan *Loan, installments []Installment) (*Loan, error)

	GetLoanByID(ctx context.Context, loanID int64) (*Loan, error)

	// GetLoanForUpdate reads the loan and holds its row lock until tx ends.
	GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*Loan, error)

	ExistsForCustomer(ctx context.Context, customerID int64) (bool, error)

	ListByCustomer(ctx context.Context, customerID int64, filter ListFilter) ([]Loan, error)

	MarkLoanPaidInTx(ctx context.Context, tx pgx.Tx, loanID int64) error

	// GetInstallmentsByLoanID returns installments ordered by due date.
	GetInstallmentsByLoanID(ctx context.Context, loanID int64) ([]Installment, error)

	// GetUnpaidInstallmentsForUpdate locks the unpaid installments of a loan, ordered by due date.
	GetUnpaidInstallmentsForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) ([]Installment, error)

	UpdateInstallmentsInTx(ctx context.Context, tx pgx.Tx, installments []Installment) error

	CountUnpaidInstallmentsInTx(ctx context.Context, tx pgx.Tx, loanID int64) (int, error)
}
