package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"loan-engine/internal/domain/loan"
	"loan-engine/internal/infrastructure/monitoring"
	"loan-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ loan.Repository = (*LoanRepository)(nil)

var errMsgFormat = "%w: %w"

const (
	loanColumns        = `id, customer_id, loan_amount, number_of_installments, create_date, is_paid, created_at, updated_at`
	installmentColumns = `id, loan_id, amount, paid_amount, due_date, payment_date, is_paid, created_at, updated_at`
)

type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	return &LoanRepository{db: db, logger: logger.With("component", "LoanRepository")}
}

func (r *LoanRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return tx, nil
}

func (r *LoanRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func scanLoan(row rowScanner) (*loan.Loan, error) {
	var l loan.Loan
	err := row.Scan(
		&l.ID, &l.CustomerID, &l.LoanAmount, &l.NumberOfInstallments,
		&l.CreateDate, &l.IsPaid, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func scanInstallments(rows pgx.Rows) ([]loan.Installment, error) {
	defer rows.Close()

	installments := make([]loan.Installment, 0)
	for rows.Next() {
		var inst loan.Installment
		err := rows.Scan(
			&inst.ID, &inst.LoanID, &inst.Amount, &inst.PaidAmount,
			&inst.DueDate, &inst.PaymentDate, &inst.IsPaid, &inst.CreatedAt, &inst.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		installments = append(installments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return installments, nil
}

func (r *LoanRepository) CreateLoanInTx(ctx context.Context, tx pgx.Tx, newLoan *loan.Loan, installments []loan.Installment) (*loan.Loan, error) {
	loanSQL := `
        INSERT INTO loans (customer_id, loan_amount, number_of_installments, create_date, is_paid, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
        RETURNING ` + loanColumns

	created, err := scanLoan(tx.QueryRow(ctx, loanSQL,
		newLoan.CustomerID, numeric(newLoan.LoanAmount), newLoan.NumberOfInstallments,
		newLoan.CreateDate, newLoan.IsPaid,
	))
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan", "customer_id", newLoan.CustomerID, "error", err)
		return nil, fmt.Errorf("%w: failed to insert loan: %w", apperrors.ErrDatabase, err)
	}
	r.logger.InfoContext(ctx, "Loan created in DB", "loan_id", created.ID)

	if len(installments) == 0 {
		return created, nil
	}

	columns := []string{"loan_id", "amount", "paid_amount", "due_date", "payment_date", "is_paid"}
	copied, err := tx.CopyFrom(ctx, pgx.Identifier{"loan_installments"}, columns,
		pgx.CopyFromSlice(len(installments), func(i int) ([]any, error) {
			inst := installments[i]
			return []any{
				created.ID,
				numeric(inst.Amount),
				numeric(inst.PaidAmount),
				pgtype.Date{Time: inst.DueDate, Valid: true},
				nullableDate(inst.PaymentDate),
				inst.IsPaid,
			}, nil
		}))
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to copy installments", "loan_id", created.ID, "error", err)
		return nil, fmt.Errorf("%w: failed inserting installments: %w", apperrors.ErrDatabase, err)
	}
	if copied != int64(len(installments)) {
		r.logger.ErrorContext(ctx, "Installment copy count mismatch", "loan_id", created.ID, "expected", len(installments), "copied", copied)
		return nil, fmt.Errorf("%w: inserted %d of %d installments", apperrors.ErrDatabase, copied, len(installments))
	}
	r.logger.InfoContext(ctx, "Loan installments created in DB", "loan_id", created.ID, "num_installments", copied)

	return created, nil
}

func (r *LoanRepository) GetLoanByID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`
	startTime := time.Now()

	l, err := scanLoan(r.db.QueryRow(ctx, query, loanID))
	monitoring.RecordDBQuery("GetLoanByID", queryStatus(err), time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found", "loan_id", loanID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by ID", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return l, nil
}

func (r *LoanRepository) GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*loan.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 FOR UPDATE`

	l, err := scanLoan(tx.QueryRow(ctx, query, loanID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found for update", "loan_id", loanID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to lock loan", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return l, nil
}

func (r *LoanRepository) ExistsForCustomer(ctx context.Context, customerID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM loans WHERE customer_id = $1)`
	startTime := time.Now()

	var exists bool
	err := r.db.QueryRow(ctx, query, customerID).Scan(&exists)
	monitoring.RecordDBQuery("LoanExistsForCustomer", queryStatus(err), time.Since(startTime))
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to check loans for customer", "customer_id", customerID, "error", err)
		return false, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return exists, nil
}

// listLoansQuery narrows the customer's loans by whichever filter fields are set.
func listLoansQuery(customerID int64, filter loan.ListFilter) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + loanColumns + ` FROM loans WHERE customer_id = $1`)
	args := []any{customerID}

	if filter.IsPaid != nil {
		args = append(args, *filter.IsPaid)
		sb.WriteString(` AND is_paid = $` + strconv.Itoa(len(args)))
	}
	if filter.NumberOfInstallments != nil {
		args = append(args, *filter.NumberOfInstallments)
		sb.WriteString(` AND number_of_installments = $` + strconv.Itoa(len(args)))
	}
	sb.WriteString(` ORDER BY id`)
	return sb.String(), args
}

func (r *LoanRepository) ListByCustomer(ctx context.Context, customerID int64, filter loan.ListFilter) ([]loan.Loan, error) {
	query, args := listLoansQuery(customerID, filter)
	startTime := time.Now()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		monitoring.RecordDBQuery("ListLoansByCustomer", "error", time.Since(startTime))
		r.logger.ErrorContext(ctx, "Failed to query loans", "customer_id", customerID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	loans := make([]loan.Loan, 0)
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan loan row", "customer_id", customerID, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		loans = append(loans, *l)
	}
	err = rows.Err()
	monitoring.RecordDBQuery("ListLoansByCustomer", queryStatus(err), time.Since(startTime))
	if err != nil {
		r.logger.ErrorContext(ctx, "Error iterating loan rows", "customer_id", customerID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return loans, nil
}

func (r *LoanRepository) MarkLoanPaidInTx(ctx context.Context, tx pgx.Tx, loanID int64) error {
	sql := `UPDATE loans SET is_paid = TRUE, updated_at = NOW() WHERE id = $1`
	cmdTag, err := tx.Exec(ctx, sql, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to mark loan as paid", "loan_id", loanID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.ErrorContext(ctx, "Marking loan as paid affected zero rows", "loan_id", loanID)
		return fmt.Errorf("%w: loan paid update affected zero rows", apperrors.ErrDatabase)
	}
	r.logger.InfoContext(ctx, "Loan marked as paid in DB", "loan_id", loanID)
	return nil
}

func (r *LoanRepository) GetInstallmentsByLoanID(ctx context.Context, loanID int64) ([]loan.Installment, error) {
	query := `SELECT ` + installmentColumns + ` FROM loan_installments WHERE loan_id = $1 ORDER BY due_date, id`
	startTime := time.Now()

	rows, err := r.db.Query(ctx, query, loanID)
	if err != nil {
		monitoring.RecordDBQuery("GetInstallmentsByLoanID", "error", time.Since(startTime))
		r.logger.ErrorContext(ctx, "Failed to query installments", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	installments, err := scanInstallments(rows)
	monitoring.RecordDBQuery("GetInstallmentsByLoanID", queryStatus(err), time.Since(startTime))
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to read installment rows", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return installments, nil
}

func (r *LoanRepository) GetUnpaidInstallmentsForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) ([]loan.Installment, error) {
	query := `
        SELECT ` + installmentColumns + `
        FROM loan_installments
        WHERE loan_id = $1 AND is_paid = FALSE
        ORDER BY due_date, id
        FOR UPDATE`

	rows, err := tx.Query(ctx, query, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to lock unpaid installments", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	installments, err := scanInstallments(rows)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to read unpaid installment rows", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return installments, nil
}

// UpdateInstallmentsInTx writes the payment state of all given installments in one statement.
func (r *LoanRepository) UpdateInstallmentsInTx(ctx context.Context, tx pgx.Tx, installments []loan.Installment) error {
	if len(installments) == 0 {
		return nil
	}

	ids := make([]int64, len(installments))
	paid := make([]pgtype.Numeric, len(installments))
	dates := make([]pgtype.Date, len(installments))
	flags := make([]bool, len(installments))
	for i, inst := range installments {
		ids[i] = inst.ID
		paid[i] = numeric(inst.PaidAmount)
		dates[i] = nullableDate(inst.PaymentDate)
		flags[i] = inst.IsPaid
	}

	sql := `
        UPDATE loan_installments AS i
        SET paid_amount = v.paid_amount, payment_date = v.payment_date, is_paid = v.is_paid, updated_at = NOW()
        FROM unnest($1::bigint[], $2::numeric[], $3::date[], $4::boolean[]) AS v(id, paid_amount, payment_date, is_paid)
        WHERE i.id = v.id`

	cmdTag, err := tx.Exec(ctx, sql, ids, paid, dates, flags)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update installments", "count", len(installments), "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != int64(len(installments)) {
		r.logger.ErrorContext(ctx, "Installment update row count mismatch", "expected", len(installments), "updated", cmdTag.RowsAffected())
		return fmt.Errorf("%w: updated %d of %d installments", apperrors.ErrDatabase, cmdTag.RowsAffected(), len(installments))
	}
	return nil
}

func (r *LoanRepository) CountUnpaidInstallmentsInTx(ctx context.Context, tx pgx.Tx, loanID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM loan_installments WHERE loan_id = $1 AND is_paid = FALSE`
	if err := tx.QueryRow(ctx, query, loanID).Scan(&count); err != nil {
		r.logger.ErrorContext(ctx, "Failed to count unpaid installments", "loan_id", loanID, "error", err)
		return 0, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return count, nil
}
