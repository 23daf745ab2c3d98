package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"loan-engine/internal/domain/customer"
	"loan-engine/internal/infrastructure/monitoring"
	"loan-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
)

const customerColumns = `id, name, surname, username, credit_limit, used_credit_limit, created_at, updated_at`

type CustomerRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ customer.CustomerRepository = (*CustomerRepository)(nil)

func NewCustomerRepository(db DBPool, logger *slog.Logger) *CustomerRepository {
	if db == nil {
		panic("DBPool cannot be nil for CustomerRepository")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerRepository, using default stderr handler")
	}
	return &CustomerRepository{
		db:     db,
		logger: logger.With("component", "CustomerRepository"),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(
		&c.CustomerID,
		&c.Name,
		&c.Surname,
		&c.Username,
		&c.CreditLimit,
		&c.UsedCreditLimit,
		&c.CreateDate,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepository) findOne(ctx context.Context, queryName, query string, arg any) (*customer.Customer, error) {
	logger := r.logger.With(slog.String("query", queryName), slog.Any("key", arg))
	start := time.Now()

	cust, err := scanCustomer(r.db.QueryRow(ctx, query, arg))
	monitoring.RecordDBQuery(queryName, queryStatus(err), time.Since(start))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			logger.WarnContext(ctx, "Customer not found")
			return nil, apperrors.ErrNotFound
		}
		logger.ErrorContext(ctx, "Failed to query customer", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get customer: %w", apperrors.ErrDatabase, err)
	}
	return cust, nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, customerID int64) (*customer.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	return r.findOne(ctx, "FindCustomerByID", query, customerID)
}

func (r *CustomerRepository) FindByUsername(ctx context.Context, username string) (*customer.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE username = $1`
	return r.findOne(ctx, "FindCustomerByUsername", query, username)
}

func (r *CustomerRepository) FindAll(ctx context.Context) ([]*customer.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers ORDER BY id`
	start := time.Now()

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		monitoring.RecordDBQuery("FindAllCustomers", "error", time.Since(start))
		r.logger.ErrorContext(ctx, "Failed to query customers", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to list customers: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	customers := make([]*customer.Customer, 0)
	for rows.Next() {
		cust, err := scanCustomer(rows)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan customer row", slog.Any("error", err))
			return nil, fmt.Errorf("%w: failed to scan customer: %w", apperrors.ErrDatabase, err)
		}
		customers = append(customers, cust)
	}
	err = rows.Err()
	monitoring.RecordDBQuery("FindAllCustomers", queryStatus(err), time.Since(start))
	if err != nil {
		r.logger.ErrorContext(ctx, "Error iterating customer rows", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to list customers: %w", apperrors.ErrDatabase, err)
	}

	return customers, nil
}

func (r *CustomerRepository) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, customerID int64) (*customer.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1 FOR UPDATE`

	cust, err := scanCustomer(tx.QueryRow(ctx, query, customerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Customer not found for update", slog.Int64("customerID", customerID))
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to lock customer", slog.Int64("customerID", customerID), slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to lock customer: %w", apperrors.ErrDatabase, err)
	}
	return cust, nil
}

func (r *CustomerRepository) UpdateCreditInTx(ctx context.Context, tx pgx.Tx, cust *customer.Customer) error {
	query := `
        UPDATE customers
        SET used_credit_limit = $1, updated_at = NOW()
        WHERE id = $2`

	cmdTag, err := tx.Exec(ctx, query, numeric(cust.UsedCreditLimit), cust.CustomerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update used credit", slog.Int64("customerID", cust.CustomerID), slog.Any("error", err))
		return fmt.Errorf("%w: failed to update customer credit: %w", apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Credit update affected zero rows", slog.Int64("customerID", cust.CustomerID))
		return apperrors.ErrNotFound
	}
	return nil
}

// LedgerBalances returns, for every customer, the reserved credit next to the sum of
// unpaid installments on loans that are still open.
func (r *CustomerRepository) LedgerBalances(ctx context.Context) ([]customer.LedgerBalance, error) {
	query := `
        SELECT c.id, c.used_credit_limit, COALESCE(SUM(i.amount), 0)
        FROM customers c
        LEFT JOIN loans l ON l.customer_id = c.id AND l.is_paid = FALSE
        LEFT JOIN loan_installments i ON i.loan_id = l.id AND i.is_paid = FALSE
        GROUP BY c.id, c.used_credit_limit
        ORDER BY c.id`
	start := time.Now()

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		monitoring.RecordDBQuery("LedgerBalances", "error", time.Since(start))
		r.logger.ErrorContext(ctx, "Failed to query ledger balances", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to query ledger balances: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	balances := make([]customer.LedgerBalance, 0)
	for rows.Next() {
		var b customer.LedgerBalance
		if err := rows.Scan(&b.CustomerID, &b.UsedCreditLimit, &b.Outstanding); err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan ledger balance row", slog.Any("error", err))
			return nil, fmt.Errorf("%w: failed to scan ledger balance: %w", apperrors.ErrDatabase, err)
		}
		balances = append(balances, b)
	}
	err = rows.Err()
	monitoring.RecordDBQuery("LedgerBalances", queryStatus(err), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read ledger balances: %w", apperrors.ErrDatabase, err)
	}
	return balances, nil
}

func queryStatus(err error) string {
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return "error"
	}
	return "success"
}
