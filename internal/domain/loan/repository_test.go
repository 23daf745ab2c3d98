package loan

import (
	"context"

	"loan-engine/internal/domain/customer"
	"loan-engine/internal/event"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type TxMock struct {
	pgx.Tx
}

var tx pgx.Tx = &TxMock{}

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Tx), args.Error(1)
}

func (m *MockRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *MockRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *MockRepository) CreateLoanInTx(ctx context.Context, tx pgx.Tx, loan *Loan, installments []Installment) (*Loan, error) {
	args := m.Called(ctx, tx, loan, installments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Loan), args.Error(1)
}

func (m *MockRepository) GetLoanByID(ctx context.Context, loanID int64) (*Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Loan), args.Error(1)
}

func (m *MockRepository) GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*Loan, error) {
	args := m.Called(ctx, tx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Loan), args.Error(1)
}

func (m *MockRepository) ExistsForCustomer(ctx context.Context, customerID int64) (bool, error) {
	args := m.Called(ctx, customerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ListByCustomer(ctx context.Context, customerID int64, filter ListFilter) ([]Loan, error) {
	args := m.Called(ctx, customerID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Loan), args.Error(1)
}

func (m *MockRepository) MarkLoanPaidInTx(ctx context.Context, tx pgx.Tx, loanID int64) error {
	return m.Called(ctx, tx, loanID).Error(0)
}

func (m *MockRepository) GetInstallmentsByLoanID(ctx context.Context, loanID int64) ([]Installment, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Installment), args.Error(1)
}

func (m *MockRepository) GetUnpaidInstallmentsForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) ([]Installment, error) {
	args := m.Called(ctx, tx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Installment), args.Error(1)
}

func (m *MockRepository) UpdateInstallmentsInTx(ctx context.Context, tx pgx.Tx, installments []Installment) error {
	return m.Called(ctx, tx, installments).Error(0)
}

func (m *MockRepository) CountUnpaidInstallmentsInTx(ctx context.Context, tx pgx.Tx, loanID int64) (int, error) {
	args := m.Called(ctx, tx, loanID)
	return args.Int(0), args.Error(1)
}

type MockCustomerRepository struct {
	mock.Mock
}

func (m *MockCustomerRepository) FindByID(ctx context.Context, customerID int64) (*customer.Customer, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) FindByUsername(ctx context.Context, username string) (*customer.Customer, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) FindAll(ctx context.Context) ([]*customer.Customer, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) FindByIDForUpdate(ctx context.Context, tx pgx.Tx, customerID int64) (*customer.Customer, error) {
	args := m.Called(ctx, tx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customer.Customer), args.Error(1)
}

func (m *MockCustomerRepository) UpdateCreditInTx(ctx context.Context, tx pgx.Tx, c *customer.Customer) error {
	return m.Called(ctx, tx, c).Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishLoanCreated(ctx context.Context, ev event.LoanCreatedEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *MockPublisher) PublishPaymentApplied(ctx context.Context, ev event.PaymentAppliedEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
