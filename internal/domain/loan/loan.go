package loan

import (
	"fmt"
	"slices"
	"time"

	"loan-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

var (
	AllowedInstallmentCounts = []int{6, 9, 12, 24}

	MinInterestRate = decimal.RequireFromString("0.1")
	MaxInterestRate = decimal.RequireFromString("0.5")
)

// DefaultEligibilityWindowMonths bounds how far ahead of today a payment may reach.
const DefaultEligibilityWindowMonths = 3

type Loan struct {
	ID                   int64
	CustomerID           int64
	LoanAmount           decimal.Decimal
	NumberOfInstallments int
	CreateDate           time.Time
	IsPaid               bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type Installment struct {
	ID          int64
	LoanID      int64
	Amount      decimal.Decimal
	PaidAmount  decimal.Decimal
	DueDate     time.Time
	PaymentDate *time.Time
	IsPaid      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Settle marks the installment as fully paid on the given day.
func (i *Installment) Settle(on time.Time) {
	paidOn := on
	i.PaidAmount = i.Amount
	i.PaymentDate = &paidOn
	i.IsPaid = true
}

type CreateLoanRequest struct {
	CustomerID           int64
	Amount               decimal.Decimal
	InterestRate         decimal.Decimal
	NumberOfInstallments int
}

func (r CreateLoanRequest) OwnerCustomerID() int64 {
	return r.CustomerID
}

type CreateLoanResult struct {
	LoanID      int64
	TotalAmount decimal.Decimal
	IsPaid      bool
}

type ListFilter struct {
	IsPaid               *bool
	NumberOfInstallments *int
}

type PaymentResult struct {
	InstallmentsPaid int
	TotalPaid        decimal.Decimal
	LoanFullyPaid    bool
}

func ValidateInstallmentCount(count int) error {
	if !slices.Contains(AllowedInstallmentCounts, count) {
		return apperrors.NewInvalidRequest(fmt.Sprintf("invalid number of installments %d, allowed values are: 6, 9, 12, 24", count))
	}
	return nil
}

func ValidateInterestRate(rate decimal.Decimal) error {
	if rate.LessThan(MinInterestRate) || rate.GreaterThan(MaxInterestRate) {
		return apperrors.NewInvalidRequest(fmt.Sprintf("invalid interest rate %s, allowed range is: 0.1 - 0.5", rate.String()))
	}
	return nil
}

// TotalPayable is the principal with interest applied once: amount * (1 + rate).
func TotalPayable(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(1).Add(rate))
}
