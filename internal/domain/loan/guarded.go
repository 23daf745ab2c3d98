package loan

import (
	"context"

	"loan-engine/internal/domain/access"

	"github.com/shopspring/decimal"
)

const (
	OpCreateLoan       access.Operation = "createLoan"
	OpListLoans        access.Operation = "listLoans"
	OpListInstallments access.Operation = "listInstallments"
	OpPayLoan          access.Operation = "payLoan"
)

// Operations maps each guarded loan operation to where its target customer comes from.
var Operations = map[access.Operation]access.Shape{
	OpCreateLoan:       access.OwnerFromRequestBody,
	OpListLoans:        access.OwnerFromQueryParam,
	OpListInstallments: access.OwnerFromReferencedLoan,
	OpPayLoan:          access.OwnerFromReferencedLoan,
}

type Authorizer interface {
	Require(ops ...access.Operation) error
	Authorize(ctx context.Context, id access.Identity, op access.Operation, call access.Call) error
}

// GuardedService is LoanService with an ownership check in front of every call.
type GuardedService interface {
	CreateLoan(ctx context.Context, id access.Identity, req CreateLoanRequest) (*CreateLoanResult, error)
	ListLoans(ctx context.Context, id access.Identity, customerID int64, filter ListFilter) ([]Loan, error)
	ListInstallments(ctx context.Context, id access.Identity, loanID int64) ([]Installment, error)
	PayLoan(ctx context.Context, id access.Identity, loanID int64, amount decimal.Decimal) (*PaymentResult, error)
}

type guardedService struct {
	next  LoanService
	guard Authorizer
}

func NewGuardedService(next LoanService, guard Authorizer) (GuardedService, error) {
	if err := guard.Require(OpCreateLoan, OpListLoans, OpListInstallments, OpPayLoan); err != nil {
		return nil, err
	}
	return &guardedService{next: next, guard: guard}, nil
}

func (g *guardedService) CreateLoan(ctx context.Context, id access.Identity, req CreateLoanRequest) (*CreateLoanResult, error) {
	if err := g.guard.Authorize(ctx, id, OpCreateLoan, access.Call{Body: req}); err != nil {
		return nil, err
	}
	return g.next.CreateLoan(ctx, req)
}

func (g *guardedService) ListLoans(ctx context.Context, id access.Identity, customerID int64, filter ListFilter) ([]Loan, error) {
	if err := g.guard.Authorize(ctx, id, OpListLoans, access.Call{CustomerID: customerID}); err != nil {
		return nil, err
	}
	return g.next.ListLoans(ctx, customerID, filter)
}

func (g *guardedService) ListInstallments(ctx context.Context, id access.Identity, loanID int64) ([]Installment, error) {
	if err := g.guard.Authorize(ctx, id, OpListInstallments, access.Call{LoanID: loanID}); err != nil {
		return nil, err
	}
	return g.next.ListInstallments(ctx, loanID)
}

func (g *guardedService) PayLoan(ctx context.Context, id access.Identity, loanID int64, amount decimal.Decimal) (*PaymentResult, error) {
	if err := g.guard.Authorize(ctx, id, OpPayLoan, access.Call{LoanID: loanID}); err != nil {
		return nil, err
	}
	return g.next.PayLoan(ctx, loanID, amount)
}
