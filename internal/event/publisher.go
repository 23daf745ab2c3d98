package event

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoutingKeyLoanCreated    = "loan.created"
	RoutingKeyPaymentApplied = "loan.payment.applied"
)

type EventPublisher interface {
	PublishLoanCreated(ctx context.Context, event LoanCreatedEvent) error
	PublishPaymentApplied(ctx context.Context, event PaymentAppliedEvent) error
}

type LoanCreatedEvent struct {
	LoanID               int64           `json:"loanId"`
	CustomerID           int64           `json:"customerId"`
	TotalAmount          decimal.Decimal `json:"totalAmount"`
	NumberOfInstallments int             `json:"numberOfInstallments"`
	Timestamp            time.Time       `json:"timestamp"`
}

type PaymentAppliedEvent struct {
	LoanID           int64           `json:"loanId"`
	CustomerID       int64           `json:"customerId"`
	InstallmentsPaid int             `json:"installmentsPaid"`
	TotalPaid        decimal.Decimal `json:"totalPaid"`
	LoanFullyPaid    bool            `json:"loanFullyPaid"`
	Timestamp        time.Time       `json:"timestamp"`
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishLoanCreated(context.Context, LoanCreatedEvent) error { return nil }

func (NoopPublisher) PublishPaymentApplied(context.Context, PaymentAppliedEvent) error { return nil }
