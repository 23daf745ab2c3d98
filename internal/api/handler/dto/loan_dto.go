package dto

import (
	"time"

	"loan-engine/internal/domain/loan"
	"loan-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// CreateLoanRequest accepts amounts as JSON numbers or strings.
type CreateLoanRequest struct {
	CustomerID           int64           `json:"customerId"`
	Amount               decimal.Decimal `json:"amount"`
	InterestRate         decimal.Decimal `json:"interestRate"`
	NumberOfInstallments int             `json:"numberOfInstallments"`
}

// Validate checks the shape of the payload. Installment count and interest rate
// ranges are domain rules and are left to the loan service.
func (r *CreateLoanRequest) Validate() error {
	if r.CustomerID <= 0 {
		return apperrors.NewValidationError("customerId", "customerId must be a positive number")
	}
	if !r.Amount.IsPositive() {
		return apperrors.NewValidationError("amount", "amount must be greater than zero")
	}
	return nil
}

func (r *CreateLoanRequest) ToDomain() loan.CreateLoanRequest {
	return loan.CreateLoanRequest{
		CustomerID:           r.CustomerID,
		Amount:               r.Amount,
		InterestRate:         r.InterestRate,
		NumberOfInstallments: r.NumberOfInstallments,
	}
}

type PayLoanRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (r *PayLoanRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return apperrors.NewValidationError("amount", "amount must be greater than zero")
	}
	return nil
}

type CreateLoanResponse struct {
	LoanID      int64  `json:"loanId"`
	TotalAmount string `json:"totalAmount"`
	IsPaid      bool   `json:"isPaid"`
}

func NewCreateLoanResponse(res *loan.CreateLoanResult) CreateLoanResponse {
	return CreateLoanResponse{
		LoanID:      res.LoanID,
		TotalAmount: res.TotalAmount.String(),
		IsPaid:      res.IsPaid,
	}
}

type LoanResponse struct {
	LoanID               int64  `json:"loanId"`
	CustomerID           int64  `json:"customerId"`
	LoanAmount           string `json:"loanAmount"`
	NumberOfInstallments int    `json:"numberOfInstallments"`
	CreateDate           string `json:"createDate"`
	IsPaid               bool   `json:"isPaid"`
}

func NewLoanResponses(loans []loan.Loan) []LoanResponse {
	resp := make([]LoanResponse, 0, len(loans))
	for _, l := range loans {
		resp = append(resp, LoanResponse{
			LoanID:               l.ID,
			CustomerID:           l.CustomerID,
			LoanAmount:           l.LoanAmount.String(),
			NumberOfInstallments: l.NumberOfInstallments,
			CreateDate:           l.CreateDate.Format(dateLayout),
			IsPaid:               l.IsPaid,
		})
	}
	return resp
}

type InstallmentResponse struct {
	ID          int64   `json:"id"`
	LoanID      int64   `json:"loanId"`
	Amount      string  `json:"amount"`
	PaidAmount  string  `json:"paidAmount"`
	DueDate     string  `json:"dueDate"`
	PaymentDate *string `json:"paymentDate"`
	IsPaid      bool    `json:"isPaid"`
}

func NewInstallmentResponses(installments []loan.Installment) []InstallmentResponse {
	resp := make([]InstallmentResponse, 0, len(installments))
	for _, inst := range installments {
		resp = append(resp, InstallmentResponse{
			ID:          inst.ID,
			LoanID:      inst.LoanID,
			Amount:      inst.Amount.StringFixed(2),
			PaidAmount:  inst.PaidAmount.StringFixed(2),
			DueDate:     inst.DueDate.Format(dateLayout),
			PaymentDate: formatDate(inst.PaymentDate),
			IsPaid:      inst.IsPaid,
		})
	}
	return resp
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

type PaymentResponse struct {
	InstallmentsPaid int    `json:"installmentsPaid"`
	TotalPaid        string `json:"totalPaid"`
	LoanFullyPaid    bool   `json:"loanFullyPaid"`
}

func NewPaymentResponse(res *loan.PaymentResult) PaymentResponse {
	return PaymentResponse{
		InstallmentsPaid: res.InstallmentsPaid,
		TotalPaid:        res.TotalPaid.StringFixed(2),
		LoanFullyPaid:    res.LoanFullyPaid,
	}
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}
