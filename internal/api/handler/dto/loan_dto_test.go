package dto

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"loan-engine/internal/domain/loan"
	"loan-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLoanRequest_Decode(t *testing.T) {
	t.Run("numbers and strings", func(t *testing.T) {
		var req CreateLoanRequest
		err := json.Unmarshal([]byte(`{"customerId":7,"amount":1000,"interestRate":"0.2","numberOfInstallments":12}`), &req)
		require.NoError(t, err)

		assert.NoError(t, req.Validate())
		got := req.ToDomain()
		assert.Equal(t, int64(7), got.CustomerID)
		assert.True(t, got.Amount.Equal(decimal.NewFromInt(1000)))
		assert.True(t, got.InterestRate.Equal(decimal.RequireFromString("0.2")))
		assert.Equal(t, 12, got.NumberOfInstallments)
	})

	t.Run("rejects missing amount", func(t *testing.T) {
		req := CreateLoanRequest{CustomerID: 1}
		err := req.Validate()

		var validationErr *apperrors.ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "amount", validationErr.Field)
	})

	t.Run("rejects non positive customer", func(t *testing.T) {
		req := CreateLoanRequest{Amount: decimal.NewFromInt(10)}
		assert.ErrorIs(t, req.Validate(), apperrors.ErrValidation)
	})
}

func TestPayLoanRequest_Validate(t *testing.T) {
	assert.NoError(t, (&PayLoanRequest{Amount: decimal.RequireFromString("0.01")}).Validate())
	assert.ErrorIs(t, (&PayLoanRequest{Amount: decimal.Zero}).Validate(), apperrors.ErrValidation)
	assert.ErrorIs(t, (&PayLoanRequest{Amount: decimal.NewFromInt(-5)}).Validate(), apperrors.ErrValidation)
}

func TestNewInstallmentResponses(t *testing.T) {
	paidOn := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	installments := []loan.Installment{
		{ID: 1, LoanID: 9, Amount: decimal.NewFromInt(100), PaidAmount: decimal.NewFromInt(100), DueDate: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), PaymentDate: &paidOn, IsPaid: true},
		{ID: 2, LoanID: 9, Amount: decimal.NewFromInt(100), PaidAmount: decimal.Zero, DueDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	resp := NewInstallmentResponses(installments)

	require.Len(t, resp, 2)
	assert.Equal(t, "100.00", resp[0].Amount)
	assert.Equal(t, "100.00", resp[0].PaidAmount)
	assert.Equal(t, "2025-02-01", resp[0].DueDate)
	require.NotNil(t, resp[0].PaymentDate)
	assert.Equal(t, "2025-01-15", *resp[0].PaymentDate)
	assert.True(t, resp[0].IsPaid)

	assert.Equal(t, "0.00", resp[1].PaidAmount)
	assert.Nil(t, resp[1].PaymentDate)
	assert.False(t, resp[1].IsPaid)
}

func TestNewLoanResponses(t *testing.T) {
	loans := []loan.Loan{{
		ID:                   3,
		CustomerID:           1,
		LoanAmount:           decimal.RequireFromString("1150.5"),
		NumberOfInstallments: 6,
		CreateDate:           time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC),
	}}

	resp := NewLoanResponses(loans)

	require.Len(t, resp, 1)
	assert.Equal(t, int64(3), resp[0].LoanID)
	assert.Equal(t, "1150.5", resp[0].LoanAmount)
	assert.Equal(t, 6, resp[0].NumberOfInstallments)
	assert.Equal(t, "2025-01-15", resp[0].CreateDate)
	assert.False(t, resp[0].IsPaid)

	assert.NotNil(t, NewLoanResponses(nil))
}

func TestNewPaymentResponse(t *testing.T) {
	resp := NewPaymentResponse(&loan.PaymentResult{InstallmentsPaid: 2, TotalPaid: decimal.NewFromInt(200), LoanFullyPaid: true})

	assert.Equal(t, 2, resp.InstallmentsPaid)
	assert.Equal(t, "200.00", resp.TotalPaid)
	assert.True(t, resp.LoanFullyPaid)
}
