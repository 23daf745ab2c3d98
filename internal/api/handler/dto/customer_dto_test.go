package dto

import (
	"testing"

	"loan-engine/internal/domain/customer"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewCustomerResponse(t *testing.T) {
	c := &customer.Customer{
		CustomerID:      5,
		Name:            "Ada",
		Surname:         "Lovelace",
		Username:        "ada",
		CreditLimit:     decimal.NewFromInt(5000),
		UsedCreditLimit: decimal.RequireFromString("1200"),
	}

	resp := NewCustomerResponse(c)

	assert.Equal(t, int64(5), resp.CustomerID)
	assert.Equal(t, "ada", resp.Username)
	assert.Equal(t, "5000.00", resp.CreditLimit)
	assert.Equal(t, "1200", resp.UsedCreditLimit)
	assert.Equal(t, "3800", resp.AvailableCredit)

	assert.Equal(t, CustomerResponse{}, NewCustomerResponse(nil))
}
