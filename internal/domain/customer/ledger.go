package customer

import (
	"fmt"

	"loan-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

// AvailableCredit is the part of the credit limit not yet reserved by loans.
func (c *Customer) AvailableCredit() decimal.Decimal {
	return c.CreditLimit.Sub(c.UsedCreditLimit)
}

// Reserve books amount against the credit limit. The limit is checked before the
// balance changes, so a failed reservation leaves the customer untouched.
func (c *Customer) Reserve(amount decimal.Decimal) error {
	available := c.AvailableCredit()
	if amount.GreaterThan(available) {
		return fmt.Errorf("%w: requested %s, available %s",
			apperrors.ErrCreditLimitExceeded, amount.StringFixed(2), available.StringFixed(2))
	}
	c.UsedCreditLimit = c.UsedCreditLimit.Add(amount)
	return nil
}

// Release gives amount back to the credit limit. No floor is applied, so drift
// between reserved and repaid totals stays in the balance.
func (c *Customer) Release(amount decimal.Decimal) {
	c.UsedCreditLimit = c.UsedCreditLimit.Sub(amount)
}

// LedgerBalance compares a customer's reserved credit with what its unpaid loans still owe.
type LedgerBalance struct {
	CustomerID      int64
	UsedCreditLimit decimal.Decimal
	Outstanding     decimal.Decimal
}

// Drift is positive when more credit is reserved than the open installments add up to.
func (b LedgerBalance) Drift() decimal.Decimal {
	return b.UsedCreditLimit.Sub(b.Outstanding)
}
