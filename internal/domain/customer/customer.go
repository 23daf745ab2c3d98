package customer

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	CustomerID      int64           `json:"customerId"`
	Name            string          `json:"name"`
	Surname         string          `json:"surname"`
	Username        string          `json:"username"`
	CreditLimit     decimal.Decimal `json:"creditLimit"`
	UsedCreditLimit decimal.Decimal `json:"usedCreditLimit"`
	CreateDate      time.Time       `json:"createDate"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}
