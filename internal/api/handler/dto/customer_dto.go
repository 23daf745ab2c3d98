package dto

import "loan-engine/internal/domain/customer"

type CustomerResponse struct {
	CustomerID      int64  `json:"customerId"`
	Name            string `json:"name"`
	Surname         string `json:"surname"`
	Username        string `json:"username"`
	CreditLimit     string `json:"creditLimit"`
	UsedCreditLimit string `json:"usedCreditLimit"`
	AvailableCredit string `json:"availableCredit"`
}

func NewCustomerResponse(c *customer.Customer) CustomerResponse {
	if c == nil {
		return CustomerResponse{}
	}
	return CustomerResponse{
		CustomerID:      c.CustomerID,
		Name:            c.Name,
		Surname:         c.Surname,
		Username:        c.Username,
		CreditLimit:     c.CreditLimit.StringFixed(2),
		UsedCreditLimit: c.UsedCreditLimit.String(),
		AvailableCredit: c.AvailableCredit().String(),
	}
}

func NewCustomerResponses(customers []*customer.Customer) []CustomerResponse {
	resp := make([]CustomerResponse, 0, len(customers))
	for _, c := range customers {
		resp = append(resp, NewCustomerResponse(c))
	}
	return resp
}
