package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"loan-engine/internal/config"
	"loan-engine/internal/domain/access"
	"loan-engine/internal/domain/customer"
	"loan-engine/internal/domain/loan"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockLoanService struct {
	mock.Mock
}

func (m *mockLoanService) CreateLoan(ctx context.Context, id access.Identity, req loan.CreateLoanRequest) (*loan.CreateLoanResult, error) {
	args := m.Called(ctx, id, req)
	if res, ok := args.Get(0).(*loan.CreateLoanResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLoanService) ListLoans(ctx context.Context, id access.Identity, customerID int64, filter loan.ListFilter) ([]loan.Loan, error) {
	args := m.Called(ctx, id, customerID, filter)
	if loans, ok := args.Get(0).([]loan.Loan); ok {
		return loans, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLoanService) ListInstallments(ctx context.Context, id access.Identity, loanID int64) ([]loan.Installment, error) {
	args := m.Called(ctx, id, loanID)
	if installments, ok := args.Get(0).([]loan.Installment); ok {
		return installments, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLoanService) PayLoan(ctx context.Context, id access.Identity, loanID int64, amount decimal.Decimal) (*loan.PaymentResult, error) {
	args := m.Called(ctx, id, loanID, amount)
	if res, ok := args.Get(0).(*loan.PaymentResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCustomerService struct {
	mock.Mock
}

func (m *mockCustomerService) GetCustomer(ctx context.Context, customerID int64) (*customer.Customer, error) {
	args := m.Called(ctx, customerID)
	c, _ := args.Get(0).(*customer.Customer)
	return c, args.Error(1)
}

func (m *mockCustomerService) GetCustomerByUsername(ctx context.Context, username string) (*customer.Customer, error) {
	args := m.Called(ctx, username)
	c, _ := args.Get(0).(*customer.Customer)
	return c, args.Error(1)
}

func (m *mockCustomerService) ListCustomers(ctx context.Context) ([]*customer.Customer, error) {
	args := m.Called(ctx)
	c, _ := args.Get(0).([]*customer.Customer)
	return c, args.Error(1)
}

func (m *mockCustomerService) CustomerIDByUsername(ctx context.Context, username string) (int64, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(int64), args.Error(1)
}

func testConfig(authEnabled bool) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Auth: config.AuthConfig{Enabled: authEnabled, JWTSecret: "secret", AdminRole: "ROLE_ADMIN"},
		},
		Metrics: config.MetricsConfig{Path: "/metrics"},
	}
}

func TestSetupRouter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("health and metrics are public", func(t *testing.T) {
		router := SetupRouter(new(mockLoanService), new(mockCustomerService), nil, testConfig(true), logger)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("api requires a bearer token", func(t *testing.T) {
		router := SetupRouter(new(mockLoanService), new(mockCustomerService), nil, testConfig(true), logger)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/loans", strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("routes loan endpoints", func(t *testing.T) {
		loans := new(mockLoanService)
		router := SetupRouter(loans, new(mockCustomerService), nil, testConfig(false), logger)
		anonymous := access.Identity{Username: "anonymous", Roles: []string{"ROLE_ADMIN"}}

		loans.On("ListLoans", mock.Anything, anonymous, int64(1), loan.ListFilter{}).Return([]loan.Loan{}, nil)
		loans.On("ListInstallments", mock.Anything, anonymous, int64(7)).Return([]loan.Installment{}, nil)
		loans.On("PayLoan", mock.Anything, anonymous, int64(7), mock.Anything).
			Return(&loan.PaymentResult{TotalPaid: decimal.Zero}, nil)

		cases := []struct {
			method, target, body string
		}{
			{http.MethodGet, "/api/loans?customerId=1", ""},
			{http.MethodGet, "/api/loans/7/installments", ""},
			{http.MethodPost, "/api/loans/7/pay", `{"amount":"10"}`},
		}
		for _, tc := range cases {
			var body io.Reader
			if tc.body != "" {
				body = strings.NewReader(tc.body)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.target, body))
			assert.Equal(t, http.StatusOK, rec.Code, "%s %s", tc.method, tc.target)
		}
		loans.AssertExpectations(t)
	})

	t.Run("routes customer endpoints", func(t *testing.T) {
		customers := new(mockCustomerService)
		router := SetupRouter(new(mockLoanService), customers, nil, testConfig(false), logger)
		customers.On("ListCustomers", mock.Anything).Return([]*customer.Customer{}, nil)
		customers.On("GetCustomerByUsername", mock.Anything, "anonymous").Return(&customer.Customer{Username: "anonymous"}, nil)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/customers", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/customers/me", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		customers.AssertExpectations(t)
	})

	t.Run("unknown route", func(t *testing.T) {
		router := SetupRouter(new(mockLoanService), new(mockCustomerService), nil, testConfig(false), logger)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/loans/7/outstanding", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
