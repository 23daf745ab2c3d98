package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"loan-engine/internal/api/handler/dto"
	"loan-engine/internal/domain/access"
	"loan-engine/internal/domain/customer"
	"loan-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockCustomerService struct {
	mock.Mock
}

func (m *MockCustomerService) GetCustomer(ctx context.Context, customerID int64) (*customer.Customer, error) {
	args := m.Called(ctx, customerID)
	if c, ok := args.Get(0).(*customer.Customer); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerService) GetCustomerByUsername(ctx context.Context, username string) (*customer.Customer, error) {
	args := m.Called(ctx, username)
	if c, ok := args.Get(0).(*customer.Customer); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerService) ListCustomers(ctx context.Context) ([]*customer.Customer, error) {
	args := m.Called(ctx)
	if c, ok := args.Get(0).([]*customer.Customer); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCustomerService) CustomerIDByUsername(ctx context.Context, username string) (int64, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(int64), args.Error(1)
}

func TestNewCustomerHandler(t *testing.T) {
	assert.Panics(t, func() { NewCustomerHandler(nil, "ROLE_ADMIN", testLogger) })
	assert.Panics(t, func() { NewCustomerHandler(new(MockCustomerService), "ROLE_ADMIN", nil) })
}

func TestCustomerHandlerGetCurrentCustomer(t *testing.T) {
	t.Run("returns credit position", func(t *testing.T) {
		svc := new(MockCustomerService)
		h := NewCustomerHandler(svc, "ROLE_ADMIN", testLogger)
		svc.On("GetCustomerByUsername", mock.Anything, "alice").Return(&customer.Customer{
			CustomerID:      1,
			Username:        "alice",
			CreditLimit:     decimal.NewFromInt(10000),
			UsedCreditLimit: decimal.NewFromInt(1200),
		}, nil)

		req := newRequest(http.MethodGet, "/api/customers/me", "", &alice, nil)
		rec := httptest.NewRecorder()
		h.GetCurrentCustomer(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.CustomerResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, int64(1), resp.CustomerID)
		assert.Equal(t, "8800", resp.AvailableCredit)
		svc.AssertExpectations(t)
	})

	t.Run("unknown username", func(t *testing.T) {
		svc := new(MockCustomerService)
		h := NewCustomerHandler(svc, "ROLE_ADMIN", testLogger)
		svc.On("GetCustomerByUsername", mock.Anything, "alice").Return(nil, apperrors.NewNotFound("Customer", "alice"))

		req := newRequest(http.MethodGet, "/api/customers/me", "", &alice, nil)
		rec := httptest.NewRecorder()
		h.GetCurrentCustomer(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCustomerHandlerListCustomers(t *testing.T) {
	admin := access.Identity{Username: "root", Roles: []string{"ROLE_ADMIN"}}

	t.Run("admin lists customers", func(t *testing.T) {
		svc := new(MockCustomerService)
		h := NewCustomerHandler(svc, "ROLE_ADMIN", testLogger)
		svc.On("ListCustomers", mock.Anything).Return([]*customer.Customer{
			{CustomerID: 1, Username: "alice"},
			{CustomerID: 2, Username: "bob"},
		}, nil)

		req := newRequest(http.MethodGet, "/api/customers", "", &admin, nil)
		rec := httptest.NewRecorder()
		h.ListCustomers(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp []dto.CustomerResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Len(t, resp, 2)
		svc.AssertExpectations(t)
	})

	t.Run("non admin is denied", func(t *testing.T) {
		svc := new(MockCustomerService)
		h := NewCustomerHandler(svc, "ROLE_ADMIN", testLogger)

		req := newRequest(http.MethodGet, "/api/customers", "", &alice, nil)
		rec := httptest.NewRecorder()
		h.ListCustomers(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		svc.AssertNumberOfCalls(t, "ListCustomers", 0)
	})

	t.Run("repository failure", func(t *testing.T) {
		svc := new(MockCustomerService)
		h := NewCustomerHandler(svc, "ROLE_ADMIN", testLogger)
		svc.On("ListCustomers", mock.Anything).Return(nil, errors.New("boom"))

		req := newRequest(http.MethodGet, "/api/customers", "", &admin, nil)
		rec := httptest.NewRecorder()
		h.ListCustomers(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, unexpectedErrorMessage, decodeError(t, rec).Error.Message)
	})
}
