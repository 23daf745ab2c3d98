package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"loan-engine/internal/pkg/apperrors"
)

const customerNotFound = "Customer not found by repository"

type CustomerService interface {
	GetCustomer(ctx context.Context, customerID int64) (*Customer, error)
	GetCustomerByUsername(ctx context.Context, username string) (*Customer, error)
	ListCustomers(ctx context.Context) ([]*Customer, error)
	// CustomerIDByUsername resolves the customer behind an authenticated username.
	CustomerIDByUsername(ctx context.Context, username string) (int64, error)
}

var _ CustomerService = (*customerService)(nil)

type customerService struct {
	repo   CustomerRepository
	logger *slog.Logger
}

func NewCustomerService(repo CustomerRepository, logger *slog.Logger) CustomerService {
	if repo == nil {
		panic("customer repository cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerService, using default stderr handler")
	}
	return &customerService{
		repo:   repo,
		logger: logger.With(slog.String("component", "customerService")),
	}
}

func (s *customerService) GetCustomer(ctx context.Context, customerID int64) (*Customer, error) {
	logger := s.logger.With(slog.Int64("customerID", customerID))
	logger.InfoContext(ctx, "Attempting to get customer by ID")

	customer, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.WarnContext(ctx, customerNotFound)
			return nil, apperrors.NewNotFound("Customer", customerID)
		}
		logger.ErrorContext(ctx, "Repository error finding customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get customer %d: %w", customerID, err)
	}

	logger.InfoContext(ctx, "Successfully retrieved customer")
	return customer, nil
}

func (s *customerService) GetCustomerByUsername(ctx context.Context, username string) (*Customer, error) {
	username = strings.TrimSpace(username)
	logger := s.logger.With(slog.String("username", username))
	if username == "" {
		logger.WarnContext(ctx, "Validation failed: username is empty")
		return nil, apperrors.NewNotFound("Customer", "username")
	}

	logger.InfoContext(ctx, "Attempting to get customer by username")
	customer, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.WarnContext(ctx, customerNotFound)
			return nil, apperrors.NewNotFound("Customer", username)
		}
		logger.ErrorContext(ctx, "Repository error finding customer by username", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get customer by username %q: %w", username, err)
	}

	logger.InfoContext(ctx, "Successfully retrieved customer by username", slog.Int64("customerID", customer.CustomerID))
	return customer, nil
}

func (s *customerService) CustomerIDByUsername(ctx context.Context, username string) (int64, error) {
	customer, err := s.GetCustomerByUsername(ctx, username)
	if err != nil {
		return 0, err
	}
	return customer.CustomerID, nil
}

func (s *customerService) ListCustomers(ctx context.Context) ([]*Customer, error) {
	s.logger.InfoContext(ctx, "Attempting to list all customers")

	customers, err := s.repo.FindAll(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Repository error listing customers", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	s.logger.InfoContext(ctx, "Successfully retrieved customers", slog.Int("count", len(customers)))
	return customers, nil
}
