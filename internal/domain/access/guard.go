// Package access decides whether an authenticated identity may act on a customer's data.
//
// Every guarded operation is registered with the Shape its target customer is read from.
// Registrations are validated when the Guard is built, so an operation without a known
// shape fails at startup instead of on the first request.
package access

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"loan-engine/internal/pkg/apperrors"
)

const DefaultAdminRole = "ROLE_ADMIN"

type Shape int

const (
	// OwnerFromRequestBody reads the target customer from the request payload.
	OwnerFromRequestBody Shape = iota + 1
	// OwnerFromQueryParam takes the target customer passed directly as a parameter.
	OwnerFromQueryParam
	// OwnerFromReferencedLoan looks the loan up and uses its owning customer.
	OwnerFromReferencedLoan
)

func (s Shape) String() string {
	switch s {
	case OwnerFromRequestBody:
		return "OwnerFromRequestBody"
	case OwnerFromQueryParam:
		return "OwnerFromQueryParam"
	case OwnerFromReferencedLoan:
		return "OwnerFromReferencedLoan"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

type Operation string

// OwnedRequest is a request payload that names the customer it acts for.
type OwnedRequest interface {
	OwnerCustomerID() int64
}

// Call holds the arguments of a guarded call. Which field is read depends on the
// shape the operation was registered with.
type Call struct {
	Body       OwnedRequest
	CustomerID int64
	LoanID     int64
}

type CustomerDirectory interface {
	CustomerIDByUsername(ctx context.Context, username string) (int64, error)
}

type LoanOwners interface {
	LoanOwnerID(ctx context.Context, loanID int64) (int64, error)
}

type resolver func(ctx context.Context, call Call) (int64, error)

type Guard struct {
	adminRole  string
	customers  CustomerDirectory
	operations map[Operation]resolver
	logger     *slog.Logger
}

func NewGuard(customers CustomerDirectory, loans LoanOwners, adminRole string, registrations map[Operation]Shape, logger *slog.Logger) (*Guard, error) {
	if customers == nil || loans == nil {
		return nil, fmt.Errorf("%w: guard requires a customer directory and a loan owner lookup", apperrors.ErrUnsupportedOperation)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}
	if adminRole == "" {
		adminRole = DefaultAdminRole
	}

	resolvers := map[Shape]resolver{
		OwnerFromRequestBody: fromRequestBody,
		OwnerFromQueryParam:  fromQueryParam,
		OwnerFromReferencedLoan: func(ctx context.Context, call Call) (int64, error) {
			return loans.LoanOwnerID(ctx, call.LoanID)
		},
	}

	operations := make(map[Operation]resolver, len(registrations))
	for op, shape := range registrations {
		r, ok := resolvers[shape]
		if !ok {
			return nil, fmt.Errorf("%w: operation %q registered with unknown shape %s", apperrors.ErrUnsupportedOperation, op, shape)
		}
		operations[op] = r
	}

	return &Guard{
		adminRole:  adminRole,
		customers:  customers,
		operations: operations,
		logger:     logger.With("component", "AccessGuard"),
	}, nil
}

// Require reports an error naming the first operation the guard was not registered for.
func (g *Guard) Require(ops ...Operation) error {
	for _, op := range ops {
		if _, ok := g.operations[op]; !ok {
			return fmt.Errorf("%w: operation %q is not registered", apperrors.ErrUnsupportedOperation, op)
		}
	}
	return nil
}

// Authorize lets administrators through unconditionally. Everyone else must resolve to
// the same customer the call targets.
func (g *Guard) Authorize(ctx context.Context, id Identity, op Operation, call Call) error {
	logger := g.logger.With(slog.String("operation", string(op)), slog.String("username", id.Username))

	resolve, ok := g.operations[op]
	if !ok {
		logger.ErrorContext(ctx, "Guarded operation is not registered")
		return fmt.Errorf("%w: operation %q is not registered", apperrors.ErrUnsupportedOperation, op)
	}

	if id.HasRole(g.adminRole) {
		logger.DebugContext(ctx, "Administrative identity, skipping ownership check")
		return nil
	}

	actingID, err := g.customers.CustomerIDByUsername(ctx, id.Username)
	if err != nil {
		logger.WarnContext(ctx, "Failed to resolve acting customer", slog.Any("error", err))
		return err
	}

	targetID, err := resolve(ctx, call)
	if err != nil {
		logger.WarnContext(ctx, "Failed to resolve target customer", slog.Any("error", err))
		return err
	}

	if actingID != targetID {
		logger.WarnContext(ctx, "Ownership check failed", slog.Int64("actingCustomerID", actingID), slog.Int64("targetCustomerID", targetID))
		return fmt.Errorf("%w: you can only operate on your own data", apperrors.ErrAccessDenied)
	}
	return nil
}

func fromRequestBody(_ context.Context, call Call) (int64, error) {
	if call.Body == nil {
		return 0, fmt.Errorf("%w: request body is required to resolve the owner", apperrors.ErrUnsupportedOperation)
	}
	return call.Body.OwnerCustomerID(), nil
}

func fromQueryParam(_ context.Context, call Call) (int64, error) {
	return call.CustomerID, nil
}
