package customer

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type CustomerRepository interface {
	FindByID(ctx context.Context, customerID int64) (*Customer, error)

	FindByUsername(ctx context.Context, username string) (*Customer, error)

	FindAll(ctx context.Context) ([]*Customer, error)

	// FindByIDForUpdate reads the customer and holds its row lock until tx ends.
	FindByIDForUpdate(ctx context.Context, tx pgx.Tx, customerID int64) (*Customer, error)

	UpdateCreditInTx(ctx context.Context, tx pgx.Tx, customer *Customer) error
}
