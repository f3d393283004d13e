package customers_repo

import (
	"context"
	"errors"

	"payments-reconciler/internal/domain"
)

var ErrCustomerAlreadyExists = errors.New("braintree customer already exists")

type CustomerRepository interface {
	GetByCustomerIDTx(ctx context.Context, querier domain.Querier, customerID int64) (*domain.BraintreeCustomer, error)
	CreateTx(ctx context.Context, querier domain.Querier, c *domain.BraintreeCustomer) error
}
