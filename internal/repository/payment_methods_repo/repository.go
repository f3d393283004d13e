package payment_methods_repo

import (
	"context"

	"payments-reconciler/internal/domain"
)

type PaymentMethodRepository interface {
	GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.PaymentMethod, error)
	SaveTx(ctx context.Context, querier domain.Querier, pm *domain.PaymentMethod) error
}
