package transactions_repo

import (
	"context"

	"payments-reconciler/internal/domain"
)

type TransactionRepository interface {
	GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.Transaction, error)
	GetByIDForUpdateTx(ctx context.Context, querier domain.Querier, id string) (*domain.Transaction, error)
	SaveTx(ctx context.Context, querier domain.Querier, t *domain.Transaction) error
}
