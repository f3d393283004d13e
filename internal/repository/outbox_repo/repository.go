package outbox_repo

import (
	"context"
	"time"

	"payments-reconciler/internal/domain"
)

type OutboxRepository interface {
	CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) error
	// ClaimPendingTx locks up to limit pending messages, oldest first, for the
	// rest of the database transaction. Rows held by another publisher are skipped.
	ClaimPendingTx(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error)
	MarkSentTx(ctx context.Context, querier domain.Querier, id string, sentAt time.Time) error
	RecordFailureTx(ctx context.Context, querier domain.Querier, id string, cause error) error
}
