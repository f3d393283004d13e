package inbox_repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"payments-reconciler/internal/domain"

	"github.com/lib/pq"
)

type inboxRepository struct {
	db *sql.DB
}

func NewInboxRepository(db *sql.DB) *inboxRepository {
	return &inboxRepository{db: db}
}

// CreateMessageTx returns domain.ErrMessageAlreadyProcessed when the event id
// has been seen before.
func (r *inboxRepository) CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.InboxMessage) error {
	query := `
		INSERT INTO inbox_messages (id, transaction_id, source, payload, status, received_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	payload := sql.NullString{String: string(msg.Payload), Valid: len(msg.Payload) > 0}
	var processedAt sql.NullTime
	if msg.ProcessedAt != nil {
		processedAt = sql.NullTime{Time: *msg.ProcessedAt, Valid: true}
	}

	_, err := querier.ExecContext(ctx, query,
		msg.ID,
		msg.TransactionID,
		msg.Source,
		payload,
		string(msg.Status),
		msg.ReceivedAt,
		processedAt,
	)
	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return fmt.Errorf("inbox message %s: %w", msg.ID, domain.ErrMessageAlreadyProcessed)
		}
		return fmt.Errorf("failed to create inbox message: %w", err)
	}
	return nil
}

func (r *inboxRepository) UpdateStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.InboxMessageStatus) error {
	query := `
		UPDATE inbox_messages
		SET status = $1, processed_at = CASE WHEN $1::VARCHAR = 'PROCESSED' THEN $2 ELSE processed_at END
		WHERE id = $3
	`
	res, err := querier.ExecContext(ctx, query, string(status), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update inbox message status %s: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for inbox message update: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("inbox message with id %s not found for status update", id)
	}
	return nil
}
