package outbox_repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"payments-reconciler/internal/domain"
)

const outboxColumns = `id, aggregate_id, aggregate_type, message_type, message_key, payload, status, attempts, last_error, created_at, sent_at`

type outboxRepository struct {
	db *sql.DB
}

func NewOutboxRepository(db *sql.DB) *outboxRepository {
	return &outboxRepository{db: db}
}

// CreateMessageTx queues msg in the caller's transaction, so the event
// commits or rolls back together with the state change it describes.
func (r *outboxRepository) CreateMessageTx(ctx context.Context, querier domain.Querier, msg *domain.OutboxMessage) error {
	_, err := querier.ExecContext(ctx, `
		INSERT INTO outbox_messages (id, aggregate_id, aggregate_type, message_type, message_key, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		msg.ID,
		msg.AggregateID,
		msg.AggregateType,
		msg.MessageType,
		msg.Key,
		string(msg.Payload),
		string(domain.OutboxStatusPending),
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to queue %s event for %s %s: %w", msg.MessageType, msg.AggregateType, msg.AggregateID, err)
	}
	return nil
}

func (r *outboxRepository) ClaimPendingTx(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	rows, err := querier.QueryContext(ctx, `
		SELECT `+outboxColumns+`
		FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED`,
		string(domain.OutboxStatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending outbox messages: %w", err)
	}
	defer rows.Close()

	var claimed []domain.OutboxMessage
	for rows.Next() {
		msg, err := scanOutboxMessage(rows)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read claimed outbox messages: %w", err)
	}
	return claimed, nil
}

func (r *outboxRepository) MarkSentTx(ctx context.Context, querier domain.Querier, id string, sentAt time.Time) error {
	res, err := querier.ExecContext(ctx, `
		UPDATE outbox_messages
		SET status = $1, sent_at = $2, last_error = NULL
		WHERE id = $3 AND status = $4`,
		string(domain.OutboxStatusSent), sentAt, id, string(domain.OutboxStatusPending))
	if err != nil {
		return fmt.Errorf("failed to mark outbox message %s sent: %w", id, err)
	}
	return expectOneRow(res, id)
}

func (r *outboxRepository) RecordFailureTx(ctx context.Context, querier domain.Querier, id string, cause error) error {
	res, err := querier.ExecContext(ctx, `
		UPDATE outbox_messages
		SET attempts = attempts + 1, last_error = $1
		WHERE id = $2`,
		cause.Error(), id)
	if err != nil {
		return fmt.Errorf("failed to record publish failure for outbox message %s: %w", id, err)
	}
	return expectOneRow(res, id)
}

func scanOutboxMessage(rows *sql.Rows) (domain.OutboxMessage, error) {
	var (
		msg       domain.OutboxMessage
		payload   string
		lastError sql.NullString
		sentAt    sql.NullTime
	)
	err := rows.Scan(
		&msg.ID,
		&msg.AggregateID,
		&msg.AggregateType,
		&msg.MessageType,
		&msg.Key,
		&payload,
		&msg.Status,
		&msg.Attempts,
		&lastError,
		&msg.CreatedAt,
		&sentAt,
	)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("failed to scan outbox message: %w", err)
	}
	msg.Payload = []byte(payload)
	msg.LastError = lastError.String
	if sentAt.Valid {
		msg.SentAt = &sentAt.Time
	}
	return msg, nil
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for outbox message %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("outbox message %s not found or already sent", id)
	}
	return nil
}
