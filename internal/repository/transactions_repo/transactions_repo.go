package transactions_repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"payments-reconciler/internal/domain"
	"payments-reconciler/internal/util"
)

type transactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *transactionRepository {
	return &transactionRepository{db: db}
}

const selectTransaction = `
	SELECT id, amount, currency, state, external_reference, data, payment_method_id, created_at, updated_at
	FROM transactions
	WHERE id = $1
`

func (r *transactionRepository) GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.Transaction, error) {
	return r.get(ctx, querier, selectTransaction, id)
}

func (r *transactionRepository) GetByIDForUpdateTx(ctx context.Context, querier domain.Querier, id string) (*domain.Transaction, error) {
	return r.get(ctx, querier, selectTransaction+" FOR UPDATE", id)
}

func (r *transactionRepository) get(ctx context.Context, querier domain.Querier, query, id string) (*domain.Transaction, error) {
	if !util.IsUUID(id) {
		return nil, domain.ErrTransactionNotFound
	}

	t := &domain.Transaction{}
	var rawData []byte
	var paymentMethodID sql.NullString
	err := querier.QueryRowContext(ctx, query, id).Scan(
		&t.ID,
		&t.Amount,
		&t.Currency,
		&t.State,
		&t.ExternalReference,
		&rawData,
		&paymentMethodID,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction %s: %w", id, err)
	}
	if len(rawData) > 0 {
		if err := json.Unmarshal(rawData, &t.Data); err != nil {
			return nil, fmt.Errorf("failed to decode data of transaction %s: %w", id, err)
		}
	}
	t.PaymentMethodID = paymentMethodID.String
	return t, nil
}

func (r *transactionRepository) SaveTx(ctx context.Context, querier domain.Querier, t *domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, amount, currency, state, external_reference, data, payment_method_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET state = EXCLUDED.state,
			external_reference = EXCLUDED.external_reference,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`
	rawData, err := json.Marshal(t.Data)
	if err != nil {
		return fmt.Errorf("failed to encode data of transaction %s: %w", t.ID, err)
	}

	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now

	paymentMethodID := sql.NullString{String: t.PaymentMethodID, Valid: t.PaymentMethodID != ""}
	_, err = querier.ExecContext(ctx, query,
		t.ID,
		t.Amount,
		t.Currency,
		string(t.State),
		t.ExternalReference,
		string(rawData),
		paymentMethodID,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction %s: %w", t.ID, err)
	}
	return nil
}
