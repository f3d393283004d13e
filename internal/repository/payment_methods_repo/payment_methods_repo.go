package payment_methods_repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"payments-reconciler/internal/domain"
	"payments-reconciler/internal/util"
)

type paymentMethodRepository struct {
	db *sql.DB
}

func NewPaymentMethodRepository(db *sql.DB) *paymentMethodRepository {
	return &paymentMethodRepository{db: db}
}

func (r *paymentMethodRepository) GetByIDTx(ctx context.Context, querier domain.Querier, id string) (*domain.PaymentMethod, error) {
	query := `
		SELECT id, customer_id, token, nonce, verified, canceled, recurring, display_info, details, created_at, updated_at
		FROM payment_methods
		WHERE id = $1
	`
	if !util.IsUUID(id) {
		return nil, domain.ErrPaymentMethodNotFound
	}

	pm := &domain.PaymentMethod{}
	var rawDetails []byte
	err := querier.QueryRowContext(ctx, query, id).Scan(
		&pm.ID,
		&pm.CustomerID,
		&pm.Token,
		&pm.Nonce,
		&pm.Verified,
		&pm.Canceled,
		&pm.Recurring,
		&pm.DisplayInfo,
		&rawDetails,
		&pm.CreatedAt,
		&pm.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrPaymentMethodNotFound
		}
		return nil, fmt.Errorf("failed to get payment method %s: %w", id, err)
	}
	if len(rawDetails) > 0 {
		if err := json.Unmarshal(rawDetails, &pm.Details); err != nil {
			return nil, fmt.Errorf("failed to decode details of payment method %s: %w", id, err)
		}
	}
	return pm, nil
}

func (r *paymentMethodRepository) SaveTx(ctx context.Context, querier domain.Querier, pm *domain.PaymentMethod) error {
	query := `
		INSERT INTO payment_methods (id, customer_id, token, nonce, verified, canceled, recurring, display_info, details, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE
		SET token = EXCLUDED.token,
			nonce = EXCLUDED.nonce,
			verified = EXCLUDED.verified,
			canceled = EXCLUDED.canceled,
			recurring = EXCLUDED.recurring,
			display_info = EXCLUDED.display_info,
			details = EXCLUDED.details,
			updated_at = EXCLUDED.updated_at
	`
	rawDetails, err := json.Marshal(pm.Details)
	if err != nil {
		return fmt.Errorf("failed to encode details of payment method %s: %w", pm.ID, err)
	}

	now := time.Now()
	if pm.CreatedAt.IsZero() {
		pm.CreatedAt = now
	}
	pm.UpdatedAt = now

	_, err = querier.ExecContext(ctx, query,
		pm.ID,
		pm.CustomerID,
		pm.Token,
		pm.Nonce,
		pm.Verified,
		pm.Canceled,
		pm.Recurring,
		pm.DisplayInfo,
		string(rawDetails),
		pm.CreatedAt,
		pm.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save payment method %s: %w", pm.ID, err)
	}
	return nil
}
