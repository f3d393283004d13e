package customers_repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"payments-reconciler/internal/domain"
)

type customerRepository struct {
	db *sql.DB
}

func NewCustomerRepository(db *sql.DB) *customerRepository {
	return &customerRepository{db: db}
}

type customerData struct {
	ID string `json:"id,omitempty"`
}

func (r *customerRepository) GetByCustomerIDTx(ctx context.Context, querier domain.Querier, customerID int64) (*domain.BraintreeCustomer, error) {
	query := `
		SELECT id, customer_id, data, created_at, updated_at
		FROM braintree_customers
		WHERE customer_id = $1
	`
	c := &domain.BraintreeCustomer{}
	var rawData []byte
	err := querier.QueryRowContext(ctx, query, customerID).Scan(
		&c.ID,
		&c.CustomerID,
		&rawData,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get braintree customer for customer %d: %w", customerID, err)
	}

	var data customerData
	if len(rawData) > 0 {
		if err := json.Unmarshal(rawData, &data); err != nil {
			return nil, fmt.Errorf("failed to decode braintree customer data: %w", err)
		}
	}
	c.BraintreeCustomerID = data.ID
	return c, nil
}

func (r *customerRepository) CreateTx(ctx context.Context, querier domain.Querier, c *domain.BraintreeCustomer) error {
	query := `
		INSERT INTO braintree_customers (customer_id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	rawData, err := json.Marshal(customerData{ID: c.BraintreeCustomerID})
	if err != nil {
		return fmt.Errorf("failed to encode braintree customer data: %w", err)
	}

	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	err = querier.QueryRowContext(ctx, query, c.CustomerID, string(rawData), c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return ErrCustomerAlreadyExists
		}
		return fmt.Errorf("failed to create braintree customer for customer %d: %w", c.CustomerID, err)
	}
	return nil
}
