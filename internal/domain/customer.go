package domain

import "time"

// BraintreeCustomer links a local customer to its Braintree vault customer.
type BraintreeCustomer struct {
	ID                  int64
	CustomerID          int64
	BraintreeCustomerID string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
