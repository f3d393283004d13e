// Package memory holds in-process implementations of the repositories. The
// Store also acts as a database.Transactor that rolls back every map on error.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"payments-reconciler/internal/domain"
	"payments-reconciler/internal/repository/customers_repo"
)

type Store struct {
	mu             sync.Mutex
	transactions   map[string]domain.Transaction
	paymentMethods map[string]domain.PaymentMethod
	customers      map[int64]domain.BraintreeCustomer
	inbox          map[string]domain.InboxMessage
	outbox         map[string]domain.OutboxMessage
	nextCustomerID int64
}

func NewStore() *Store {
	return &Store{
		transactions:   make(map[string]domain.Transaction),
		paymentMethods: make(map[string]domain.PaymentMethod),
		customers:      make(map[int64]domain.BraintreeCustomer),
		inbox:          make(map[string]domain.InboxMessage),
		outbox:         make(map[string]domain.OutboxMessage),
	}
}

// WithinTx serialises fn against the store and restores the previous
// contents if fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(q domain.Querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshot()
	if err := fn(nil); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

type storeSnapshot struct {
	transactions   map[string]domain.Transaction
	paymentMethods map[string]domain.PaymentMethod
	customers      map[int64]domain.BraintreeCustomer
	inbox          map[string]domain.InboxMessage
	outbox         map[string]domain.OutboxMessage
	nextCustomerID int64
}

func (s *Store) snapshot() storeSnapshot {
	return storeSnapshot{
		transactions:   cloneMap(s.transactions),
		paymentMethods: cloneMap(s.paymentMethods),
		customers:      cloneMap(s.customers),
		inbox:          cloneMap(s.inbox),
		outbox:         cloneMap(s.outbox),
		nextCustomerID: s.nextCustomerID,
	}
}

func (s *Store) restore(snap storeSnapshot) {
	s.transactions = snap.transactions
	s.paymentMethods = snap.paymentMethods
	s.customers = snap.customers
	s.inbox = snap.inbox
	s.outbox = snap.outbox
	s.nextCustomerID = snap.nextCustomerID
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Transactions

func (s *Store) Transactions() *TransactionRepository { return &TransactionRepository{s} }

type TransactionRepository struct{ s *Store }

func (r *TransactionRepository) GetByIDTx(ctx context.Context, _ domain.Querier, id string) (*domain.Transaction, error) {
	t, ok := r.s.transactions[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	t.PaymentMethod = nil
	return &t, nil
}

func (r *TransactionRepository) GetByIDForUpdateTx(ctx context.Context, q domain.Querier, id string) (*domain.Transaction, error) {
	return r.GetByIDTx(ctx, q, id)
}

func (r *TransactionRepository) SaveTx(ctx context.Context, _ domain.Querier, t *domain.Transaction) error {
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	stored := *t
	stored.PaymentMethod = nil
	r.s.transactions[t.ID] = stored
	return nil
}

// Payment methods

func (s *Store) PaymentMethods() *PaymentMethodRepository { return &PaymentMethodRepository{s} }

type PaymentMethodRepository struct{ s *Store }

func (r *PaymentMethodRepository) GetByIDTx(ctx context.Context, _ domain.Querier, id string) (*domain.PaymentMethod, error) {
	pm, ok := r.s.paymentMethods[id]
	if !ok {
		return nil, domain.ErrPaymentMethodNotFound
	}
	return &pm, nil
}

func (r *PaymentMethodRepository) SaveTx(ctx context.Context, _ domain.Querier, pm *domain.PaymentMethod) error {
	now := time.Now()
	if pm.CreatedAt.IsZero() {
		pm.CreatedAt = now
	}
	pm.UpdatedAt = now
	r.s.paymentMethods[pm.ID] = *pm
	return nil
}

// Braintree customers

func (s *Store) Customers() *CustomerRepository { return &CustomerRepository{s} }

type CustomerRepository struct{ s *Store }

func (r *CustomerRepository) GetByCustomerIDTx(ctx context.Context, _ domain.Querier, customerID int64) (*domain.BraintreeCustomer, error) {
	c, ok := r.s.customers[customerID]
	if !ok {
		return nil, domain.ErrCustomerNotFound
	}
	return &c, nil
}

func (r *CustomerRepository) CreateTx(ctx context.Context, _ domain.Querier, c *domain.BraintreeCustomer) error {
	if _, ok := r.s.customers[c.CustomerID]; ok {
		return customers_repo.ErrCustomerAlreadyExists
	}
	r.s.nextCustomerID++
	c.ID = r.s.nextCustomerID
	c.CreatedAt, c.UpdatedAt = time.Now(), time.Now()
	r.s.customers[c.CustomerID] = *c
	return nil
}

// Inbox

func (s *Store) Inbox() *InboxRepository { return &InboxRepository{s} }

type InboxRepository struct{ s *Store }

func (r *InboxRepository) CreateMessageTx(ctx context.Context, _ domain.Querier, msg *domain.InboxMessage) error {
	if _, ok := r.s.inbox[msg.ID]; ok {
		return fmt.Errorf("inbox message %s: %w", msg.ID, domain.ErrMessageAlreadyProcessed)
	}
	r.s.inbox[msg.ID] = *msg
	return nil
}

func (r *InboxRepository) UpdateStatusTx(ctx context.Context, _ domain.Querier, id string, status domain.InboxMessageStatus) error {
	msg, ok := r.s.inbox[id]
	if !ok {
		return fmt.Errorf("inbox message with id %s not found for status update", id)
	}
	msg.Status = status
	if status == domain.InboxStatusProcessed {
		now := time.Now()
		msg.ProcessedAt = &now
	}
	r.s.inbox[id] = msg
	return nil
}

// Outbox

func (s *Store) Outbox() *OutboxRepository { return &OutboxRepository{s} }

type OutboxRepository struct{ s *Store }

func (r *OutboxRepository) CreateMessageTx(ctx context.Context, _ domain.Querier, msg *domain.OutboxMessage) error {
	stored := *msg
	stored.Status = domain.OutboxStatusPending
	r.s.outbox[msg.ID] = stored
	return nil
}

func (r *OutboxRepository) ClaimPendingTx(ctx context.Context, _ domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	var pending []domain.OutboxMessage
	for _, msg := range r.s.outbox {
		if msg.Status == domain.OutboxStatusPending {
			pending = append(pending, msg)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].CreatedAt.Before(pending[j].CreatedAt) })
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *OutboxRepository) MarkSentTx(ctx context.Context, _ domain.Querier, id string, sentAt time.Time) error {
	msg, ok := r.s.outbox[id]
	if !ok || msg.Status != domain.OutboxStatusPending {
		return fmt.Errorf("outbox message %s not found or already sent", id)
	}
	msg.Status = domain.OutboxStatusSent
	msg.SentAt = &sentAt
	msg.LastError = ""
	r.s.outbox[id] = msg
	return nil
}

func (r *OutboxRepository) RecordFailureTx(ctx context.Context, _ domain.Querier, id string, cause error) error {
	msg, ok := r.s.outbox[id]
	if !ok {
		return fmt.Errorf("outbox message %s not found or already sent", id)
	}
	msg.Attempts++
	msg.LastError = cause.Error()
	r.s.outbox[id] = msg
	return nil
}

// Test helpers. They take the store lock and must not be called from inside
// WithinTx.

func (s *Store) PutTransaction(t domain.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.PaymentMethod = nil
	s.transactions[t.ID] = t
}

func (s *Store) PutPaymentMethod(pm domain.PaymentMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paymentMethods[pm.ID] = pm
}

func (s *Store) Transaction(id string) (domain.Transaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	return t, ok
}

func (s *Store) PaymentMethod(id string) (domain.PaymentMethod, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pm, ok := s.paymentMethods[id]
	return pm, ok
}

func (s *Store) OutboxMessages() []domain.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := make([]domain.OutboxMessage, 0, len(s.outbox))
	for _, m := range s.outbox {
		msgs = append(msgs, m)
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs
}

func (s *Store) InboxMessage(id string) (domain.InboxMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.inbox[id]
	return m, ok
}
