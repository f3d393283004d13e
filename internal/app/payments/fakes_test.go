package payments

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payments-reconciler/internal/domain"
	"payments-reconciler/internal/repository/memory"
)

type refundCall struct {
	id     string
	amount *decimal.Decimal
}

type fakeGateway struct {
	mu sync.Mutex

	chargeFn func(payload domain.TokenPayload, amount decimal.Decimal) (*domain.StatusReport, error)
	refundFn func(id string, amount *decimal.Decimal) (bool, error)
	voidFn   func(id string) (bool, error)
	findFn   func(id string) (*domain.StatusReport, error)
	tokenFn  func(customerID string) (string, error)

	charges         []domain.TokenPayload
	refunds         []refundCall
	voids           []string
	tokenCustomers  []string
	customersIssued int
	createErr       error
}

func (g *fakeGateway) Charge(ctx context.Context, payload domain.TokenPayload, amount decimal.Decimal) (*domain.StatusReport, error) {
	g.mu.Lock()
	g.charges = append(g.charges, payload)
	g.mu.Unlock()
	if g.chargeFn == nil {
		return nil, errors.New("charge not expected")
	}
	return g.chargeFn(payload, amount)
}

func (g *fakeGateway) Refund(ctx context.Context, id string, amount *decimal.Decimal) (bool, error) {
	g.mu.Lock()
	g.refunds = append(g.refunds, refundCall{id: id, amount: amount})
	g.mu.Unlock()
	if g.refundFn == nil {
		return true, nil
	}
	return g.refundFn(id, amount)
}

func (g *fakeGateway) Void(ctx context.Context, id string) (bool, error) {
	g.mu.Lock()
	g.voids = append(g.voids, id)
	g.mu.Unlock()
	if g.voidFn == nil {
		return true, nil
	}
	return g.voidFn(id)
}

func (g *fakeGateway) FindTransaction(ctx context.Context, id string) (*domain.StatusReport, error) {
	if g.findFn == nil {
		return nil, errors.New("find not expected")
	}
	return g.findFn(id)
}

func (g *fakeGateway) GenerateClientToken(ctx context.Context, customerID string) (string, error) {
	g.mu.Lock()
	g.tokenCustomers = append(g.tokenCustomers, customerID)
	g.mu.Unlock()
	if g.tokenFn == nil {
		return "token-" + customerID, nil
	}
	return g.tokenFn(customerID)
}

func (g *fakeGateway) CreateCustomer(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return "", g.createErr
	}
	g.customersIssued++
	return fmt.Sprintf("bt-customer-%d", g.customersIssued), nil
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) Lock(ctx context.Context, transactionID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[transactionID] {
		return nil, fmt.Errorf("%s: %w", transactionID, domain.ErrTransactionLocked)
	}
	l.held[transactionID] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, transactionID)
	}, nil
}

// expire drops a held lock the way a Redis key TTL would, leaving the holder
// unaware.
func (l *fakeLocker) expire(transactionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, transactionID)
}

type fixture struct {
	store     *memory.Store
	gateway   *fakeGateway
	locker    *fakeLocker
	processor PaymentProcessor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	gateway := &fakeGateway{}
	locker := newFakeLocker()
	processor := NewPaymentProcessor(
		store,
		store.Transactions(),
		store.PaymentMethods(),
		store.Customers(),
		store.Inbox(),
		store.Outbox(),
		gateway,
		locker,
		zap.NewNop(),
	)
	return &fixture{store: store, gateway: gateway, locker: locker, processor: processor}
}

func (f *fixture) seed(t *testing.T, txn domain.Transaction, pm *domain.PaymentMethod) {
	t.Helper()
	if pm != nil {
		f.store.PutPaymentMethod(*pm)
		txn.PaymentMethodID = pm.ID
	}
	f.store.PutTransaction(txn)
}

func (f *fixture) transaction(t *testing.T, id string) domain.Transaction {
	t.Helper()
	txn, ok := f.store.Transaction(id)
	require.True(t, ok, "transaction %s not stored", id)
	return txn
}
