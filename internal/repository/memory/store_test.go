package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payments-reconciler/internal/domain"
)

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := NewStore()
	s.PutTransaction(domain.Transaction{ID: "t1", State: domain.StatePending, Amount: decimal.NewFromInt(10)})

	boom := errors.New("boom")
	err := s.WithinTx(context.Background(), func(q domain.Querier) error {
		txn, err := s.Transactions().GetByIDForUpdateTx(context.Background(), q, "t1")
		require.NoError(t, err)
		txn.State = domain.StateSettled
		require.NoError(t, s.Transactions().SaveTx(context.Background(), q, txn))
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, ok := s.Transaction("t1")
	require.True(t, ok)
	assert.Equal(t, domain.StatePending, stored.State)
}

func TestInboxRejectsDuplicates(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	msg := &domain.InboxMessage{ID: "evt-1", Status: domain.InboxStatusNew}

	require.NoError(t, s.Inbox().CreateMessageTx(ctx, nil, msg))
	err := s.Inbox().CreateMessageTx(ctx, nil, msg)
	assert.ErrorIs(t, err, domain.ErrMessageAlreadyProcessed)
}

func TestGetTransactionNotFound(t *testing.T) {
	_, err := NewStore().Transactions().GetByIDTx(context.Background(), nil, "missing")
	assert.ErrorIs(t, err, domain.ErrTransactionNotFound)
}
