package reconcile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payments-reconciler/internal/app/reconcile"
	"payments-reconciler/internal/domain"
)

type recordingSaver struct {
	saved []domain.Transaction
	err   error
}

func (s *recordingSaver) Save(_ context.Context, t *domain.Transaction) error {
	s.saved = append(s.saved, *t)
	return s.err
}

func newTransaction(state domain.TransactionState) *domain.Transaction {
	return &domain.Transaction{ID: "txn-1", State: state}
}

func report(status domain.GatewayStatus) domain.StatusReport {
	return domain.StatusReport{GatewayTransactionID: "bt-42", Status: status}
}

func TestReconcile_FailedStatusesFailPendingTransaction(t *testing.T) {
	statuses := []domain.GatewayStatus{
		domain.GatewayStatusAuthorizationExpired,
		domain.GatewayStatusSettlementDeclined,
		domain.GatewayStatusFailed,
		domain.GatewayStatusGatewayRejected,
		domain.GatewayStatusProcessorDeclined,
	}

	for _, status := range statuses {
		t.Run(string(status), func(t *testing.T) {
			r := reconcile.NewReconciler(zap.NewNop())
			saver := &recordingSaver{}
			txn := newTransaction(domain.StatePending)

			healthy, err := r.Reconcile(context.Background(), saver, txn, report(status))

			require.NoError(t, err)
			assert.False(t, healthy)
			assert.Equal(t, domain.StateFailed, txn.State)
			assert.Equal(t, status, txn.Data.Status)
			assert.Equal(t, "bt-42", txn.Data.BraintreeID)
			assert.Equal(t, "bt-42", txn.ExternalReference)
			assert.NotEmpty(t, txn.Data.FailReason)
			assert.Len(t, saver.saved, 1)
		})
	}
}

func TestReconcile_ProcessorDeclinedCarriesFailDetails(t *testing.T) {
	r := reconcile.NewReconciler(zap.NewNop())
	saver := &recordingSaver{}
	txn := newTransaction(domain.StatePending)

	healthy, err := r.Reconcile(context.Background(), saver, txn, domain.StatusReport{
		GatewayTransactionID:  "bt-42",
		Status:                domain.GatewayStatusProcessorDeclined,
		ProcessorResponseCode: "2001",
		ProcessorResponseText: "Insufficient Funds",
	})

	require.NoError(t, err)
	assert.False(t, healthy)
	assert.Equal(t, domain.StateFailed, txn.State)
	assert.Equal(t, domain.GatewayStatusProcessorDeclined, txn.Data.Status)
	assert.Equal(t, domain.FailCodeInsufficientFunds, txn.Data.FailCode)
	assert.Equal(t, "Insufficient Funds", txn.Data.FailReason)
}

func TestReconcile_VoidedCancelsPendingTransaction(t *testing.T) {
	r := reconcile.NewReconciler(zap.NewNop())
	saver := &recordingSaver{}
	txn := newTransaction(domain.StatePending)

	healthy, err := r.Reconcile(context.Background(), saver, txn, report(domain.GatewayStatusVoided))

	require.NoError(t, err)
	assert.False(t, healthy)
	assert.Equal(t, domain.StateCanceled, txn.State)
	assert.Len(t, saver.saved, 1)
}

func TestReconcile_SettlementStatusesSettlePendingTransaction(t *testing.T) {
	for _, status := range []domain.GatewayStatus{
		domain.GatewayStatusSettling,
		domain.GatewayStatusSettlementPending,
		domain.GatewayStatusSettled,
	} {
		t.Run(string(status), func(t *testing.T) {
			r := reconcile.NewReconciler(zap.NewNop())
			saver := &recordingSaver{}
			txn := newTransaction(domain.StatePending)

			healthy, err := r.Reconcile(context.Background(), saver, txn, report(status))

			require.NoError(t, err)
			assert.True(t, healthy)
			assert.Equal(t, domain.StateSettled, txn.State)
			assert.Len(t, saver.saved, 1)
		})
	}
}

func TestReconcile_UnrecognizedStatusLeavesStateAlone(t *testing.T) {
	for _, status := range []domain.GatewayStatus{
		domain.GatewayStatusAuthorized,
		domain.GatewayStatusSubmittedForSettlement,
		"brand_new_status",
	} {
		t.Run(string(status), func(t *testing.T) {
			r := reconcile.NewReconciler(zap.NewNop())
			saver := &recordingSaver{}
			txn := newTransaction(domain.StatePending)

			healthy, err := r.Reconcile(context.Background(), saver, txn, report(status))

			require.NoError(t, err)
			assert.True(t, healthy)
			assert.Equal(t, domain.StatePending, txn.State)
			assert.Equal(t, status, txn.Data.Status)
			assert.Len(t, saver.saved, 1)
		})
	}
}

func TestReconcile_AlreadySettledIsNoop(t *testing.T) {
	r := reconcile.NewReconciler(zap.NewNop())
	saver := &recordingSaver{}
	txn := newTransaction(domain.StateSettled)

	healthy, err := r.Reconcile(context.Background(), saver, txn, report(domain.GatewayStatusSettled))

	require.NoError(t, err)
	assert.True(t, healthy)
	assert.Equal(t, domain.StateSettled, txn.State)
	assert.Len(t, saver.saved, 1)
}

func TestReconcile_IsIdempotentForRedeliveredReports(t *testing.T) {
	tests := []struct {
		status      domain.GatewayStatus
		wantState   domain.TransactionState
		wantHealthy bool
	}{
		{domain.GatewayStatusSettled, domain.StateSettled, true},
		{domain.GatewayStatusProcessorDeclined, domain.StateFailed, false},
		{domain.GatewayStatusVoided, domain.StateCanceled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			r := reconcile.NewReconciler(zap.NewNop())
			saver := &recordingSaver{}
			txn := newTransaction(domain.StatePending)

			first, err := r.Reconcile(context.Background(), saver, txn, report(tt.status))
			require.NoError(t, err)
			failReason := txn.Data.FailReason

			second, err := r.Reconcile(context.Background(), saver, txn, report(tt.status))
			require.NoError(t, err)

			assert.Equal(t, tt.wantHealthy, first)
			assert.Equal(t, first, second)
			assert.Equal(t, tt.wantState, txn.State)
			assert.Equal(t, failReason, txn.Data.FailReason)
			assert.Len(t, saver.saved, 2)
		})
	}
}

func TestReconcile_CanceledTransactionRejectsFailure(t *testing.T) {
	r := reconcile.NewReconciler(zap.NewNop())
	saver := &recordingSaver{}
	txn := newTransaction(domain.StateCanceled)

	healthy, err := r.Reconcile(context.Background(), saver, txn, report(domain.GatewayStatusFailed))

	require.Error(t, err)
	assert.False(t, healthy)
	assert.ErrorIs(t, err, domain.ErrTransitionConflict)

	var conflict *domain.TransitionConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "txn-1", conflict.TransactionID)
	assert.Equal(t, domain.StateCanceled, conflict.From)
	assert.Equal(t, domain.StateFailed, conflict.Target)

	assert.Equal(t, domain.StateCanceled, txn.State)
	require.Len(t, saver.saved, 1)
	assert.Equal(t, domain.GatewayStatusFailed, saver.saved[0].Data.Status)
	assert.Equal(t, "bt-42", saver.saved[0].Data.BraintreeID)
}

func TestReconcile_SettledTransactionRejectsVoid(t *testing.T) {
	r := reconcile.NewReconciler(zap.NewNop())
	saver := &recordingSaver{}
	txn := newTransaction(domain.StateSettled)

	_, err := r.Reconcile(context.Background(), saver, txn, report(domain.GatewayStatusVoided))

	assert.ErrorIs(t, err, domain.ErrTransitionConflict)
	assert.Equal(t, domain.StateSettled, txn.State)
	assert.Len(t, saver.saved, 1)
}

func TestReconcile_SaveErrorIsReturned(t *testing.T) {
	r := reconcile.NewReconciler(zap.NewNop())
	saver := &recordingSaver{err: errors.New("db down")}
	txn := newTransaction(domain.StatePending)

	healthy, err := r.Reconcile(context.Background(), saver, txn, report(domain.GatewayStatusSettled))

	assert.True(t, healthy)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
