package reconcile_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payments-reconciler/internal/app/reconcile"
	"payments-reconciler/internal/domain"
)

func TestValidateForCharge_Failures(t *testing.T) {
	tests := []struct {
		name    string
		pm      *domain.PaymentMethod
		wantErr error
	}{
		{"canceled", &domain.PaymentMethod{Canceled: true, Verified: true, Token: "tok"}, domain.ErrPaymentMethodCanceled},
		{"canceled wins over unverified", &domain.PaymentMethod{Canceled: true}, domain.ErrPaymentMethodCanceled},
		{"unverified", &domain.PaymentMethod{Token: "tok"}, domain.ErrPaymentMethodUnverified},
		{"no credential", &domain.PaymentMethod{Verified: true}, domain.ErrMissingCredential},
		{"no payment method", nil, domain.ErrMissingCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := reconcile.NewReconciler(zap.NewNop())
			saver := &recordingSaver{}
			txn := &domain.Transaction{ID: "txn-1", State: domain.StatePending, PaymentMethod: tt.pm}

			payload, err := r.ValidateForCharge(context.Background(), saver, txn)

			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, domain.IsValidationError(err))
			assert.Equal(t, domain.TokenPayload{}, payload)
			assert.Equal(t, domain.StateFailed, txn.State)
			assert.Equal(t, tt.wantErr.Error(), txn.Data.FailReason)
			assert.Len(t, saver.saved, 1)
		})
	}
}

func TestValidateForCharge_ConflictStillReturnsValidationError(t *testing.T) {
	r := reconcile.NewReconciler(zap.NewNop())
	saver := &recordingSaver{}
	txn := &domain.Transaction{
		ID:            "txn-1",
		State:         domain.StateSettled,
		PaymentMethod: &domain.PaymentMethod{Canceled: true},
	}

	_, err := r.ValidateForCharge(context.Background(), saver, txn)

	require.ErrorIs(t, err, domain.ErrPaymentMethodCanceled)
	assert.Equal(t, domain.StateSettled, txn.State)
	assert.Empty(t, saver.saved)
}

func TestValidateForCharge_PrefersToken(t *testing.T) {
	r := reconcile.NewReconciler(zap.NewNop())
	saver := &recordingSaver{}
	txn := &domain.Transaction{
		ID:            "txn-1",
		State:         domain.StatePending,
		PaymentMethod: &domain.PaymentMethod{Verified: true, Token: "tok", Nonce: "nonce"},
	}

	payload, err := r.ValidateForCharge(context.Background(), saver, txn)

	require.NoError(t, err)
	assert.Equal(t, "tok", payload.PaymentMethodToken)
	assert.Empty(t, payload.PaymentMethodNonce)
	assert.Equal(t, domain.StatePending, txn.State)
	assert.Empty(t, saver.saved)
}

func TestValidateForCharge_NonceOnly(t *testing.T) {
	r := reconcile.NewReconciler(zap.NewNop())
	txn := &domain.Transaction{
		ID:            "txn-1",
		State:         domain.StatePending,
		PaymentMethod: &domain.PaymentMethod{Verified: true, Nonce: "nonce"},
	}

	payload, err := r.ValidateForCharge(context.Background(), &recordingSaver{}, txn)

	require.NoError(t, err)
	assert.Equal(t, "nonce", payload.PaymentMethodNonce)
}

func TestCanRefundAndCanVoidAreExclusive(t *testing.T) {
	settled := &domain.Transaction{State: domain.StateSettled}
	pending := &domain.Transaction{State: domain.StatePending, Data: domain.TransactionData{Status: domain.GatewayStatusAuthorized}}

	assert.True(t, reconcile.CanRefund(settled))
	assert.False(t, reconcile.CanVoid(settled))
	assert.False(t, reconcile.CanRefund(pending))
	assert.True(t, reconcile.CanVoid(pending))
}
