package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"payments-reconciler/internal/domain"
)

// ValidateForCharge checks the transaction's payment method before it is
// sent to the gateway. A failed check fails the transaction with the check's
// reason and saves it.
func (r *Reconciler) ValidateForCharge(ctx context.Context, saver Saver, t *domain.Transaction) (domain.TokenPayload, error) {
	pm := t.PaymentMethod
	var checkErr error
	switch {
	case pm == nil:
		checkErr = domain.ErrMissingCredential
	case pm.Canceled:
		checkErr = domain.ErrPaymentMethodCanceled
	case !pm.Verified:
		checkErr = domain.ErrPaymentMethodUnverified
	}

	var payload domain.TokenPayload
	if checkErr == nil {
		var ok bool
		if payload, ok = pm.Credential(); !ok {
			checkErr = domain.ErrMissingCredential
		}
	}
	if checkErr == nil {
		return payload, nil
	}

	if err := r.failTransaction(ctx, saver, t, checkErr.Error()); err != nil {
		return domain.TokenPayload{}, errors.Join(checkErr, err)
	}
	return domain.TokenPayload{}, checkErr
}

func (r *Reconciler) failTransaction(ctx context.Context, saver Saver, t *domain.Transaction, reason string) error {
	defer r.logger.Warn(reason, zap.String("transaction_id", t.ID))

	if err := t.Fail(domain.FailCodeInvalidPaymentMethod, reason); err != nil {
		r.logger.Error("Couldn't fail the transaction",
			zap.String("transaction_id", t.ID),
			zap.String("state", string(t.State)),
			zap.Error(err))
		return nil
	}
	if err := saver.Save(ctx, t); err != nil {
		return fmt.Errorf("failed to save failed transaction %s: %w", t.ID, err)
	}
	return nil
}

// CanRefund reports whether a refund may be issued for t.
func CanRefund(t *domain.Transaction) bool {
	return t.CanRefund()
}

// CanVoid reports whether t may still be voided.
func CanVoid(t *domain.Transaction) bool {
	return t.CanVoid()
}
