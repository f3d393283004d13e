// Package reconcile drives local transactions through their state machine
// from the statuses the payment gateway reports.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"payments-reconciler/internal/domain"
)

// Saver persists a transaction. Implementations are expected to write inside
// the same database transaction that loaded the row.
type Saver interface {
	Save(ctx context.Context, t *domain.Transaction) error
}

type SaverFunc func(ctx context.Context, t *domain.Transaction) error

func (f SaverFunc) Save(ctx context.Context, t *domain.Transaction) error { return f(ctx, t) }

type Reconciler struct {
	logger *zap.Logger
}

func NewReconciler(logger *zap.Logger) *Reconciler {
	return &Reconciler{logger: logger}
}

// Reconcile applies a gateway status report to t and saves it. The returned
// bool is true while the transaction is on the happy path (settled or still
// in flight) and false once it failed or was canceled.
//
// The transaction is saved on every path, including conflicts.
func (r *Reconciler) Reconcile(ctx context.Context, saver Saver, t *domain.Transaction, report domain.StatusReport) (healthy bool, err error) {
	t.RecordGatewayStatus(report)

	defer func() {
		if saveErr := saver.Save(ctx, t); saveErr != nil {
			r.logger.Error("Failed to save reconciled transaction",
				zap.String("transaction_id", t.ID),
				zap.String("state", string(t.State)),
				zap.Error(saveErr))
			err = errors.Join(err, fmt.Errorf("failed to save transaction %s: %w", t.ID, saveErr))
		}
	}()

	target, ok := report.Status.TargetState()
	if !ok {
		return true, nil
	}
	if t.State == target {
		return target == domain.StateSettled, nil
	}

	var transitionErr error
	switch target {
	case domain.StateFailed:
		transitionErr = t.Fail(report.FailCode(), report.FailReason())
	case domain.StateCanceled:
		transitionErr = t.Cancel()
	case domain.StateSettled:
		transitionErr = t.Settle()
	}

	if transitionErr != nil {
		r.logger.Warn("Braintree transaction state conflict",
			zap.String("transaction_id", t.ID),
			zap.String("initial_state", string(t.State)),
			zap.String("target_state", string(target)),
			zap.String("gateway_status", string(report.Status)),
			zap.String("gateway_transaction_id", report.GatewayTransactionID))
		return false, &domain.TransitionConflictError{TransactionID: t.ID, From: t.State, Target: target}
	}

	r.logger.Info("Transaction reconciled",
		zap.String("transaction_id", t.ID),
		zap.String("state", string(t.State)),
		zap.String("gateway_status", string(report.Status)))
	return target == domain.StateSettled, nil
}
