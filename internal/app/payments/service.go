package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payments-reconciler/internal/app/reconcile"
	"payments-reconciler/internal/domain"
	"payments-reconciler/internal/domain/event"
	"payments-reconciler/internal/infrastructure/database"
	"payments-reconciler/internal/outbox"
	"payments-reconciler/internal/repository/customers_repo"
	"payments-reconciler/internal/repository/inbox_repo"
	"payments-reconciler/internal/repository/outbox_repo"
	"payments-reconciler/internal/repository/payment_methods_repo"
	"payments-reconciler/internal/repository/transactions_repo"
)

// Gateway is the subset of the Braintree client the processor needs.
type Gateway interface {
	Charge(ctx context.Context, payload domain.TokenPayload, amount decimal.Decimal) (*domain.StatusReport, error)
	Refund(ctx context.Context, gatewayTransactionID string, amount *decimal.Decimal) (bool, error)
	Void(ctx context.Context, gatewayTransactionID string) (bool, error)
	FindTransaction(ctx context.Context, gatewayTransactionID string) (*domain.StatusReport, error)
	GenerateClientToken(ctx context.Context, customerID string) (string, error)
	CreateCustomer(ctx context.Context) (string, error)
}

// Locker serialises work on a single transaction across workers.
type Locker interface {
	Lock(ctx context.Context, transactionID string) (release func(), err error)
}

type PaymentProcessor interface {
	ClientToken(ctx context.Context) (string, bool)
	ClientTokenForCustomer(ctx context.Context, customerID int64) (string, bool)
	GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error)
	ExecuteTransaction(ctx context.Context, transactionID string) (bool, error)
	RefundTransaction(ctx context.Context, transactionID string, amount *decimal.Decimal) (bool, error)
	VoidTransaction(ctx context.Context, transactionID string) (bool, error)
	FetchTransactionStatus(ctx context.Context, transactionID string) (bool, error)
	ApplyStatusReport(ctx context.Context, transactionID string, report domain.StatusReport) (bool, error)
	ProcessStatusReportEvent(ctx context.Context, evt event.StatusReportEvent, rawPayload []byte) error
}

type paymentProcessor struct {
	transactor        database.Transactor
	transactionRepo   transactions_repo.TransactionRepository
	paymentMethodRepo payment_methods_repo.PaymentMethodRepository
	customerRepo      customers_repo.CustomerRepository
	inboxRepo         inbox_repo.InboxRepository
	outboxRepo        outbox_repo.OutboxRepository
	gateway           Gateway
	locker            Locker
	reconciler        *reconcile.Reconciler
	logger            *zap.Logger
}

func NewPaymentProcessor(
	transactor database.Transactor,
	transactionRepo transactions_repo.TransactionRepository,
	paymentMethodRepo payment_methods_repo.PaymentMethodRepository,
	customerRepo customers_repo.CustomerRepository,
	inboxRepo inbox_repo.InboxRepository,
	outboxRepo outbox_repo.OutboxRepository,
	gateway Gateway,
	locker Locker,
	logger *zap.Logger,
) PaymentProcessor {
	return &paymentProcessor{
		transactor:        transactor,
		transactionRepo:   transactionRepo,
		paymentMethodRepo: paymentMethodRepo,
		customerRepo:      customerRepo,
		inboxRepo:         inboxRepo,
		outboxRepo:        outboxRepo,
		gateway:           gateway,
		locker:            locker,
		reconciler:        reconcile.NewReconciler(logger.With(zap.String("component", "Reconciler"))),
		logger:            logger,
	}
}

func (s *paymentProcessor) ClientToken(ctx context.Context) (string, bool) {
	token, err := s.gateway.GenerateClientToken(ctx, "")
	if err != nil {
		s.logger.Warn("Couldn't obtain client token", zap.Error(err))
		return "", false
	}
	return token, true
}

func (s *paymentProcessor) ClientTokenForCustomer(ctx context.Context, customerID int64) (string, bool) {
	braintreeID, err := s.braintreeCustomerID(ctx, customerID)
	if err != nil {
		s.logger.Warn("Couldn't resolve braintree customer", zap.Int64("customer_id", customerID), zap.Error(err))
		return "", false
	}

	token, err := s.gateway.GenerateClientToken(ctx, braintreeID)
	if err != nil {
		s.logger.Warn("Couldn't obtain client token",
			zap.Int64("customer_id", customerID),
			zap.String("braintree_customer_id", braintreeID),
			zap.Error(err))
		return "", false
	}
	return token, true
}

// braintreeCustomerID returns the stored mapping, creating the customer on
// the gateway the first time.
func (s *paymentProcessor) braintreeCustomerID(ctx context.Context, customerID int64) (string, error) {
	var existing *domain.BraintreeCustomer
	err := s.transactor.WithinTx(ctx, func(q domain.Querier) error {
		c, err := s.customerRepo.GetByCustomerIDTx(ctx, q, customerID)
		if err != nil && !errors.Is(err, domain.ErrCustomerNotFound) {
			return err
		}
		existing = c
		return nil
	})
	if err != nil {
		return "", err
	}
	if existing != nil && existing.BraintreeCustomerID != "" {
		return existing.BraintreeCustomerID, nil
	}

	braintreeID, err := s.gateway.CreateCustomer(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create braintree customer: %w", err)
	}

	var resolved string
	err = s.transactor.WithinTx(ctx, func(q domain.Querier) error {
		c := &domain.BraintreeCustomer{CustomerID: customerID, BraintreeCustomerID: braintreeID}
		createErr := s.customerRepo.CreateTx(ctx, q, c)
		if errors.Is(createErr, customers_repo.ErrCustomerAlreadyExists) {
			winner, err := s.customerRepo.GetByCustomerIDTx(ctx, q, customerID)
			if err != nil {
				return err
			}
			resolved = winner.BraintreeCustomerID
			return nil
		}
		if createErr != nil {
			return createErr
		}
		resolved = braintreeID
		return nil
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("Braintree customer linked",
		zap.Int64("customer_id", customerID),
		zap.String("braintree_customer_id", resolved))
	return resolved, nil
}

func (s *paymentProcessor) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	var t *domain.Transaction
	err := s.transactor.WithinTx(ctx, func(q domain.Querier) error {
		var err error
		t, err = s.load(ctx, q, transactionID, false)
		return err
	})
	return t, err
}

// load reads a transaction with its payment method attached.
func (s *paymentProcessor) load(ctx context.Context, q domain.Querier, transactionID string, forUpdate bool) (*domain.Transaction, error) {
	var t *domain.Transaction
	var err error
	if forUpdate {
		t, err = s.transactionRepo.GetByIDForUpdateTx(ctx, q, transactionID)
	} else {
		t, err = s.transactionRepo.GetByIDTx(ctx, q, transactionID)
	}
	if err != nil {
		return nil, err
	}
	if t.PaymentMethodID == "" {
		return t, nil
	}
	pm, err := s.paymentMethodRepo.GetByIDTx(ctx, q, t.PaymentMethodID)
	if err != nil && !errors.Is(err, domain.ErrPaymentMethodNotFound) {
		return nil, err
	}
	t.PaymentMethod = pm
	return t, nil
}

// saverTx persists t and, when its state moved away from previous, queues a
// state change event in the same database transaction.
func (s *paymentProcessor) saverTx(q domain.Querier, previous domain.TransactionState, saveErr *error) reconcile.Saver {
	return reconcile.SaverFunc(func(ctx context.Context, t *domain.Transaction) error {
		err := s.saveWithEvent(ctx, q, t, previous)
		if err != nil && saveErr != nil {
			*saveErr = err
		}
		return err
	})
}

func (s *paymentProcessor) saveWithEvent(ctx context.Context, q domain.Querier, t *domain.Transaction, previous domain.TransactionState) error {
	if err := s.transactionRepo.SaveTx(ctx, q, t); err != nil {
		return err
	}
	if t.State == previous {
		return nil
	}
	msg, err := outbox.NewStateChangedMessage(t, previous, time.Now())
	if err != nil {
		return fmt.Errorf("failed to prepare state change event for transaction %s: %w", t.ID, err)
	}
	if err := s.outboxRepo.CreateMessageTx(ctx, q, msg); err != nil {
		return fmt.Errorf("failed to queue state change event for transaction %s: %w", t.ID, err)
	}
	return nil
}

// ExecuteTransaction charges a pending transaction once. The attempt is
// recorded before the gateway is called, so a second execute is refused even
// if the lock expired while the first charge was still running.
func (s *paymentProcessor) ExecuteTransaction(ctx context.Context, transactionID string) (bool, error) {
	release, err := s.locker.Lock(ctx, transactionID)
	if err != nil {
		return false, err
	}
	defer release()

	var payload domain.TokenPayload
	var t *domain.Transaction
	var validationErr error
	err = s.transactor.WithinTx(ctx, func(q domain.Querier) error {
		var err error
		t, err = s.load(ctx, q, transactionID, true)
		if err != nil {
			return err
		}
		if t.State != domain.StatePending {
			return nil
		}
		if t.ChargeAttempted() {
			return fmt.Errorf("transaction %s charged at %s: %w",
				transactionID, t.Data.ChargeAttemptedAt.Format(time.RFC3339), domain.ErrChargeInProgress)
		}

		var saveErr error
		payload, validationErr = s.reconciler.ValidateForCharge(ctx, s.saverTx(q, t.State, &saveErr), t)
		if saveErr != nil || validationErr != nil {
			return saveErr
		}

		t.MarkChargeAttempt(time.Now())
		return s.transactionRepo.SaveTx(ctx, q, t)
	})
	if err != nil {
		if errors.Is(err, domain.ErrChargeInProgress) {
			s.logger.Warn("Charge already attempted, refusing to charge again",
				zap.String("transaction_id", transactionID),
				zap.Error(err))
		}
		return false, err
	}
	if t.State != domain.StatePending && validationErr == nil {
		s.logger.Info("Transaction is not pending, skipping charge",
			zap.String("transaction_id", transactionID),
			zap.String("state", string(t.State)))
		return false, nil
	}
	if validationErr != nil {
		return false, validationErr
	}

	report, err := s.gateway.Charge(ctx, payload, t.Amount)
	if err != nil {
		s.logger.Warn("Braintree charge failed",
			zap.String("transaction_id", transactionID),
			zap.String("amount", t.Amount.StringFixed(2)),
			zap.Error(err))
		if errors.Is(err, domain.ErrGatewayUnavailable) {
			s.clearChargeAttempt(ctx, transactionID)
		}
		return false, nil
	}

	return s.reconcileLocked(ctx, transactionID, *report, func(t *domain.Transaction, q domain.Querier) error {
		pm := t.PaymentMethod
		if pm == nil {
			return nil
		}
		usedNonce := payload.PaymentMethodNonce != "" && pm.Nonce == payload.PaymentMethodNonce
		pm.ApplyInstrument(report.Instrument)
		if usedNonce {
			pm.Nonce = ""
		}
		return s.paymentMethodRepo.SaveTx(ctx, q, pm)
	})
}

// clearChargeAttempt releases the marker for a charge that never reached the
// gateway. Any other failure leaves it set; the outcome is then unknown and
// only a status report can resolve it.
func (s *paymentProcessor) clearChargeAttempt(ctx context.Context, transactionID string) {
	err := s.transactor.WithinTx(ctx, func(q domain.Querier) error {
		t, err := s.transactionRepo.GetByIDForUpdateTx(ctx, q, transactionID)
		if err != nil {
			return err
		}
		t.ClearChargeAttempt()
		return s.transactionRepo.SaveTx(ctx, q, t)
	})
	if err != nil {
		s.logger.Error("Failed to clear charge attempt",
			zap.String("transaction_id", transactionID),
			zap.Error(err))
	}
}

// reconcileLocked applies report inside a database transaction. The caller
// must already hold the transaction lock. before runs on the freshly loaded
// row ahead of reconciliation.
func (s *paymentProcessor) reconcileLocked(
	ctx context.Context,
	transactionID string,
	report domain.StatusReport,
	before func(t *domain.Transaction, q domain.Querier) error,
) (bool, error) {
	var healthy bool
	var reconcileErr error
	err := s.transactor.WithinTx(ctx, func(q domain.Querier) error {
		t, err := s.load(ctx, q, transactionID, true)
		if err != nil {
			return err
		}
		if before != nil {
			if err := before(t, q); err != nil {
				return err
			}
		}

		var saveErr error
		healthy, reconcileErr = s.reconciler.Reconcile(ctx, s.saverTx(q, t.State, &saveErr), t, report)
		return saveErr
	})
	if err != nil {
		return false, err
	}
	return healthy, reconcileErr
}

func (s *paymentProcessor) RefundTransaction(ctx context.Context, transactionID string, amount *decimal.Decimal) (bool, error) {
	t, err := s.GetTransaction(ctx, transactionID)
	if err != nil {
		return false, err
	}
	if !reconcile.CanRefund(t) {
		s.logger.Info("Transaction is not settled, refund refused",
			zap.String("transaction_id", transactionID),
			zap.String("state", string(t.State)),
			zap.String("gateway_status", string(t.Data.Status)))
		return false, nil
	}
	if amount != nil && (!amount.IsPositive() || amount.GreaterThan(t.Amount)) {
		return false, fmt.Errorf("refund of %s for transaction %s: %w", amount.StringFixed(2), transactionID, domain.ErrInvalidAmount)
	}

	ok, err := s.gateway.Refund(ctx, t.GatewayID(), amount)
	if err != nil {
		s.logger.Warn("Error refunding transaction",
			zap.String("transaction_id", transactionID),
			zap.String("gateway_transaction_id", t.GatewayID()),
			zap.Error(err))
		return false, nil
	}
	return ok, nil
}

func (s *paymentProcessor) VoidTransaction(ctx context.Context, transactionID string) (bool, error) {
	t, err := s.GetTransaction(ctx, transactionID)
	if err != nil {
		return false, err
	}
	if !reconcile.CanVoid(t) {
		s.logger.Info("Transaction is settling or settled, void refused",
			zap.String("transaction_id", transactionID),
			zap.String("state", string(t.State)),
			zap.String("gateway_status", string(t.Data.Status)))
		return false, nil
	}

	ok, err := s.gateway.Void(ctx, t.GatewayID())
	if err != nil {
		s.logger.Warn("Error voiding transaction",
			zap.String("transaction_id", transactionID),
			zap.String("gateway_transaction_id", t.GatewayID()),
			zap.Error(err))
		return false, nil
	}
	return ok, nil
}

func (s *paymentProcessor) FetchTransactionStatus(ctx context.Context, transactionID string) (bool, error) {
	t, err := s.GetTransaction(ctx, transactionID)
	if err != nil {
		return false, err
	}
	if t.GatewayID() == "" {
		s.logger.Info("Transaction was never sent to Braintree", zap.String("transaction_id", transactionID))
		return false, nil
	}

	report, err := s.gateway.FindTransaction(ctx, t.GatewayID())
	if err != nil {
		s.logger.Warn("Error fetching transaction status",
			zap.String("transaction_id", transactionID),
			zap.String("gateway_transaction_id", t.GatewayID()),
			zap.Error(err))
		return false, nil
	}
	return s.ApplyStatusReport(ctx, transactionID, *report)
}

func (s *paymentProcessor) ApplyStatusReport(ctx context.Context, transactionID string, report domain.StatusReport) (bool, error) {
	release, err := s.locker.Lock(ctx, transactionID)
	if err != nil {
		return false, err
	}
	defer release()

	return s.reconcileLocked(ctx, transactionID, report, nil)
}

// ProcessStatusReportEvent reconciles a status report received from Kafka.
// Events are recorded in the inbox first; a redelivered event is ignored.
func (s *paymentProcessor) ProcessStatusReportEvent(ctx context.Context, evt event.StatusReportEvent, rawPayload []byte) error {
	release, err := s.locker.Lock(ctx, evt.TransactionID)
	if err != nil {
		return err
	}
	defer release()

	report := domain.StatusReport{
		GatewayTransactionID:   evt.GatewayTransactionID,
		Status:                 domain.GatewayStatus(evt.Status),
		ProcessorResponseCode:  evt.ProcessorResponseCode,
		ProcessorResponseText:  evt.ProcessorResponseText,
		GatewayRejectionReason: evt.GatewayRejectionReason,
	}

	var reconcileErr error
	err = s.transactor.WithinTx(ctx, func(q domain.Querier) error {
		inboxMsg := &domain.InboxMessage{
			ID:            evt.EventID,
			TransactionID: evt.TransactionID,
			Source:        "kafka",
			Payload:       rawPayload,
			Status:        domain.InboxStatusNew,
			ReceivedAt:    time.Now(),
		}
		if err := s.inboxRepo.CreateMessageTx(ctx, q, inboxMsg); err != nil {
			return err
		}

		t, err := s.load(ctx, q, evt.TransactionID, true)
		if err != nil {
			return err
		}

		var saveErr error
		_, reconcileErr = s.reconciler.Reconcile(ctx, s.saverTx(q, t.State, &saveErr), t, report)
		if saveErr != nil {
			return saveErr
		}

		status := domain.InboxStatusProcessed
		if reconcileErr != nil {
			status = domain.InboxStatusFailed
		}
		return s.inboxRepo.UpdateStatusTx(ctx, q, evt.EventID, status)
	})
	if errors.Is(err, domain.ErrMessageAlreadyProcessed) {
		s.logger.Info("Status report already processed",
			zap.String("event_id", evt.EventID),
			zap.String("transaction_id", evt.TransactionID))
		return nil
	}
	if errors.Is(err, domain.ErrTransactionNotFound) {
		s.logger.Warn("Status report for unknown transaction dropped",
			zap.String("event_id", evt.EventID),
			zap.String("transaction_id", evt.TransactionID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to process status report %s: %w", evt.EventID, err)
	}
	if reconcileErr != nil {
		// A conflict is final for this event; redelivering it would not help.
		s.logger.Warn("Status report conflicted with local state",
			zap.String("event_id", evt.EventID),
			zap.String("transaction_id", evt.TransactionID),
			zap.Error(reconcileErr))
	}
	return nil
}
