package domain

import (
	"errors"
	"fmt"
)

var ErrTransactionNotFound = errors.New("transaction not found")
var ErrPaymentMethodNotFound = errors.New("payment method not found")
var ErrCustomerNotFound = errors.New("braintree customer not found")

var ErrTransitionNotAllowed = errors.New("transition not allowed")
var ErrTransitionConflict = errors.New("transaction state conflict")

// Charge pre-check failures. The error text is stored as the fail reason.
var (
	ErrPaymentMethodCanceled   = errors.New("payment method canceled")
	ErrPaymentMethodUnverified = errors.New("payment method not verified")
	ErrMissingCredential       = errors.New("payment method has no token or nonce")
)

var ErrInvalidAmount = errors.New("invalid amount")

var ErrMessageAlreadyProcessed = errors.New("inbox message already processed")
var ErrTransactionLocked = errors.New("transaction is being reconciled by another worker")

// ErrChargeInProgress is returned for a pending transaction that already has
// a charge attempt whose outcome is not yet recorded.
var ErrChargeInProgress = errors.New("charge already attempted for transaction")

// ErrGatewayUnavailable marks gateway failures where the request was never sent.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// TransitionConflictError is returned when a gateway status asks for a move
// the local state machine forbids.
type TransitionConflictError struct {
	TransactionID string
	From          TransactionState
	Target        TransactionState
}

func (e *TransitionConflictError) Error() string {
	return fmt.Sprintf("transaction %s: cannot move from %s to %s", e.TransactionID, e.From, e.Target)
}

func (e *TransitionConflictError) Unwrap() error {
	return ErrTransitionConflict
}

// IsValidationError reports whether err is one of the charge pre-check failures.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrPaymentMethodCanceled) ||
		errors.Is(err, ErrPaymentMethodUnverified) ||
		errors.Is(err, ErrMissingCredential)
}
