package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionData is the gateway metadata stored alongside a transaction.
type TransactionData struct {
	Status      GatewayStatus `json:"status,omitempty"`
	BraintreeID string        `json:"braintree_id,omitempty"`
	FailCode    FailCode      `json:"fail_code,omitempty"`
	FailReason  string        `json:"fail_reason,omitempty"`

	ChargeAttemptedAt *time.Time `json:"charge_attempted_at,omitempty"`
}

type Transaction struct {
	ID                string
	Amount            decimal.Decimal
	Currency          string
	State             TransactionState
	ExternalReference string
	Data              TransactionData
	PaymentMethodID   string
	PaymentMethod     *PaymentMethod
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (t *Transaction) apply(event TransactionEvent) error {
	next, err := NextState(t.State, event)
	if err != nil {
		return fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	t.State = next
	t.UpdatedAt = time.Now()
	return nil
}

func (t *Transaction) Fail(code FailCode, reason string) error {
	if err := t.apply(EventFail); err != nil {
		return err
	}
	t.Data.FailCode = code
	t.Data.FailReason = reason
	return nil
}

func (t *Transaction) Cancel() error {
	return t.apply(EventCancel)
}

func (t *Transaction) Settle() error {
	return t.apply(EventSettle)
}

// RecordGatewayStatus stores the latest gateway status and id.
func (t *Transaction) RecordGatewayStatus(report StatusReport) {
	if report.GatewayTransactionID != "" {
		t.ExternalReference = report.GatewayTransactionID
		t.Data.BraintreeID = report.GatewayTransactionID
	}
	t.Data.Status = report.Status
	t.UpdatedAt = time.Now()
}

// MarkChargeAttempt records that a charge is about to be sent. It must be
// saved before the gateway is called.
func (t *Transaction) MarkChargeAttempt(at time.Time) {
	t.Data.ChargeAttemptedAt = &at
	t.UpdatedAt = at
}

func (t *Transaction) ClearChargeAttempt() {
	t.Data.ChargeAttemptedAt = nil
	t.UpdatedAt = time.Now()
}

// ChargeAttempted is true once a charge was sent, even if its result was lost.
func (t *Transaction) ChargeAttempted() bool {
	return t.Data.ChargeAttemptedAt != nil
}

// SettledOrSettling is the flag refunds and voids are gated on.
func (t *Transaction) SettledOrSettling() bool {
	return t.State == StateSettled || t.Data.Status.IsSettledOrSettling()
}

// CanRefund is true only once the gateway has started or finished settlement.
func (t *Transaction) CanRefund() bool {
	return t.SettledOrSettling()
}

// CanVoid is true only before settlement starts.
func (t *Transaction) CanVoid() bool {
	return !t.SettledOrSettling()
}

// GatewayID is the id to use for refund/void/find calls.
func (t *Transaction) GatewayID() string {
	if t.ExternalReference != "" {
		return t.ExternalReference
	}
	return t.Data.BraintreeID
}
