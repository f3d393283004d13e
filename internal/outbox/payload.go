package outbox

import (
	"encoding/json"
	"time"

	"payments-reconciler/internal/domain"
	"payments-reconciler/internal/domain/event"
	"payments-reconciler/internal/util"
)

func PrepareTransactionStateChangedPayload(t *domain.Transaction, previous domain.TransactionState, eventTime time.Time) ([]byte, error) {
	evt := event.TransactionStateChangedEvent{
		TransactionID:        t.ID,
		GatewayTransactionID: t.GatewayID(),
		PreviousState:        string(previous),
		State:                string(t.State),
		GatewayStatus:        string(t.Data.Status),
		Amount:               t.Amount.StringFixed(2),
		Currency:             t.Currency,
		FailCode:             string(t.Data.FailCode),
		FailReason:           t.Data.FailReason,
		Timestamp:            eventTime,
	}
	return json.Marshal(evt)
}

// NewStateChangedMessage builds the outbox row announcing that t left the
// previous state. Messages are keyed by transaction id so a consumer sees
// them in order.
func NewStateChangedMessage(t *domain.Transaction, previous domain.TransactionState, eventTime time.Time) (*domain.OutboxMessage, error) {
	payload, err := PrepareTransactionStateChangedPayload(t, previous, eventTime)
	if err != nil {
		return nil, err
	}
	return &domain.OutboxMessage{
		ID:            util.GenerateUUID(),
		AggregateID:   t.ID,
		AggregateType: domain.AggregateTransaction,
		MessageType:   domain.MessageTransactionStateChange,
		Key:           t.ID,
		Payload:       payload,
		Status:        domain.OutboxStatusPending,
		CreatedAt:     eventTime,
	}, nil
}
