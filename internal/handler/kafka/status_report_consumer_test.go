package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"payments-reconciler/internal/app/payments"
	"payments-reconciler/internal/domain"
	"payments-reconciler/internal/domain/event"
)

type fakeProcessor struct {
	payments.PaymentProcessor
	events []event.StatusReportEvent
	errs   []error
}

func (p *fakeProcessor) ProcessStatusReportEvent(ctx context.Context, evt event.StatusReportEvent, raw []byte) error {
	p.events = append(p.events, evt)
	if len(p.errs) == 0 {
		return nil
	}
	err := p.errs[0]
	p.errs = p.errs[1:]
	return err
}

func message(t *testing.T, v any) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return kafka.Message{Topic: "braintree_status_reports", Partition: 0, Offset: 12, Value: raw}
}

func TestStatusReportMessageHandlerDelivers(t *testing.T) {
	p := &fakeProcessor{}
	handler := StatusReportMessageHandler(p, zap.NewNop())

	err := handler(context.Background(), message(t, event.StatusReportEvent{
		EventID:              "evt-1",
		TransactionID:        "t1",
		GatewayTransactionID: "bt-1",
		Status:               "settled",
	}))
	require.NoError(t, err)
	require.Len(t, p.events, 1)
	assert.Equal(t, "evt-1", p.events[0].EventID)
	assert.Equal(t, "bt-1", p.events[0].GatewayTransactionID)
}

func TestStatusReportMessageHandlerSkipsMalformed(t *testing.T) {
	p := &fakeProcessor{}
	handler := StatusReportMessageHandler(p, zap.NewNop())

	require.NoError(t, handler(context.Background(), kafka.Message{Value: []byte("{not json")}))
	require.NoError(t, handler(context.Background(), message(t, event.StatusReportEvent{EventID: "evt-1"})))
	assert.Empty(t, p.events)
}

func TestStatusReportMessageHandlerDerivesEventID(t *testing.T) {
	p := &fakeProcessor{}
	handler := StatusReportMessageHandler(p, zap.NewNop())

	require.NoError(t, handler(context.Background(), message(t, event.StatusReportEvent{TransactionID: "t1", Status: "voided"})))
	require.Len(t, p.events, 1)
	assert.Equal(t, "braintree_status_reports-0-12", p.events[0].EventID)
}

func TestStatusReportMessageHandlerRetriesLockedTransaction(t *testing.T) {
	locked := fmt.Errorf("t1: %w", domain.ErrTransactionLocked)
	p := &fakeProcessor{errs: []error{locked, nil}}
	handler := StatusReportMessageHandler(p, zap.NewNop())

	require.NoError(t, handler(context.Background(), message(t, event.StatusReportEvent{EventID: "e", TransactionID: "t1", Status: "settled"})))
	assert.Len(t, p.events, 2)
}

func TestStatusReportMessageHandlerReturnsProcessingError(t *testing.T) {
	p := &fakeProcessor{errs: []error{errors.New("db down")}}
	handler := StatusReportMessageHandler(p, zap.NewNop())

	err := handler(context.Background(), message(t, event.StatusReportEvent{EventID: "e", TransactionID: "t1", Status: "settled"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
