package kafka_infra

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"payments-reconciler/internal/domain"
)

func TestToKafkaMessageCarriesOutboxMetadata(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := toKafkaMessage(domain.OutboxMessage{
		ID:            "m1",
		AggregateID:   "t1",
		AggregateType: domain.AggregateTransaction,
		MessageType:   domain.MessageTransactionStateChange,
		Key:           "t1",
		Payload:       []byte(`{"transaction_id":"t1"}`),
		CreatedAt:     created,
	})

	assert.Empty(t, msg.Topic)
	assert.Equal(t, []byte("t1"), msg.Key)
	assert.JSONEq(t, `{"transaction_id":"t1"}`, string(msg.Value))
	assert.Equal(t, created, msg.Time)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, map[string]string{
		HeaderMessageID:     "m1",
		HeaderMessageType:   domain.MessageTransactionStateChange,
		HeaderAggregateType: domain.AggregateTransaction,
	}, headers)
}
