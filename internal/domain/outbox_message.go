package domain

import "time"

type OutboxMessageStatus string

const (
	OutboxStatusPending OutboxMessageStatus = "PENDING"
	OutboxStatusSent    OutboxMessageStatus = "SENT"
)

const (
	AggregateTransaction          = "transaction"
	MessageTransactionStateChange = "transaction.state_changed"
)

// OutboxMessage is a state change event waiting to be published to Kafka.
// A message that fails to publish stays PENDING; Attempts and LastError
// record why it is still there.
type OutboxMessage struct {
	ID            string
	AggregateID   string
	AggregateType string
	MessageType   string
	Key           string
	Payload       []byte
	Status        OutboxMessageStatus
	Attempts      int
	LastError     string
	CreatedAt     time.Time
	SentAt        *time.Time
}
