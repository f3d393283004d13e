package domain

import "time"

type InboxMessageStatus string

const (
	InboxStatusNew       InboxMessageStatus = "NEW"
	InboxStatusProcessed InboxMessageStatus = "PROCESSED"
	InboxStatusFailed    InboxMessageStatus = "FAILED"
)

// InboxMessage records an incoming gateway status event so a redelivered
// event is reconciled only once.
type InboxMessage struct {
	ID            string
	TransactionID string
	Source        string
	Payload       []byte
	Status        InboxMessageStatus
	ReceivedAt    time.Time
	ProcessedAt   *time.Time
}
