package event

import "time"

// StatusReportEvent is a gateway status notification received over Kafka.
type StatusReportEvent struct {
	EventID                string    `json:"event_id"`
	TransactionID          string    `json:"transaction_id"`
	GatewayTransactionID   string    `json:"gateway_transaction_id"`
	Status                 string    `json:"status"`
	ProcessorResponseCode  string    `json:"processor_response_code,omitempty"`
	ProcessorResponseText  string    `json:"processor_response_text,omitempty"`
	GatewayRejectionReason string    `json:"gateway_rejection_reason,omitempty"`
	Timestamp              time.Time `json:"timestamp"`
}

// TransactionStateChangedEvent is published whenever reconciliation moves a
// transaction to a new state.
type TransactionStateChangedEvent struct {
	TransactionID        string    `json:"transaction_id"`
	GatewayTransactionID string    `json:"gateway_transaction_id,omitempty"`
	PreviousState        string    `json:"previous_state"`
	State                string    `json:"state"`
	GatewayStatus        string    `json:"gateway_status,omitempty"`
	Amount               string    `json:"amount"`
	Currency             string    `json:"currency,omitempty"`
	FailCode             string    `json:"fail_code,omitempty"`
	FailReason           string    `json:"fail_reason,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
}
