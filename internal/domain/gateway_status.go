package domain

// GatewayStatus is the transaction status reported by Braintree.
type GatewayStatus string

const (
	GatewayStatusAuthorizationExpired   GatewayStatus = "authorization_expired"
	GatewayStatusAuthorized             GatewayStatus = "authorized"
	GatewayStatusAuthorizing            GatewayStatus = "authorizing"
	GatewayStatusSettlementPending      GatewayStatus = "settlement_pending"
	GatewayStatusSettlementDeclined     GatewayStatus = "settlement_declined"
	GatewayStatusFailed                 GatewayStatus = "failed"
	GatewayStatusGatewayRejected        GatewayStatus = "gateway_rejected"
	GatewayStatusProcessorDeclined      GatewayStatus = "processor_declined"
	GatewayStatusSettled                GatewayStatus = "settled"
	GatewayStatusSettling               GatewayStatus = "settling"
	GatewayStatusSubmittedForSettlement GatewayStatus = "submitted_for_settlement"
	GatewayStatusVoided                 GatewayStatus = "voided"
)

// TargetState maps a gateway status onto the local state it demands.
// ok is false for statuses that leave the transaction in flight.
func (s GatewayStatus) TargetState() (state TransactionState, ok bool) {
	switch s {
	case GatewayStatusAuthorizationExpired,
		GatewayStatusSettlementDeclined,
		GatewayStatusFailed,
		GatewayStatusGatewayRejected,
		GatewayStatusProcessorDeclined:
		return StateFailed, true
	case GatewayStatusVoided:
		return StateCanceled, true
	case GatewayStatusSettling, GatewayStatusSettlementPending, GatewayStatusSettled:
		return StateSettled, true
	}
	return "", false
}

func (s GatewayStatus) IsSettledOrSettling() bool {
	return s == GatewayStatusSettling || s == GatewayStatusSettlementPending || s == GatewayStatusSettled
}

// StatusReport is what the gateway says about one of its transactions,
// either as a charge result, a find result or a pushed notification.
type StatusReport struct {
	GatewayTransactionID   string
	Status                 GatewayStatus
	ProcessorResponseCode  string
	ProcessorResponseText  string
	GatewayRejectionReason string
	Instrument             Instrument
}
