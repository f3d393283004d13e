package domain

import (
	"strconv"
	"strings"
)

type FailCode string

const (
	FailCodeDefault                   FailCode = "default"
	FailCodeInsufficientFunds         FailCode = "insufficient_funds"
	FailCodeLimitExceeded             FailCode = "limit_exceeded"
	FailCodeExpiredCard               FailCode = "expired_card"
	FailCodeInvalidCard               FailCode = "invalid_card"
	FailCodeInvalidPaymentMethod      FailCode = "invalid_payment_method"
	FailCodeTransactionDeclined       FailCode = "transaction_declined"
	FailCodeTransactionDeclinedByBank FailCode = "transaction_declined_by_bank"
	FailCodeFraud                     FailCode = "fraud"
)

// FailCode picks the local fail code for a failed gateway report.
func (r StatusReport) FailCode() FailCode {
	if code, err := strconv.Atoi(r.ProcessorResponseCode); err == nil && code >= 2000 && code < 3000 {
		switch code {
		case 2001:
			return FailCodeInsufficientFunds
		case 2002, 2003:
			return FailCodeLimitExceeded
		case 2004:
			return FailCodeExpiredCard
		case 2005, 2010:
			return FailCodeInvalidCard
		case 2038, 2046:
			return FailCodeTransactionDeclinedByBank
		default:
			return FailCodeTransactionDeclined
		}
	}

	switch strings.ToLower(r.GatewayRejectionReason) {
	case "":
	case "fraud", "risk_threshold":
		return FailCodeFraud
	case "cvv", "avs", "avs_and_cvv":
		return FailCodeInvalidCard
	case "token_issuance":
		return FailCodeInvalidPaymentMethod
	default:
		return FailCodeTransactionDeclined
	}
	return FailCodeDefault
}

// FailReason is the human readable reason attached to a failed transaction.
func (r StatusReport) FailReason() string {
	if r.ProcessorResponseText != "" {
		return r.ProcessorResponseText
	}
	if r.GatewayRejectionReason != "" {
		return "gateway rejected: " + r.GatewayRejectionReason
	}
	return string(r.Status)
}
