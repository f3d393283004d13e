package braintree

import (
	"fmt"

	bt "github.com/braintree-go/braintree-go"
	"github.com/shopspring/decimal"

	"payments-reconciler/internal/domain"
)

// toSDKAmount rounds to cents, the only precision the gateway accepts.
func toSDKAmount(amount decimal.Decimal) *bt.Decimal {
	return bt.NewDecimal(amount.Shift(2).Round(0).IntPart(), 2)
}

func toReport(tx *bt.Transaction) *domain.StatusReport {
	return &domain.StatusReport{
		GatewayTransactionID:   tx.Id,
		Status:                 domain.GatewayStatus(tx.Status),
		ProcessorResponseCode:  responseCode(tx.ProcessorResponseCode),
		ProcessorResponseText:  tx.ProcessorResponseText,
		GatewayRejectionReason: string(tx.GatewayRejectionReason),
		Instrument:             instrument(tx),
	}
}

// responseCode renders the processor code the way it appears on the wire;
// an absent code is empty rather than "0".
func responseCode(code bt.ProcessorResponseCode) string {
	s := fmt.Sprint(code)
	if s == "0" {
		return ""
	}
	return s
}

// instrument picks the charged instrument. The gateway may send an empty
// credit-card element alongside PayPal details, so content decides.
func instrument(tx *bt.Transaction) domain.Instrument {
	if pp := tx.PayPalDetails; pp != nil && (pp.PayerEmail != "" || pp.Token != "") {
		return domain.PayPalDetails{
			Token:      pp.Token,
			PayerEmail: pp.PayerEmail,
			ImageURL:   pp.ImageURL,
		}
	}
	if cc := tx.CreditCard; cc != nil && (cc.Token != "" || cc.Last4 != "" || cc.CardType != "") {
		return domain.CreditCardDetails{
			Token:    cc.Token,
			CardType: cc.CardType,
			Last4:    cc.Last4,
			ImageURL: cc.ImageURL,
		}
	}
	return nil
}
