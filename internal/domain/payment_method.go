package domain

import "time"

type InstrumentType string

const (
	InstrumentCreditCard InstrumentType = "credit_card"
	InstrumentPayPal     InstrumentType = "paypal_account"
)

// Instrument is the payment instrument the gateway charged. It is either
// CreditCardDetails or PayPalDetails.
type Instrument interface {
	Type() InstrumentType
	VaultToken() string
}

type CreditCardDetails struct {
	Token    string
	CardType string
	Last4    string
	ImageURL string
}

func (CreditCardDetails) Type() InstrumentType { return InstrumentCreditCard }
func (d CreditCardDetails) VaultToken() string { return d.Token }

type PayPalDetails struct {
	Token      string
	PayerEmail string
	ImageURL   string
}

func (PayPalDetails) Type() InstrumentType { return InstrumentPayPal }
func (d PayPalDetails) VaultToken() string { return d.Token }

// PaymentMethodDetails is the display data kept for a payment method.
type PaymentMethodDetails struct {
	Type     InstrumentType `json:"type,omitempty"`
	ImageURL string         `json:"image_url,omitempty"`
	Email    string         `json:"email,omitempty"`
	CardType string         `json:"card_type,omitempty"`
	Last4    string         `json:"last_4,omitempty"`
}

type PaymentMethod struct {
	ID          string
	CustomerID  int64
	Token       string
	Nonce       string
	Verified    bool
	Canceled    bool
	Recurring   bool
	DisplayInfo string
	Details     PaymentMethodDetails
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TokenPayload carries exactly one credential for a charge.
// StoreInVault is only set alongside a nonce.
type TokenPayload struct {
	PaymentMethodToken string
	PaymentMethodNonce string
	StoreInVault       bool
}

// Credential returns the token when the method is vaulted, else the nonce.
// Recurring methods charged by nonce ask the gateway to vault the instrument.
func (p *PaymentMethod) Credential() (TokenPayload, bool) {
	switch {
	case p.Token != "":
		return TokenPayload{PaymentMethodToken: p.Token}, true
	case p.Nonce != "":
		return TokenPayload{PaymentMethodNonce: p.Nonce, StoreInVault: p.Recurring}, true
	}
	return TokenPayload{}, false
}

// ApplyInstrument copies the charged instrument's details onto the payment
// method. Recurring methods vault the returned token in place of the nonce.
func (p *PaymentMethod) ApplyInstrument(in Instrument) {
	if in == nil {
		return
	}
	switch d := in.(type) {
	case CreditCardDetails:
		p.Details = PaymentMethodDetails{
			Type:     InstrumentCreditCard,
			ImageURL: d.ImageURL,
			CardType: d.CardType,
			Last4:    d.Last4,
		}
	case PayPalDetails:
		p.Details = PaymentMethodDetails{
			Type:     InstrumentPayPal,
			ImageURL: d.ImageURL,
			Email:    d.PayerEmail,
		}
		p.DisplayInfo = d.PayerEmail
	}

	if p.Recurring && in.VaultToken() != "" {
		p.Token = in.VaultToken()
		p.Nonce = ""
		p.Verified = true
	}
}
