package entity

import "github.com/shopspring/decimal"

// ApprovalMessage describes a transfer intent. Text is the exact payload that
// gets signed; it is rendered once and must travel unchanged to redemption.
type ApprovalMessage struct {
	Sender       string          `json:"sender"`
	Recipient    string          `json:"recipient"`
	CryptoAmount decimal.Decimal `json:"crypto_amount"`
	FiatAmount   decimal.Decimal `json:"fiat_amount"`
	ExpiresAt    int64           `json:"expires_at"`
	Text         string          `json:"message"`
}

// Quote is a single market snapshot from a rate oracle.
type Quote struct {
	CryptoAmount decimal.Decimal `json:"crypto_amount"`
	FiatAmount   decimal.Decimal `json:"fiat_amount"`
}
