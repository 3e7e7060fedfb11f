package request

import "github.com/shopspring/decimal"

// --- 请求结构 ---
type ImportWalletReq struct {
	Mnemonic string `json:"mnemonic" binding:"required"`
}

type SignMessageReq struct {
	Mnemonic string `json:"mnemonic" binding:"required"`
	Message  string `json:"message" binding:"required"`
}

// QuoteTransferReq asks for an approval message. Currency is ETH or USD.
type QuoteTransferReq struct {
	Sender    string          `json:"sender" binding:"required"`
	Recipient string          `json:"recipient" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency" binding:"required"`
}

type TransferReq struct {
	Sender       string          `json:"sender" binding:"required"`
	Recipient    string          `json:"recipient" binding:"required"`
	CryptoAmount decimal.Decimal `json:"crypto_amount"`
	FiatAmount   decimal.Decimal `json:"fiat_amount"`
	Signature    string          `json:"signature" binding:"required"`
	Message      string          `json:"message" binding:"required"`
}

// --- 响应结构 ---
type WalletResp struct {
	Mnemonic string          `json:"mnemonic,omitempty"`
	Address  string          `json:"address"`
	Balance  decimal.Decimal `json:"balance"`
}

type SignatureResp struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}
