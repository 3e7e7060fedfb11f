package entity

import "github.com/shopspring/decimal"

// Wallet is a derived keypair. It is held by the caller and never persisted.
type Wallet struct {
	Address    string // EIP-55 checksummed, 0x-prefixed
	PrivateKey []byte // 32 bytes
}

// Account is the persisted ledger view of an address.
type Account struct {
	Address string          `json:"address"`
	Balance decimal.Decimal `json:"balance"`
}
