package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type RecordType string

const (
	RecordSent     RecordType = "sent"
	RecordReceived RecordType = "received"
)

// TransactionRecord is one side of a transfer, filed under Address.
// A transfer always produces a sent record for the sender and a received record for the recipient.
type TransactionRecord struct {
	ID        string          `json:"id"`
	Address   string          `json:"address"`
	Sender    string          `json:"sender"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
	Type      RecordType      `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
}
