package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/linlinbupt123-crypto/mock_wallet/entity"
)

// LedgerTx is the set of ledger operations usable inside an atomic unit.
type LedgerTx interface {
	// GetBalance returns ok=false when the address has no ledger entry.
	GetBalance(ctx context.Context, address string) (balance decimal.Decimal, ok bool, err error)
	SetBalance(ctx context.Context, address string, amount decimal.Decimal) error
	// EnsureAccount creates the entry with initial balance if absent and reports whether it did.
	EnsureAccount(ctx context.Context, address string, initial decimal.Decimal) (created bool, err error)
	AppendRecord(ctx context.Context, record entity.TransactionRecord) error
}

// Ledger stores balances and the append-only transaction log.
type Ledger interface {
	LedgerTx
	// ListRecords returns the records filed under address, most recent first.
	ListRecords(ctx context.Context, address string) ([]entity.TransactionRecord, error)
	// WithinTx runs fn as one all-or-nothing unit. Any error from fn discards every write fn made.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// RateOracle converts a fiat amount to a crypto amount. Each call is an independent market snapshot.
type RateOracle interface {
	Quote(ctx context.Context, fiatAmount decimal.Decimal) (entity.Quote, error)
}

// ReplayGuard records single-use consumption of signed messages.
type ReplayGuard interface {
	// Reserve returns false if key is already reserved.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
