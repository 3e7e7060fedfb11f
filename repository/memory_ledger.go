package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/linlinbupt123-crypto/mock_wallet/domain"
	"github.com/linlinbupt123-crypto/mock_wallet/entity"
)

// MemoryLedger is a concurrency-safe in-memory ledger. Used for development and tests.
type MemoryLedger struct {
	mu       sync.RWMutex
	balances map[string]decimal.Decimal
	records  []entity.TransactionRecord
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{balances: make(map[string]decimal.Decimal)}
}

func (l *MemoryLedger) GetBalance(_ context.Context, address string) (decimal.Decimal, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.balances[address]
	return b, ok, nil
}

func (l *MemoryLedger) SetBalance(_ context.Context, address string, amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[address] = amount
	return nil
}

func (l *MemoryLedger) EnsureAccount(_ context.Context, address string, initial decimal.Decimal) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.balances[address]; ok {
		return false, nil
	}
	l.balances[address] = initial
	return true, nil
}

func (l *MemoryLedger) AppendRecord(_ context.Context, record entity.TransactionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record)
	return nil
}

func (l *MemoryLedger) ListRecords(_ context.Context, address string) ([]entity.TransactionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []entity.TransactionRecord
	for _, r := range l.records {
		if r.Address == address {
			out = append(out, r)
		}
	}
	// most recent first; equal timestamps keep the later append first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// WithinTx holds the write lock for the whole unit and stages writes until fn returns nil.
func (l *MemoryLedger) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &memoryTx{base: l.balances, staged: make(map[string]decimal.Decimal)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for addr, b := range tx.staged {
		l.balances[addr] = b
	}
	l.records = append(l.records, tx.records...)
	return nil
}

// Total sums every balance. Used by tests to check conservation.
func (l *MemoryLedger) Total() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	total := decimal.Zero
	for _, b := range l.balances {
		total = total.Add(b)
	}
	return total
}

// Accounts returns how many addresses have a ledger entry.
func (l *MemoryLedger) Accounts() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.balances)
}

type memoryTx struct {
	base    map[string]decimal.Decimal
	staged  map[string]decimal.Decimal
	records []entity.TransactionRecord
}

func (t *memoryTx) GetBalance(_ context.Context, address string) (decimal.Decimal, bool, error) {
	if b, ok := t.staged[address]; ok {
		return b, true, nil
	}
	b, ok := t.base[address]
	return b, ok, nil
}

func (t *memoryTx) SetBalance(_ context.Context, address string, amount decimal.Decimal) error {
	t.staged[address] = amount
	return nil
}

func (t *memoryTx) EnsureAccount(ctx context.Context, address string, initial decimal.Decimal) (bool, error) {
	if _, ok, _ := t.GetBalance(ctx, address); ok {
		return false, nil
	}
	t.staged[address] = initial
	return true, nil
}

func (t *memoryTx) AppendRecord(_ context.Context, record entity.TransactionRecord) error {
	t.records = append(t.records, record)
	return nil
}

var _ domain.Ledger = (*MemoryLedger)(nil)
