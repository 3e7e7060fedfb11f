package domain_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linlinbupt123-crypto/mock_wallet/domain"
	"github.com/linlinbupt123-crypto/mock_wallet/entity"
	wrapErrors "github.com/linlinbupt123-crypto/mock_wallet/errors"
	"github.com/linlinbupt123-crypto/mock_wallet/logging"
	"github.com/linlinbupt123-crypto/mock_wallet/repository"
)

const (
	senderMnemonic = "test test test test test test test test test test test junk"
	otherMnemonic  = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	recipientAddr  = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

type clock struct{ unix atomic.Int64 }

func (c *clock) Now() time.Time          { return time.Unix(c.unix.Load(), 0) }
func (c *clock) Advance(d time.Duration) { c.unix.Add(int64(d / time.Second)) }

type stubOracle struct {
	amount decimal.Decimal
	err    error
	delay  time.Duration
	calls  atomic.Int32
}

func (o *stubOracle) Quote(ctx context.Context, fiat decimal.Decimal) (entity.Quote, error) {
	o.calls.Add(1)
	if o.delay > 0 {
		select {
		case <-ctx.Done():
			return entity.Quote{}, ctx.Err()
		case <-time.After(o.delay):
		}
	}
	if o.err != nil {
		return entity.Quote{}, o.err
	}
	return entity.Quote{CryptoAmount: o.amount, FiatAmount: fiat}, nil
}

// flakyLedger fails the second AppendRecord of a unit while fail is set.
type flakyLedger struct {
	*repository.MemoryLedger
	fail atomic.Bool
}

func (l *flakyLedger) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	return l.MemoryLedger.WithinTx(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		return fn(ctx, &flakyTx{LedgerTx: tx, fail: l.fail.Load()})
	})
}

type flakyTx struct {
	domain.LedgerTx
	fail    bool
	appends int
}

func (t *flakyTx) AppendRecord(ctx context.Context, rec entity.TransactionRecord) error {
	t.appends++
	if t.fail && t.appends == 2 {
		return errors.New("disk full")
	}
	return t.LedgerTx.AppendRecord(ctx, rec)
}

type harness struct {
	engine *domain.TransferEngine
	auth   *domain.Authorizer
	keys   *domain.KeyManager
	ledger *repository.MemoryLedger
	oracle *stubOracle
	clock  *clock
	sender entity.Wallet
}

type option func(*domain.TransferConfig, *domain.TransferEngineDeps)

func withLedger(l domain.Ledger) option {
	return func(_ *domain.TransferConfig, d *domain.TransferEngineDeps) { d.Ledger = l }
}

func withQuoteTimeout(d time.Duration) option {
	return func(c *domain.TransferConfig, _ *domain.TransferEngineDeps) { c.QuoteTimeout = d }
}

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()
	keys, err := domain.NewKeyManager(domain.SchemeSeedPrefix, "")
	require.NoError(t, err)
	sender, err := keys.DeriveWallet(senderMnemonic)
	require.NoError(t, err)

	c := &clock{}
	c.unix.Store(1_700_000_000)
	ledger := repository.NewMemoryLedger()
	rateOracle := &stubOracle{}
	auth := domain.NewAuthorizer(keys, 30*time.Second, c.Now)

	cfg := domain.TransferConfig{}
	deps := domain.TransferEngineDeps{
		Ledger:     ledger,
		Authorizer: auth,
		Oracle:     rateOracle,
		Replay:     repository.NewMemoryReplayGuard(c.Now),
		Logger:     logging.Discard(),
		Now:        c.Now,
	}
	for _, opt := range opts {
		opt(&cfg, &deps)
	}
	return &harness{
		engine: domain.NewTransferEngine(cfg, deps),
		auth:   auth,
		keys:   keys,
		ledger: ledger,
		oracle: rateOracle,
		clock:  c,
		sender: sender,
	}
}

func (h *harness) fund(t *testing.T, address, amount string) {
	t.Helper()
	require.NoError(t, h.ledger.SetBalance(context.Background(), address, decimal.RequireFromString(amount)))
}

func (h *harness) balance(t *testing.T, address string) decimal.Decimal {
	t.Helper()
	b, ok, err := h.ledger.GetBalance(context.Background(), address)
	require.NoError(t, err)
	if !ok {
		return decimal.NewFromInt(-1)
	}
	return b
}

// request builds and signs an approval from the harness sender.
func (h *harness) request(t *testing.T, cryptoAmount, fiatAmount string) domain.TransferRequest {
	t.Helper()
	crypto := decimal.RequireFromString(cryptoAmount)
	fiat := decimal.RequireFromString(fiatAmount)
	msg := h.auth.BuildMessage(h.sender.Address, recipientAddr, crypto, fiat)
	sig, err := h.keys.Sign(h.sender.PrivateKey, msg.Text)
	require.NoError(t, err)
	return domain.TransferRequest{
		Sender:       h.sender.Address,
		Recipient:    recipientAddr,
		CryptoAmount: crypto,
		FiatAmount:   fiat,
		Signature:    domain.EncodeHex(sig),
		Message:      msg.Text,
	}
}

func assertUnchanged(t *testing.T, h *harness, senderBalance string) {
	t.Helper()
	assert.True(t, h.balance(t, h.sender.Address).Equal(decimal.RequireFromString(senderBalance)))
	recs, err := h.ledger.ListRecords(context.Background(), h.sender.Address)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, 1, h.ledger.Accounts(), "recipient must not be bootstrapped on failure")
}

func TestExecuteTransferSuccess(t *testing.T) {
	h := newHarness(t)
	h.fund(t, h.sender.Address, "1.0")

	require.NoError(t, h.engine.ExecuteTransfer(context.Background(), h.request(t, "0.3", "0")))

	assert.Equal(t, "0.7", h.balance(t, h.sender.Address).String())
	assert.Equal(t, "0.3", h.balance(t, recipientAddr).String())

	sent, err := h.ledger.ListRecords(context.Background(), h.sender.Address)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, entity.RecordSent, sent[0].Type)
	assert.Equal(t, recipientAddr, sent[0].Recipient)

	received, err := h.ledger.ListRecords(context.Background(), recipientAddr)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, entity.RecordReceived, received[0].Type)
	assert.Equal(t, h.sender.Address, received[0].Sender)
	assert.Equal(t, sent[0].Timestamp, received[0].Timestamp)
	assert.NotEqual(t, sent[0].ID, received[0].ID)

	assert.Zero(t, h.oracle.calls.Load(), "crypto-only transfers do not re-quote")
}

func TestExecuteTransferLowercaseAddresses(t *testing.T) {
	h := newHarness(t)
	h.fund(t, h.sender.Address, "1")
	req := h.request(t, "0.5", "0")
	req.Sender = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
	req.Recipient = "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"

	require.NoError(t, h.engine.ExecuteTransfer(context.Background(), req))
	assert.Equal(t, "0.5", h.balance(t, recipientAddr).String())
}

func TestExecuteTransferBootstrapsRecipientOnce(t *testing.T) {
	h := newHarness(t)
	h.fund(t, h.sender.Address, "1")
	ctx := context.Background()

	require.NoError(t, h.engine.ExecuteTransfer(ctx, h.request(t, "0.2", "0")))
	h.clock.Advance(time.Second)
	require.NoError(t, h.engine.ExecuteTransfer(ctx, h.request(t, "0.3", "0")))

	assert.Equal(t, "0.5", h.balance(t, recipientAddr).String())
	assert.Equal(t, "0.5", h.balance(t, h.sender.Address).String())
	recs, err := h.ledger.ListRecords(ctx, recipientAddr)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestExecuteTransferRejections(t *testing.T) {
	tests := []struct {
		name   string
		fund   string
		mutate func(t *testing.T, h *harness, req *domain.TransferRequest)
		amount string
		want   error
	}{
		{
			name:   "insufficient funds",
			fund:   "0.05",
			amount: "0.1",
			want:   wrapErrors.ErrInsufficientFunds,
		},
		{
			name:   "unknown sender",
			amount: "0.1",
			want:   wrapErrors.ErrUnknownSender,
		},
		{
			name:   "signed by another key",
			fund:   "1",
			amount: "0.1",
			mutate: func(t *testing.T, h *harness, req *domain.TransferRequest) {
				other, err := h.keys.DeriveWallet(otherMnemonic)
				require.NoError(t, err)
				sig, err := h.keys.Sign(other.PrivateKey, req.Message)
				require.NoError(t, err)
				req.Signature = domain.EncodeHex(sig)
			},
			want: wrapErrors.ErrInvalidSignature,
		},
		{
			name:   "garbage signature",
			fund:   "1",
			amount: "0.1",
			mutate: func(_ *testing.T, _ *harness, req *domain.TransferRequest) { req.Signature = "0x1234" },
			want:   wrapErrors.ErrInvalidSignature,
		},
		{
			name:   "expired",
			fund:   "1",
			amount: "0.1",
			mutate: func(_ *testing.T, h *harness, _ *domain.TransferRequest) { h.clock.Advance(31 * time.Second) },
			want:   wrapErrors.ErrExpired,
		},
		{
			name:   "expired beats bad signature",
			fund:   "1",
			amount: "0.1",
			mutate: func(_ *testing.T, h *harness, req *domain.TransferRequest) {
				h.clock.Advance(time.Minute)
				req.Signature = "0x00"
			},
			want: wrapErrors.ErrExpired,
		},
		{
			name:   "amount differs from message",
			fund:   "1",
			amount: "0.1",
			mutate: func(_ *testing.T, _ *harness, req *domain.TransferRequest) {
				req.CryptoAmount = decimal.RequireFromString("0.9")
			},
			want: wrapErrors.ErrMessageMismatch,
		},
		{
			name:   "recipient differs from message",
			fund:   "1",
			amount: "0.1",
			mutate: func(_ *testing.T, _ *harness, req *domain.TransferRequest) {
				req.Recipient = "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
			},
			want: wrapErrors.ErrMessageMismatch,
		},
		{
			name:   "malformed message",
			fund:   "1",
			amount: "0.1",
			mutate: func(_ *testing.T, _ *harness, req *domain.TransferRequest) { req.Message = "pay bob please" },
			want:   wrapErrors.ErrMalformedMessage,
		},
		{
			name:   "self transfer",
			fund:   "1",
			amount: "0.1",
			mutate: func(_ *testing.T, h *harness, req *domain.TransferRequest) { req.Recipient = h.sender.Address },
			want:   wrapErrors.ErrInvalidRequest,
		},
		{
			name:   "zero amount",
			fund:   "1",
			amount: "0.1",
			mutate: func(_ *testing.T, _ *harness, req *domain.TransferRequest) { req.CryptoAmount = decimal.Zero },
			want:   wrapErrors.ErrInvalidRequest,
		},
		{
			name:   "bad address",
			fund:   "1",
			amount: "0.1",
			mutate: func(_ *testing.T, _ *harness, req *domain.TransferRequest) { req.Recipient = "bob" },
			want:   wrapErrors.ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.fund != "" {
				h.fund(t, h.sender.Address, tt.fund)
			}
			req := h.request(t, tt.amount, "0")
			if tt.mutate != nil {
				tt.mutate(t, h, &req)
			}

			err := h.engine.ExecuteTransfer(context.Background(), req)
			assert.ErrorIs(t, err, tt.want)

			_, ok, _ := h.ledger.GetBalance(context.Background(), recipientAddr)
			assert.False(t, ok, "recipient must not be bootstrapped on failure")
			if tt.fund != "" {
				assertUnchanged(t, h, tt.fund)
			}
		})
	}
}

func TestExecuteTransferExpiryBoundary(t *testing.T) {
	h := newHarness(t)
	h.fund(t, h.sender.Address, "1")
	req := h.request(t, "0.1", "0")

	h.clock.Advance(30 * time.Second)
	assert.NoError(t, h.engine.ExecuteTransfer(context.Background(), req))
}

func TestExecuteTransferPriceDrift(t *testing.T) {
	tests := []struct {
		name   string
		quoted string
		want   error
	}{
		{"within tolerance", "0.1005", nil},
		{"at tolerance", "0.101", nil},
		{"too far up", "0.11", wrapErrors.ErrPriceDrift},
		{"too far down", "0.098", wrapErrors.ErrPriceDrift},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.fund(t, h.sender.Address, "1")
			h.oracle.amount = decimal.RequireFromString(tt.quoted)

			err := h.engine.ExecuteTransfer(context.Background(), h.request(t, "0.10", "200"))
			assert.Equal(t, int32(1), h.oracle.calls.Load())
			if tt.want == nil {
				assert.NoError(t, err)
				assert.Equal(t, "0.9", h.balance(t, h.sender.Address).String())
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assertUnchanged(t, h, "1")
		})
	}
}

func TestExecuteTransferQuoteUnavailable(t *testing.T) {
	h := newHarness(t)
	h.fund(t, h.sender.Address, "1")
	h.oracle.err = errors.New("503 from upstream")

	err := h.engine.ExecuteTransfer(context.Background(), h.request(t, "0.1", "200"))
	assert.ErrorIs(t, err, wrapErrors.ErrQuoteUnavailable)
	assertUnchanged(t, h, "1")
}

func TestExecuteTransferQuoteTimeout(t *testing.T) {
	h := newHarness(t, withQuoteTimeout(20*time.Millisecond))
	h.fund(t, h.sender.Address, "1")
	h.oracle.amount = decimal.RequireFromString("0.1")
	h.oracle.delay = time.Second

	start := time.Now()
	err := h.engine.ExecuteTransfer(context.Background(), h.request(t, "0.1", "200"))
	assert.ErrorIs(t, err, wrapErrors.ErrQuoteUnavailable)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assertUnchanged(t, h, "1")
}

func TestExecuteTransferReplay(t *testing.T) {
	h := newHarness(t)
	h.fund(t, h.sender.Address, "1")
	req := h.request(t, "0.25", "0")
	ctx := context.Background()

	require.NoError(t, h.engine.ExecuteTransfer(ctx, req))
	err := h.engine.ExecuteTransfer(ctx, req)
	assert.ErrorIs(t, err, wrapErrors.ErrReplayed)

	assert.Equal(t, "0.75", h.balance(t, h.sender.Address).String())
	assert.Equal(t, "0.25", h.balance(t, recipientAddr).String())
}

func TestExecuteTransferLedgerFailureIsAtomic(t *testing.T) {
	base := repository.NewMemoryLedger()
	flaky := &flakyLedger{MemoryLedger: base}
	flaky.fail.Store(true)

	h := newHarness(t, withLedger(flaky))
	h.ledger = base
	h.fund(t, h.sender.Address, "1")
	req := h.request(t, "0.4", "0")
	ctx := context.Background()

	err := h.engine.ExecuteTransfer(ctx, req)
	require.Error(t, err)
	assert.Equal(t, wrapErrors.CodeLedger, wrapErrors.CodeOf(err))
	assertUnchanged(t, h, "1")

	// the failed attempt released its replay reservation
	flaky.fail.Store(false)
	require.NoError(t, h.engine.ExecuteTransfer(ctx, req))
	assert.Equal(t, "0.6", h.balance(t, h.sender.Address).String())
}

func TestExecuteTransferConcurrentConservation(t *testing.T) {
	h := newHarness(t)
	h.fund(t, h.sender.Address, "1")
	third := "0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"
	h.fund(t, third, "5")
	total := h.ledger.Total()

	const n = 20
	reqs := make([]domain.TransferRequest, n)
	for i := range reqs {
		reqs[i] = h.request(t, fmt.Sprintf("0.%02d", i+1), "0")
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied = decimal.Zero
	)
	for _, req := range reqs {
		wg.Add(1)
		go func(req domain.TransferRequest) {
			defer wg.Done()
			err := h.engine.ExecuteTransfer(context.Background(), req)
			if err == nil {
				mu.Lock()
				applied = applied.Add(req.CryptoAmount)
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, wrapErrors.ErrInsufficientFunds)
		}(req)
	}
	wg.Wait()

	senderBalance := h.balance(t, h.sender.Address)
	assert.False(t, senderBalance.IsNegative())
	assert.True(t, senderBalance.Equal(decimal.NewFromInt(1).Sub(applied)), "sender %s applied %s", senderBalance, applied)
	assert.True(t, h.balance(t, recipientAddr).Equal(applied))
	assert.True(t, h.ledger.Total().Equal(total))
	assert.Equal(t, "5", h.balance(t, third).String())
}
