package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/linlinbupt123-crypto/mock_wallet/entity"
	wrapErrors "github.com/linlinbupt123-crypto/mock_wallet/errors"
)

var DefaultPriceDriftTolerance = decimal.RequireFromString("0.01")

const (
	DefaultQuoteTimeout = 5 * time.Second

	// replayTTLSlack keeps a consumed key alive a little past the message expiry.
	replayTTLSlack = 5 * time.Second
)

// TransferRequest carries everything a redemption needs. Message is the exact signed text.
type TransferRequest struct {
	Sender       string
	Recipient    string
	CryptoAmount decimal.Decimal
	FiatAmount   decimal.Decimal
	Signature    string
	Message      string
}

type TransferConfig struct {
	PriceDriftTolerance decimal.Decimal
	QuoteTimeout        time.Duration
}

type TransferEngineDeps struct {
	Ledger     Ledger
	Authorizer *Authorizer
	Oracle     RateOracle
	// Replay is optional; nil disables single-use enforcement.
	Replay ReplayGuard
	Locker *AddressLocker
	Logger *slog.Logger
	Now    func() time.Time
}

// TransferEngine validates a signed approval and applies it to the ledger.
type TransferEngine struct {
	cfg    TransferConfig
	ledger Ledger
	auth   *Authorizer
	oracle RateOracle
	replay ReplayGuard
	locker *AddressLocker
	logger *slog.Logger
	now    func() time.Time
}

func NewTransferEngine(cfg TransferConfig, deps TransferEngineDeps) *TransferEngine {
	if !cfg.PriceDriftTolerance.IsPositive() {
		cfg.PriceDriftTolerance = DefaultPriceDriftTolerance
	}
	if cfg.QuoteTimeout <= 0 {
		cfg.QuoteTimeout = DefaultQuoteTimeout
	}
	e := &TransferEngine{
		cfg:    cfg,
		ledger: deps.Ledger,
		auth:   deps.Authorizer,
		oracle: deps.Oracle,
		replay: deps.Replay,
		locker: deps.Locker,
		logger: deps.Logger,
		now:    deps.Now,
	}
	if e.locker == nil {
		e.locker = NewAddressLocker()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// ExecuteTransfer runs the redemption checks in order and applies the transfer.
// The first failing check wins; the ledger is untouched on every failure.
func (e *TransferEngine) ExecuteTransfer(ctx context.Context, req TransferRequest) error {
	err := e.execute(ctx, req)
	if err != nil {
		code, _ := wrapErrors.Public(err)
		e.logger.Warn("transfer rejected",
			slog.String("code", string(code)),
			slog.String("sender", req.Sender),
			slog.String("recipient", req.Recipient),
			slog.String("amount", req.CryptoAmount.String()),
			slog.Any("error", err))
		return err
	}
	e.logger.Info("transfer applied",
		slog.String("sender", req.Sender),
		slog.String("recipient", req.Recipient),
		slog.String("amount", req.CryptoAmount.String()))
	return nil
}

func (e *TransferEngine) execute(ctx context.Context, req TransferRequest) error {
	const op = "execute transfer"

	sender, recipient, err := normalizeParties(req.Sender, req.Recipient)
	if err != nil {
		return err
	}
	if !req.CryptoAmount.IsPositive() {
		return wrapErrors.New(wrapErrors.CodeInvalidRequest, op, "amount must be positive")
	}
	if req.FiatAmount.IsNegative() {
		return wrapErrors.New(wrapErrors.CodeInvalidRequest, op, "fiat amount must not be negative")
	}

	// 1. message format, expiry, intent
	expiry, err := ParseExpiry(req.Message)
	if err != nil {
		return err
	}
	now := e.now()
	if now.Unix() > expiry {
		return wrapErrors.New(wrapErrors.CodeExpired, op, fmt.Sprintf("expired at %d, now %d", expiry, now.Unix()))
	}
	if err := matchIntent(req, sender, recipient); err != nil {
		return err
	}

	// 2. signature
	if !e.auth.Verify(req.Message, req.Signature, sender) {
		return wrapErrors.New(wrapErrors.CodeInvalidSignature, op, "signature does not recover to sender")
	}

	// 3. funds, read outside the lock; re-checked inside the apply window
	if err := checkFunds(ctx, e.ledger, sender, req.CryptoAmount); err != nil {
		return err
	}

	// 4. price drift for fiat-denominated transfers
	if req.FiatAmount.IsPositive() {
		if err := e.checkDrift(ctx, req.FiatAmount, req.CryptoAmount); err != nil {
			return err
		}
	}

	// 5-6. bootstrap recipient and apply, not cancellable from here on
	return e.apply(context.WithoutCancel(ctx), req, sender, recipient, expiry)
}

func (e *TransferEngine) checkDrift(ctx context.Context, fiat, agreed decimal.Decimal) error {
	const op = "price drift check"

	qctx, cancel := context.WithTimeout(ctx, e.cfg.QuoteTimeout)
	defer cancel()
	quote, err := e.oracle.Quote(qctx, fiat)
	if err != nil {
		return wrapErrors.WrapWithCode(wrapErrors.CodeQuoteUnavailable, op, err)
	}
	if !quote.CryptoAmount.IsPositive() {
		return wrapErrors.New(wrapErrors.CodeQuoteUnavailable, op, "oracle returned a non-positive amount")
	}
	drift := quote.CryptoAmount.Sub(agreed).Abs().Div(agreed)
	if drift.GreaterThan(e.cfg.PriceDriftTolerance) {
		return wrapErrors.New(wrapErrors.CodePriceDrift, op,
			fmt.Sprintf("quoted %s, agreed %s, drift %s", quote.CryptoAmount, agreed, drift.StringFixed(4)))
	}
	return nil
}

func (e *TransferEngine) apply(ctx context.Context, req TransferRequest, sender, recipient string, expiry int64) error {
	const op = "apply transfer"

	unlock := e.locker.Lock(sender, recipient)
	defer unlock()

	var replayKey string
	if e.replay != nil {
		replayKey = crypto.Keccak256Hash([]byte(req.Message)).Hex()
		ttl := time.Unix(expiry, 0).Sub(e.now()) + replayTTLSlack
		if ttl < time.Second {
			ttl = time.Second
		}
		ok, err := e.replay.Reserve(ctx, replayKey, ttl)
		if err != nil {
			return wrapErrors.WrapWithCode(wrapErrors.CodeInternal, op, err)
		}
		if !ok {
			return wrapErrors.New(wrapErrors.CodeReplayed, op, "message already redeemed")
		}
	}

	ts := e.now().UTC()
	err := e.ledger.WithinTx(ctx, func(ctx context.Context, tx LedgerTx) error {
		senderBalance, err := checkFundsTx(ctx, tx, sender, req.CryptoAmount)
		if err != nil {
			return err
		}
		if _, err := tx.EnsureAccount(ctx, recipient, decimal.Zero); err != nil {
			return err
		}
		recipientBalance, _, err := tx.GetBalance(ctx, recipient)
		if err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, sender, senderBalance.Sub(req.CryptoAmount)); err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, recipient, recipientBalance.Add(req.CryptoAmount)); err != nil {
			return err
		}
		for _, rec := range transferRecords(sender, recipient, req.CryptoAmount, ts) {
			if err := tx.AppendRecord(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if replayKey != "" {
			if relErr := e.replay.Release(ctx, replayKey); relErr != nil {
				e.logger.Error("release replay reservation", slog.Any("error", relErr))
			}
		}
		var appErr *wrapErrors.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return wrapErrors.WrapWithCode(wrapErrors.CodeLedger, op, err)
	}
	return nil
}

func checkFunds(ctx context.Context, tx LedgerTx, sender string, amount decimal.Decimal) error {
	_, err := checkFundsTx(ctx, tx, sender, amount)
	return err
}

func checkFundsTx(ctx context.Context, tx LedgerTx, sender string, amount decimal.Decimal) (decimal.Decimal, error) {
	const op = "check funds"
	balance, ok, err := tx.GetBalance(ctx, sender)
	if err != nil {
		return decimal.Zero, wrapErrors.WrapWithCode(wrapErrors.CodeLedger, op, err)
	}
	if !ok {
		return decimal.Zero, wrapErrors.New(wrapErrors.CodeUnknownSender, op, "sender has no ledger entry")
	}
	if balance.LessThan(amount) {
		return decimal.Zero, wrapErrors.New(wrapErrors.CodeInsufficientFunds, op,
			fmt.Sprintf("balance %s below %s", balance, amount))
	}
	return balance, nil
}

func transferRecords(sender, recipient string, amount decimal.Decimal, ts time.Time) []entity.TransactionRecord {
	return []entity.TransactionRecord{
		{
			ID:        uuid.NewString(),
			Address:   sender,
			Sender:    sender,
			Recipient: recipient,
			Amount:    amount,
			Type:      entity.RecordSent,
			Timestamp: ts,
		},
		{
			ID:        uuid.NewString(),
			Address:   recipient,
			Sender:    sender,
			Recipient: recipient,
			Amount:    amount,
			Type:      entity.RecordReceived,
			Timestamp: ts,
		},
	}
}

// matchIntent rejects requests that differ from what the signed text describes.
func matchIntent(req TransferRequest, sender, recipient string) error {
	const op = "match intent"
	msg, err := ParseMessage(req.Message)
	if err != nil {
		return err
	}
	switch {
	case !strings.EqualFold(msg.Sender, sender):
		return wrapErrors.New(wrapErrors.CodeMessageMismatch, op, "sender differs from message")
	case !strings.EqualFold(msg.Recipient, recipient):
		return wrapErrors.New(wrapErrors.CodeMessageMismatch, op, "recipient differs from message")
	case !msg.CryptoAmount.Equal(req.CryptoAmount):
		return wrapErrors.New(wrapErrors.CodeMessageMismatch, op, "amount differs from message")
	case !msg.FiatAmount.Equal(req.FiatAmount):
		return wrapErrors.New(wrapErrors.CodeMessageMismatch, op, "fiat amount differs from message")
	}
	return nil
}

// NormalizeAddress validates a hex address and returns its checksummed form.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", wrapErrors.New(wrapErrors.CodeInvalidRequest, "normalize address", fmt.Sprintf("invalid address %q", address))
	}
	return common.HexToAddress(address).Hex(), nil
}

func normalizeParties(sender, recipient string) (string, string, error) {
	s, err := NormalizeAddress(sender)
	if err != nil {
		return "", "", err
	}
	r, err := NormalizeAddress(recipient)
	if err != nil {
		return "", "", err
	}
	if s == r {
		return "", "", wrapErrors.New(wrapErrors.CodeInvalidRequest, "normalize parties", "sender and recipient are the same")
	}
	return s, r, nil
}
