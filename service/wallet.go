package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/linlinbupt123-crypto/mock_wallet/domain"
	"github.com/linlinbupt123-crypto/mock_wallet/entity"
	wrapErrors "github.com/linlinbupt123-crypto/mock_wallet/errors"
	"github.com/linlinbupt123-crypto/mock_wallet/notify"
	"github.com/linlinbupt123-crypto/mock_wallet/utils"
)

// SeedRange bounds the balance a freshly generated wallet starts with, [Min, Max).
type SeedRange struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

type WalletService struct {
	keys     *domain.KeyManager
	auth     *domain.Authorizer
	engine   *domain.TransferEngine
	ledger   domain.Ledger
	oracle   domain.RateOracle
	notifier notify.Notifier
	seed     SeedRange
	logger   *slog.Logger
}

func NewWalletService(
	keys *domain.KeyManager,
	auth *domain.Authorizer,
	engine *domain.TransferEngine,
	ledger domain.Ledger,
	oracle domain.RateOracle,
	notifier notify.Notifier,
	seed SeedRange,
	logger *slog.Logger,
) *WalletService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WalletService{
		keys:     keys,
		auth:     auth,
		engine:   engine,
		ledger:   ledger,
		oracle:   oracle,
		notifier: notifier,
		seed:     seed,
		logger:   logger,
	}
}

// CreateWallet 生成助记词 + 地址，并写入初始余额
func (s *WalletService) CreateWallet(ctx context.Context) (string, entity.Account, error) {
	const op = "create wallet"

	mnemonic, err := s.keys.GenerateMnemonic()
	if err != nil {
		return "", entity.Account{}, wrapErrors.WrapWithCode(wrapErrors.CodeInternal, op, err)
	}
	wallet, err := s.keys.DeriveWallet(mnemonic)
	if err != nil {
		return "", entity.Account{}, err
	}
	clearKey(wallet.PrivateKey)

	initial, err := randomBalance(s.seed)
	if err != nil {
		return "", entity.Account{}, wrapErrors.WrapWithCode(wrapErrors.CodeInternal, op, err)
	}
	if _, err := s.ledger.EnsureAccount(ctx, wallet.Address, initial); err != nil {
		return "", entity.Account{}, wrapErrors.WrapWithCode(wrapErrors.CodeLedger, op, err)
	}
	account, err := s.GetBalance(ctx, wallet.Address)
	if err != nil {
		return "", entity.Account{}, err
	}
	s.logger.Info("wallet created", slog.String("address", wallet.Address), slog.String("balance", account.Balance.String()))
	return mnemonic, account, nil
}

// ImportWallet 导入助记词；地址不存在时以 0 余额建账
func (s *WalletService) ImportWallet(ctx context.Context, mnemonic string) (entity.Account, error) {
	const op = "import wallet"

	wallet, err := s.keys.DeriveWallet(mnemonic)
	if err != nil {
		return entity.Account{}, err
	}
	clearKey(wallet.PrivateKey)

	created, err := s.ledger.EnsureAccount(ctx, wallet.Address, decimal.Zero)
	if err != nil {
		return entity.Account{}, wrapErrors.WrapWithCode(wrapErrors.CodeLedger, op, err)
	}
	if created {
		s.logger.Info("wallet imported", slog.String("address", wallet.Address))
	}
	return s.GetBalance(ctx, wallet.Address)
}

func (s *WalletService) GetBalance(ctx context.Context, address string) (entity.Account, error) {
	const op = "get balance"

	addr, err := domain.NormalizeAddress(address)
	if err != nil {
		return entity.Account{}, err
	}
	balance, ok, err := s.ledger.GetBalance(ctx, addr)
	if err != nil {
		return entity.Account{}, wrapErrors.WrapWithCode(wrapErrors.CodeLedger, op, err)
	}
	if !ok {
		return entity.Account{}, wrapErrors.New(wrapErrors.CodeNotFound, op, fmt.Sprintf("no ledger entry for %s", addr))
	}
	return entity.Account{Address: addr, Balance: balance}, nil
}

// History returns the records filed under address, most recent first.
func (s *WalletService) History(ctx context.Context, address string) ([]entity.TransactionRecord, error) {
	addr, err := domain.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	records, err := s.ledger.ListRecords(ctx, addr)
	if err != nil {
		return nil, wrapErrors.WrapWithCode(wrapErrors.CodeLedger, "list records", err)
	}
	if records == nil {
		records = []entity.TransactionRecord{}
	}
	return records, nil
}

// SignMessage derives the wallet behind mnemonic and signs message with it.
func (s *WalletService) SignMessage(mnemonic, message string) (string, string, error) {
	wallet, err := s.keys.DeriveWallet(mnemonic)
	if err != nil {
		return "", "", err
	}
	defer clearKey(wallet.PrivateKey)

	sig, err := s.keys.Sign(wallet.PrivateKey, message)
	if err != nil {
		return "", "", err
	}
	return wallet.Address, domain.EncodeHex(sig), nil
}

// PrepareTransfer builds the approval message for an ETH or USD denominated amount.
// USD amounts are converted through the rate oracle.
func (s *WalletService) PrepareTransfer(ctx context.Context, sender, recipient string, amount decimal.Decimal, currency string) (entity.ApprovalMessage, error) {
	const op = "prepare transfer"

	from, err := domain.NormalizeAddress(sender)
	if err != nil {
		return entity.ApprovalMessage{}, err
	}
	to, err := domain.NormalizeAddress(recipient)
	if err != nil {
		return entity.ApprovalMessage{}, err
	}
	if from == to {
		return entity.ApprovalMessage{}, wrapErrors.New(wrapErrors.CodeInvalidRequest, op, "sender and recipient are the same")
	}
	if !amount.IsPositive() {
		return entity.ApprovalMessage{}, wrapErrors.New(wrapErrors.CodeInvalidRequest, op, "amount must be positive")
	}

	var cryptoAmount, fiatAmount decimal.Decimal
	switch strings.ToUpper(strings.TrimSpace(currency)) {
	case utils.CryptoSymbol:
		cryptoAmount = amount
	case utils.FiatSymbol:
		quote, err := s.oracle.Quote(ctx, amount)
		if err != nil {
			return entity.ApprovalMessage{}, wrapErrors.WrapWithCode(wrapErrors.CodeQuoteUnavailable, op, err)
		}
		if !quote.CryptoAmount.IsPositive() {
			return entity.ApprovalMessage{}, wrapErrors.New(wrapErrors.CodeQuoteUnavailable, op, "oracle returned a non-positive amount")
		}
		cryptoAmount = quote.CryptoAmount
		fiatAmount = amount
	default:
		return entity.ApprovalMessage{}, wrapErrors.New(wrapErrors.CodeInvalidRequest, op, fmt.Sprintf("unsupported currency %q", currency))
	}

	return s.auth.BuildMessage(from, to, cryptoAmount, fiatAmount), nil
}

// SubmitTransfer redeems a signed approval and notifies the sender on success.
func (s *WalletService) SubmitTransfer(ctx context.Context, req domain.TransferRequest) error {
	if err := s.engine.ExecuteTransfer(ctx, req); err != nil {
		return err
	}
	if s.notifier != nil {
		msg := fmt.Sprintf("Sent %s %s to %s", req.CryptoAmount.String(), utils.CryptoSymbol, req.Recipient)
		if err := s.notifier.Notify(ctx, req.Sender, msg); err != nil {
			s.logger.Warn("notification failed", slog.String("address", req.Sender), slog.Any("error", err))
		}
	}
	return nil
}

// randomBalance draws a 2-decimal amount uniformly from [r.Min, r.Max).
func randomBalance(r SeedRange) (decimal.Decimal, error) {
	lo := r.Min.Shift(2).Ceil().IntPart()
	hi := r.Max.Shift(2).Ceil().IntPart()
	if hi <= lo {
		return decimal.New(lo, -2), nil
	}
	n, err := rand.Int(rand.Reader, big.NewInt(hi-lo))
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.New(lo+n.Int64(), -2), nil
}

func clearKey(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
