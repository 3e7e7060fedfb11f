package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/linlinbupt123-crypto/mock_wallet/entity"
	wrapErrors "github.com/linlinbupt123-crypto/mock_wallet/errors"
	"github.com/linlinbupt123-crypto/mock_wallet/utils"
)

const (
	DefaultValidityWindow = 30 * time.Second

	expirySeparator = " | Expires: "
)

// Transfer 0.3 ETH ($200 USD) to 0xabc... from 0xdef... | Expires: 1700000000
var messagePattern = regexp.MustCompile(`^Transfer (\S+) ` + utils.CryptoSymbol +
	`(?: \(\$(\S+) ` + utils.FiatSymbol + `\))? to (\S+) from (\S+)` +
	regexp.QuoteMeta(expirySeparator) + `(\d+)$`)

// Authorizer builds approval messages and checks them at redemption.
// It keeps no state between calls; everything lives in the message text.
type Authorizer struct {
	keys   *KeyManager
	window time.Duration
	now    func() time.Time
}

func NewAuthorizer(keys *KeyManager, window time.Duration, now func() time.Time) *Authorizer {
	if window <= 0 {
		window = DefaultValidityWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Authorizer{keys: keys, window: window, now: now}
}

// Window is the validity window applied by BuildMessage.
func (a *Authorizer) Window() time.Duration {
	return a.window
}

// BuildMessage renders the canonical approval text. A zero fiat amount omits the fiat clause.
func (a *Authorizer) BuildMessage(sender, recipient string, cryptoAmount, fiatAmount decimal.Decimal) entity.ApprovalMessage {
	expiresAt := a.now().Add(a.window).Unix()

	var b strings.Builder
	fmt.Fprintf(&b, "Transfer %s %s", cryptoAmount.String(), utils.CryptoSymbol)
	if fiatAmount.IsPositive() {
		fmt.Fprintf(&b, " ($%s %s)", fiatAmount.String(), utils.FiatSymbol)
	}
	fmt.Fprintf(&b, " to %s from %s%s%d", recipient, sender, expirySeparator, expiresAt)

	return entity.ApprovalMessage{
		Sender:       sender,
		Recipient:    recipient,
		CryptoAmount: cryptoAmount,
		FiatAmount:   fiatAmount,
		ExpiresAt:    expiresAt,
		Text:         b.String(),
	}
}

// ParseExpiry reads the expiry suffix of a message.
func ParseExpiry(message string) (int64, error) {
	const op = "parse expiry"
	i := strings.LastIndex(message, expirySeparator)
	if i < 0 {
		return 0, wrapErrors.New(wrapErrors.CodeMalformedMessage, op, "missing expiry suffix")
	}
	expiry, err := strconv.ParseInt(message[i+len(expirySeparator):], 10, 64)
	if err != nil {
		return 0, wrapErrors.WrapWithCode(wrapErrors.CodeMalformedMessage, op, err)
	}
	return expiry, nil
}

// IsExpired is true iff now is past the message expiry.
func IsExpired(message string, now time.Time) (bool, error) {
	expiry, err := ParseExpiry(message)
	if err != nil {
		return false, err
	}
	return now.Unix() > expiry, nil
}

// ParseMessage recovers the fields of a canonical message. Text is set to message unchanged.
func ParseMessage(message string) (entity.ApprovalMessage, error) {
	const op = "parse message"
	m := messagePattern.FindStringSubmatch(message)
	if m == nil {
		return entity.ApprovalMessage{}, wrapErrors.New(wrapErrors.CodeMalformedMessage, op, "message does not match the approval format")
	}
	cryptoAmount, err := decimal.NewFromString(m[1])
	if err != nil {
		return entity.ApprovalMessage{}, wrapErrors.WrapWithCode(wrapErrors.CodeMalformedMessage, op, err)
	}
	fiatAmount := decimal.Zero
	if m[2] != "" {
		fiatAmount, err = decimal.NewFromString(m[2])
		if err != nil {
			return entity.ApprovalMessage{}, wrapErrors.WrapWithCode(wrapErrors.CodeMalformedMessage, op, err)
		}
	}
	expiry, err := strconv.ParseInt(m[5], 10, 64)
	if err != nil {
		return entity.ApprovalMessage{}, wrapErrors.WrapWithCode(wrapErrors.CodeMalformedMessage, op, err)
	}
	return entity.ApprovalMessage{
		Sender:       m[4],
		Recipient:    m[3],
		CryptoAmount: cryptoAmount,
		FiatAmount:   fiatAmount,
		ExpiresAt:    expiry,
		Text:         message,
	}, nil
}

// Verify checks that signatureHex over message recovers to sender.
func (a *Authorizer) Verify(message, signatureHex, sender string) bool {
	return a.keys.VerifyHex(message, signatureHex, sender)
}
