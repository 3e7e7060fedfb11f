package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapWithCodeNil(t *testing.T) {
	assert.NoError(t, WrapWithCode(CodeLedger, "op", nil))
}

func TestSentinelMatchesByCode(t *testing.T) {
	err := New(CodeExpired, "execute transfer", "expired at 100")
	wrapped := fmt.Errorf("handler: %w", err)

	assert.True(t, stderrors.Is(wrapped, ErrExpired))
	assert.False(t, stderrors.Is(wrapped, ErrInvalidSignature))
	assert.Equal(t, CodeExpired, CodeOf(wrapped))
}

func TestPublicHidesInternalText(t *testing.T) {
	err := WrapWithCode(CodeLedger, "mongo update", stderrors.New("connection reset by peer 10.0.0.3"))
	code, msg := Public(err)
	assert.Equal(t, CodeLedger, code)
	assert.Equal(t, "ledger unavailable", msg)
	assert.NotContains(t, msg, "10.0.0.3")

	code, msg = Public(stderrors.New("boom"))
	assert.Equal(t, CodeInternal, code)
	assert.Equal(t, "internal error", msg)
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "[PRICE_DRIFT] quote: drift 10%", New(CodePriceDrift, "quote", "drift 10%").Error())
	assert.Equal(t, "UNKNOWN_SENDER", ErrUnknownSender.Error())
}
