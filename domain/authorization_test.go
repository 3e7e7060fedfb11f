package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wrapErrors "github.com/linlinbupt123-crypto/mock_wallet/errors"
)

const (
	alice = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	bob   = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

func fixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func TestBuildMessage(t *testing.T) {
	a := NewAuthorizer(newSeedPrefixKeys(t), 30*time.Second, fixedClock(1_700_000_000))

	msg := a.BuildMessage(alice, bob, decimal.RequireFromString("0.3"), decimal.Zero)
	assert.Equal(t, "Transfer 0.3 ETH to "+bob+" from "+alice+" | Expires: 1700000030", msg.Text)
	assert.Equal(t, int64(1_700_000_030), msg.ExpiresAt)

	msg = a.BuildMessage(alice, bob, decimal.RequireFromString("0.1"), decimal.NewFromInt(200))
	assert.Equal(t, "Transfer 0.1 ETH ($200 USD) to "+bob+" from "+alice+" | Expires: 1700000030", msg.Text)
	assert.True(t, msg.FiatAmount.Equal(decimal.NewFromInt(200)))
}

func TestAuthorizerDefaults(t *testing.T) {
	a := NewAuthorizer(newSeedPrefixKeys(t), 0, nil)
	assert.Equal(t, DefaultValidityWindow, a.Window())
}

func TestParseExpiry(t *testing.T) {
	got, err := ParseExpiry("Transfer 0.3 ETH to " + bob + " from " + alice + " | Expires: 1700000030")
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_030), got)

	for _, bad := range []string{
		"",
		"Transfer 0.3 ETH to someone",
		"Transfer 0.3 ETH | Expires: soon",
		"Transfer 0.3 ETH | Expires: ",
		"Transfer 0.3 ETH | Expires: 12.5",
	} {
		_, err := ParseExpiry(bad)
		assert.ErrorIs(t, err, wrapErrors.ErrMalformedMessage, bad)
	}
}

func TestIsExpiredBoundary(t *testing.T) {
	msg := "Transfer 0.3 ETH to " + bob + " from " + alice + " | Expires: 1700000030"

	expired, err := IsExpired(msg, time.Unix(1_700_000_029, 0))
	require.NoError(t, err)
	assert.False(t, expired)

	expired, err = IsExpired(msg, time.Unix(1_700_000_030, 0))
	require.NoError(t, err)
	assert.False(t, expired, "the expiry second itself is still valid")

	expired, err = IsExpired(msg, time.Unix(1_700_000_031, 0))
	require.NoError(t, err)
	assert.True(t, expired)

	_, err = IsExpired("no suffix", time.Now())
	assert.ErrorIs(t, err, wrapErrors.ErrMalformedMessage)
}

func TestParseMessage(t *testing.T) {
	a := NewAuthorizer(newSeedPrefixKeys(t), 30*time.Second, fixedClock(1_700_000_000))
	built := a.BuildMessage(alice, bob, decimal.RequireFromString("0.1234"), decimal.RequireFromString("250.5"))

	parsed, err := ParseMessage(built.Text)
	require.NoError(t, err)
	assert.Equal(t, alice, parsed.Sender)
	assert.Equal(t, bob, parsed.Recipient)
	assert.True(t, parsed.CryptoAmount.Equal(built.CryptoAmount))
	assert.True(t, parsed.FiatAmount.Equal(built.FiatAmount))
	assert.Equal(t, built.ExpiresAt, parsed.ExpiresAt)
	assert.Equal(t, built.Text, parsed.Text)

	built = a.BuildMessage(alice, bob, decimal.RequireFromString("2"), decimal.Zero)
	parsed, err = ParseMessage(built.Text)
	require.NoError(t, err)
	assert.True(t, parsed.FiatAmount.IsZero())

	for _, bad := range []string{
		"Send 0.3 ETH to " + bob + " from " + alice + " | Expires: 1",
		"Transfer abc ETH to " + bob + " from " + alice + " | Expires: 1",
		"Transfer 0.3 BTC to " + bob + " from " + alice + " | Expires: 1",
		"Transfer 0.3 ETH to " + bob + " | Expires: 1",
	} {
		_, err := ParseMessage(bad)
		assert.ErrorIs(t, err, wrapErrors.ErrMalformedMessage, bad)
	}
}

func TestAuthorizerVerify(t *testing.T) {
	keys := newSeedPrefixKeys(t)
	w, err := keys.DeriveWallet(hardhatMnemonic)
	require.NoError(t, err)

	a := NewAuthorizer(keys, 30*time.Second, fixedClock(1_700_000_000))
	msg := a.BuildMessage(w.Address, bob, decimal.RequireFromString("0.3"), decimal.Zero)
	sig, err := keys.Sign(w.PrivateKey, msg.Text)
	require.NoError(t, err)

	assert.True(t, a.Verify(msg.Text, EncodeHex(sig), w.Address))
	assert.False(t, a.Verify(msg.Text+" ", EncodeHex(sig), w.Address))
	assert.False(t, a.Verify(msg.Text, EncodeHex(sig), bob))
}
