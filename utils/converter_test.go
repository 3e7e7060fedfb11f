package utils

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeiToETH(t *testing.T) {
	wei, ok := new(big.Int).SetString("100000000000000000", 10)
	require.True(t, ok)
	assert.True(t, WeiToETH(wei).Equal(decimal.RequireFromString("0.1")))
}

func TestETHToWei(t *testing.T) {
	wei, err := ETHToWei("0.3")
	require.NoError(t, err)
	assert.Equal(t, "300000000000000000", wei.String())

	_, err = ETHToWei("abc")
	assert.Error(t, err)
}

func TestFiatToUnits(t *testing.T) {
	assert.Equal(t, "200000000", FiatToUnits(decimal.RequireFromString("200")))
	assert.Equal(t, "1234567", FiatToUnits(decimal.RequireFromString("1.2345678")))
}

func TestParseWei(t *testing.T) {
	_, err := ParseWei("-1")
	assert.Error(t, err)
	_, err = ParseWei("1e18")
	assert.Error(t, err)
	wei, err := ParseWei("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), wei.Int64())
}
