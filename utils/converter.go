package utils

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

func WeiToETH(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -ETHDecimals)
}

func ETHToWei(eth string) (*big.Int, error) {
	d, err := decimal.NewFromString(eth)
	if err != nil {
		return nil, err
	}
	return d.Shift(ETHDecimals).Truncate(0).BigInt(), nil
}

// FiatToUnits converts a USD amount to integer stablecoin units, truncating.
func FiatToUnits(usd decimal.Decimal) string {
	return usd.Shift(USDCDecimals).Truncate(0).String()
}

// ParseWei parses a base-10 wei string.
func ParseWei(s string) (*big.Int, error) {
	wei, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid wei amount %q", s)
	}
	if wei.Sign() < 0 {
		return nil, fmt.Errorf("negative wei amount %q", s)
	}
	return wei, nil
}
