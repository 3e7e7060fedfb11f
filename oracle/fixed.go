package oracle

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/linlinbupt123-crypto/mock_wallet/domain"
	"github.com/linlinbupt123-crypto/mock_wallet/entity"
	"github.com/linlinbupt123-crypto/mock_wallet/utils"
)

// FixedOracle prices ETH at a constant USD rate.
type FixedOracle struct {
	usdPerETH decimal.Decimal
}

func NewFixedOracle(usdPerETH decimal.Decimal) (*FixedOracle, error) {
	if !usdPerETH.IsPositive() {
		return nil, fmt.Errorf("fixed rate must be positive, got %s", usdPerETH)
	}
	return &FixedOracle{usdPerETH: usdPerETH}, nil
}

func (o *FixedOracle) Quote(ctx context.Context, fiatAmount decimal.Decimal) (entity.Quote, error) {
	if err := ctx.Err(); err != nil {
		return entity.Quote{}, err
	}
	if !fiatAmount.IsPositive() {
		return entity.Quote{}, fmt.Errorf("fiat amount must be positive")
	}
	return entity.Quote{
		CryptoAmount: fiatAmount.DivRound(o.usdPerETH, utils.QuotePrecision),
		FiatAmount:   fiatAmount,
	}, nil
}

var _ domain.RateOracle = (*FixedOracle)(nil)
