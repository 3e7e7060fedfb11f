package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/linlinbupt123-crypto/mock_wallet/domain"
	"github.com/linlinbupt123-crypto/mock_wallet/entity"
	"github.com/linlinbupt123-crypto/mock_wallet/utils"
)

const (
	DefaultSkipURL = "https://api.skip.build"
	msgsDirectPath = "/v2/fungible/msgs_direct"

	usdcMainnet     = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	ethNative       = "ethereum-native"
	mainnetChainID  = "1"
	quoteAddress    = "0x742d35Cc6634C0532925a3b8D4C9db96c728b0B4"
	slippagePercent = "1"
)

type msgsDirectRequest struct {
	SourceAssetDenom    string            `json:"source_asset_denom"`
	SourceAssetChainID  string            `json:"source_asset_chain_id"`
	DestAssetDenom      string            `json:"dest_asset_denom"`
	DestAssetChainID    string            `json:"dest_asset_chain_id"`
	AmountIn            json.Number       `json:"amount_in"`
	ChainIDsToAddresses map[string]string `json:"chain_ids_to_addresses"`
	SlippageTolerance   string            `json:"slippage_tolerance_percent"`
	SmartSwapOptions    smartSwapOptions  `json:"smart_swap_options"`
	AllowUnsafe         bool              `json:"allow_unsafe"`
}

type smartSwapOptions struct {
	EVMSwaps bool `json:"evm_swaps"`
}

type msgsDirectResponse struct {
	Route struct {
		AmountOut string `json:"amount_out"`
	} `json:"route"`
}

// SkipOracle quotes USD -> ETH through the Skip routing API (USDC in, wei out).
type SkipOracle struct {
	baseURL    string
	httpClient *http.Client
}

func NewSkipOracle(baseURL string, timeout time.Duration) *SkipOracle {
	if baseURL == "" {
		baseURL = DefaultSkipURL
	}
	return &SkipOracle{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (o *SkipOracle) Quote(ctx context.Context, fiatAmount decimal.Decimal) (entity.Quote, error) {
	if !fiatAmount.IsPositive() {
		return entity.Quote{}, fmt.Errorf("fiat amount must be positive")
	}
	body, err := json.Marshal(msgsDirectRequest{
		SourceAssetDenom:    usdcMainnet,
		SourceAssetChainID:  mainnetChainID,
		DestAssetDenom:      ethNative,
		DestAssetChainID:    mainnetChainID,
		AmountIn:            json.Number(utils.FiatToUnits(fiatAmount)),
		ChainIDsToAddresses: map[string]string{mainnetChainID: quoteAddress},
		SlippageTolerance:   slippagePercent,
		SmartSwapOptions:    smartSwapOptions{EVMSwaps: true},
	})
	if err != nil {
		return entity.Quote{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+msgsDirectPath, bytes.NewReader(body))
	if err != nil {
		return entity.Quote{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return entity.Quote{}, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return entity.Quote{}, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return entity.Quote{}, fmt.Errorf("unexpected API response: status %d", resp.StatusCode)
	}

	var out msgsDirectResponse
	if err := json.Unmarshal(respBytes, &out); err != nil {
		return entity.Quote{}, fmt.Errorf("failed to parse response: %w", err)
	}
	wei, err := utils.ParseWei(out.Route.AmountOut)
	if err != nil {
		return entity.Quote{}, err
	}
	return entity.Quote{
		CryptoAmount: utils.WeiToETH(wei).Round(utils.QuotePrecision),
		FiatAmount:   fiatAmount,
	}, nil
}

var _ domain.RateOracle = (*SkipOracle)(nil)
