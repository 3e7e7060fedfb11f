package utils

/*
BIP-44 path: m / purpose' / coin_type' / account' / change / address_index
  purpose   44'  BIP-44
  coin_type 60'  Ethereum
  account   0'
  change    0    external chain
  index     0    first address
*/
const (
	ETH_DERIVATION_PATH_PREFIX = "m/44'/60'/0'/0/"
	ETH_DEFAULT_PATH           = ETH_DERIVATION_PATH_PREFIX + "0"
)

const (
	CryptoSymbol = "ETH"
	FiatSymbol   = "USD"

	// ETHDecimals is the wei exponent.
	ETHDecimals = 18
	// USDCDecimals is the exponent of the fiat stablecoin the oracle quotes against.
	USDCDecimals = 6
	// QuotePrecision is how many decimals an oracle quote keeps.
	QuotePrecision = 4
)
