package sale

import (
	"math/big"

	"tokensale/native/oracle"
)

// pow10 returns 10^n as a big integer.
func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// NativeToUSD converts a native-currency amount (in its base units) into a
// USD value expressed with stablecoin precision, using the oracle quote.
// The result truncates toward zero.
func NativeToUSD(amount *big.Int, quote oracle.Quote, nativeDecimals, stableDecimals uint8) *big.Int {
	if amount == nil || quote.Price == nil {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(amount, quote.Price)
	// The exponent goes negative when the stablecoin carries more precision
	// than the quote and native units combined; that case scales up instead.
	exp := int(quote.Decimals) + int(nativeDecimals) - int(stableDecimals)
	if exp < 0 {
		return num.Mul(num, pow10(-exp))
	}
	return num.Quo(num, pow10(exp))
}

// TokensForUSD converts a stablecoin-precision USD value into sale-token base
// units at the given per-token price. The division floors, which must be
// preserved exactly: a buyer never receives a fractional base unit rounded up.
func TokensForUSD(usdValue, pricePerToken *big.Int, tokenDecimals uint8) *big.Int {
	if usdValue == nil || pricePerToken == nil || pricePerToken.Sign() <= 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(usdValue, pow10(int(tokenDecimals)))
	return num.Quo(num, pricePerToken)
}
