// Package rate converts between the annual percentage rates users enter and
// the per-second WAD rates the orderbook contract quotes.
package rate

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	ethmath "github.com/ethereum/go-ethereum/common/math"

	"github.com/parzival1821/CredBook/internal/domain"
)

// SecondsPerYear uses a 365.25 day year.
const SecondsPerYear = 31_557_600

// MarketOrderAPR is the rate ceiling, in percent, applied to market orders.
const MarketOrderAPR = "1000"

// percentYear is SecondsPerYear * 100: dividing an 18-decimal fixed-point APR
// percentage by it yields the per-second rate already scaled by 1e18.
var percentYear = big.NewInt(SecondsPerYear * 100)

var (
	wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	// centsYear turns a per-second WAD rate into APR hundredths of a percent
	// once divided by wad.
	centsYear = big.NewInt(SecondsPerYear * 100 * 100)
)

// APRToPerSecondWAD parses a decimal APR percentage such as "4.25" and
// returns the equivalent per-second rate scaled by 1e18, truncated.
func APRToPerSecondWAD(aprPercent string) (*big.Int, error) {
	apr, err := sdkmath.LegacyNewDecFromStr(aprPercent)
	if err != nil {
		return nil, fmt.Errorf("%w: parse apr %q: %v", domain.ErrInvalidRate, aprPercent, err)
	}
	return APRDecToPerSecondWAD(apr)
}

// APRDecToPerSecondWAD is APRToPerSecondWAD for an already parsed decimal.
func APRDecToPerSecondWAD(apr sdkmath.LegacyDec) (*big.Int, error) {
	if apr.IsNil() {
		return nil, fmt.Errorf("%w: apr is nil", domain.ErrInvalidRate)
	}
	if apr.IsNegative() {
		return nil, fmt.Errorf("%w: apr %s is negative", domain.ErrInvalidRate, apr)
	}
	// apr.BigInt() is apr * 1e18, so the quotient is (apr/100/year) * 1e18.
	r := new(big.Int).Quo(apr.BigInt(), percentYear)
	if r.Cmp(ethmath.MaxBig256) > 0 {
		return nil, fmt.Errorf("%w: apr %s exceeds the uint256 rate range", domain.ErrInvalidRate, apr)
	}
	return r, nil
}

// MarketOrderRate returns the per-second WAD ceiling used for market orders.
func MarketOrderRate() *big.Int {
	r, err := APRToPerSecondWAD(MarketOrderAPR)
	if err != nil {
		panic(err)
	}
	return r
}

// PerSecondWADToAPRDec converts a per-second WAD rate to an APR percentage
// with full 18-decimal precision. A nil rate converts to zero.
func PerSecondWADToAPRDec(rateWad *big.Int) sdkmath.LegacyDec {
	if rateWad == nil || rateWad.Sign() == 0 {
		return sdkmath.LegacyZeroDec()
	}
	return sdkmath.LegacyNewDecFromBigIntWithPrec(rateWad, sdkmath.LegacyPrecision).
		MulInt64(SecondsPerYear * 100)
}

// PerSecondWADToAPR converts a per-second WAD rate to an APR percentage
// rounded half up to two decimals for display, e.g. "4.25". Zero, negative
// and nil rates render as "0.00". Any magnitude is accepted.
func PerSecondWADToAPR(rateWad *big.Int) string {
	if rateWad == nil || rateWad.Sign() <= 0 {
		return "0.00"
	}
	cents := new(big.Int).Mul(rateWad, centsYear)
	cents.Add(cents, new(big.Int).Rsh(wad, 1))
	cents.Quo(cents, wad)
	whole, frac := new(big.Int).QuoRem(cents, big.NewInt(100), new(big.Int))
	return fmt.Sprintf("%s.%02d", whole, frac.Int64())
}
