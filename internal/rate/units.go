package rate

import (
	"fmt"
	"math/big"
	"strings"

	sdkmath "cosmossdk.io/math"

	"github.com/parzival1821/CredBook/internal/domain"
)

// MaxDecimals is the largest token precision the fixed-point helpers accept.
const MaxDecimals = sdkmath.LegacyPrecision

// ParseUnits converts a human readable token amount such as "1.5" into base
// units for a token with the given number of decimals. Amounts with more
// fractional digits than the token supports are rejected.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	if int(decimals) > MaxDecimals {
		return nil, fmt.Errorf("rate: token decimals %d exceed %d", decimals, MaxDecimals)
	}
	dec, err := sdkmath.LegacyNewDecFromStr(strings.TrimSpace(amount))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %q: %v", domain.ErrInvalidAmount, amount, err)
	}
	if dec.IsNegative() {
		return nil, fmt.Errorf("%w: %s is negative", domain.ErrInvalidAmount, amount)
	}
	scale := pow10(MaxDecimals - int(decimals))
	units, rem := new(big.Int).QuoRem(dec.BigInt(), scale, new(big.Int))
	if rem.Sign() != 0 {
		return nil, fmt.Errorf("%w: %s has more than %d decimal places", domain.ErrInvalidAmount, amount, decimals)
	}
	return units, nil
}

// FormatUnits renders base units as a decimal string without trailing
// zeros, e.g. 1500000 with 6 decimals renders as "1.5".
func FormatUnits(units *big.Int, decimals uint8) string {
	if units == nil {
		return "0"
	}
	if int(decimals) > MaxDecimals {
		return formatWide(units, decimals)
	}
	s := sdkmath.LegacyNewDecFromBigIntWithPrec(units, int64(decimals)).String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}

// formatWide handles precisions beyond what LegacyDec carries, such as
// 36-decimal oracle prices.
func formatWide(units *big.Int, decimals uint8) string {
	neg := units.Sign() < 0
	whole, frac := new(big.Int).QuoRem(new(big.Int).Abs(units), pow10(int(decimals)), new(big.Int))
	s := whole.String()
	if frac.Sign() != 0 {
		digits := fmt.Sprintf("%0*s", int(decimals), frac.String())
		s += "." + strings.TrimRight(digits, "0")
	}
	if neg {
		s = "-" + s
	}
	return s
}

// ScaleUnits rescales an amount between two decimal precisions, truncating
// when precision is lost.
func ScaleUnits(units *big.Int, from, to uint8) *big.Int {
	if units == nil {
		return new(big.Int)
	}
	switch {
	case from == to:
		return new(big.Int).Set(units)
	case from < to:
		return new(big.Int).Mul(units, pow10(int(to-from)))
	default:
		return new(big.Int).Quo(units, pow10(int(from-to)))
	}
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
