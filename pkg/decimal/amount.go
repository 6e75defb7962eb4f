// Package decimal holds the small amount helpers shared by the engine on top
// of shopspring/decimal.
package decimal

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// BTCPlaces is the number of fractional digits of one satoshi.
const BTCPlaces = 8

// ErrNotFinite is returned when a float cannot be represented as a decimal.
var ErrNotFinite = errors.New("value is not a finite number")

// FromFloat converts a float64 to a decimal, rejecting NaN and infinities
// (decimal.NewFromFloat panics on those).
func FromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, ErrNotFinite
	}
	return decimal.NewFromFloat(f), nil
}

// FloorZero returns d, or zero when d is negative.
func FloorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ToBTC converts a USD amount at the given BTC/USD price.
func ToBTC(usd, price decimal.Decimal) decimal.Decimal {
	return usd.Div(price)
}

// ToUSD converts a BTC amount at the given BTC/USD price.
func ToUSD(btc, price decimal.Decimal) decimal.Decimal {
	return btc.Mul(price)
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// FormatBTC renders a BTC amount with satoshi precision.
func FormatBTC(d decimal.Decimal) string {
	return d.StringFixed(BTCPlaces) + " BTC"
}
