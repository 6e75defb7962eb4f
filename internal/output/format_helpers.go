package output

import (
	"strconv"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	amount "github.com/rpgo/btc-annuity/pkg/decimal"
)

// FormatCurrency formats a decimal as USD with thousands separators, rounded
// to the cent.
func FormatCurrency(d decimal.Decimal) string {
	cur := money.GetCurrency(money.USD)
	factor := decimal.New(1, int32(cur.Fraction))
	cents := d.Round(int32(cur.Fraction)).Mul(factor).IntPart()
	return money.New(cents, money.USD).Display()
}

// FormatPercentage formats a decimal as a percentage with 2 decimals.
func FormatPercentage(d decimal.Decimal) string { return d.StringFixed(2) + "%" }

// FormatBTC renders a BTC amount with satoshi precision.
func FormatBTC(d decimal.Decimal) string { return amount.FormatBTC(d) }

func intToString(i int) string { return strconv.Itoa(i) }

func boolToString(b bool) string { return strconv.FormatBool(b) }
