package domain

import (
	"fmt"
	"strings"

	"github.com/rpgo/btc-annuity/pkg/dateutil"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Currency is the denomination a contract principal is entered in.
type Currency string

const (
	CurrencyBTC Currency = "BTC"
	CurrencyUSD Currency = "USD"
)

// Valid reports whether c is one of the supported currencies.
func (c Currency) Valid() bool { return c == CurrencyBTC || c == CurrencyUSD }

// Annuity is a contract converting a lump-sum principal into a level stream
// of monthly payments.
type Annuity struct {
	ID                string          `yaml:"id" json:"id"`
	CreatedAt         dateutil.Date   `yaml:"created_at" json:"created_at"`
	Principal         decimal.Decimal `yaml:"principal" json:"principal"`
	PrincipalCurrency Currency        `yaml:"principal_currency" json:"principal_currency"`
	AmortizationRate  decimal.Decimal `yaml:"amortization_rate" json:"amortization_rate"` // nominal annual rate in [0,1]
	TermMonths        int             `yaml:"term_months" json:"term_months"`
}

// PrincipalUSD expresses the principal in USD at the given BTC/USD price.
func (a Annuity) PrincipalUSD(price decimal.Decimal) decimal.Decimal {
	if a.PrincipalCurrency == CurrencyBTC {
		return a.Principal.Mul(price)
	}
	return a.Principal
}

// PrincipalBTC expresses the principal in BTC at the given BTC/USD price.
func (a Annuity) PrincipalBTC(price decimal.Decimal) decimal.Decimal {
	if a.PrincipalCurrency == CurrencyBTC {
		return a.Principal
	}
	return a.Principal.Div(price)
}

// MonthlyRate returns the periodic rate (annual rate / 12).
func (a Annuity) MonthlyRate() decimal.Decimal {
	return a.AmortizationRate.Div(decimal.NewFromInt(12))
}

// UnmarshalYAML accepts principal and rate as strings or numbers and
// defaults the currency to USD.
func (a *Annuity) UnmarshalYAML(value *yaml.Node) error {
	type Alias struct {
		ID                string        `yaml:"id"`
		CreatedAt         dateutil.Date `yaml:"created_at"`
		Principal         string        `yaml:"principal"`
		PrincipalCurrency string        `yaml:"principal_currency"`
		AmortizationRate  string        `yaml:"amortization_rate"`
		TermMonths        int           `yaml:"term_months"`
	}

	var aux Alias
	if err := value.Decode(&aux); err != nil {
		return err
	}

	a.ID = aux.ID
	a.CreatedAt = aux.CreatedAt
	a.TermMonths = aux.TermMonths

	a.PrincipalCurrency = Currency(strings.ToUpper(strings.TrimSpace(aux.PrincipalCurrency)))
	if a.PrincipalCurrency == "" {
		a.PrincipalCurrency = CurrencyUSD
	}

	var err error
	if a.Principal, err = parseDecimalField("principal", aux.Principal); err != nil {
		return err
	}
	if a.AmortizationRate, err = parseDecimalField("amortization_rate", aux.AmortizationRate); err != nil {
		return err
	}
	return nil
}

func parseDecimalField(name, raw string) (decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", name, raw, err)
	}
	return d, nil
}

// MonthsElapsed returns the whole months between the contract start and now.
// Contracts starting in the future have zero elapsed months, never a
// negative count.
func (a Annuity) MonthsElapsed(now dateutil.Date) int {
	elapsed := dateutil.MonthsBetween(a.CreatedAt, now)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// RemainingMonths returns the payments still due as of now, floored at zero.
func (a Annuity) RemainingMonths(now dateutil.Date) int {
	remaining := a.TermMonths - a.MonthsElapsed(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
