package calculation

import (
	"math"

	"github.com/rpgo/btc-annuity/internal/domain"
	"github.com/rpgo/btc-annuity/pkg/dateutil"
	amount "github.com/rpgo/btc-annuity/pkg/decimal"
	"github.com/shopspring/decimal"
)

// PriceIndex is an exact-day price lookup.
type PriceIndex map[dateutil.Date]decimal.Decimal

// NewPriceIndex indexes prices by day. Later points win on duplicate days.
func NewPriceIndex(prices []domain.PricePoint) PriceIndex {
	idx := make(PriceIndex, len(prices))
	for _, p := range prices {
		idx[p.Date] = p.Price
	}
	return idx
}

// Lookup returns the price recorded on d. Non-positive prices are treated
// as missing.
func (pi PriceIndex) Lookup(d dateutil.Date) (decimal.Decimal, bool) {
	p, ok := pi[d]
	if !ok || !p.IsPositive() {
		return decimal.Zero, false
	}
	return p, true
}

// MonthlyPayment returns the level monthly payment amortizing principalUSD
// at the nominal annual rate over termMonths. A zero rate divides the
// principal evenly.
func MonthlyPayment(principalUSD, annualRate decimal.Decimal, termMonths int) decimal.Decimal {
	if termMonths <= 0 {
		return decimal.Zero
	}
	n := decimal.NewFromInt(int64(termMonths))
	r := annualRate.InexactFloat64() / 12
	if r == 0 {
		return principalUSD.Div(n)
	}
	factor := r / (1 - math.Pow(1+r, -float64(termMonths)))
	f, err := amount.FromFloat(factor)
	if err != nil {
		return principalUSD.Div(n)
	}
	return principalUSD.Mul(f)
}

// DeriveInflow returns the contract's single inflow, priced on its creation
// day. ok is false when no price exists for that day.
func DeriveInflow(a domain.Annuity, prices PriceIndex) (cf domain.CashFlow, ok bool) {
	price, ok := prices.Lookup(a.CreatedAt)
	if !ok {
		return domain.CashFlow{}, false
	}
	return domain.CashFlow{
		Date:      a.CreatedAt,
		AnnuityID: a.ID,
		Type:      domain.FlowInflow,
		USDAmount: a.PrincipalUSD(price),
		BTCAmount: a.PrincipalBTC(price),
	}, true
}

// DeriveOutflows returns the contract's monthly payments on the first day of
// each of the TermMonths months after creation. Months without a price are
// skipped; a contract without a creation price has no outflows.
func DeriveOutflows(a domain.Annuity, prices PriceIndex) []domain.CashFlow {
	creationPrice, ok := prices.Lookup(a.CreatedAt)
	if !ok {
		return nil
	}
	payment := MonthlyPayment(a.PrincipalUSD(creationPrice), a.AmortizationRate, a.TermMonths)

	var outflows []domain.CashFlow
	for _, d := range dateutil.MonthStarts(a.CreatedAt, a.TermMonths) {
		price, ok := prices.Lookup(d)
		if !ok {
			continue
		}
		outflows = append(outflows, domain.CashFlow{
			Date:      d,
			AnnuityID: a.ID,
			Type:      domain.FlowOutflow,
			USDAmount: payment,
			BTCAmount: amount.ToBTC(payment, price),
		})
	}
	return outflows
}

// DeriveCashFlows returns the inflow (if priced) followed by the outflows.
func DeriveCashFlows(a domain.Annuity, prices PriceIndex) []domain.CashFlow {
	var flows []domain.CashFlow
	if in, ok := DeriveInflow(a, prices); ok {
		flows = append(flows, in)
	}
	return append(flows, DeriveOutflows(a, prices)...)
}
