package calculation

import (
	"math"
	"testing"
	"time"

	"github.com/rpgo/btc-annuity/internal/domain"
	"github.com/rpgo/btc-annuity/pkg/dateutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// referencePrices is the 2024 six-month price history used across tests.
func referencePrices() []domain.PricePoint {
	return []domain.PricePoint{
		{Date: dateutil.MustParse("2024-01-01"), Price: decimal.NewFromInt(40000)},
		{Date: dateutil.MustParse("2024-02-01"), Price: decimal.NewFromInt(42000)},
		{Date: dateutil.MustParse("2024-03-01"), Price: decimal.NewFromInt(45000)},
		{Date: dateutil.MustParse("2024-04-01"), Price: decimal.NewFromInt(43000)},
		{Date: dateutil.MustParse("2024-05-01"), Price: decimal.NewFromInt(41000)},
		{Date: dateutil.MustParse("2024-06-01"), Price: decimal.NewFromInt(40000)},
	}
}

func referenceAnnuity() domain.Annuity {
	return domain.Annuity{
		ID:                "test-annuity-1",
		CreatedAt:         dateutil.MustParse("2024-01-01"),
		Principal:         decimal.NewFromInt(100000),
		PrincipalCurrency: domain.CurrencyUSD,
		AmortizationRate:  decimal.RequireFromString("0.12"),
		TermMonths:        4,
	}
}

func TestMonthlyPayment(t *testing.T) {
	tests := []struct {
		name      string
		principal decimal.Decimal
		rate      decimal.Decimal
		term      int
		expected  float64
	}{
		{"reference contract", decimal.NewFromInt(100000), decimal.RequireFromString("0.12"), 4, 25628.109391166003},
		{"zero rate divides evenly", decimal.NewFromInt(1200), decimal.Zero, 12, 100},
		{"single month", decimal.NewFromInt(1000), decimal.RequireFromString("0.12"), 1, 1010},
		{"zero term", decimal.NewFromInt(1000), decimal.RequireFromString("0.12"), 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MonthlyPayment(tt.principal, tt.rate, tt.term)
			assert.InDelta(t, tt.expected, got.InexactFloat64(), 1e-6)
		})
	}
}

func TestMonthlyPaymentAmortizesPrincipal(t *testing.T) {
	cases := []struct {
		principal float64
		rate      float64
		term      int
	}{
		{100000, 0.12, 4},
		{250000, 0.05, 360},
		{5000, 0.99, 24},
		{1, 0.0001, 600},
	}

	for _, c := range cases {
		payment := MonthlyPayment(decimal.NewFromFloat(c.principal), decimal.NewFromFloat(c.rate), c.term).InexactFloat64()
		r := c.rate / 12
		pv := 0.0
		for k := 1; k <= c.term; k++ {
			pv += payment / math.Pow(1+r, float64(k))
		}
		assert.InDelta(t, c.principal, pv, 1e-6*math.Max(1, c.principal), "P=%v R=%v N=%d", c.principal, c.rate, c.term)
	}
}

func TestDeriveInflow(t *testing.T) {
	prices := NewPriceIndex(referencePrices())

	in, ok := DeriveInflow(referenceAnnuity(), prices)
	require.True(t, ok)
	assert.Equal(t, domain.FlowInflow, in.Type)
	assert.Equal(t, "2024-01-01", in.Date.String())
	assert.True(t, in.USDAmount.Equal(decimal.NewFromInt(100000)))
	assert.True(t, in.BTCAmount.Equal(decimal.RequireFromString("2.5")))

	btc := referenceAnnuity()
	btc.Principal = decimal.NewFromInt(2)
	btc.PrincipalCurrency = domain.CurrencyBTC
	in, ok = DeriveInflow(btc, prices)
	require.True(t, ok)
	assert.True(t, in.USDAmount.Equal(decimal.NewFromInt(80000)))
	assert.True(t, in.BTCAmount.Equal(decimal.NewFromInt(2)))

	missing := referenceAnnuity()
	missing.CreatedAt = dateutil.MustParse("2024-01-15")
	_, ok = DeriveInflow(missing, prices)
	assert.False(t, ok)
}

func TestDeriveOutflowsReference(t *testing.T) {
	outflows := DeriveOutflows(referenceAnnuity(), NewPriceIndex(referencePrices()))
	require.Len(t, outflows, 4)

	expectedDates := []string{"2024-02-01", "2024-03-01", "2024-04-01", "2024-05-01"}
	expectedBTC := []float64{0.6101930807420477, 0.5695135420259112, 0.5960025439806047, 0.6250758388089269}
	for i, cf := range outflows {
		assert.Equal(t, domain.FlowOutflow, cf.Type)
		assert.Equal(t, expectedDates[i], cf.Date.String())
		assert.InDelta(t, 25628.109391166003, cf.USDAmount.InexactFloat64(), 1e-6)
		assert.InDelta(t, expectedBTC[i], cf.BTCAmount.InexactFloat64(), 1e-9)
	}
}

func TestDeriveOutflowsMissingPrice(t *testing.T) {
	prices := referencePrices()
	// drop 2024-04-01, the third payment date
	prices = append(prices[:3], prices[4:]...)

	outflows := DeriveOutflows(referenceAnnuity(), NewPriceIndex(prices))
	require.Len(t, outflows, 3)
	assert.Equal(t, "2024-05-01", outflows[2].Date.String())

	flows := DeriveCashFlows(referenceAnnuity(), NewPriceIndex(prices))
	assert.Len(t, flows, 4)
}

func TestDeriveOutflowsNoPrices(t *testing.T) {
	a := referenceAnnuity()
	a.CreatedAt = dateutil.New(2024, time.June, 1)
	// only the creation price exists
	prices := NewPriceIndex(referencePrices())

	flows := DeriveCashFlows(a, prices)
	require.Len(t, flows, 1)
	assert.Equal(t, domain.FlowInflow, flows[0].Type)
}

func TestPriceIndexIgnoresNonPositive(t *testing.T) {
	d := dateutil.New(2024, time.January, 1)
	idx := NewPriceIndex([]domain.PricePoint{{Date: d, Price: decimal.Zero}})
	_, ok := idx.Lookup(d)
	assert.False(t, ok)
}
