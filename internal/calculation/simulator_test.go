package calculation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpgo/btc-annuity/internal/domain"
	"github.com/rpgo/btc-annuity/pkg/dateutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulateReferenceScenario(t *testing.T) {
	results := Simulate(referencePrices(), []domain.Annuity{referenceAnnuity()}, nil)
	require.Len(t, results, 3)

	expectedBTC := []float64{2.5, 1.89, 1.32, 0.72, 0.10}
	expectedUSD := []float64{100000, 79371.89, 59413.20, 31144.51, 4067.81}

	for _, name := range domain.Scenarios {
		res := results[name]

		var inflows, outflows []domain.CashFlow
		for _, cf := range res.CashFlows {
			if cf.Type == domain.FlowInflow {
				inflows = append(inflows, cf)
			} else {
				outflows = append(outflows, cf)
			}
		}
		require.Len(t, inflows, 1, name)
		assert.True(t, inflows[0].BTCAmount.Equal(decimal.RequireFromString("2.5")))
		require.Len(t, outflows, 4, name)
		for _, cf := range outflows {
			assert.InDelta(t, 25628.11, cf.USDAmount.InexactFloat64(), 0.005)
		}
		require.Len(t, res.MonthlyIncome, 4)

		// first of every month plus the final tick, which is 2024-06-01
		require.Len(t, res.Valuations, 6, name)
		for i := range expectedBTC {
			v := res.Valuations[i]
			assert.InDelta(t, expectedBTC[i], v.BTCValue.Round(2).InexactFloat64(), 1e-9, "btc %d", i)
			assert.InDelta(t, expectedUSD[i], v.USDValue.Round(2).InexactFloat64(), 1e-9, "usd %d", i)
		}
		final := res.Valuations[5]
		assert.Equal(t, "2024-06-01", final.Date.String())
		assert.True(t, final.BTCValue.Equal(res.Valuations[4].BTCValue))
	}
}

func TestSimulateScenariosDivergeOnProjection(t *testing.T) {
	history := referencePrices()[:1]
	d := history[0].Date
	mc := &domain.MonteCarloResult{}
	for i := 1; i <= 70; i++ {
		mc.Envelope = append(mc.Envelope, domain.EnvelopePoint{
			Date:         d.AddDays(i),
			BestPrice:    decimal.NewFromInt(60000),
			AveragePrice: decimal.NewFromInt(40000),
			WorstPrice:   decimal.NewFromInt(20000),
		})
	}
	a := referenceAnnuity()

	results := Simulate(history, []domain.Annuity{a}, mc)

	best := results[domain.ScenarioBest]
	worst := results[domain.ScenarioWorst]
	require.NotEmpty(t, best.CashFlows)
	assert.False(t, best.CashFlows[0].IsProjection)

	var bestOut, worstOut domain.CashFlow
	for _, cf := range best.CashFlows {
		if cf.Type == domain.FlowOutflow {
			bestOut = cf
			break
		}
	}
	for _, cf := range worst.CashFlows {
		if cf.Type == domain.FlowOutflow {
			worstOut = cf
			break
		}
	}
	assert.True(t, bestOut.IsProjection)
	assert.Equal(t, "2024-02-01", bestOut.Date.String())
	assert.True(t, bestOut.USDAmount.Equal(worstOut.USDAmount))
	assert.True(t, bestOut.BTCAmount.LessThan(worstOut.BTCAmount))

	lastBest := best.Valuations[len(best.Valuations)-1]
	lastWorst := worst.Valuations[len(worst.Valuations)-1]
	assert.True(t, lastBest.BTCValue.GreaterThan(lastWorst.BTCValue))
	assert.Equal(t, d.AddDays(70), lastBest.Date)
}

func TestSimulateBalanceNeverNegative(t *testing.T) {
	start := dateutil.New(2024, time.January, 1)
	var history []domain.PricePoint
	price := decimal.NewFromInt(50000)
	for i := 0; i < 200; i++ {
		history = append(history, domain.PricePoint{Date: start.AddDays(i), Price: price})
		// crash 3% per day
		price = price.Mul(decimal.RequireFromString("0.97"))
	}
	annuities := []domain.Annuity{referenceAnnuity(), {
		ID:                "btc-contract",
		CreatedAt:         start.AddDays(10),
		Principal:         decimal.RequireFromString("0.5"),
		PrincipalCurrency: domain.CurrencyBTC,
		AmortizationRate:  decimal.RequireFromString("0.99"),
		TermMonths:        3,
	}}

	results := Simulate(history, annuities, nil)
	for _, name := range domain.Scenarios {
		for _, v := range results[name].Valuations {
			assert.False(t, v.BTCValue.IsNegative(), "%s %s", name, v.Date)
			assert.False(t, v.USDValue.IsNegative(), "%s %s", name, v.Date)
		}
	}
	// the balance is exhausted and clamped
	last := results[domain.ScenarioAverage].Valuations
	assert.True(t, last[len(last)-1].BTCValue.IsZero())
}

func TestSimulateInflowUniqueness(t *testing.T) {
	a := referenceAnnuity()
	b := referenceAnnuity()
	b.ID = "second"
	b.CreatedAt = dateutil.MustParse("2024-02-01")
	c := referenceAnnuity()
	c.ID = "unpriced"
	c.CreatedAt = dateutil.MustParse("2024-02-15")

	results := Simulate(referencePrices(), []domain.Annuity{a, b, c}, nil)
	for _, name := range domain.Scenarios {
		counts := map[string]int{}
		for _, cf := range results[name].CashFlows {
			if cf.Type == domain.FlowInflow {
				counts[cf.AnnuityID]++
				if cf.AnnuityID == "second" {
					assert.Equal(t, b.CreatedAt, cf.Date)
				}
			}
		}
		assert.Equal(t, map[string]int{"test-annuity-1": 1, "second": 1}, counts)
	}
}

func TestSimulateNoOutflowOnCreationDay(t *testing.T) {
	results := Simulate(referencePrices(), []domain.Annuity{referenceAnnuity()}, nil)
	for _, cf := range results[domain.ScenarioAverage].CashFlows {
		if cf.Type == domain.FlowOutflow {
			assert.NotEqual(t, "2024-01-01", cf.Date.String())
		}
	}
}

func TestSimulateMissingPriceSkipsPayment(t *testing.T) {
	prices := referencePrices()
	prices = append(prices[:3], prices[4:]...)

	results := Simulate(prices, []domain.Annuity{referenceAnnuity()}, nil)
	var dates []string
	for _, cf := range results[domain.ScenarioAverage].CashFlows {
		if cf.Type == domain.FlowOutflow {
			dates = append(dates, cf.Date.String())
		}
	}
	assert.Equal(t, []string{"2024-02-01", "2024-03-01", "2024-05-01"}, dates)
}

func TestSimulateValuesFirstTickOfWindow(t *testing.T) {
	start := dateutil.MustParse("2024-01-15")
	var prices []domain.PricePoint
	for i := 0; i < 60; i++ {
		prices = append(prices, domain.PricePoint{Date: start.AddDays(i), Price: decimal.NewFromInt(40000)})
	}
	a := referenceAnnuity()
	a.CreatedAt = start

	results := Simulate(prices, []domain.Annuity{a}, nil)
	var dates []string
	for _, v := range results[domain.ScenarioAverage].Valuations {
		dates = append(dates, v.Date.String())
	}
	assert.Equal(t, []string{"2024-01-15", "2024-02-01", "2024-03-01", "2024-03-14"}, dates)

	first := results[domain.ScenarioAverage].Valuations[0]
	assert.True(t, first.BTCValue.Equal(decimal.RequireFromString("2.5")), "inflow is credited before the first valuation")
}

func TestSimulateSingleTickValuedOnce(t *testing.T) {
	results := Simulate(referencePrices()[:1], []domain.Annuity{referenceAnnuity()}, nil)
	assert.Len(t, results[domain.ScenarioAverage].Valuations, 1)
}

func TestSimulateContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := NewSimulator().SimulateContext(ctx, referencePrices(), []domain.Annuity{referenceAnnuity()}, nil)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	assert.Nil(t, results)

	results, err = NewSimulator().SimulateContext(context.Background(), referencePrices(), []domain.Annuity{referenceAnnuity()}, nil)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSimulateEmptyInputs(t *testing.T) {
	results := Simulate(nil, nil, nil)
	require.Len(t, results, 3)
	for _, name := range domain.Scenarios {
		assert.Empty(t, results[name].CashFlows)
		assert.Empty(t, results[name].Valuations)
	}
}

func TestBuildTimeline(t *testing.T) {
	history := referencePrices()[:2]
	mc := &domain.MonteCarloResult{Envelope: []domain.EnvelopePoint{
		{Date: history[1].Date, BestPrice: decimal.NewFromInt(1), AveragePrice: decimal.NewFromInt(1), WorstPrice: decimal.NewFromInt(1)},
		{Date: history[1].Date.AddDays(1), BestPrice: decimal.NewFromInt(3), AveragePrice: decimal.NewFromInt(2), WorstPrice: decimal.NewFromInt(1)},
	}}

	ticks := BuildTimeline(history, mc)
	require.Len(t, ticks, 3)
	assert.False(t, ticks[1].IsProjection)
	assert.True(t, ticks[1].Prices.Best.Equal(decimal.NewFromInt(42000)))
	assert.True(t, ticks[2].IsProjection)
	assert.True(t, ticks[2].Prices.For(domain.ScenarioBest).Equal(decimal.NewFromInt(3)))
}

func TestAggregateMonthlyIncome(t *testing.T) {
	d1 := dateutil.MustParse("2024-02-01")
	d2 := dateutil.MustParse("2024-03-01")
	agg := AggregateMonthlyIncome([]domain.MonthlyIncome{
		{Date: d2, USDAmount: decimal.NewFromInt(5)},
		{Date: d1, USDAmount: decimal.NewFromInt(10)},
		{Date: d2, USDAmount: decimal.NewFromInt(7), IsProjection: true},
	})
	require.Len(t, agg, 2)
	assert.Equal(t, d1, agg[0].Date)
	assert.True(t, agg[1].USDAmount.Equal(decimal.NewFromInt(12)))
	assert.True(t, agg[1].IsProjection)
}
