package calculation

import (
	"context"
	"fmt"
	"sort"

	"github.com/rpgo/btc-annuity/internal/domain"
	"github.com/rpgo/btc-annuity/pkg/dateutil"
	amount "github.com/rpgo/btc-annuity/pkg/decimal"
	"github.com/shopspring/decimal"
)

// Simulator runs the three-scenario forward scan.
type Simulator struct {
	logger Logger
}

// NewSimulator creates a simulator with a no-op logger.
func NewSimulator() *Simulator {
	return &Simulator{logger: NopLogger{}}
}

// SetLogger sets the logger for the simulator.
func (s *Simulator) SetLogger(l Logger) { s.logger = loggerOrNop(l) }

// Simulate is a convenience wrapper around a default Simulator.
func Simulate(history []domain.PricePoint, annuities []domain.Annuity, mc *domain.MonteCarloResult) domain.ScenarioResults {
	return NewSimulator().Simulate(history, annuities, mc)
}

// BuildTimeline merges historical ticks (identical prices in every scenario)
// with projected envelope ticks dated strictly after the last historical day.
func BuildTimeline(history []domain.PricePoint, mc *domain.MonteCarloResult) []domain.Tick {
	ticks := make([]domain.Tick, 0, len(history))
	var last dateutil.Date
	for _, p := range history {
		if !p.Price.IsPositive() {
			continue
		}
		ticks = append(ticks, domain.Tick{Date: p.Date, Prices: domain.UniformPrices(p.Price)})
		last = p.Date
	}
	if mc == nil {
		return ticks
	}
	for _, ep := range mc.Envelope {
		if !last.IsZero() && !ep.Date.After(last) {
			continue
		}
		ticks = append(ticks, domain.Tick{Date: ep.Date, IsProjection: true, Prices: ep.Prices()})
	}
	return ticks
}

type activeContract struct {
	annuity     domain.Annuity
	remaining   int
	lastPayment dateutil.Date
	// principal in USD as recorded by each scenario's inflow
	principalUSD map[domain.ScenarioName]decimal.Decimal
}

type scenarioState struct {
	name   domain.ScenarioName
	btc    decimal.Decimal
	usd    decimal.Decimal
	result domain.ScenarioResult
}

// Simulate scans the merged timeline once and returns cash flows,
// valuations and monthly income for every scenario. Contracts whose
// creation day has no tick are never activated.
func (s *Simulator) Simulate(history []domain.PricePoint, annuities []domain.Annuity, mc *domain.MonteCarloResult) domain.ScenarioResults {
	results, _ := s.SimulateContext(context.Background(), history, annuities, mc)
	return results
}

// SimulateContext is Simulate with cancellation. The context is checked on
// every tick; a cancelled scan returns ctx.Err() and no results.
func (s *Simulator) SimulateContext(ctx context.Context, history []domain.PricePoint, annuities []domain.Annuity, mc *domain.MonteCarloResult) (domain.ScenarioResults, error) {
	ticks := BuildTimeline(history, mc)

	byDate := make(map[dateutil.Date][]domain.Annuity)
	for _, a := range annuities {
		byDate[a.CreatedAt] = append(byDate[a.CreatedAt], a)
	}

	states := make([]*scenarioState, len(domain.Scenarios))
	for i, name := range domain.Scenarios {
		states[i] = &scenarioState{name: name, btc: decimal.Zero, usd: decimal.Zero}
	}

	var active []*activeContract
	activated := 0
	for i, tick := range ticks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("simulation stopped at %s: %w", tick.Date, err)
		}

		var created []*activeContract
		for _, a := range byDate[tick.Date] {
			ac := &activeContract{
				annuity:      a,
				remaining:    a.TermMonths,
				principalUSD: make(map[domain.ScenarioName]decimal.Decimal, len(states)),
			}
			if a.TermMonths > 0 {
				starts := dateutil.MonthStarts(a.CreatedAt, a.TermMonths)
				ac.lastPayment = starts[len(starts)-1]
			}
			for _, st := range states {
				st.activate(tick, ac)
			}
			created = append(created, ac)
		}
		activated += len(created)

		if tick.Date.IsFirstOfMonth() {
			for _, ac := range active {
				if ac.remaining <= 0 || tick.Date.After(ac.lastPayment) {
					continue
				}
				for _, st := range states {
					st.pay(tick, ac)
				}
				ac.remaining--
			}
		}

		if i == 0 || tick.Date.IsFirstOfMonth() || i == len(ticks)-1 {
			for _, st := range states {
				st.value(tick)
			}
		}

		kept := active[:0]
		for _, ac := range active {
			if ac.remaining > 0 && tick.Date.Before(ac.lastPayment) {
				kept = append(kept, ac)
			}
		}
		active = append(kept, created...)
	}

	if skipped := len(annuities) - activated; skipped > 0 {
		s.logger.Warnf("%d contract(s) have no price on their creation day and were not activated", skipped)
	}

	results := make(domain.ScenarioResults, len(states))
	for _, st := range states {
		results[st.name] = st.result
	}
	s.logger.Debugf("simulated %d ticks for %d contracts", len(ticks), len(annuities))
	return results, nil
}

func (st *scenarioState) activate(tick domain.Tick, ac *activeContract) {
	price := tick.Prices.For(st.name)
	usd := ac.annuity.PrincipalUSD(price)
	btc := ac.annuity.PrincipalBTC(price)
	ac.principalUSD[st.name] = usd

	st.btc = amount.FloorZero(st.btc.Add(btc))
	st.usd = amount.FloorZero(st.usd.Add(usd))
	st.result.CashFlows = append(st.result.CashFlows, domain.CashFlow{
		Date:         tick.Date,
		AnnuityID:    ac.annuity.ID,
		Type:         domain.FlowInflow,
		USDAmount:    usd,
		BTCAmount:    btc,
		IsProjection: tick.IsProjection,
	})
}

func (st *scenarioState) pay(tick domain.Tick, ac *activeContract) {
	price := tick.Prices.For(st.name)
	payment := MonthlyPayment(ac.principalUSD[st.name], ac.annuity.AmortizationRate, ac.annuity.TermMonths)
	btc := amount.ToBTC(payment, price)

	st.btc = amount.FloorZero(st.btc.Sub(btc))
	st.usd = amount.FloorZero(st.usd.Sub(payment))
	st.result.CashFlows = append(st.result.CashFlows, domain.CashFlow{
		Date:         tick.Date,
		AnnuityID:    ac.annuity.ID,
		Type:         domain.FlowOutflow,
		USDAmount:    payment,
		BTCAmount:    btc,
		IsProjection: tick.IsProjection,
	})
	st.result.MonthlyIncome = append(st.result.MonthlyIncome, domain.MonthlyIncome{
		Date:         tick.Date,
		USDAmount:    payment,
		IsProjection: tick.IsProjection,
	})
}

func (st *scenarioState) value(tick domain.Tick) {
	st.result.Valuations = append(st.result.Valuations, domain.PortfolioValuation{
		Date:         tick.Date,
		BTCValue:     st.btc,
		USDValue:     amount.ToUSD(st.btc, tick.Prices.For(st.name)),
		IsProjection: tick.IsProjection,
	})
}

// AggregateMonthlyIncome sums income entries that share a payment date.
func AggregateMonthlyIncome(entries []domain.MonthlyIncome) []domain.MonthlyIncome {
	byDate := make(map[dateutil.Date]int)
	var out []domain.MonthlyIncome
	for _, e := range entries {
		if i, ok := byDate[e.Date]; ok {
			out[i].USDAmount = out[i].USDAmount.Add(e.USDAmount)
			out[i].IsProjection = out[i].IsProjection || e.IsProjection
			continue
		}
		byDate[e.Date] = len(out)
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
