package domain

import (
	"github.com/rpgo/btc-annuity/pkg/dateutil"
	"github.com/shopspring/decimal"
)

// PricePoint is one daily BTC/USD close.
type PricePoint struct {
	Date  dateutil.Date   `yaml:"date" json:"date"`
	Price decimal.Decimal `yaml:"price" json:"price"`
}

// FlowType distinguishes money entering a contract from payments leaving it.
type FlowType string

const (
	FlowInflow  FlowType = "inflow"
	FlowOutflow FlowType = "outflow"
)

// CashFlow is a single inflow or outflow event of one contract.
type CashFlow struct {
	Date         dateutil.Date   `json:"date"`
	AnnuityID    string          `json:"annuity_id"`
	Type         FlowType        `json:"type"`
	USDAmount    decimal.Decimal `json:"usd_amount"`
	BTCAmount    decimal.Decimal `json:"btc_amount"`
	IsProjection bool            `json:"is_projection"`
}

// Signed returns the BTC amount with its balance effect applied
// (positive for inflows, negative for outflows).
func (cf CashFlow) Signed() decimal.Decimal {
	if cf.Type == FlowOutflow {
		return cf.BTCAmount.Neg()
	}
	return cf.BTCAmount
}

// PortfolioValuation is a snapshot of the running balance of one scenario.
type PortfolioValuation struct {
	Date         dateutil.Date   `json:"date"`
	BTCValue     decimal.Decimal `json:"btc_value"`
	USDValue     decimal.Decimal `json:"usd_value"`
	IsProjection bool            `json:"is_projection"`
}

// MonthlyIncome is the USD paid out on one payment date.
type MonthlyIncome struct {
	Date         dateutil.Date   `json:"date"`
	USDAmount    decimal.Decimal `json:"usd_amount"`
	IsProjection bool            `json:"is_projection"`
}

// ScenarioName identifies one of the parallel price tracks.
type ScenarioName string

const (
	ScenarioAverage ScenarioName = "average"
	ScenarioBest    ScenarioName = "best"
	ScenarioWorst   ScenarioName = "worst"
)

// Scenarios lists every scenario in the order results are produced.
var Scenarios = []ScenarioName{ScenarioAverage, ScenarioBest, ScenarioWorst}

// ScenarioResult holds everything derived for one scenario.
type ScenarioResult struct {
	CashFlows     []CashFlow           `json:"cash_flows"`
	Valuations    []PortfolioValuation `json:"valuations"`
	MonthlyIncome []MonthlyIncome      `json:"monthly_income"`
}

// ScenarioResults maps each scenario to its result.
type ScenarioResults map[ScenarioName]ScenarioResult

// ScenarioPrices is the price each scenario applies on a given day.
type ScenarioPrices struct {
	Average decimal.Decimal `json:"average"`
	Best    decimal.Decimal `json:"best"`
	Worst   decimal.Decimal `json:"worst"`
}

// UniformPrices returns prices where every scenario sees p.
func UniformPrices(p decimal.Decimal) ScenarioPrices {
	return ScenarioPrices{Average: p, Best: p, Worst: p}
}

// For returns the price of the named scenario.
func (sp ScenarioPrices) For(name ScenarioName) decimal.Decimal {
	switch name {
	case ScenarioBest:
		return sp.Best
	case ScenarioWorst:
		return sp.Worst
	default:
		return sp.Average
	}
}

// Tick is one day of the merged historical + projected timeline.
type Tick struct {
	Date         dateutil.Date
	IsProjection bool
	Prices       ScenarioPrices
}
