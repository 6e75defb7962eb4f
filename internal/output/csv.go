package output

import (
	"bytes"
	"encoding/csv"

	"github.com/rpgo/btc-annuity/internal/calculation"
	"github.com/rpgo/btc-annuity/internal/domain"
	amount "github.com/rpgo/btc-annuity/pkg/decimal"
)

// writeRows runs fn against a CSV writer and returns the flushed bytes.
func writeRows(header []string, fn func(w *csv.Writer) error) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	if err := fn(w); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// scenarioResults yields results in canonical scenario order.
func scenarioResults(r *Report, fn func(domain.ScenarioName, domain.ScenarioResult) error) error {
	for _, name := range domain.Scenarios {
		res, ok := r.Results[name]
		if !ok {
			continue
		}
		if err := fn(name, res); err != nil {
			return err
		}
	}
	return nil
}

// CashFlowCSV exports every cash flow, one row per scenario and event.
type CashFlowCSV struct{}

func (c CashFlowCSV) Name() string { return "csv" }

func (c CashFlowCSV) Format(r *Report) ([]byte, error) {
	header := []string{"Scenario", "Date", "AnnuityID", "Type", "USDAmount", "BTCAmount", "IsProjection"}
	return writeRows(header, func(w *csv.Writer) error {
		return scenarioResults(r, func(name domain.ScenarioName, res domain.ScenarioResult) error {
			for _, cf := range res.CashFlows {
				row := []string{
					string(name),
					cf.Date.String(),
					cf.AnnuityID,
					string(cf.Type),
					cf.USDAmount.StringFixed(2),
					cf.BTCAmount.StringFixed(amount.BTCPlaces),
					boolToString(cf.IsProjection),
				}
				if err := w.Write(row); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// MonthlyIncomeCSV exports USD income per payment date, summed across
// contracts.
type MonthlyIncomeCSV struct{}

func (m MonthlyIncomeCSV) Name() string { return "monthly-csv" }

func (m MonthlyIncomeCSV) Format(r *Report) ([]byte, error) {
	header := []string{"Scenario", "Date", "USDAmount", "IsProjection"}
	return writeRows(header, func(w *csv.Writer) error {
		return scenarioResults(r, func(name domain.ScenarioName, res domain.ScenarioResult) error {
			for _, mi := range calculation.AggregateMonthlyIncome(res.MonthlyIncome) {
				row := []string{string(name), mi.Date.String(), mi.USDAmount.StringFixed(2), boolToString(mi.IsProjection)}
				if err := w.Write(row); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// ValuationCSV exports the running balance snapshots.
type ValuationCSV struct{}

func (v ValuationCSV) Name() string { return "valuations-csv" }

func (v ValuationCSV) Format(r *Report) ([]byte, error) {
	header := []string{"Scenario", "Date", "BTCValue", "USDValue", "IsProjection"}
	return writeRows(header, func(w *csv.Writer) error {
		return scenarioResults(r, func(name domain.ScenarioName, res domain.ScenarioResult) error {
			for _, val := range res.Valuations {
				row := []string{
					string(name),
					val.Date.String(),
					val.BTCValue.StringFixed(amount.BTCPlaces),
					val.USDValue.StringFixed(2),
					boolToString(val.IsProjection),
				}
				if err := w.Write(row); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// EnvelopeCSV exports the Monte Carlo best/average/worst envelope. A report
// without a projection yields only the header.
type EnvelopeCSV struct{}

func (e EnvelopeCSV) Name() string { return "envelope-csv" }

func (e EnvelopeCSV) Format(r *Report) ([]byte, error) {
	header := []string{"Day", "Date", "BestPrice", "AveragePrice", "WorstPrice"}
	return writeRows(header, func(w *csv.Writer) error {
		if r.MonteCarlo == nil {
			return nil
		}
		for i, p := range r.MonteCarlo.Envelope {
			row := []string{
				intToString(i + 1),
				p.Date.String(),
				p.BestPrice.StringFixed(2),
				p.AveragePrice.StringFixed(2),
				p.WorstPrice.StringFixed(2),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}
