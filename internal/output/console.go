package output

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rpgo/btc-annuity/internal/domain"
)

// ConsoleFormatter renders a human-readable per-scenario summary.
type ConsoleFormatter struct{}

func (c ConsoleFormatter) Name() string { return "console" }

func (c ConsoleFormatter) Format(r *Report) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "BTC ANNUITY SCENARIO SUMMARY")
	fmt.Fprintln(&buf, "============================")
	fmt.Fprintf(&buf, "Contracts: %d\n", len(r.Annuities))
	for _, a := range r.Annuities {
		principal := FormatBTC(a.Principal)
		if a.PrincipalCurrency == domain.CurrencyUSD {
			principal = FormatCurrency(a.Principal)
		}
		fmt.Fprintf(&buf, "  %s: %s at %s for %d months from %s\n",
			a.ID, principal, FormatPercentage(a.AmortizationRate.Shift(2)), a.TermMonths, a.CreatedAt)
	}
	if mc := r.MonteCarlo; mc != nil {
		md := mc.Metadata
		fmt.Fprintf(&buf, "Projection: %d paths over %d days from %s at %s\n",
			md.NumberOfPaths, md.ProjectionDays, md.LastHistoricalDate, FormatCurrency(md.LastHistoricalPrice))
	}

	for _, name := range domain.Scenarios {
		res, ok := r.Results[name]
		if !ok {
			continue
		}
		fmt.Fprintln(&buf)
		fmt.Fprintf(&buf, "%s:\n", name)

		var inflowBTC, paidUSD decimal.Decimal
		var inflows, payments int
		for _, cf := range res.CashFlows {
			switch cf.Type {
			case domain.FlowInflow:
				inflows++
				inflowBTC = inflowBTC.Add(cf.BTCAmount)
			case domain.FlowOutflow:
				payments++
				paidUSD = paidUSD.Add(cf.USDAmount)
			}
		}
		fmt.Fprintf(&buf, "  Inflows:  %d (%s)\n", inflows, FormatBTC(inflowBTC))
		fmt.Fprintf(&buf, "  Payments: %d totalling %s\n", payments, FormatCurrency(paidUSD))

		if n := len(res.Valuations); n > 0 {
			last := res.Valuations[n-1]
			fmt.Fprintf(&buf, "  Balance on %s: %s / %s\n", last.Date, FormatBTC(last.BTCValue), FormatCurrency(last.USDValue))
		}

		if len(res.MonthlyIncome) > 0 {
			fmt.Fprintln(&buf, "  Monthly income:")
			for _, mi := range res.MonthlyIncome {
				suffix := ""
				if mi.IsProjection {
					suffix = " (projected)"
				}
				fmt.Fprintf(&buf, "    %s  %s%s\n", mi.Date, FormatCurrency(mi.USDAmount), suffix)
			}
		}
	}
	return buf.Bytes(), nil
}
