package recalc

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"

	"github.com/rpgo/btc-annuity/internal/domain"
	"github.com/rpgo/btc-annuity/pkg/dateutil"
)

// Input is the part of the portfolio state that determines the results.
type Input struct {
	PriceData []domain.PricePoint
	Annuities []domain.Annuity
}

type hashedPrice struct {
	Date  dateutil.Date `json:"date"`
	Price string        `json:"price"`
}

type hashedInput struct {
	PriceData  []hashedPrice    `json:"price_data"`
	Annuities  []hashedAnnuity  `json:"annuities"`
	Projection []hashedEnvelope `json:"projection,omitempty"`
}

type hashedEnvelope struct {
	Date    dateutil.Date `json:"date"`
	Best    string        `json:"best"`
	Average string        `json:"average"`
	Worst   string        `json:"worst"`
}

type hashedAnnuity struct {
	ID                string        `json:"id"`
	CreatedAt         dateutil.Date `json:"created_at"`
	Principal         string        `json:"principal"`
	PrincipalCurrency string        `json:"principal_currency"`
	AmortizationRate  string        `json:"amortization_rate"`
	TermMonths        int           `json:"term_months"`
}

// InputHash returns a stable digest of the price dates/values and every
// annuity field. Numerically equal decimals hash identically.
func InputHash(in Input) (string, error) { return ProjectedInputHash(in, nil) }

// ProjectedInputHash extends InputHash with the projection envelope. A nil
// projection hashes exactly like InputHash.
func ProjectedInputHash(in Input, mc *domain.MonteCarloResult) (string, error) {
	h := hashedInput{
		PriceData: make([]hashedPrice, len(in.PriceData)),
		Annuities: make([]hashedAnnuity, len(in.Annuities)),
	}
	for i, p := range in.PriceData {
		h.PriceData[i] = hashedPrice{Date: p.Date, Price: p.Price.String()}
	}
	for i, a := range in.Annuities {
		h.Annuities[i] = hashedAnnuity{
			ID:                a.ID,
			CreatedAt:         a.CreatedAt,
			Principal:         a.Principal.String(),
			PrincipalCurrency: string(a.PrincipalCurrency),
			AmortizationRate:  a.AmortizationRate.String(),
			TermMonths:        a.TermMonths,
		}
	}
	if mc != nil {
		h.Projection = make([]hashedEnvelope, len(mc.Envelope))
		for i, p := range mc.Envelope {
			h.Projection[i] = hashedEnvelope{
				Date:    p.Date,
				Best:    p.BestPrice.String(),
				Average: p.AveragePrice.String(),
				Worst:   p.WorstPrice.String(),
			}
		}
	}

	data, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("failed to encode calculation input: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data)), nil
}
