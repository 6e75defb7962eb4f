package output

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/rpgo/btc-annuity/internal/domain"
)

// jsonReport is the serialized shape of a Report. Paths are dropped; the
// envelope carries the projection.
type jsonReport struct {
	GeneratedAt time.Time                  `json:"generated_at"`
	Annuities   []domain.Annuity           `json:"annuities"`
	Scenarios   domain.ScenarioResults     `json:"scenarios"`
	Envelope    []domain.EnvelopePoint     `json:"envelope,omitempty"`
	MonteCarlo  *domain.MonteCarloMetadata `json:"monte_carlo,omitempty"`
}

// JSONFormatter serializes the report as pretty-printed JSON.
type JSONFormatter struct{}

func (j JSONFormatter) Name() string { return "json" }

func (j JSONFormatter) Format(r *Report) ([]byte, error) {
	out := jsonReport{
		GeneratedAt: r.GeneratedAt,
		Annuities:   r.Annuities,
		Scenarios:   r.Results,
	}
	if r.MonteCarlo != nil {
		out.Envelope = r.MonteCarlo.Envelope
		md := r.MonteCarlo.Metadata
		out.MonteCarlo = &md
	}
	return json.MarshalIndent(out, "", "  ")
}
