package domain

import (
	"time"

	"github.com/rpgo/btc-annuity/pkg/dateutil"
	"github.com/shopspring/decimal"
)

// MonteCarloPath is one simulated daily price trajectory.
type MonteCarloPath []PricePoint

// EnvelopePoint is the cross-path reduction for one projected day.
type EnvelopePoint struct {
	Date         dateutil.Date   `json:"date"`
	BestPrice    decimal.Decimal `json:"best_price"`
	WorstPrice   decimal.Decimal `json:"worst_price"`
	AveragePrice decimal.Decimal `json:"average_price"`
}

// Prices returns the per-scenario prices of the point.
func (ep EnvelopePoint) Prices() ScenarioPrices {
	return ScenarioPrices{Average: ep.AveragePrice, Best: ep.BestPrice, Worst: ep.WorstPrice}
}

// FitStatistics describes the log-return distribution fitted to history.
type FitStatistics struct {
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Returns      int     `json:"returns"`
	SkippedPairs int     `json:"skipped_pairs"`
}

// DataRange summarizes the history the generator was fit on.
type DataRange struct {
	TotalDataPoints    int             `json:"total_data_points"`
	ValidDataPoints    int             `json:"valid_data_points"`
	FilteredDataPoints int             `json:"filtered_data_points"`
	StartDate          dateutil.Date   `json:"start_date"`
	StartPrice         decimal.Decimal `json:"start_price"`
	EndDate            dateutil.Date   `json:"end_date"`
	EndPrice           decimal.Decimal `json:"end_price"`
	YearsOfHistory     int             `json:"years_of_history"`
}

// PriceDomain is a padded min/max range for charting.
type PriceDomain struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// MonteCarloMetadata describes how a MonteCarloResult was generated.
type MonteCarloMetadata struct {
	GeneratedAt         time.Time       `json:"generated_at"`
	NumberOfPaths       int             `json:"number_of_paths"`
	ProjectionDays      int             `json:"projection_days"`
	LastHistoricalDate  dateutil.Date   `json:"last_historical_date"`
	LastHistoricalPrice decimal.Decimal `json:"last_historical_price"`
	Fit                 FitStatistics   `json:"fit"`
	DataRange           DataRange       `json:"data_range"`
	YAxisDomain         PriceDomain     `json:"y_axis_domain"`
}

// MonteCarloResult is the output of the path generator.
type MonteCarloResult struct {
	Paths    []MonteCarloPath   `json:"paths,omitempty"`
	Envelope []EnvelopePoint    `json:"envelope"`
	Metadata MonteCarloMetadata `json:"metadata"`
}
