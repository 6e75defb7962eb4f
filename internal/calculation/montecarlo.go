package calculation

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/rpgo/btc-annuity/internal/domain"
	amount "github.com/rpgo/btc-annuity/pkg/decimal"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultNumberOfPaths  = 100
	DefaultProjectionDays = 365
	DefaultHistoryYears   = 13
	DefaultVisiblePaths   = 33
	defaultConcurrency    = 10

	// MaxNumberOfPaths and MaxProjectionDays bound a single generation.
	MaxNumberOfPaths  = 10000
	MaxProjectionDays = 3650
)

var (
	// ErrInsufficientData is returned when fewer than two usable prices remain.
	ErrInsufficientData = errors.New("insufficient historical price data")
	// ErrDegenerateStatistics is returned when the fitted mean or variance is not finite.
	ErrDegenerateStatistics = errors.New("degenerate log-return statistics")
)

// MonteCarloConfig holds configuration for path generation
type MonteCarloConfig struct {
	NumberOfPaths  int
	ProjectionDays int
	// HistoryYears limits the fit window to the trailing years before the
	// last observation. Zero uses all history.
	HistoryYears int
	Seed         int64
	Concurrency  int
}

// DefaultMonteCarloConfig returns the defaults used by the CLI and server.
func DefaultMonteCarloConfig() MonteCarloConfig {
	return MonteCarloConfig{
		NumberOfPaths:  DefaultNumberOfPaths,
		ProjectionDays: DefaultProjectionDays,
		HistoryYears:   DefaultHistoryYears,
		Concurrency:    defaultConcurrency,
	}
}

// PathGenerator simulates geometric Brownian motion price paths fitted to
// historical daily log returns.
type PathGenerator struct {
	HistoryYears int
	Seed         int64
	Concurrency  int
	logger       Logger
}

// NewPathGenerator creates a generator. A zero seed draws one from seedFunc.
func NewPathGenerator(config MonteCarloConfig) *PathGenerator {
	if config.Seed == 0 {
		config.Seed = seedFunc()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaultConcurrency
	}
	return &PathGenerator{
		HistoryYears: config.HistoryYears,
		Seed:         config.Seed,
		Concurrency:  config.Concurrency,
		logger:       NopLogger{},
	}
}

// SetLogger sets the logger for the generator.
func (g *PathGenerator) SetLogger(l Logger) { g.logger = loggerOrNop(l) }

// GeneratePaths produces numberOfPaths daily paths of projectionDays prices
// starting the day after the last historical observation, together with the
// best/worst/average envelope across all paths.
func (g *PathGenerator) GeneratePaths(history []domain.PricePoint, numberOfPaths, projectionDays int) (*domain.MonteCarloResult, error) {
	if numberOfPaths <= 0 || numberOfPaths > MaxNumberOfPaths {
		return nil, fmt.Errorf("number of paths must be between 1 and %d, got %d", MaxNumberOfPaths, numberOfPaths)
	}
	if projectionDays <= 0 || projectionDays > MaxProjectionDays {
		return nil, fmt.Errorf("projection days must be between 1 and %d, got %d", MaxProjectionDays, projectionDays)
	}

	valid, dataRange := g.prepareHistory(history)
	if len(valid) < 2 {
		return nil, fmt.Errorf("%w: %d usable prices", ErrInsufficientData, len(valid))
	}

	fit, err := FitLogReturns(valid)
	if err != nil {
		return nil, err
	}

	if dropped := dataRange.TotalDataPoints - dataRange.ValidDataPoints; dropped > 0 {
		g.logger.Warnf("excluded %d non-positive price(s) from the log-return fit", dropped)
	}
	if fit.SkippedPairs > 0 {
		g.logger.Warnf("skipped %d return pair(s) with a non-positive price", fit.SkippedPairs)
	}

	last := valid[len(valid)-1]
	lastPrice := last.Price.InexactFloat64()
	g.logger.Debugf("GBM fit on %d returns: mu=%.6f sigma=%.6f, last %s @ %s",
		fit.Returns, fit.Mean, fit.StdDev, last.Date, last.Price)

	paths := make([]domain.MonteCarloPath, numberOfPaths)
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, g.Concurrency)

	for i := 0; i < numberOfPaths; i++ {
		wg.Add(1)
		go func(pathIndex int) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			rng := rand.New(rand.NewSource(g.Seed + int64(pathIndex)))
			var resets int
			paths[pathIndex], resets = simulatePath(rng, last, lastPrice, fit, projectionDays)
			if resets > 0 {
				g.logger.Warnf("path %d: reset %d invalid price(s) to the last historical price %s", pathIndex, resets, last.Price)
			}
		}(i)
	}
	wg.Wait()

	envelope := ReduceEnvelope(paths)
	return &domain.MonteCarloResult{
		Paths:    paths,
		Envelope: envelope,
		Metadata: domain.MonteCarloMetadata{
			GeneratedAt:         nowFunc(),
			NumberOfPaths:       numberOfPaths,
			ProjectionDays:      projectionDays,
			LastHistoricalDate:  last.Date,
			LastHistoricalPrice: last.Price,
			Fit:                 fit,
			DataRange:           dataRange,
			YAxisDomain:         envelopeDomain(envelope),
		},
	}, nil
}

// prepareHistory drops non-positive prices and applies the history window.
func (g *PathGenerator) prepareHistory(history []domain.PricePoint) ([]domain.PricePoint, domain.DataRange) {
	positive := make([]domain.PricePoint, 0, len(history))
	for _, p := range history {
		if p.Price.IsPositive() && !p.Date.IsZero() {
			positive = append(positive, p)
		}
	}

	dr := domain.DataRange{
		TotalDataPoints: len(history),
		ValidDataPoints: len(positive),
		YearsOfHistory:  g.HistoryYears,
	}
	if len(positive) == 0 {
		return positive, dr
	}

	windowed := positive
	if g.HistoryYears > 0 {
		cutoff := positive[len(positive)-1].Date.AddMonths(-12 * g.HistoryYears)
		windowed = positive[:0:0]
		for _, p := range positive {
			if !p.Date.Before(cutoff) {
				windowed = append(windowed, p)
			}
		}
	}

	dr.FilteredDataPoints = len(windowed)
	if len(windowed) > 0 {
		dr.StartDate, dr.StartPrice = windowed[0].Date, windowed[0].Price
		dr.EndDate, dr.EndPrice = windowed[len(windowed)-1].Date, windowed[len(windowed)-1].Price
	}
	return windowed, dr
}

// FitLogReturns estimates the mean and sample standard deviation of daily
// log returns. Pairs with a non-positive price on either side are skipped.
func FitLogReturns(prices []domain.PricePoint) (domain.FitStatistics, error) {
	returns := make([]float64, 0, len(prices))
	skipped := 0
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1].Price, prices[i].Price
		if !prev.IsPositive() || !cur.IsPositive() {
			skipped++
			continue
		}
		returns = append(returns, math.Log(cur.InexactFloat64()/prev.InexactFloat64()))
	}

	fit := domain.FitStatistics{Returns: len(returns), SkippedPairs: skipped}
	if len(returns) == 0 {
		return fit, fmt.Errorf("%w: no log returns", ErrDegenerateStatistics)
	}

	mean, variance := stat.MeanVariance(returns, nil)
	if !isFinite(mean) || !isFinite(variance) {
		return fit, fmt.Errorf("%w: mean=%v variance=%v", ErrDegenerateStatistics, mean, variance)
	}
	fit.Mean = mean
	fit.StdDev = math.Sqrt(variance)
	return fit, nil
}

// simulatePath steps one path forward with a daily log return of
// mean + stdDev*z. Any non-positive or non-finite price is reset to the last
// historical price; the number of resets is returned.
func simulatePath(rng *rand.Rand, last domain.PricePoint, lastPrice float64, fit domain.FitStatistics, days int) (domain.MonteCarloPath, int) {
	path := make(domain.MonteCarloPath, days)
	price := lastPrice
	resets := 0
	for day := 1; day <= days; day++ {
		z := boxMuller(1-rng.Float64(), rng.Float64())
		price *= math.Exp(fit.Mean + fit.StdDev*z)
		if !isFinite(price) || price <= 0 {
			price = lastPrice
			resets++
		}
		p, err := amount.FromFloat(price)
		if err != nil {
			p = last.Price
		}
		path[day-1] = domain.PricePoint{Date: last.Date.AddDays(day), Price: p}
	}
	return path, resets
}

// boxMuller maps two uniforms to a standard normal draw. u1 must be in (0,1].
func boxMuller(u1, u2 float64) float64 {
	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// ReduceEnvelope computes per-day best (max), worst (min) and average (mean)
// across paths. Dates come from the first path; all paths share them.
func ReduceEnvelope(paths []domain.MonteCarloPath) []domain.EnvelopePoint {
	if len(paths) == 0 {
		return nil
	}
	days := len(paths[0])
	count := decimal.NewFromInt(int64(len(paths)))
	envelope := make([]domain.EnvelopePoint, days)
	for d := 0; d < days; d++ {
		best := paths[0][d].Price
		worst := best
		sum := decimal.Zero
		for _, path := range paths {
			p := path[d].Price
			best = amount.Max(best, p)
			worst = amount.Min(worst, p)
			sum = sum.Add(p)
		}
		avg := amount.Min(best, amount.Max(worst, sum.Div(count)))
		envelope[d] = domain.EnvelopePoint{
			Date:         paths[0][d].Date,
			BestPrice:    best,
			WorstPrice:   worst,
			AveragePrice: avg,
		}
	}
	return envelope
}

// SamplePaths keeps roughly visible evenly spaced paths for display.
func SamplePaths(paths []domain.MonteCarloPath, visible int) []domain.MonteCarloPath {
	if visible <= 0 || len(paths) <= visible {
		return paths
	}
	step := (len(paths) + visible - 1) / visible
	sampled := make([]domain.MonteCarloPath, 0, visible)
	for i := 0; i < len(paths); i += step {
		sampled = append(sampled, paths[i])
	}
	return sampled
}

var (
	domainLowPad  = decimal.RequireFromString("0.9")
	domainHighPad = decimal.RequireFromString("1.1")
)

func envelopeDomain(envelope []domain.EnvelopePoint) domain.PriceDomain {
	if len(envelope) == 0 {
		return domain.PriceDomain{}
	}
	lo, hi := envelope[0].WorstPrice, envelope[0].BestPrice
	for _, ep := range envelope[1:] {
		lo = amount.Min(lo, ep.WorstPrice)
		hi = amount.Max(hi, ep.BestPrice)
	}
	return domain.PriceDomain{Min: lo.Mul(domainLowPad), Max: hi.Mul(domainHighPad)}
}

func isFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
