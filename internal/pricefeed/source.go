// Package pricefeed loads daily BTC/USD price history from files, the
// blockchain.info charts API or PostgreSQL.
package pricefeed

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/rpgo/btc-annuity/internal/domain"
	"github.com/rpgo/btc-annuity/pkg/dateutil"
)

// ErrNoPrices is returned when a source yields no usable price points.
var ErrNoPrices = errors.New("no usable price points")

// Source supplies ascending daily price history.
type Source interface {
	Load(ctx context.Context) ([]domain.PricePoint, error)
}

// Normalize sorts points by date, drops non-positive prices and keeps the
// last point seen for each day.
func Normalize(points []domain.PricePoint) []domain.PricePoint {
	byDay := make(map[dateutil.Date]int, len(points))
	out := make([]domain.PricePoint, 0, len(points))
	for _, p := range points {
		if p.Date.IsZero() || !p.Price.IsPositive() {
			continue
		}
		if i, ok := byDay[p.Date]; ok {
			out[i] = p
			continue
		}
		byDay[p.Date] = len(out)
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// CachedSource memoizes another source for a fixed duration.
type CachedSource struct {
	src Source
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	points  []domain.PricePoint
	fetched time.Time
}

// DefaultCacheTTL is how long fetched history is reused.
const DefaultCacheTTL = 12 * time.Hour

// NewCachedSource wraps src. A zero ttl uses DefaultCacheTTL.
func NewCachedSource(src Source, ttl time.Duration) *CachedSource {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedSource{src: src, ttl: ttl, now: time.Now}
}

func (c *CachedSource) Load(ctx context.Context) ([]domain.PricePoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.points != nil && c.now().Sub(c.fetched) < c.ttl {
		return c.points, nil
	}
	points, err := c.src.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.points, c.fetched = points, c.now()
	return points, nil
}
