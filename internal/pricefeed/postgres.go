package pricefeed

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rpgo/btc-annuity/internal/domain"
	"github.com/rpgo/btc-annuity/pkg/dateutil"
)

// PostgresSource reads history from a btc_prices(date DATE, price NUMERIC)
// table. Prices are scanned as text for exact decimal precision.
type PostgresSource struct {
	pool *pgxpool.Pool
}

// NewPostgresSource creates a source on an existing pool.
func NewPostgresSource(pool *pgxpool.Pool) *PostgresSource {
	return &PostgresSource{pool: pool}
}

// ConnectPostgres opens a pool for databaseURL.
func ConnectPostgres(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return pool, nil
}

const selectPrices = `SELECT date, price::TEXT FROM btc_prices WHERE price > 0 ORDER BY date`

func (s *PostgresSource) Load(ctx context.Context) ([]domain.PricePoint, error) {
	rows, err := s.pool.Query(ctx, selectPrices)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var points []domain.PricePoint
	for rows.Next() {
		var (
			day   time.Time
			price string
		)
		if err := rows.Scan(&day, &price); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parse price %q: %w", price, err)
		}
		points = append(points, domain.PricePoint{Date: dateutil.FromTime(day), Price: p})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate prices: %w", err)
	}

	points = Normalize(points)
	if len(points) == 0 {
		return nil, ErrNoPrices
	}
	return points, nil
}

const createPrices = `CREATE TABLE IF NOT EXISTS btc_prices (
	date  DATE PRIMARY KEY,
	price NUMERIC NOT NULL
)`

// EnsureSchema creates btc_prices when it does not exist.
func (s *PostgresSource) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createPrices); err != nil {
		return fmt.Errorf("create btc_prices: %w", err)
	}
	return nil
}

// Store upserts points into btc_prices.
func (s *PostgresSource) Store(ctx context.Context, points []domain.PricePoint) error {
	for _, p := range points {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO btc_prices (date, price) VALUES ($1, $2::NUMERIC)
			 ON CONFLICT (date) DO UPDATE SET price = EXCLUDED.price`,
			p.Date.Time(), p.Price.String())
		if err != nil {
			return fmt.Errorf("store price for %s: %w", p.Date, err)
		}
	}
	return nil
}
