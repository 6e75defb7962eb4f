package config

import (
	"time"

	"github.com/rpgo/btc-annuity/internal/calculation"
	"github.com/rpgo/btc-annuity/internal/domain"
)

// Price source types.
const (
	SourceCSV        = "csv"
	SourceJSON       = "json"
	SourceBlockchain = "blockchain"
	SourcePostgres   = "postgres"
)

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Configuration is a portfolio file: the contracts plus everything needed
// to price and project them.
type Configuration struct {
	Annuities   []domain.Annuity   `yaml:"annuities"`
	PriceSource PriceSourceConfig  `yaml:"price_source"`
	MonteCarlo  MonteCarloSettings `yaml:"monte_carlo"`
	Cache       CacheSettings      `yaml:"cache"`
	Server      ServerSettings     `yaml:"server"`
}

// PriceSourceConfig selects where history is loaded from.
type PriceSourceConfig struct {
	Type        string        `yaml:"type"`
	Path        string        `yaml:"path,omitempty"`
	URL         string        `yaml:"url,omitempty"`
	DatabaseURL string        `yaml:"database_url,omitempty"`
	CacheTTL    time.Duration `yaml:"cache_ttl,omitempty"`
}

// MonteCarloSettings configures path generation. Zero values take defaults.
type MonteCarloSettings struct {
	Enabled        *bool `yaml:"enabled,omitempty"`
	NumberOfPaths  int   `yaml:"number_of_paths"`
	ProjectionDays int   `yaml:"projection_days"`
	HistoryYears   int   `yaml:"history_years"`
	VisiblePaths   int   `yaml:"visible_paths"`
	Seed           int64 `yaml:"seed,omitempty"`
}

// IsEnabled reports whether projections should be generated (default true).
func (m MonteCarloSettings) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// GeneratorConfig converts the settings for calculation.NewPathGenerator.
func (m MonteCarloSettings) GeneratorConfig() calculation.MonteCarloConfig {
	cfg := calculation.DefaultMonteCarloConfig()
	cfg.NumberOfPaths = m.NumberOfPaths
	cfg.ProjectionDays = m.ProjectionDays
	cfg.HistoryYears = m.HistoryYears
	cfg.Seed = m.Seed
	return cfg
}

// CacheSettings selects the scenario result cache backend.
type CacheSettings struct {
	Type     string        `yaml:"type"`
	RedisURL string        `yaml:"redis_url,omitempty"`
	TTL      time.Duration `yaml:"ttl,omitempty"`
}

// ServerSettings configures the HTTP server.
type ServerSettings struct {
	Addr string `yaml:"addr"`
}

// DefaultConfiguration returns a configuration with every default filled in
// and no contracts.
func DefaultConfiguration() *Configuration {
	cfg := &Configuration{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Configuration) {
	if cfg.PriceSource.Type == "" {
		cfg.PriceSource.Type = SourceBlockchain
	}
	if cfg.MonteCarlo.NumberOfPaths == 0 {
		cfg.MonteCarlo.NumberOfPaths = calculation.DefaultNumberOfPaths
	}
	if cfg.MonteCarlo.ProjectionDays == 0 {
		cfg.MonteCarlo.ProjectionDays = calculation.DefaultProjectionDays
	}
	if cfg.MonteCarlo.HistoryYears == 0 {
		cfg.MonteCarlo.HistoryYears = calculation.DefaultHistoryYears
	}
	if cfg.MonteCarlo.VisiblePaths == 0 {
		cfg.MonteCarlo.VisiblePaths = calculation.DefaultVisiblePaths
	}
	if cfg.Cache.Type == "" {
		cfg.Cache.Type = CacheMemory
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
}
