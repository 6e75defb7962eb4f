package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/rpgo/btc-annuity/internal/calculation"
	"github.com/rpgo/btc-annuity/internal/domain"
	"github.com/rpgo/btc-annuity/pkg/dateutil"
)

// InputParser handles parsing of portfolio configuration files
type InputParser struct {
	// Getenv looks up environment overrides; defaults to os.Getenv.
	Getenv func(string) string
}

// NewInputParser creates a new input parser
func NewInputParser() *InputParser {
	return &InputParser{Getenv: os.Getenv}
}

// LoadFromFile loads a portfolio from a YAML (or JSON) file. Relative
// price file paths are resolved against the file's directory.
func (ip *InputParser) LoadFromFile(filename string) (*Configuration, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	config, err := ip.Parse(data)
	if err != nil {
		return nil, err
	}
	if p := config.PriceSource.Path; p != "" && !filepath.IsAbs(p) {
		config.PriceSource.Path = filepath.Join(filepath.Dir(filename), p)
	}
	return config, nil
}

// Parse decodes, defaults, applies environment overrides and validates.
func (ip *InputParser) Parse(data []byte) (*Configuration, error) {
	var config Configuration
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&config)
	ip.ApplyEnvironment(&config)

	if err := ip.ValidateConfiguration(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &config, nil
}

// ApplyEnvironment overrides deployment settings from PORT, DATABASE_URL
// and REDIS_URL.
func (ip *InputParser) ApplyEnvironment(config *Configuration) {
	getenv := ip.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	if port := getenv("PORT"); port != "" {
		config.Server.Addr = ":" + port
	}
	if dbURL := getenv("DATABASE_URL"); dbURL != "" {
		config.PriceSource.DatabaseURL = dbURL
	}
	if redisURL := getenv("REDIS_URL"); redisURL != "" {
		config.Cache.RedisURL = redisURL
		config.Cache.Type = CacheRedis
	}
}

// ValidateConfiguration validates the loaded configuration
func (ip *InputParser) ValidateConfiguration(config *Configuration) error {
	seen := make(map[string]bool, len(config.Annuities))
	for i, a := range config.Annuities {
		if err := ip.ValidateAnnuity(a); err != nil {
			return fmt.Errorf("annuity %d (%s) validation failed: %w", i, a.ID, err)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate annuity id %q", a.ID)
		}
		seen[a.ID] = true
	}

	if err := ip.validatePriceSource(&config.PriceSource); err != nil {
		return fmt.Errorf("price source validation failed: %w", err)
	}
	if err := ip.validateMonteCarlo(&config.MonteCarlo); err != nil {
		return fmt.Errorf("monte carlo validation failed: %w", err)
	}
	if err := ip.validateCache(&config.Cache); err != nil {
		return fmt.Errorf("cache validation failed: %w", err)
	}
	return nil
}

// ValidateAnnuity checks a single contract.
func (ip *InputParser) ValidateAnnuity(a domain.Annuity) error {
	if a.ID == "" {
		return fmt.Errorf("id is required")
	}
	if a.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if !a.Principal.IsPositive() {
		return fmt.Errorf("principal must be positive")
	}
	if !a.PrincipalCurrency.Valid() {
		return fmt.Errorf("principal currency must be BTC or USD, got %q", a.PrincipalCurrency)
	}
	if a.AmortizationRate.IsNegative() || a.AmortizationRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("amortization rate must be between 0 and 1")
	}
	if a.TermMonths <= 0 {
		return fmt.Errorf("term months must be positive")
	}
	return nil
}

func (ip *InputParser) validatePriceSource(src *PriceSourceConfig) error {
	switch src.Type {
	case SourceCSV, SourceJSON:
		if src.Path == "" {
			return fmt.Errorf("%s source requires a path", src.Type)
		}
	case SourceBlockchain:
	case SourcePostgres:
		if src.DatabaseURL == "" {
			return fmt.Errorf("postgres source requires database_url or DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown price source type %q", src.Type)
	}
	if src.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl cannot be negative")
	}
	return nil
}

func (ip *InputParser) validateMonteCarlo(mc *MonteCarloSettings) error {
	if mc.NumberOfPaths < 1 || mc.NumberOfPaths > calculation.MaxNumberOfPaths {
		return fmt.Errorf("number of paths must be between 1 and %d", calculation.MaxNumberOfPaths)
	}
	if mc.ProjectionDays < 1 || mc.ProjectionDays > calculation.MaxProjectionDays {
		return fmt.Errorf("projection days must be between 1 and %d", calculation.MaxProjectionDays)
	}
	if mc.HistoryYears < 0 {
		return fmt.Errorf("history years cannot be negative")
	}
	if mc.VisiblePaths < 0 {
		return fmt.Errorf("visible paths cannot be negative")
	}
	return nil
}

func (ip *InputParser) validateCache(c *CacheSettings) error {
	switch c.Type {
	case CacheMemory:
	case CacheRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("redis cache requires redis_url or REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown cache type %q", c.Type)
	}
	return nil
}

// CreateExampleConfiguration returns a small two-contract portfolio.
func (ip *InputParser) CreateExampleConfiguration() *Configuration {
	config := &Configuration{
		Annuities: []domain.Annuity{
			{
				ID:                "9b2f6c1e-3c1d-4b7a-9f0e-1a2b3c4d5e6f",
				CreatedAt:         dateutil.MustParse("2024-01-01"),
				Principal:         decimal.NewFromInt(100000),
				PrincipalCurrency: domain.CurrencyUSD,
				AmortizationRate:  decimal.RequireFromString("0.12"),
				TermMonths:        48,
			},
			{
				ID:                "4c1a8e2d-7f3b-4e9c-8a1d-6b5e4f3a2c1b",
				CreatedAt:         dateutil.MustParse("2024-06-01"),
				Principal:         decimal.RequireFromString("0.5"),
				PrincipalCurrency: domain.CurrencyBTC,
				AmortizationRate:  decimal.RequireFromString("0.05"),
				TermMonths:        24,
			},
		},
		PriceSource: PriceSourceConfig{Type: SourceCSV, Path: "prices.csv"},
	}
	applyDefaults(config)
	return config
}

// Marshal renders a configuration as YAML.
func Marshal(config *Configuration) ([]byte, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	return data, nil
}
