package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpgo/btc-annuity/internal/cache"
	"github.com/rpgo/btc-annuity/internal/domain"
	"github.com/rpgo/btc-annuity/internal/pricefeed"
	"github.com/rpgo/btc-annuity/pkg/dateutil"
)

func testParser(env map[string]string) *InputParser {
	return &InputParser{Getenv: func(k string) string { return env[k] }}
}

func validAnnuity() domain.Annuity {
	return domain.Annuity{
		ID:                "a1",
		CreatedAt:         dateutil.MustParse("2024-01-01"),
		Principal:         decimal.NewFromInt(100000),
		PrincipalCurrency: domain.CurrencyUSD,
		AmortizationRate:  decimal.RequireFromString("0.12"),
		TermMonths:        4,
	}
}

func TestNewInputParser(t *testing.T) {
	parser := NewInputParser()
	assert.NotNil(t, parser)
	assert.NotNil(t, parser.Getenv)
}

func TestLoadFromFile_Success(t *testing.T) {
	testConfig := "annuities:\n" +
		"  - id: a1\n" +
		"    created_at: 2024-01-01\n" +
		"    principal: 100000\n" +
		"    principal_currency: USD\n" +
		"    amortization_rate: 0.12\n" +
		"    term_months: 4\n" +
		"  - id: a2\n" +
		"    created_at: 2024-03-01\n" +
		"    principal: 0.25\n" +
		"    principal_currency: BTC\n" +
		"    amortization_rate: 0\n" +
		"    term_months: 12\n" +
		"price_source:\n" +
		"  type: csv\n" +
		"  path: data/prices.csv\n" +
		"  cache_ttl: 1h\n" +
		"monte_carlo:\n" +
		"  number_of_paths: 50\n" +
		"  seed: 7\n"

	dir := t.TempDir()
	path := filepath.Join(dir, "portfolio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))

	parser := testParser(nil)
	config, err := parser.LoadFromFile(path)
	require.NoError(t, err)

	require.Len(t, config.Annuities, 2)
	assert.Equal(t, domain.CurrencyBTC, config.Annuities[1].PrincipalCurrency)
	assert.True(t, config.Annuities[1].AmortizationRate.IsZero())
	assert.Equal(t, filepath.Join(dir, "data", "prices.csv"), config.PriceSource.Path)
	assert.Equal(t, time.Hour, config.PriceSource.CacheTTL)

	assert.Equal(t, 50, config.MonteCarlo.NumberOfPaths)
	assert.Equal(t, 365, config.MonteCarlo.ProjectionDays)
	assert.Equal(t, 13, config.MonteCarlo.HistoryYears)
	assert.Equal(t, 33, config.MonteCarlo.VisiblePaths)
	assert.True(t, config.MonteCarlo.IsEnabled())
	assert.Equal(t, CacheMemory, config.Cache.Type)
	assert.Equal(t, ":8080", config.Server.Addr)

	gen := config.MonteCarlo.GeneratorConfig()
	assert.Equal(t, int64(7), gen.Seed)
	assert.Equal(t, 50, gen.NumberOfPaths)
}

func TestLoadFromFile_FileNotFound(t *testing.T) {
	parser := NewInputParser()
	config, err := parser.LoadFromFile("nonexistent_file.yaml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read file")
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := testParser(nil).Parse([]byte("annuities: [\n"))
	assert.ErrorContains(t, err, "failed to parse YAML")
}

func TestApplyEnvironment(t *testing.T) {
	parser := testParser(map[string]string{
		"PORT":         "9090",
		"DATABASE_URL": "postgres://localhost/btc",
		"REDIS_URL":    "redis://localhost:6379/0",
	})

	config, err := parser.Parse([]byte("price_source:\n  type: postgres\n"))
	require.NoError(t, err)
	assert.Equal(t, ":9090", config.Server.Addr)
	assert.Equal(t, "postgres://localhost/btc", config.PriceSource.DatabaseURL)
	assert.Equal(t, CacheRedis, config.Cache.Type)
	assert.Equal(t, "redis://localhost:6379/0", config.Cache.RedisURL)
}

func TestValidateAnnuity(t *testing.T) {
	parser := testParser(nil)
	require.NoError(t, parser.ValidateAnnuity(validAnnuity()))

	tests := []struct {
		name   string
		mutate func(*domain.Annuity)
		errMsg string
	}{
		{"missing id", func(a *domain.Annuity) { a.ID = "" }, "id is required"},
		{"missing date", func(a *domain.Annuity) { a.CreatedAt = dateutil.Date{} }, "created_at is required"},
		{"zero principal", func(a *domain.Annuity) { a.Principal = decimal.Zero }, "principal must be positive"},
		{"bad currency", func(a *domain.Annuity) { a.PrincipalCurrency = "EUR" }, "principal currency"},
		{"negative rate", func(a *domain.Annuity) { a.AmortizationRate = decimal.NewFromInt(-1) }, "amortization rate"},
		{"rate above one", func(a *domain.Annuity) { a.AmortizationRate = decimal.RequireFromString("1.5") }, "amortization rate"},
		{"zero term", func(a *domain.Annuity) { a.TermMonths = 0 }, "term months"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validAnnuity()
			tt.mutate(&a)
			err := parser.ValidateAnnuity(a)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateConfiguration(t *testing.T) {
	parser := testParser(nil)

	tests := []struct {
		name   string
		mutate func(*Configuration)
		errMsg string
	}{
		{"duplicate ids", func(c *Configuration) {
			c.Annuities = []domain.Annuity{validAnnuity(), validAnnuity()}
		}, "duplicate annuity id"},
		{"csv without path", func(c *Configuration) { c.PriceSource = PriceSourceConfig{Type: SourceCSV} }, "requires a path"},
		{"postgres without url", func(c *Configuration) { c.PriceSource = PriceSourceConfig{Type: SourcePostgres} }, "database_url"},
		{"unknown source", func(c *Configuration) { c.PriceSource.Type = "ftp" }, "unknown price source"},
		{"zero paths", func(c *Configuration) { c.MonteCarlo.NumberOfPaths = 0 }, "number of paths"},
		{"too many paths", func(c *Configuration) { c.MonteCarlo.NumberOfPaths = 10001 }, "number of paths"},
		{"horizon too long", func(c *Configuration) { c.MonteCarlo.ProjectionDays = 4000 }, "projection days"},
		{"redis without url", func(c *Configuration) { c.Cache.Type = CacheRedis }, "redis_url"},
		{"unknown cache", func(c *Configuration) { c.Cache.Type = "memcached" }, "unknown cache type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfiguration()
			tt.mutate(config)
			err := parser.ValidateConfiguration(config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	assert.NoError(t, parser.ValidateConfiguration(DefaultConfiguration()))
}

func TestCreateExampleConfigurationRoundTrip(t *testing.T) {
	parser := testParser(nil)
	example := parser.CreateExampleConfiguration()
	require.NoError(t, parser.ValidateConfiguration(example))

	data, err := Marshal(example)
	require.NoError(t, err)

	parsed, err := parser.Parse(data)
	require.NoError(t, err)
	require.Len(t, parsed.Annuities, 2)
	assert.Equal(t, example.Annuities[1].ID, parsed.Annuities[1].ID)
	assert.True(t, example.Annuities[1].Principal.Equal(parsed.Annuities[1].Principal))
	assert.Equal(t, example.Annuities[0].CreatedAt, parsed.Annuities[0].CreatedAt)
}

func TestBuildPriceSource(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte("date,price\n2024-01-01,40000\n"), 0o644))

	src, closer, err := BuildPriceSource(ctx, PriceSourceConfig{Type: SourceCSV, Path: path})
	require.NoError(t, err)
	defer closer()
	points, err := src.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, points, 1)
	assert.IsType(t, &pricefeed.CachedSource{}, src)

	_, _, err = BuildPriceSource(ctx, PriceSourceConfig{Type: "ftp"})
	assert.Error(t, err)
}

func TestBuildCache(t *testing.T) {
	c, closer, err := BuildCache(CacheSettings{Type: CacheMemory})
	require.NoError(t, err)
	closer()
	assert.IsType(t, &cache.MemoryCache{}, c)

	c, closer, err = BuildCache(CacheSettings{Type: CacheRedis, RedisURL: "redis://localhost:6379/1"})
	require.NoError(t, err)
	closer()
	assert.IsType(t, &cache.RedisCache{}, c)

	_, _, err = BuildCache(CacheSettings{Type: CacheRedis, RedisURL: "::bad"})
	assert.Error(t, err)
}
