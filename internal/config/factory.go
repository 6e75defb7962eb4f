package config

import (
	"context"
	"fmt"

	"github.com/rpgo/btc-annuity/internal/cache"
	"github.com/rpgo/btc-annuity/internal/pricefeed"
)

// Closer releases resources held by a built component.
type Closer func()

func noClose() {}

// BuildPriceSource creates the configured history source, wrapped in a
// pricefeed.CachedSource.
func BuildPriceSource(ctx context.Context, cfg PriceSourceConfig) (pricefeed.Source, Closer, error) {
	var (
		src    pricefeed.Source
		closer Closer = noClose
	)
	switch cfg.Type {
	case SourceCSV:
		src = pricefeed.CSVSource{Path: cfg.Path}
	case SourceJSON:
		src = pricefeed.JSONSource{Path: cfg.Path}
	case SourceBlockchain:
		bs := pricefeed.NewBlockchainSource()
		if cfg.URL != "" {
			bs.URL = cfg.URL
		}
		src = bs
	case SourcePostgres:
		pool, err := pricefeed.ConnectPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		src, closer = pricefeed.NewPostgresSource(pool), pool.Close
	default:
		return nil, nil, fmt.Errorf("unknown price source type %q", cfg.Type)
	}
	return pricefeed.NewCachedSource(src, cfg.CacheTTL), closer, nil
}

// BuildCache creates the configured result cache.
func BuildCache(cfg CacheSettings) (cache.Cache, Closer, error) {
	switch cfg.Type {
	case CacheMemory, "":
		return cache.NewMemoryCache(), noClose, nil
	case CacheRedis:
		rc, err := cache.NewRedisCacheFromURL(cfg.RedisURL, cfg.TTL)
		if err != nil {
			return nil, nil, err
		}
		return rc, func() { _ = rc.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}
