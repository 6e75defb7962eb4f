// Package cache stores scenario results keyed by the input hash that
// produced them.
package cache

import (
	"context"

	"github.com/rpgo/btc-annuity/internal/domain"
)

// Cache is a hash → ScenarioResults store. Implementations must be safe
// for concurrent use.
type Cache interface {
	Get(ctx context.Context, hash string) (domain.ScenarioResults, bool, error)
	Put(ctx context.Context, hash string, results domain.ScenarioResults) error
}
