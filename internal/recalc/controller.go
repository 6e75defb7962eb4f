// Package recalc memoizes and serializes scenario recalculations. Each
// distinct input is simulated at most once per cache lifetime, and a result
// is only published while its input is still the most recent request.
package recalc

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rpgo/btc-annuity/internal/cache"
	"github.com/rpgo/btc-annuity/internal/calculation"
	"github.com/rpgo/btc-annuity/internal/domain"
	"github.com/rpgo/btc-annuity/internal/metrics"
)

// SimulateFunc computes the scenario results for an input.
type SimulateFunc func(ctx context.Context, in Input, mc *domain.MonteCarloResult) (domain.ScenarioResults, error)

// Subscriber receives controller events.
type Subscriber func(domain.Event)

// Controller runs recalculations through an Executor and publishes events.
type Controller struct {
	cache    cache.Cache
	executor Executor
	simulate SimulateFunc
	logger   calculation.Logger

	mu          sync.Mutex
	latest      string
	inflight    Future
	subscribers []Subscriber
}

// Option configures a Controller.
type Option func(*Controller)

// WithExecutor sets the executor. The default runs tasks synchronously.
func WithExecutor(e Executor) Option { return func(c *Controller) { c.executor = e } }

// WithSimulateFunc replaces the scenario computation.
func WithSimulateFunc(f SimulateFunc) Option { return func(c *Controller) { c.simulate = f } }

// WithLogger sets the logger.
func WithLogger(l calculation.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController creates a controller over the given cache. A nil cache
// uses a fresh MemoryCache.
func NewController(c cache.Cache, opts ...Option) *Controller {
	if c == nil {
		c = cache.NewMemoryCache()
	}
	ctrl := &Controller{
		cache:    c,
		executor: SyncExecutor{},
		logger:   calculation.NopLogger{},
	}
	ctrl.simulate = ctrl.defaultSimulate
	for _, opt := range opts {
		opt(ctrl)
	}
	return ctrl
}

func (c *Controller) defaultSimulate(ctx context.Context, in Input, mc *domain.MonteCarloResult) (domain.ScenarioResults, error) {
	sim := calculation.NewSimulator()
	sim.SetLogger(c.logger)
	return sim.SimulateContext(ctx, in.PriceData, in.Annuities, mc)
}

// Subscribe registers fn for every subsequent event.
func (c *Controller) Subscribe(fn Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Latest returns the hash of the most recently requested input.
func (c *Controller) Latest() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// Reset forgets the latest hash so the next Recalculate always runs. The
// cache is kept.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = ""
	if c.inflight != nil {
		c.inflight.Cancel()
		c.inflight = nil
	}
}

// Recalculate brings the published results in line with in. It returns
// once the outcome for in is known; failures are logged and never returned.
func (c *Controller) Recalculate(ctx context.Context, in Input, mc *domain.MonteCarloResult) {
	c.Submit(ctx, in, mc).Wait()
}

// Pending is a submitted recalculation.
type Pending struct {
	wait func()
}

// Wait blocks until the calculation has been published, discarded or has
// failed. Waiting on a no-op or cache hit returns immediately.
func (p Pending) Wait() {
	if p.wait != nil {
		p.wait()
	}
}

// Submit makes in the latest request, publishes CalculationStarted and
// starts the calculation without waiting for it. Callers that need their
// inputs ordered must serialize their Submit calls.
func (c *Controller) Submit(ctx context.Context, in Input, mc *domain.MonteCarloResult) Pending {
	hash, err := ProjectedInputHash(in, mc)
	if err != nil {
		c.logger.Errorf("recalculation skipped: %v", err)
		return Pending{}
	}

	c.mu.Lock()
	if hash == c.latest {
		c.mu.Unlock()
		return Pending{}
	}
	c.latest = hash
	previous := c.inflight
	c.inflight = nil
	c.mu.Unlock()

	metrics.RecalculationsStarted.Inc()
	c.publish(domain.Event{Type: domain.EventCalculationStarted, Hash: hash})

	if previous != nil {
		previous.Cancel()
	}
	if results, ok := c.lookup(ctx, hash); ok {
		c.complete(hash, results)
		return Pending{}
	}

	fut := c.executor.Submit(ctx, func(taskCtx context.Context) (domain.ScenarioResults, error) {
		start := time.Now()
		defer metrics.ObserveSince(metrics.SimulationDuration, start)
		return c.simulate(taskCtx, in, mc)
	})

	c.mu.Lock()
	if c.latest == hash {
		c.inflight = fut
	}
	c.mu.Unlock()

	return Pending{wait: func() { c.await(ctx, hash, fut) }}
}

func (c *Controller) await(ctx context.Context, hash string, fut Future) {
	results, err := fut.Await(ctx)

	c.mu.Lock()
	if c.inflight == fut {
		c.inflight = nil
	}
	c.mu.Unlock()

	if err != nil {
		if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
			metrics.StaleResults.Inc()
			c.logger.Debugf("calculation %s superseded", hash)
			return
		}
		metrics.CalculationFailures.Inc()
		c.logger.Errorf("calculation %s failed: %v", hash, err)
		return
	}

	if err := c.cache.Put(ctx, hash, results); err != nil {
		c.logger.Warnf("failed to cache results for %s: %v", hash, err)
	}
	c.complete(hash, results)
}

func (c *Controller) lookup(ctx context.Context, hash string) (domain.ScenarioResults, bool) {
	results, ok, err := c.cache.Get(ctx, hash)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		c.logger.Warnf("cache lookup for %s failed: %v", hash, err)
		return nil, false
	case ok:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return results, true
	default:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
}

// complete publishes results unless a newer input has been requested.
func (c *Controller) complete(hash string, results domain.ScenarioResults) {
	c.mu.Lock()
	current := c.latest == hash
	c.mu.Unlock()

	if !current {
		metrics.StaleResults.Inc()
		c.logger.Debugf("dropping stale results for %s", hash)
		return
	}
	c.publish(domain.Event{Type: domain.EventCalculationComplete, Hash: hash, Results: results})
}

func (c *Controller) publish(ev domain.Event) {
	c.mu.Lock()
	subs := append([]Subscriber(nil), c.subscribers...)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}
