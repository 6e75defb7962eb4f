// Package server exposes the annuity engine over HTTP. It owns one
// portfolio, recalculates it through a recalc.Controller after every
// mutation, and pushes calculation events to WebSocket clients.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rpgo/btc-annuity/internal/calculation"
	"github.com/rpgo/btc-annuity/internal/config"
	"github.com/rpgo/btc-annuity/internal/domain"
	"github.com/rpgo/btc-annuity/internal/metrics"
	"github.com/rpgo/btc-annuity/internal/recalc"
)

// Server holds the portfolio state behind the HTTP API.
type Server struct {
	ctrl     *recalc.Controller
	hub      *Hub
	parser   *config.InputParser
	settings config.MonteCarloSettings
	logger   calculation.Logger
	newID    func() string

	mu        sync.Mutex
	portfolio *domain.Portfolio
	mc        *domain.MonteCarloResult

	// submitMu orders input snapshots with their controller submissions.
	submitMu sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l calculation.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMonteCarloSettings sets the defaults used for projections.
func WithMonteCarloSettings(m config.MonteCarloSettings) Option {
	return func(s *Server) { s.settings = m }
}

// WithHub attaches a WebSocket hub that receives every applied event.
func WithHub(h *Hub) Option { return func(s *Server) { s.hub = h } }

// WithIDFunc replaces the contract id generator.
func WithIDFunc(f func() string) Option { return func(s *Server) { s.newID = f } }

// New creates a server around ctrl and subscribes to its events.
func New(ctrl *recalc.Controller, opts ...Option) *Server {
	s := &Server{
		ctrl:      ctrl,
		parser:    config.NewInputParser(),
		settings:  config.DefaultConfiguration().MonteCarlo,
		logger:    calculation.NopLogger{},
		newID:     func() string { return uuid.New().String() },
		portfolio: domain.NewPortfolio(),
	}
	for _, opt := range opts {
		opt(s)
	}
	ctrl.Subscribe(s.onEvent)
	return s
}

func (s *Server) onEvent(ev domain.Event) {
	s.mu.Lock()
	applied := s.portfolio.Apply(ev)
	status := s.portfolio.Status
	s.mu.Unlock()

	if !applied {
		s.logger.Debugf("ignored %s for %s", ev.Type, ev.Hash)
		return
	}
	if s.hub != nil {
		s.hub.Broadcast(WSMessage{Type: ev.Type, Hash: ev.Hash, Status: status, Results: ev.Results})
	}
}

// Bootstrap installs price history and contracts, generates the projection
// when enabled, and runs the first calculation.
func (s *Server) Bootstrap(ctx context.Context, prices []domain.PricePoint, annuities []domain.Annuity) error {
	var mc *domain.MonteCarloResult
	if s.settings.IsEnabled() && len(prices) > 0 {
		var err error
		mc, err = s.generate(prices, s.settings.GeneratorConfig(), s.settings.NumberOfPaths, s.settings.ProjectionDays)
		if err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.portfolio.Initialize(prices)
	s.portfolio.Restore(annuities)
	s.mc = mc
	s.mu.Unlock()

	s.ctrl.Reset()
	s.recalculate(ctx)
	return nil
}

// Portfolio returns a copy of the current portfolio.
func (s *Server) Portfolio() domain.Portfolio {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := *s.portfolio
	p.Annuities = append([]domain.Annuity(nil), s.portfolio.Annuities...)
	return p
}

// Projection returns the Monte Carlo result the portfolio is valued on.
func (s *Server) Projection() *domain.MonteCarloResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mc
}

// recalculate submits the current inputs to the controller and waits for
// the outcome. It must be called without s.mu held since events are applied
// synchronously. Snapshots are submitted in the order they are taken, so the
// last submission always carries the newest portfolio.
func (s *Server) recalculate(ctx context.Context) {
	s.submitMu.Lock()
	s.mu.Lock()
	in := recalc.Input{
		PriceData: s.portfolio.PriceData,
		Annuities: append([]domain.Annuity(nil), s.portfolio.Annuities...),
	}
	mc := s.mc
	s.mu.Unlock()

	if len(in.PriceData) == 0 {
		s.submitMu.Unlock()
		return
	}
	pending := s.ctrl.Submit(context.WithoutCancel(ctx), in, mc)
	s.submitMu.Unlock()
	pending.Wait()
}

// mutate applies fn to the portfolio under the lock and recalculates when
// fn reports a change.
func (s *Server) mutate(ctx context.Context, fn func(p *domain.Portfolio) bool) bool {
	s.mu.Lock()
	changed := fn(s.portfolio)
	s.mu.Unlock()
	if changed {
		s.recalculate(ctx)
	}
	return changed
}

func (s *Server) generate(prices []domain.PricePoint, cfg calculation.MonteCarloConfig, paths, days int) (*domain.MonteCarloResult, error) {
	gen := calculation.NewPathGenerator(cfg)
	gen.SetLogger(s.logger)
	start := time.Now()
	defer metrics.ObserveSince(metrics.MonteCarloDuration, start)
	return gen.GeneratePaths(prices, paths, days)
}
