package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/rpgo/btc-annuity/internal/calculation"
	"github.com/rpgo/btc-annuity/internal/domain"
	"github.com/rpgo/btc-annuity/internal/metrics"
	"github.com/rpgo/btc-annuity/internal/pricefeed"
	"github.com/rpgo/btc-annuity/pkg/dateutil"
)

// PricesRequest replaces the portfolio's price history.
type PricesRequest struct {
	Prices []domain.PricePoint `json:"prices"`
}

// MonteCarloRequest asks for a projection. Zero values take the server's
// defaults; missing prices fall back to the portfolio history.
type MonteCarloRequest struct {
	Prices []domain.PricePoint `json:"prices,omitempty"`
	Paths  int                 `json:"paths,omitempty"`
	Days   int                 `json:"days,omitempty"`
	Seed   *int64              `json:"seed,omitempty"`
	// Apply installs the projection on the portfolio and recalculates.
	Apply bool `json:"apply,omitempty"`
}

// SimulateRequest runs a stateless calculation.
type SimulateRequest struct {
	Prices     []domain.PricePoint `json:"prices"`
	Annuities  []domain.Annuity    `json:"annuities"`
	MonteCarlo *MonteCarloRequest  `json:"monte_carlo,omitempty"`
}

// SimulateResponse carries the per-scenario results of a SimulateRequest.
type SimulateResponse struct {
	Scenarios domain.ScenarioResults `json:"scenarios"`
	Envelope  []domain.EnvelopePoint `json:"envelope,omitempty"`
}

// ShiftRequest moves one contract by whole months.
type ShiftRequest struct {
	Months int `json:"months"`
}

// StartDateRequest moves every contract so the oldest starts on StartDate.
type StartDateRequest struct {
	StartDate dateutil.Date `json:"start_date"`
}

// Router builds the chi router for the API.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"btc-annuity"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if s.hub != nil {
			r.Get("/ws", s.hub.HandleWS)
		}

		r.Post("/montecarlo", s.MonteCarlo)
		r.Post("/simulate", s.Simulate)

		r.Get("/portfolio", s.GetPortfolio)
		r.Put("/portfolio/prices", s.SetPrices)
		r.Put("/portfolio/start-date", s.SetStartDate)
		r.Get("/portfolio/projection", s.GetProjection)

		r.Post("/annuities", s.CreateAnnuity)
		r.Put("/annuities/{id}", s.UpdateAnnuity)
		r.Delete("/annuities/{id}", s.DeleteAnnuity)
		r.Post("/annuities/{id}/duplicate", s.DuplicateAnnuity)
		r.Post("/annuities/{id}/shift", s.ShiftAnnuity)
	})
	return r
}

// GetPortfolio handles GET /api/v1/portfolio
func (s *Server) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Portfolio())
}

// GetProjection handles GET /api/v1/portfolio/projection
func (s *Server) GetProjection(w http.ResponseWriter, r *http.Request) {
	mc := s.Projection()
	if mc == nil {
		writeError(w, "no projection installed", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, mc)
}

// SetPrices handles PUT /api/v1/portfolio/prices
func (s *Server) SetPrices(w http.ResponseWriter, r *http.Request) {
	var req PricesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	prices := pricefeed.Normalize(req.Prices)
	if len(prices) == 0 {
		writeError(w, pricefeed.ErrNoPrices.Error(), http.StatusBadRequest)
		return
	}

	s.mutate(r.Context(), func(p *domain.Portfolio) bool {
		p.Initialize(prices)
		// the old projection was fit on the previous history
		s.mc = nil
		return true
	})
	writeJSON(w, http.StatusOK, s.Portfolio())
}

// SetStartDate handles PUT /api/v1/portfolio/start-date
func (s *Server) SetStartDate(w http.ResponseWriter, r *http.Request) {
	var req StartDateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.StartDate.IsZero() {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !s.mutate(r.Context(), func(p *domain.Portfolio) bool { return p.SetStartDate(req.StartDate) }) {
		writeError(w, "portfolio has no contracts", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, s.Portfolio())
}

// CreateAnnuity handles POST /api/v1/annuities
func (s *Server) CreateAnnuity(w http.ResponseWriter, r *http.Request) {
	var a domain.Annuity
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if a.ID == "" {
		a.ID = s.newID()
	}
	if err := s.parser.ValidateAnnuity(a); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	added := s.mutate(r.Context(), func(p *domain.Portfolio) bool {
		if _, exists := p.Find(a.ID); exists {
			return false
		}
		p.AddAnnuity(a)
		return true
	})
	if !added {
		writeError(w, "annuity "+a.ID+" already exists", http.StatusConflict)
		return
	}
	s.logger.Infof("annuity created: %s", a.ID)
	writeJSON(w, http.StatusCreated, a)
}

// UpdateAnnuity handles PUT /api/v1/annuities/{id}
func (s *Server) UpdateAnnuity(w http.ResponseWriter, r *http.Request) {
	var a domain.Annuity
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	a.ID = chi.URLParam(r, "id")
	if err := s.parser.ValidateAnnuity(a); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !s.mutate(r.Context(), func(p *domain.Portfolio) bool { return p.UpdateAnnuity(a) }) {
		writeError(w, "annuity not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// DeleteAnnuity handles DELETE /api/v1/annuities/{id}
func (s *Server) DeleteAnnuity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.mutate(r.Context(), func(p *domain.Portfolio) bool { return p.RemoveAnnuity(id) }) {
		writeError(w, "annuity not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DuplicateAnnuity handles POST /api/v1/annuities/{id}/duplicate
func (s *Server) DuplicateAnnuity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var dup domain.Annuity
	ok := s.mutate(r.Context(), func(p *domain.Portfolio) bool {
		var found bool
		dup, found = p.DuplicateAnnuity(id, s.newID())
		return found
	})
	if !ok {
		writeError(w, "annuity not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusCreated, dup)
}

// ShiftAnnuity handles POST /api/v1/annuities/{id}/shift
func (s *Server) ShiftAnnuity(w http.ResponseWriter, r *http.Request) {
	var req ShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	var shifted domain.Annuity
	ok := s.mutate(r.Context(), func(p *domain.Portfolio) bool {
		var found bool
		shifted, found = p.ShiftAnnuity(id, req.Months)
		return found
	})
	if !ok {
		writeError(w, "annuity not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, shifted)
}

// MonteCarlo handles POST /api/v1/montecarlo
func (s *Server) MonteCarlo(w http.ResponseWriter, r *http.Request) {
	var req MonteCarloRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	prices := pricefeed.Normalize(req.Prices)
	if len(prices) == 0 {
		prices = s.Portfolio().PriceData
	}
	mc, status, err := s.project(prices, &req)
	if err != nil {
		writeError(w, err.Error(), status)
		return
	}

	if req.Apply {
		s.mu.Lock()
		s.mc = mc
		s.mu.Unlock()
		s.recalculate(r.Context())
	}

	visible := *mc
	visible.Paths = calculation.SamplePaths(mc.Paths, s.settings.VisiblePaths)
	writeJSON(w, http.StatusOK, &visible)
}

// Simulate handles POST /api/v1/simulate
func (s *Server) Simulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	for _, a := range req.Annuities {
		if err := s.parser.ValidateAnnuity(a); err != nil {
			writeError(w, "annuity "+a.ID+": "+err.Error(), http.StatusBadRequest)
			return
		}
	}
	prices := pricefeed.Normalize(req.Prices)

	var mc *domain.MonteCarloResult
	if req.MonteCarlo != nil {
		var status int
		var err error
		mc, status, err = s.project(prices, req.MonteCarlo)
		if err != nil {
			writeError(w, err.Error(), status)
			return
		}
	}

	sim := calculation.NewSimulator()
	sim.SetLogger(s.logger)
	resp := SimulateResponse{Scenarios: sim.Simulate(prices, req.Annuities, mc)}
	if mc != nil {
		resp.Envelope = mc.Envelope
	}
	writeJSON(w, http.StatusOK, resp)
}

// project runs the generator for req and maps failures to HTTP statuses.
func (s *Server) project(prices []domain.PricePoint, req *MonteCarloRequest) (*domain.MonteCarloResult, int, error) {
	cfg := s.settings.GeneratorConfig()
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	paths, days := req.Paths, req.Days
	if paths == 0 {
		paths = s.settings.NumberOfPaths
	}
	if days == 0 {
		days = s.settings.ProjectionDays
	}
	if paths < 1 || paths > calculation.MaxNumberOfPaths || days < 1 || days > calculation.MaxProjectionDays {
		return nil, http.StatusBadRequest, fmt.Errorf("paths must be between 1 and %d and days between 1 and %d",
			calculation.MaxNumberOfPaths, calculation.MaxProjectionDays)
	}

	mc, err := s.generate(prices, cfg, paths, days)
	switch {
	case errors.Is(err, calculation.ErrInsufficientData), errors.Is(err, calculation.ErrDegenerateStatistics):
		return nil, http.StatusUnprocessableEntity, err
	case err != nil:
		return nil, http.StatusBadRequest, err
	}
	return mc, http.StatusOK, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
