package domain

import (
	"github.com/rpgo/btc-annuity/pkg/dateutil"
)

// CalculationStatus tracks whether published results match the inputs.
type CalculationStatus string

const (
	StatusIdle        CalculationStatus = "idle"
	StatusCalculating CalculationStatus = "calculating"
)

// EventType identifies a recalculation notification.
type EventType string

const (
	EventCalculationStarted  EventType = "calculation_started"
	EventCalculationComplete EventType = "calculation_complete"
)

// Event is published by the recalculation controller. Results is only set
// on completion events.
type Event struct {
	Type    EventType       `json:"type"`
	Hash    string          `json:"hash"`
	Results ScenarioResults `json:"results,omitempty"`
}

// Portfolio is the mutable engine state: inputs plus the last published
// scenario results.
type Portfolio struct {
	PriceData     []PricePoint      `json:"price_data"`
	Annuities     []Annuity         `json:"annuities"`
	Scenarios     ScenarioResults   `json:"scenarios,omitempty"`
	Status        CalculationStatus `json:"status"`
	LastInputHash string            `json:"last_input_hash,omitempty"`
	StartDate     dateutil.Date     `json:"start_date"`
}

// NewPortfolio returns an empty, idle portfolio.
func NewPortfolio() *Portfolio {
	return &Portfolio{Status: StatusIdle}
}

// Initialize installs price history. A calculation is only pending when
// contracts exist as well.
func (p *Portfolio) Initialize(prices []PricePoint) {
	p.PriceData = prices
	if len(prices) > 0 && len(p.Annuities) > 0 {
		p.Status = StatusCalculating
	} else {
		p.Status = StatusIdle
	}
}

// AddAnnuity appends a contract. The first contract added fixes the
// portfolio start date to the oldest creation date.
func (p *Portfolio) AddAnnuity(a Annuity) {
	p.Annuities = append(p.Annuities, a)
	if p.StartDate.IsZero() {
		p.StartDate, _ = p.OldestCreatedAt()
	}
	p.Status = StatusCalculating
}

// RemoveAnnuity deletes the contract with the given id.
func (p *Portfolio) RemoveAnnuity(id string) bool {
	out := p.Annuities[:0:0]
	found := false
	for _, a := range p.Annuities {
		if a.ID == id {
			found = true
			continue
		}
		out = append(out, a)
	}
	if found {
		p.Annuities = out
		p.Status = StatusCalculating
	}
	return found
}

// UpdateAnnuity replaces the contract with the same id.
func (p *Portfolio) UpdateAnnuity(updated Annuity) bool {
	idx := p.indexOf(updated.ID)
	if idx < 0 {
		return false
	}
	annuities := append([]Annuity(nil), p.Annuities...)
	annuities[idx] = updated
	p.Annuities = annuities
	p.Status = StatusCalculating
	return true
}

// DuplicateAnnuity copies the contract id under newID and appends it.
func (p *Portfolio) DuplicateAnnuity(id, newID string) (Annuity, bool) {
	idx := p.indexOf(id)
	if idx < 0 {
		return Annuity{}, false
	}
	dup := p.Annuities[idx]
	dup.ID = newID
	p.AddAnnuity(dup)
	return dup, true
}

// ShiftAnnuity moves one contract's creation date by whole months.
func (p *Portfolio) ShiftAnnuity(id string, months int) (Annuity, bool) {
	idx := p.indexOf(id)
	if idx < 0 {
		return Annuity{}, false
	}
	shifted := p.Annuities[idx]
	shifted.CreatedAt = shifted.CreatedAt.AddMonths(months)
	p.UpdateAnnuity(shifted)
	return shifted, true
}

// SetStartDate moves the portfolio start and shifts every contract by the
// same whole-month difference. Nothing happens on an empty portfolio.
func (p *Portfolio) SetStartDate(d dateutil.Date) bool {
	if p.StartDate.IsZero() || len(p.Annuities) == 0 {
		return false
	}
	diff := dateutil.MonthsBetween(p.StartDate, d)
	annuities := make([]Annuity, len(p.Annuities))
	for i, a := range p.Annuities {
		a.CreatedAt = a.CreatedAt.AddMonths(diff)
		annuities[i] = a
	}
	p.Annuities = annuities
	p.StartDate = d
	p.Status = StatusCalculating
	return true
}

// OldestCreatedAt returns the earliest contract creation date.
func (p *Portfolio) OldestCreatedAt() (dateutil.Date, bool) {
	if len(p.Annuities) == 0 {
		return dateutil.Date{}, false
	}
	oldest := p.Annuities[0].CreatedAt
	for _, a := range p.Annuities[1:] {
		if a.CreatedAt.Before(oldest) {
			oldest = a.CreatedAt
		}
	}
	return oldest, true
}

// Restore replaces the inputs, recomputes the start date and forgets the
// last input hash so the next recalculation always runs.
func (p *Portfolio) Restore(annuities []Annuity) {
	p.Annuities = annuities
	p.StartDate, _ = p.OldestCreatedAt()
	p.LastInputHash = ""
	p.Scenarios = nil
	if len(p.PriceData) > 0 {
		p.Status = StatusCalculating
	} else {
		p.Status = StatusIdle
	}
}

// Apply reduces a controller event into the portfolio. Completion events
// for a hash other than the latest started one are ignored.
func (p *Portfolio) Apply(ev Event) bool {
	switch ev.Type {
	case EventCalculationStarted:
		p.LastInputHash = ev.Hash
		p.Status = StatusCalculating
		return true
	case EventCalculationComplete:
		if ev.Hash != p.LastInputHash {
			return false
		}
		p.Scenarios = ev.Results
		p.Status = StatusIdle
		return true
	}
	return false
}

// Find returns the contract with the given id.
func (p *Portfolio) Find(id string) (Annuity, bool) {
	if idx := p.indexOf(id); idx >= 0 {
		return p.Annuities[idx], true
	}
	return Annuity{}, false
}

func (p *Portfolio) indexOf(id string) int {
	for i, a := range p.Annuities {
		if a.ID == id {
			return i
		}
	}
	return -1
}
