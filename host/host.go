// Package host declares the surface the surrounding city simulation must
// provide to the regulation engine. Every collaborator is an interface;
// the engine never depends on a concrete host. A nil subsystem means the
// dependency is unavailable this tick and the affected phase degrades to
// pass-through.
package host

import "github.com/pthm-cable/agora/econ"

// EntityID is a stable identifier for a host entity. The engine never
// interprets it beyond equality.
type EntityID uint64

// DistrictID identifies a district for tax rate modifiers. Zero is the
// citywide default.
type DistrictID uint32

// WageLevels is the number of citywide wage bands, indexed 0 (uneducated)
// through 4 (highly educated).
const WageLevels = 5

// TickInfo carries the host clock. UpdatesPerDay converts per-day rates
// into per-tick amounts; RentUpdatesPerDay does the same for rent.
type TickInfo struct {
	Tick              int64
	UpdatesPerDay     int
	RentUpdatesPerDay int
}

// Workplace is the per-entity view the utilization enforcer works from.
type Workplace struct {
	ID         EntityID
	Capacity   int // worker slots the building provides
	Staffed    int // currently filled slots
	MaxWorkers int // host-side staffing cap, engine only lowers it
}

// Company is the per-entity view the tax adjuster works from. Output is
// ResourceNone when the recipe cannot be resolved; such companies are
// skipped.
type Company struct {
	ID            EntityID
	District      DistrictID
	Employees     int
	Efficiency    float64
	Output        econ.Resource
	Rent          float64 // per rent period
	UntaxedIncome float64 // host-attributed taxable income accumulator
	AverageRate   float64 // current smoothed tax rate, percent
}

// LaborStats is the citywide census snapshot the wage regulator reads.
// Education counts the workable population per tier, 0 through 4.
type LaborStats struct {
	Workforce int // workable citizens
	Employed  int
	Education [WageLevels]int
}

// TaxArea classifies a company for rate lookup, derived from its output
// resource weights.
type TaxArea uint8

const (
	TaxAreaIndustrial TaxArea = iota
	TaxAreaCommercial
	TaxAreaOffice
)

func (a TaxArea) String() string {
	switch a {
	case TaxAreaIndustrial:
		return "industrial"
	case TaxAreaCommercial:
		return "commercial"
	case TaxAreaOffice:
		return "office"
	}
	return "unknown"
}

// MarketSignals exposes the host's aggregate per-resource economics.
type MarketSignals interface {
	// ProductionConsumption returns citywide totals for the current
	// period. ok is false when the host tracks nothing for r.
	ProductionConsumption(r econ.Resource) (produced, consumed float64, ok bool)
	// Trade returns the net trade balance (exports minus imports) and
	// its monetary worth. Display data only, never priced.
	Trade(r econ.Resource) (balance, worth float64, ok bool)
}

// Census exposes household workforce statistics.
type Census interface {
	// LaborStats returns the current snapshot. ok is false while the
	// host has not finished a census pass.
	LaborStats() (LaborStats, bool)
}

// WageBandAccessor reads and writes the citywide wage bands. Levels
// outside [0, WageLevels) are ignored by implementations.
type WageBandAccessor interface {
	Wage(level int) int
	SetWage(level int, wage int)
}

// PriceCatalog resolves the host's unadjusted ("vanilla") prices.
type PriceCatalog interface {
	VanillaPrice(r econ.Resource) (float64, bool)
}

// WorkplaceDirectory enumerates staffable buildings and accepts the
// enforcer's staffing cap writes.
type WorkplaceDirectory interface {
	Workplaces() []Workplace
	SetMaxWorkers(id EntityID, max int)
}

// CompanyDirectory enumerates taxpayers and accepts the adjuster's
// writes. AddTaxableIncome may be negative; the accumulator is floored
// at zero on the host side.
type CompanyDirectory interface {
	Companies() []Company
	AddTaxableIncome(id EntityID, amount float64)
	SetAverageTaxRate(id EntityID, rate float64)
}

// TaxPolicy resolves the configured tax rate for an area, with any
// district modifier already applied.
type TaxPolicy interface {
	Rate(area TaxArea, district DistrictID) float64
}

// Ledger is the host's resource-transfer primitive. Amount may be
// negative to deduct. Returns false when the entity is unknown; the
// engine treats that as a skipped charge, never an error.
type Ledger interface {
	Transfer(id EntityID, r econ.Resource, amount int) bool
}

// ProfitModel is the host's opaque profit formula.
type ProfitModel interface {
	// ProfitPerDay yields the company's modeled profit per day. ok is
	// false when the formula cannot be evaluated for c.
	ProfitPerDay(c Company) (profit float64, ok bool)
}

// Host aggregates every collaborator. Accessors may return nil; the
// engine logs the missing dependency once and re-probes next tick.
type Host interface {
	Clock() TickInfo
	Signals() MarketSignals
	Census() Census
	Wages() WageBandAccessor
	Prices() PriceCatalog
	Workplaces() WorkplaceDirectory
	Companies() CompanyDirectory
	Policy() TaxPolicy
	Ledger() Ledger
	Profit() ProfitModel
}
