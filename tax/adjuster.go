// Package tax replaces host-attributed taxable income with a
// profit-minus-rent figure and smooths each company's average tax rate
// toward its area rate.
package tax

import (
	"math"

	"github.com/pthm-cable/agora/config"
	"github.com/pthm-cable/agora/econ"
	"github.com/pthm-cable/agora/host"
)

// CompanyState tracks one taxpayer across ticks. Created lazily on first
// sight, pruned when the entity leaves the host's active set.
type CompanyState struct {
	RentAccumulator   float64 // lifetime rent attributed per tick
	LastUntaxedIncome float64 // accumulator value expected next tick
	LastAverageRate   float64 // percent
	LastSeenTick      int64
	initialized       bool
}

// Trace describes one company adjustment, for telemetry.
type Trace struct {
	ID            host.EntityID
	ProfitPerTick float64
	RentPerTick   float64
	NetIncome     float64
	Adjustment    float64
	Area          host.TaxArea
	AverageRate   float64 // percent, after blending
}

// Adjuster rewrites taxable income from true profit. Fully inert while
// the profit tax flag is off.
type Adjuster struct {
	cfg    *config.Config
	states map[host.EntityID]*CompanyState
}

// New returns an adjuster with no tracked companies.
func New(cfg *config.Config) *Adjuster {
	return &Adjuster{cfg: cfg, states: make(map[host.EntityID]*CompanyState)}
}

// Classify maps a company's output resource to its tax area: office
// categories tax as office, consumer services as commercial, everything
// physical as industrial.
func Classify(r econ.Resource) host.TaxArea {
	switch r.Category() {
	case econ.CategoryOffice:
		return host.TaxAreaOffice
	case econ.CategoryService:
		return host.TaxAreaCommercial
	default:
		return host.TaxAreaIndustrial
	}
}

// Adjust processes every taxpayer with a non-empty roster and a
// resolvable output recipe. profit is required; policy is optional and
// only gates the rate blending.
func (a *Adjuster) Adjust(dir host.CompanyDirectory, policy host.TaxPolicy, profit host.ProfitModel, info host.TickInfo) []Trace {
	if !a.cfg.Tax.Enabled || dir == nil || profit == nil {
		return nil
	}
	var traces []Trace
	for _, c := range dir.Companies() {
		if c.Employees <= 0 || c.Output == econ.ResourceNone {
			continue
		}
		if tr, ok := a.adjustOne(c, dir, policy, profit, info); ok {
			traces = append(traces, tr)
		}
	}
	return traces
}

func (a *Adjuster) adjustOne(c host.Company, dir host.CompanyDirectory, policy host.TaxPolicy, profit host.ProfitModel, info host.TickInfo) (Trace, bool) {
	profitPerDay, ok := profit.ProfitPerDay(c)
	if !ok || !econ.Finite(profitPerDay) {
		return Trace{}, false
	}

	st := a.state(c.ID)
	st.LastSeenTick = info.Tick
	if !st.initialized {
		// Base the first delta on the host's current accumulator so the
		// backlog is not mistaken for fresh income.
		st.LastUntaxedIncome = c.UntaxedIncome
		st.LastAverageRate = c.AverageRate
		st.initialized = true
	}

	profitPerTick := math.Max(0, profitPerDay/float64(max(1, info.UpdatesPerDay)))
	rentPerTick := math.Max(0, float64(econ.RoundInt(c.Rent/float64(max(1, info.RentUpdatesPerDay)))))
	net := math.Max(0, profitPerTick-rentPerTick)
	if !econ.Finite(net) {
		return Trace{}, false
	}
	st.RentAccumulator += rentPerTick

	vanillaDelta := c.UntaxedIncome - st.LastUntaxedIncome
	adjustment := net - vanillaDelta
	dir.AddTaxableIncome(c.ID, adjustment)

	tr := Trace{
		ID:            c.ID,
		ProfitPerTick: profitPerTick,
		RentPerTick:   rentPerTick,
		NetIncome:     net,
		Adjustment:    adjustment,
		Area:          Classify(c.Output),
		AverageRate:   st.LastAverageRate,
	}

	if net > 0 && policy != nil {
		areaRate := policy.Rate(tr.Area, c.District)
		weight := net / math.Max(1, net+st.LastUntaxedIncome)
		rate := float64(econ.RoundInt(econ.Lerp(st.LastAverageRate, areaRate, weight)))
		dir.SetAverageTaxRate(c.ID, rate)
		st.LastAverageRate = rate
		tr.AverageRate = rate
	}

	// The host floors its accumulator at zero; mirror that here.
	st.LastUntaxedIncome = math.Max(0, c.UntaxedIncome+adjustment)
	return tr, true
}

// Prune drops state for companies absent from the active set.
func (a *Adjuster) Prune(active map[host.EntityID]struct{}) {
	for id := range a.states {
		if _, ok := active[id]; !ok {
			delete(a.states, id)
		}
	}
}

// State returns a copy of the tracked state for id. ok is false for
// companies never seen.
func (a *Adjuster) State(id host.EntityID) (CompanyState, bool) {
	if st, ok := a.states[id]; ok {
		return *st, true
	}
	return CompanyState{}, false
}

// Tracked reports how many companies currently hold state.
func (a *Adjuster) Tracked() int {
	return len(a.states)
}

// Reset drops all tracked state.
func (a *Adjuster) Reset() {
	a.states = make(map[host.EntityID]*CompanyState)
}

func (a *Adjuster) state(id host.EntityID) *CompanyState {
	st, ok := a.states[id]
	if !ok {
		st = &CompanyState{}
		a.states[id] = st
	}
	return st
}
