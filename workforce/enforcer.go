// Package workforce clamps workplace staffing toward a minimum
// utilization floor and accrues maintenance debt, charged through the
// host's resource ledger.
package workforce

import (
	"math"

	"github.com/pthm-cable/agora/config"
	"github.com/pthm-cable/agora/econ"
	"github.com/pthm-cable/agora/host"
)

// WorkplaceState tracks one workplace across ticks. Created lazily on
// first sight, pruned when the entity leaves the host's active set.
type WorkplaceState struct {
	Staffed            int
	MaxWorkers         int
	AccruedMaintenance float64 // carried fraction below the fee threshold
	MaintenanceDebt    float64 // lifetime deducted maintenance
	LastSeenTick       int64
}

// Charge describes one maintenance deduction, for telemetry.
type Charge struct {
	ID     host.EntityID
	Amount int     // cash deducted this tick
	Debt   float64 // lifetime debt after the deduction
}

// Enforcer applies the utilization floor and the maintenance schedule to
// every workplace the host reports.
type Enforcer struct {
	cfg    *config.Config
	states map[host.EntityID]*WorkplaceState
}

// New returns an enforcer with no tracked workplaces.
func New(cfg *config.Config) *Enforcer {
	return &Enforcer{cfg: cfg, states: make(map[host.EntityID]*WorkplaceState)}
}

// Enforce processes every workplace the directory reports: staffing
// clamp first, then maintenance accrual and charging. ledger may be nil;
// charges are then deferred, not lost. Returns the charges made.
func (e *Enforcer) Enforce(dir host.WorkplaceDirectory, ledger host.Ledger, info host.TickInfo) []Charge {
	if dir == nil {
		return nil
	}
	var charges []Charge
	for _, wp := range dir.Workplaces() {
		if ch, ok := e.enforceOne(wp, dir, ledger, info); ok {
			charges = append(charges, ch)
		}
	}
	return charges
}

func (e *Enforcer) enforceOne(wp host.Workplace, dir host.WorkplaceDirectory, ledger host.Ledger, info host.TickInfo) (Charge, bool) {
	if wp.Capacity <= 0 {
		return Charge{}, false
	}
	st := e.state(wp.ID)
	st.Staffed = wp.Staffed
	st.MaxWorkers = wp.MaxWorkers
	st.LastSeenTick = info.Tick

	wc := e.cfg.Workforce
	utilization := float64(wp.Staffed) / math.Max(1, float64(wp.Capacity))
	under := utilization < wc.MinimumUtilizationShare

	// Staffing cap only ever moves down toward the floor.
	if under {
		floor := int(math.Ceil(wc.MinimumUtilizationShare * float64(wp.Capacity)))
		if wp.MaxWorkers > floor {
			st.MaxWorkers = floor
			dir.SetMaxWorkers(wp.ID, floor)
		}
	}

	daily := wc.BaseMaintenancePerDay + wc.MaintenancePerCapacity*float64(wp.Capacity)
	if under {
		daily *= wc.UnderUtilizationPenaltyMultiplier
	}
	perTick := daily / float64(max(1, info.UpdatesPerDay))
	if econ.Finite(perTick) && perTick > 0 {
		st.AccruedMaintenance += perTick
	}

	due := st.AccruedMaintenance >= wc.MaintenanceFeeThreshold
	if wc.ChargeEveryTick {
		due = st.AccruedMaintenance >= 1
	}
	if !due || ledger == nil {
		return Charge{}, false
	}

	amount := int(math.Floor(st.AccruedMaintenance))
	if amount <= 0 {
		return Charge{}, false
	}
	if !ledger.Transfer(wp.ID, econ.ResourceCash, -amount) {
		// Entity unknown to the ledger; keep the accrual and retry.
		return Charge{}, false
	}
	st.AccruedMaintenance -= float64(amount)
	st.MaintenanceDebt += float64(amount)
	return Charge{ID: wp.ID, Amount: amount, Debt: st.MaintenanceDebt}, true
}

// Prune drops state for workplaces absent from the active set.
func (e *Enforcer) Prune(active map[host.EntityID]struct{}) {
	for id := range e.states {
		if _, ok := active[id]; !ok {
			delete(e.states, id)
		}
	}
}

// State returns a copy of the tracked state for id. ok is false for
// workplaces never seen.
func (e *Enforcer) State(id host.EntityID) (WorkplaceState, bool) {
	if st, ok := e.states[id]; ok {
		return *st, true
	}
	return WorkplaceState{}, false
}

// Tracked reports how many workplaces currently hold state.
func (e *Enforcer) Tracked() int {
	return len(e.states)
}

// Reset drops all tracked state.
func (e *Enforcer) Reset() {
	e.states = make(map[host.EntityID]*WorkplaceState)
}

func (e *Enforcer) state(id host.EntityID) *WorkplaceState {
	st, ok := e.states[id]
	if !ok {
		st = &WorkplaceState{}
		e.states[id] = st
	}
	return st
}
