package engine

import (
	"github.com/pthm-cable/agora/econ"
	"github.com/pthm-cable/agora/host"
	"github.com/pthm-cable/agora/market"
	"github.com/pthm-cable/agora/telemetry"
)

// Snapshot captures the engine's regulation state at the current tick:
// every resource's ledger pair and multiplier, the wage state and the
// tracked-entity counts. Read-only; safe between phases.
func (e *Engine) Snapshot() *telemetry.Snapshot {
	info := e.h.Clock()

	states := make(map[string]market.PriceState)
	for _, r := range econ.Resources() {
		if st, ok := e.cache.State(r); ok {
			states[r.String()] = st
		}
	}

	views := e.ledger.Snapshot()
	resources := make([]telemetry.ResourceState, 0, len(views))
	for _, v := range views {
		rs := telemetry.ResourceState{
			Resource:     v.Name,
			Supply:       v.Supply,
			Demand:       v.Demand,
			TradeBalance: v.TradeBalance,
			TradeWorth:   v.TradeWorth,
			LastTick:     v.LastTick,
		}
		if st, ok := states[v.Name]; ok {
			rs.Multiplier = st.Multiplier
			rs.Floor = st.ExternalFloor
			rs.Ceiling = st.ExternalCeiling
			rs.UpdatedTick = st.UpdatedTick
		}
		resources = append(resources, rs)
	}

	wages := telemetry.WageState{Multiplier: e.wages.LastMultiplier()}
	if base, ok := e.wages.BaselineBands(); ok {
		wages.Baseline = base[:]
	}
	if bands := e.h.Wages(); bands != nil {
		cur := make([]int, host.WageLevels)
		for i := range cur {
			cur[i] = bands.Wage(i)
		}
		wages.Bands = cur
	}

	return &telemetry.Snapshot{
		Version:           telemetry.SnapshotVersion,
		Tick:              info.Tick,
		Disabled:          e.disabled,
		Resources:         resources,
		Wages:             wages,
		TrackedWorkplaces: e.enforcer.Tracked(),
		TrackedCompanies:  e.taxes.Tracked(),
	}
}
