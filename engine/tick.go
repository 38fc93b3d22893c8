package engine

import (
	"log/slog"
	"math"

	"github.com/pthm-cable/agora/econ"
	"github.com/pthm-cable/agora/host"
	"github.com/pthm-cable/agora/market"
	"github.com/pthm-cable/agora/telemetry"
)

// Step runs one full tick: wages, prices, utilization, taxes, then
// end-of-tick bookkeeping. A panic anywhere inside the tick is logged
// and swallowed; the host's loop must never die to a regulator bug.
func (e *Engine) Step() {
	tick := int64(-1)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tick panic recovered", "tick", tick, "panic", r)
		}
	}()

	info := e.h.Clock()
	tick = info.Tick

	e.perf.StartTick()

	e.perf.StartPhase(telemetry.PhaseWages)
	e.AdjustWages()

	e.perf.StartPhase(telemetry.PhasePrices)
	e.AdjustPrices()

	e.perf.StartPhase(telemetry.PhaseUtilization)
	e.EnforceUtilization()

	e.perf.StartPhase(telemetry.PhaseTaxes)
	e.AdjustTaxes()

	e.perf.StartPhase(telemetry.PhaseTelemetry)
	e.EndTick()

	e.perf.EndTick()
}

// AdjustWages recomputes the citywide wage multiplier from the census
// and rewrites the wage bands over the captured baseline. Must run
// before the host's wage payout.
func (e *Engine) AdjustWages() {
	if e.disabled || !e.cfg.Labor.Enabled {
		return
	}
	bands := e.h.Wages()
	if bands == nil {
		e.missingDep("wages")
		return
	}
	e.resolvedDep("wages")
	census := e.h.Census()
	if census == nil {
		e.missingDep("census")
		return
	}
	e.resolvedDep("census")

	stats, ok := census.LaborStats()
	mult := e.wages.Apply(bands, stats, ok)
	if !ok {
		// No census yet; Apply restored the baseline.
		return
	}

	info := e.h.Clock()
	row := telemetry.WageTrace{
		Tick:         info.Tick,
		Multiplier:   mult,
		Workforce:    stats.Workforce,
		Employed:     stats.Employed,
		Unemployment: econ.Saturate(1 - float64(stats.Employed)/math.Max(1, float64(stats.Workforce))),
		Band0:        bands.Wage(0),
		Band1:        bands.Wage(1),
		Band2:        bands.Wage(2),
		Band3:        bands.Wage(3),
		Band4:        bands.Wage(4),
	}
	e.collector.RecordWage(row)
	e.wageRow = row
	e.wageDirty = true
}

// AdjustPrices folds the tick's supply/demand signal into fresh price
// multipliers and traces the full elastic chain for every resource with
// data. Must run before the host's sale settlement.
func (e *Engine) AdjustPrices() {
	if e.disabled || !e.cfg.Market.Enabled {
		return
	}
	info := e.h.Clock()

	signals := e.h.Signals()
	if signals == nil {
		e.missingDep("signals")
	} else {
		e.resolvedDep("signals")
	}
	e.ledger.BeginTick(info.Tick, signals)

	prices := e.h.Prices()
	if prices == nil {
		e.missingDep("prices")
		return
	}
	e.resolvedDep("prices")

	for _, r := range econ.Resources() {
		if !r.Tradeable() {
			continue
		}
		supply, demand, ok := e.ledger.SupplyDemand(r)
		if !ok {
			continue
		}
		// Refresh consumes the tick's metrics even for resources the
		// catalog cannot price, so accumulators never pile up.
		mult := e.cache.Refresh(r, info.Tick)
		vanilla, ok := prices.VanillaPrice(r)
		if !ok {
			continue
		}
		_, bd := market.Elastic(r, vanilla, supply, demand, &e.cfg.Market)

		t := telemetry.NewPriceTrace(info.Tick, r, vanilla, bd, mult)
		e.collector.RecordPrice(t)
		e.priceRows = append(e.priceRows, t)
	}
}

// EnforceUtilization clamps under-staffed workplaces toward the
// utilization floor and charges accrued maintenance. Must run after the
// host's workforce assignment.
func (e *Engine) EnforceUtilization() {
	if e.disabled || !e.cfg.Workforce.Enabled {
		return
	}
	dir := e.h.Workplaces()
	if dir == nil {
		e.missingDep("workplaces")
		return
	}
	e.resolvedDep("workplaces")

	ledger := e.h.Ledger()
	if ledger == nil {
		// Charges defer until a ledger appears; the clamp still runs.
		e.missingDep("ledger")
	} else {
		e.resolvedDep("ledger")
	}

	info := e.h.Clock()
	list := dir.Workplaces()
	active := make(map[host.EntityID]struct{}, len(list))
	for _, wp := range list {
		active[wp.ID] = struct{}{}
	}
	e.activeWorkplaces = active

	charges := e.enforcer.Enforce(dir, ledger, info)
	if len(charges) == 0 {
		return
	}
	rows := make([]telemetry.MaintenanceCharge, 0, len(charges))
	for _, c := range charges {
		rows = append(rows, telemetry.NewMaintenanceCharge(info.Tick, c))
	}
	e.collector.RecordMaintenance(rows)
	e.maintenance = append(e.maintenance, rows...)
}

// AdjustTaxes replaces each company's host-attributed income delta with
// its profit-minus-rent figure. Must run before the host's tax
// collection.
func (e *Engine) AdjustTaxes() {
	if e.disabled || !e.cfg.Tax.Enabled {
		return
	}
	dir := e.h.Companies()
	if dir == nil {
		e.missingDep("companies")
		return
	}
	e.resolvedDep("companies")

	profit := e.h.Profit()
	if profit == nil {
		e.missingDep("profit")
		return
	}
	e.resolvedDep("profit")

	policy := e.h.Policy()
	if policy == nil {
		// Income still adjusts; only the rate blend is skipped.
		e.missingDep("policy")
	} else {
		e.resolvedDep("policy")
	}

	info := e.h.Clock()
	list := dir.Companies()
	active := make(map[host.EntityID]struct{}, len(list))
	for _, c := range list {
		active[c.ID] = struct{}{}
	}
	e.activeCompanies = active

	traces := e.taxes.Adjust(dir, policy, profit, info)
	if len(traces) == 0 {
		return
	}
	rows := make([]telemetry.TaxTrace, 0, len(traces))
	for _, t := range traces {
		rows = append(rows, telemetry.NewTaxTrace(info.Tick, t))
	}
	e.collector.RecordTaxes(rows)
	e.taxRows = append(e.taxRows, rows...)
}

// EndTick prunes per-entity state against the tick's active sets,
// drains the trace buffers and flushes the stats window when due. Runs
// even while disabled so pending rows still land.
func (e *Engine) EndTick() {
	if e.activeWorkplaces != nil {
		e.enforcer.Prune(e.activeWorkplaces)
		e.activeWorkplaces = nil
	}
	if e.activeCompanies != nil {
		e.taxes.Prune(e.activeCompanies)
		e.activeCompanies = nil
	}

	e.flushRows()

	info := e.h.Clock()
	if e.collector.ShouldFlush(info.Tick) {
		e.flushWindow(info)
	}
}
