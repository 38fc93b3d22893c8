// Package market implements the supply/demand ledger, the elastic price
// calculator and the per-resource price multiplier cache.
package market

import (
	"math"

	"github.com/pthm-cable/agora/config"
	"github.com/pthm-cable/agora/econ"
	"github.com/pthm-cable/agora/host"
)

// Metrics accumulates ad hoc supply and demand registrations for one
// resource. Ephemeral: each tick's accumulated signal is folded into a
// multiplier exactly once, then cleared. Single writer within a tick.
type Metrics struct {
	Supply   float64
	Demand   float64
	LastTick int64
}

// Reference splits the imbalance skew pulls toward: a 3:1 shortage and a
// 1:3 surplus, expressed as the demand share of the total.
const (
	shortageDemandShare = 0.75
	surplusDemandShare  = 0.25
)

// Ledger produces one sanitized (supply, demand) pair per resource per
// tick, preferring host aggregates over its own accumulators.
type Ledger struct {
	cfg     *config.Config
	signals host.MarketSignals
	metrics map[econ.Resource]*Metrics
	tick    int64
}

// NewLedger returns an empty ledger. BeginTick must run before the first
// registration of each tick.
func NewLedger(cfg *config.Config) *Ledger {
	return &Ledger{cfg: cfg, metrics: make(map[econ.Resource]*Metrics)}
}

// BeginTick stamps subsequent registrations and refreshes the signal
// source. signals may be nil when the host subsystem is unavailable.
func (l *Ledger) BeginTick(tick int64, signals host.MarketSignals) {
	l.tick = tick
	l.signals = signals
}

// RegisterSupply adds amount to r's supply accumulator. Negative and
// non-finite amounts are dropped, as are sentinel resources.
func (l *Ledger) RegisterSupply(r econ.Resource, amount float64) {
	if !r.Tradeable() || !econ.Finite(amount) || amount <= 0 {
		return
	}
	m := l.metric(r)
	m.Supply += amount
	m.LastTick = l.tick
}

// RegisterDemand adds amount to r's demand accumulator under the same
// rules as RegisterSupply.
func (l *Ledger) RegisterDemand(r econ.Resource, amount float64) {
	if !r.Tradeable() || !econ.Finite(amount) || amount <= 0 {
		return
	}
	m := l.metric(r)
	m.Demand += amount
	m.LastTick = l.tick
}

func (l *Ledger) metric(r econ.Resource) *Metrics {
	m, ok := l.metrics[r]
	if !ok {
		m = &Metrics{}
		l.metrics[r] = m
	}
	return m
}

// SupplyDemand resolves the effective (supply, demand) pair for r this
// tick. Neutral categories and near-balanced markets collapse to a 50/50
// split; anything else is skewed toward the reference imbalance scaled
// by sensitivity. ok is false only when neither the host nor the ledger
// knows anything about r; pricing then falls back to the vanilla price.
func (l *Ledger) SupplyDemand(r econ.Resource) (supply, demand float64, ok bool) {
	if !r.Tradeable() {
		return 0, 0, false
	}
	supply, demand, ok = l.gather(r)
	if !ok {
		return 0, 0, false
	}
	total := supply + demand
	if l.cfg.Derived.Neutral[r.Category()] {
		return total / 2, total / 2, true
	}
	if math.Abs(supply-demand) <= l.cfg.Market.DemandTolerance*total {
		return total / 2, total / 2, true
	}
	ref := surplusDemandShare
	if demand > supply {
		ref = shortageDemandShare
	}
	share := econ.Lerp(demand/total, ref, l.cfg.Market.Sensitivity)
	demand = total * share
	supply = total - demand
	return supply, demand, true
}

// gather pulls host aggregates when resolvable, ledger accumulators
// otherwise.
func (l *Ledger) gather(r econ.Resource) (float64, float64, bool) {
	if l.signals != nil {
		if produced, consumed, ok := l.signals.ProductionConsumption(r); ok && econ.Finite(produced, consumed) {
			return math.Max(0, produced), math.Max(0, consumed), true
		}
	}
	if m, ok := l.metrics[r]; ok {
		return m.Supply, m.Demand, true
	}
	return 0, 0, false
}

// Consume clears r's accumulated metrics. The multiplier cache calls
// this after folding them in; nothing else may.
func (l *Ledger) Consume(r econ.Resource) {
	delete(l.metrics, r)
}

// ResourceView is one row of the diagnostics snapshot.
type ResourceView struct {
	Name         string  `json:"resource"`
	Supply       float64 `json:"supply"`
	Demand       float64 `json:"demand"`
	TradeBalance float64 `json:"trade_balance"`
	TradeWorth   float64 `json:"trade_worth"`
	LastTick     int64   `json:"last_tick"`
}

// Snapshot reports the resolved pair and trade data for every resource
// the ledger or host currently knows, in enumeration order. Read-only;
// nothing is consumed.
func (l *Ledger) Snapshot() []ResourceView {
	var out []ResourceView
	for _, r := range econ.Resources() {
		s, d, ok := l.SupplyDemand(r)
		if !ok {
			continue
		}
		v := ResourceView{Name: r.String(), Supply: s, Demand: d}
		if m, ok := l.metrics[r]; ok {
			v.LastTick = m.LastTick
		}
		if l.signals != nil {
			if balance, worth, ok := l.signals.Trade(r); ok {
				v.TradeBalance, v.TradeWorth = balance, worth
			}
		}
		out = append(out, v)
	}
	return out
}
