package market

import (
	"math"

	"github.com/pthm-cable/agora/config"
	"github.com/pthm-cable/agora/econ"
)

// PriceState persists one resource's market state across ticks. Reset on
// world reload, otherwise only the multiplier cache writes it.
type PriceState struct {
	Multiplier      float64 // within [MinPriceMultiplier, MaxPriceMultiplier]
	ExternalFloor   float64 // host trade price bounds, display only
	ExternalCeiling float64
	UpdatedTick     int64
}

// Selector picks which component AdjustComponent returns.
type Selector uint8

const (
	SelectorMarket Selector = iota // combined total
	SelectorIndustrial
	SelectorService
)

// MultiplierCache persists a smoothed per-resource multiplier across
// ticks for cheap component-wise price splitting.
type MultiplierCache struct {
	cfg    *config.Config
	ledger *Ledger
	states map[econ.Resource]*PriceState
}

// NewMultiplierCache returns an empty cache over the given ledger.
func NewMultiplierCache(cfg *config.Config, ledger *Ledger) *MultiplierCache {
	return &MultiplierCache{
		cfg:    cfg,
		ledger: ledger,
		states: make(map[econ.Resource]*PriceState),
	}
}

// Refresh recomputes r's multiplier from the ledger and consumes the
// tick's accumulated metrics. Without fresh data the cached multiplier
// stands; a resource never seen at all reports 1.
func (c *MultiplierCache) Refresh(r econ.Resource, tick int64) float64 {
	if !r.Tradeable() {
		return 1
	}
	supply, demand, ok := c.ledger.SupplyDemand(r)
	if !ok {
		return c.Multiplier(r)
	}
	ratio := math.Max(1, demand) / math.Max(1, supply)
	mult := econ.Clamp(ratio, c.cfg.Market.MinPriceMultiplier, c.cfg.Market.MaxPriceMultiplier)
	if !econ.Finite(mult) {
		mult = 1
	}
	st := c.state(r)
	st.Multiplier = mult
	st.UpdatedTick = tick
	c.ledger.Consume(r)
	return mult
}

// Multiplier returns the cached multiplier for r, 1 when none exists.
func (c *MultiplierCache) Multiplier(r econ.Resource) float64 {
	if st, ok := c.states[r]; ok {
		return st.Multiplier
	}
	return 1
}

// AdjustComponent applies the cached multiplier and the component biases
// to a price split into industrial and service parts. A non-positive
// total or a sentinel resource passes the requested component through
// unchanged.
func (c *MultiplierCache) AdjustComponent(r econ.Resource, industrial, service float64, sel Selector) float64 {
	total := industrial + service
	if total <= 0 || !r.Tradeable() {
		switch sel {
		case SelectorIndustrial:
			return industrial
		case SelectorService:
			return service
		default:
			return total
		}
	}
	mult := c.Multiplier(r)
	industrial *= mult * c.cfg.Market.IndustrialComponentBias
	service *= mult * c.cfg.Market.ServiceComponentBias
	switch sel {
	case SelectorIndustrial:
		return industrial
	case SelectorService:
		return service
	default:
		return industrial + service
	}
}

// SetExternalBounds records host trade price bounds for r. Diagnostics
// data; never applied to computed prices.
func (c *MultiplierCache) SetExternalBounds(r econ.Resource, floor, ceiling float64) {
	if !r.Tradeable() {
		return
	}
	st := c.state(r)
	st.ExternalFloor = floor
	st.ExternalCeiling = ceiling
}

// State returns a copy of r's price state. ok is false for resources the
// cache has never touched.
func (c *MultiplierCache) State(r econ.Resource) (PriceState, bool) {
	if st, ok := c.states[r]; ok {
		return *st, true
	}
	return PriceState{}, false
}

// Reset drops all cached price state (world reload).
func (c *MultiplierCache) Reset() {
	c.states = make(map[econ.Resource]*PriceState)
}

func (c *MultiplierCache) state(r econ.Resource) *PriceState {
	st, ok := c.states[r]
	if !ok {
		st = &PriceState{Multiplier: 1}
		c.states[r] = st
	}
	return st
}
