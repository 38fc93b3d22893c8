// Package telemetry provides per-tick trace rows, windowed statistics,
// CSV output and phase timings for the regulation engine.
package telemetry

import (
	"github.com/pthm-cable/agora/econ"
	"github.com/pthm-cable/agora/market"
	"github.com/pthm-cable/agora/tax"
	"github.com/pthm-cable/agora/workforce"
)

// PriceTrace is one row per adjusted resource per tick, carrying every
// intermediate of the elastic price chain.
type PriceTrace struct {
	Tick        int64   `csv:"tick" json:"tick"`
	Resource    string  `csv:"resource" json:"resource"`
	Supply      float64 `csv:"supply" json:"supply"`
	Demand      float64 `csv:"demand" json:"demand"`
	Ratio       float64 `csv:"ratio" json:"ratio"`
	Exponent    float64 `csv:"exponent" json:"exponent"`
	Vanilla     float64 `csv:"vanilla" json:"vanilla"`
	Raw         float64 `csv:"raw" json:"raw"`
	Anchored    float64 `csv:"anchored" json:"anchored"`
	Elastic     float64 `csv:"elastic" json:"elastic"`
	Blended     float64 `csv:"blended" json:"blended"`
	Final       float64 `csv:"final" json:"final"`
	Multiplier  float64 `csv:"multiplier" json:"multiplier"`
	ClampedLow  bool    `csv:"clamped_low" json:"clamped_low"`
	ClampedHigh bool    `csv:"clamped_high" json:"clamped_high"`
	Fallback    bool    `csv:"fallback" json:"fallback"`
}

// NewPriceTrace builds a trace row from one elastic price breakdown and
// the multiplier the cache derived for the same tick.
func NewPriceTrace(tick int64, r econ.Resource, vanilla float64, bd market.Breakdown, multiplier float64) PriceTrace {
	return PriceTrace{
		Tick:        tick,
		Resource:    r.String(),
		Supply:      bd.Supply,
		Demand:      bd.Demand,
		Ratio:       bd.Ratio,
		Exponent:    bd.Exponent,
		Vanilla:     vanilla,
		Raw:         bd.Raw,
		Anchored:    bd.Anchored,
		Elastic:     bd.Elastic,
		Blended:     bd.Blended,
		Final:       bd.Final,
		Multiplier:  multiplier,
		ClampedLow:  !bd.Fallback && !bd.Bypass && bd.Final == bd.MinPrice,
		ClampedHigh: !bd.Fallback && !bd.Bypass && bd.Final == bd.MaxPrice,
		Fallback:    bd.Fallback,
	}
}

// WageTrace is one row per wage adjustment tick: the multiplier in
// effect, the census behind it and the resulting bands.
type WageTrace struct {
	Tick         int64   `csv:"tick" json:"tick"`
	Multiplier   float64 `csv:"multiplier" json:"multiplier"`
	Workforce    int     `csv:"workforce" json:"workforce"`
	Employed     int     `csv:"employed" json:"employed"`
	Unemployment float64 `csv:"unemployment" json:"unemployment"`
	Band0        int     `csv:"band0" json:"band0"`
	Band1        int     `csv:"band1" json:"band1"`
	Band2        int     `csv:"band2" json:"band2"`
	Band3        int     `csv:"band3" json:"band3"`
	Band4        int     `csv:"band4" json:"band4"`
}

// MaintenanceCharge is one row per charged maintenance fee.
type MaintenanceCharge struct {
	Tick      int64   `csv:"tick" json:"tick"`
	Workplace uint64  `csv:"workplace" json:"workplace"`
	Amount    int     `csv:"amount" json:"amount"`
	Debt      float64 `csv:"debt" json:"debt"`
}

// NewMaintenanceCharge builds a trace row from one enforcer charge.
func NewMaintenanceCharge(tick int64, c workforce.Charge) MaintenanceCharge {
	return MaintenanceCharge{
		Tick:      tick,
		Workplace: uint64(c.ID),
		Amount:    c.Amount,
		Debt:      c.Debt,
	}
}

// TaxTrace is one row per company income adjustment.
type TaxTrace struct {
	Tick       int64   `csv:"tick" json:"tick"`
	Company    uint64  `csv:"company" json:"company"`
	Profit     float64 `csv:"profit_per_tick" json:"profit_per_tick"`
	Rent       float64 `csv:"rent_per_tick" json:"rent_per_tick"`
	Net        float64 `csv:"net_income" json:"net_income"`
	Adjustment float64 `csv:"adjustment" json:"adjustment"`
	Area       string  `csv:"area" json:"area"`
	Rate       float64 `csv:"rate" json:"rate"`
}

// NewTaxTrace builds a trace row from one adjuster trace.
func NewTaxTrace(tick int64, t tax.Trace) TaxTrace {
	return TaxTrace{
		Tick:       tick,
		Company:    uint64(t.ID),
		Profit:     t.ProfitPerTick,
		Rent:       t.RentPerTick,
		Net:        t.NetIncome,
		Adjustment: t.Adjustment,
		Area:       t.Area.String(),
		Rate:       t.AverageRate,
	}
}
