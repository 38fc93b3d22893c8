package telemetry

import (
	"math"

	"github.com/pthm-cable/agora/config"
	"github.com/pthm-cable/agora/host"
)

// Collector accumulates trace rows within stats windows and produces
// WindowStats. Single-writer; the engine owns it.
type Collector struct {
	windowTicks     int64
	windowStartTick int64

	// Window samples
	multipliers []float64
	deviations  []float64

	// Window counters
	pricesAdjusted int
	priceFallbacks int
	clampsLow      int
	clampsHigh     int
	shortages      int
	surpluses      int
	charges        int
	chargeTotal    int
	taxAdjustments int
	taxNetTotal    float64
	taxAdjTotal    float64

	// Window-end state
	lastWage WageTrace

	lifetime *LifetimeTracker
	records  *RecordBook
}

// NewCollector creates a collector with the configured window length.
func NewCollector(cfg *config.Config) *Collector {
	ticks := int64(cfg.Telemetry.StatsWindow)
	if ticks < 1 {
		ticks = 1
	}
	return &Collector{
		windowTicks: ticks,
		lastWage:    WageTrace{Multiplier: 1},
		lifetime:    NewLifetimeTracker(),
		records:     NewRecordBook(cfg.Telemetry.RecordBook),
	}
}

// RecordPrice accounts one adjusted resource row.
func (c *Collector) RecordPrice(t PriceTrace) {
	c.pricesAdjusted++
	if t.Fallback {
		c.priceFallbacks++
	}
	if t.ClampedLow {
		c.clampsLow++
	}
	if t.ClampedHigh {
		c.clampsHigh++
	}
	switch {
	case t.Demand > t.Supply:
		c.shortages++
	case t.Supply > t.Demand:
		c.surpluses++
	}

	c.multipliers = append(c.multipliers, t.Multiplier)
	if !t.Fallback && t.Vanilla > 0 {
		c.deviations = append(c.deviations, t.Final/t.Vanilla)
	}

	c.lifetime.Observe(t)
	c.records.ConsiderPrice(t)
}

// RecordWage stores the latest wage adjustment; the window reports the
// state at its end.
func (c *Collector) RecordWage(t WageTrace) {
	c.lastWage = t
}

// RecordMaintenance accounts a tick's charged fees.
func (c *Collector) RecordMaintenance(rows []MaintenanceCharge) {
	c.charges += len(rows)
	for _, r := range rows {
		c.chargeTotal += r.Amount
		c.records.ConsiderCharge(r)
	}
}

// RecordTaxes accounts a tick's income adjustments.
func (c *Collector) RecordTaxes(rows []TaxTrace) {
	c.taxAdjustments += len(rows)
	for _, r := range rows {
		c.taxNetTotal += r.Net
		c.taxAdjTotal += r.Adjustment
		c.records.ConsiderTax(r)
	}
}

// ShouldFlush reports whether the current window is complete.
func (c *Collector) ShouldFlush(tick int64) bool {
	return tick-c.windowStartTick >= c.windowTicks
}

// Flush produces the window's stats and resets counters for the next
// window. Lifetime tracking survives the flush.
func (c *Collector) Flush(info host.TickInfo) WindowStats {
	mult := Summarize(c.multipliers)

	var devMean, devMax float64
	if len(c.deviations) > 0 {
		var sum float64
		devMax = c.deviations[0]
		for _, d := range c.deviations {
			sum += d
			if math.Abs(d-1) > math.Abs(devMax-1) {
				devMax = d
			}
		}
		devMean = sum / float64(len(c.deviations))
	}

	day := 0
	if info.UpdatesPerDay > 0 {
		day = int(info.Tick / int64(info.UpdatesPerDay))
	}

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   info.Tick,
		Day:             day,

		PricesAdjusted: c.pricesAdjusted,
		PriceFallbacks: c.priceFallbacks,
		ClampsLow:      c.clampsLow,
		ClampsHigh:     c.clampsHigh,
		Shortages:      c.shortages,
		Surpluses:      c.surpluses,

		MultiplierMean: mult.Mean,
		MultiplierStd:  mult.Std,
		MultiplierP10:  mult.P10,
		MultiplierP50:  mult.P50,
		MultiplierP90:  mult.P90,

		DeviationMean: devMean,
		DeviationMax:  devMax,

		WageMultiplier: c.lastWage.Multiplier,
		Unemployment:   c.lastWage.Unemployment,

		MaintenanceCharges: c.charges,
		MaintenanceTotal:   c.chargeTotal,

		TaxAdjustments: c.taxAdjustments,
		TaxNetTotal:    c.taxNetTotal,
		TaxAdjTotal:    c.taxAdjTotal,
	}

	c.windowStartTick = info.Tick
	c.multipliers = c.multipliers[:0]
	c.deviations = c.deviations[:0]
	c.pricesAdjusted = 0
	c.priceFallbacks = 0
	c.clampsLow = 0
	c.clampsHigh = 0
	c.shortages = 0
	c.surpluses = 0
	c.charges = 0
	c.chargeTotal = 0
	c.taxAdjustments = 0
	c.taxNetTotal = 0
	c.taxAdjTotal = 0

	return stats
}

// WindowTicks returns the window length in ticks.
func (c *Collector) WindowTicks() int64 {
	return c.windowTicks
}

// WindowStart returns the tick the current window opened at.
func (c *Collector) WindowStart() int64 {
	return c.windowStartTick
}

// Lifetime returns the per-resource running totals.
func (c *Collector) Lifetime() *LifetimeTracker {
	return c.lifetime
}

// Records returns the run's extreme-moment record book.
func (c *Collector) Records() *RecordBook {
	return c.records
}
