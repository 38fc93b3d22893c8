// Package engine ties the four regulators together and drives them
// against a host in a fixed per-tick order: wages, prices, utilization,
// taxes, then end-of-tick bookkeeping. Each phase is also individually
// callable for hosts with their own pipelines.
package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pthm-cable/agora/config"
	"github.com/pthm-cable/agora/econ"
	"github.com/pthm-cable/agora/host"
	"github.com/pthm-cable/agora/labor"
	"github.com/pthm-cable/agora/market"
	"github.com/pthm-cable/agora/tax"
	"github.com/pthm-cable/agora/telemetry"
	"github.com/pthm-cable/agora/workforce"
)

// bookmarkHistory is how many stats windows the bookmark detector keeps
// for its baselines.
const bookmarkHistory = 10

// Recorder receives every trace row the engine produces, for durable
// storage. All methods may be called with empty batches.
type Recorder interface {
	RecordPrices(rows []telemetry.PriceTrace) error
	RecordWage(row telemetry.WageTrace) error
	RecordMaintenance(rows []telemetry.MaintenanceCharge) error
	RecordTaxes(rows []telemetry.TaxTrace) error
}

// Options configures optional engine behavior. The zero value runs the
// engine with config-file telemetry settings and no hooks.
type Options struct {
	// LogStats emits window stats, perf stats and bookmarks via slog.
	LogStats bool

	// OutputDir overrides the configured telemetry output directory.
	OutputDir string

	// Recorder mirrors trace rows into durable storage.
	Recorder Recorder

	// OnStats runs after every completed stats window.
	OnStats func(telemetry.WindowStats)

	// OnPrices runs at the end of every tick that adjusted at least one
	// price. The slice is reused; callbacks must copy what they keep.
	OnPrices func([]telemetry.PriceTrace)
}

// Engine owns the regulators and their telemetry. Single-threaded: the
// host drives it from its own simulation step, one phase at a time.
type Engine struct {
	cfg *config.Config
	h   host.Host

	ledger   *market.Ledger
	cache    *market.MultiplierCache
	wages    *labor.Regulator
	enforcer *workforce.Enforcer
	taxes    *tax.Adjuster

	collector *telemetry.Collector
	perf      *telemetry.PerfCollector
	bookmarks *telemetry.BookmarkDetector
	output    *telemetry.OutputManager
	opts      Options

	// Dependencies already warned about; cleared when they resolve so a
	// later disappearance warns again.
	missing map[string]struct{}

	// Per-tick row buffers, drained by EndTick.
	priceRows   []telemetry.PriceTrace
	wageRow     telemetry.WageTrace
	wageDirty   bool
	maintenance []telemetry.MaintenanceCharge
	taxRows     []telemetry.TaxTrace

	// Active-entity snapshots captured by the phases that enumerate
	// them; nil when the phase did not run this tick.
	activeWorkplaces map[host.EntityID]struct{}
	activeCompanies  map[host.EntityID]struct{}

	disabled bool
	closed   bool
}

// New builds an engine over the given host. The output directory is
// created immediately when telemetry output is enabled; everything else
// initializes lazily on the first tick.
func New(cfg *config.Config, h host.Host, opts Options) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if h == nil {
		return nil, errors.New("nil host")
	}

	ledger := market.NewLedger(cfg)
	e := &Engine{
		cfg:       cfg,
		h:         h,
		ledger:    ledger,
		cache:     market.NewMultiplierCache(cfg, ledger),
		wages:     labor.New(cfg),
		enforcer:  workforce.New(cfg),
		taxes:     tax.New(cfg),
		collector: telemetry.NewCollector(cfg),
		perf:      telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		bookmarks: telemetry.NewBookmarkDetector(bookmarkHistory),
		opts:      opts,
		missing:   make(map[string]struct{}),
	}

	if cfg.Telemetry.Enabled {
		dir := opts.OutputDir
		if dir == "" {
			dir = cfg.Telemetry.OutputDir
		}
		om, err := telemetry.NewOutputManager(dir)
		if err != nil {
			return nil, fmt.Errorf("creating telemetry output: %w", err)
		}
		e.output = om
		if err := om.WriteConfig(cfg); err != nil {
			slog.Warn("failed to snapshot config", "error", err)
		}
	}

	return e, nil
}

// Disable stops all future state mutation and restores the wage
// baseline immediately. Safe at any tick boundary; already-applied
// price multipliers keep their last values.
func (e *Engine) Disable() {
	if e.disabled {
		return
	}
	e.disabled = true
	e.wages.Restore(e.h.Wages())
	slog.Info("regulation disabled")
}

// Enable resumes regulation. A previously captured wage baseline stays
// in force; nothing is recaptured.
func (e *Engine) Enable() {
	if !e.disabled {
		return
	}
	e.disabled = false
	slog.Info("regulation enabled")
}

// Disabled reports whether the engine is currently inert.
func (e *Engine) Disabled() bool {
	return e.disabled
}

// Close restores wages, clears all regulator state, flushes the partial
// stats window and closes telemetry output. Idempotent.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	e.wages.Restore(e.h.Wages())
	e.wages.Reset()
	e.enforcer.Reset()
	e.taxes.Reset()
	e.cache.Reset()

	info := e.h.Clock()
	e.flushRows()
	if info.Tick > e.collector.WindowStart() {
		e.flushWindow(info)
	}

	var firstErr error
	if e.output != nil {
		if err := e.output.WriteRecords(e.collector.Records()); err != nil {
			firstErr = err
		}
		dir := e.output.Dir()
		if err := e.output.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if e.cfg.Telemetry.Archive {
			if _, err := telemetry.ArchiveRun(dir); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("archiving run: %w", err)
			}
		}
	}
	return firstErr
}

// ElasticPrice resolves the market-adjusted price for r from the
// current ledger data without consuming it. Vanilla passthrough when
// pricing is off or no data exists.
func (e *Engine) ElasticPrice(r econ.Resource, vanilla float64) float64 {
	if e.disabled || !e.cfg.Market.Enabled {
		return vanilla
	}
	supply, demand, ok := e.ledger.SupplyDemand(r)
	if !ok {
		return vanilla
	}
	price, _ := market.Elastic(r, vanilla, supply, demand, &e.cfg.Market)
	return price
}

// AdjustComponent splits a price through the cached multiplier and the
// component biases. Passthrough of the requested component when pricing
// is off.
func (e *Engine) AdjustComponent(r econ.Resource, industrial, service float64, sel market.Selector) float64 {
	if e.disabled || !e.cfg.Market.Enabled {
		switch sel {
		case market.SelectorIndustrial:
			return industrial
		case market.SelectorService:
			return service
		default:
			return industrial + service
		}
	}
	return e.cache.AdjustComponent(r, industrial, service, sel)
}

// Ledger exposes the supply/demand ledger for host-side registration
// call sites.
func (e *Engine) Ledger() *market.Ledger {
	return e.ledger
}

// Multipliers exposes the per-resource price multiplier cache.
func (e *Engine) Multipliers() *market.MultiplierCache {
	return e.cache
}

// Lifetime returns per-resource running totals since engine start.
func (e *Engine) Lifetime() *telemetry.LifetimeTracker {
	return e.collector.Lifetime()
}

// Records returns the run's extreme-moment record book.
func (e *Engine) Records() *telemetry.RecordBook {
	return e.collector.Records()
}

// PerfStats summarizes phase timings over the rolling window.
func (e *Engine) PerfStats() telemetry.PerfStats {
	return e.perf.Stats()
}

// WageMultiplier reports the multiplier currently applied to the wage
// bands, 1 after a restore.
func (e *Engine) WageMultiplier() float64 {
	return e.wages.LastMultiplier()
}

// WageBaseline returns the captured wage bands. ok is false before the
// first adjustment.
func (e *Engine) WageBaseline() ([host.WageLevels]int, bool) {
	return e.wages.BaselineBands()
}

// TrackedWorkplaces reports how many workplaces hold enforcer state.
func (e *Engine) TrackedWorkplaces() int {
	return e.enforcer.Tracked()
}

// TrackedCompanies reports how many companies hold tax state.
func (e *Engine) TrackedCompanies() int {
	return e.taxes.Tracked()
}

// missingDep warns once per dependency name until it resolves again.
func (e *Engine) missingDep(name string) {
	if _, warned := e.missing[name]; warned {
		return
	}
	e.missing[name] = struct{}{}
	slog.Warn("host dependency unavailable", "dependency", name)
}

// resolvedDep clears the warning state so a later disappearance warns
// again.
func (e *Engine) resolvedDep(name string) {
	delete(e.missing, name)
}
