// Package labor implements the citywide wage regulator: one multiplier
// per tick from unemployment and skill statistics, applied reversibly
// over a captured wage baseline.
package labor

import (
	"log/slog"
	"math"

	"github.com/pthm-cable/agora/config"
	"github.com/pthm-cable/agora/econ"
	"github.com/pthm-cable/agora/host"
)

// Wage multiplier band.
const (
	minMultiplier = 0.5
	maxMultiplier = 1.75
)

// skilledShareTarget is the skilled share below which wages carry a
// shortage premium.
const skilledShareTarget = 0.3

// Baseline holds the wage bands captured before any adjustment. Sole
// restore target; captured at most once per session.
type Baseline struct {
	Bands    [host.WageLevels]int
	captured bool
}

// Regulator moves the host's wage bands by a bounded multiplier. Two
// states: uninitialized (no baseline) and initialized (baseline held,
// restorable at any time).
type Regulator struct {
	cfg      *config.Config
	baseline Baseline
	lastMult float64
}

// New returns an uninitialized regulator.
func New(cfg *config.Config) *Regulator {
	return &Regulator{cfg: cfg, lastMult: 1}
}

// Evaluate computes the wage multiplier for a census snapshot:
// unemployment pushes wages down, a skilled-worker shortage and a
// low-skill oversupply push them up. Result is clamped to [0.5, 1.75].
func (r *Regulator) Evaluate(stats host.LaborStats) float64 {
	workforce := math.Max(1, float64(stats.Workforce))
	unemployment := econ.Saturate(1 - float64(stats.Employed)/workforce)

	educated := 0
	for _, n := range stats.Education {
		educated += n
	}
	denom := float64(educated)
	if denom < 1 {
		denom = workforce
	}
	skilledShare := float64(stats.Education[3]+stats.Education[4]) / denom
	lowSkillShare := float64(stats.Education[0]+stats.Education[1]) / denom

	shortage := econ.Saturate(skilledShareTarget - skilledShare)
	mismatch := econ.Saturate(lowSkillShare - skilledShare)

	lc := r.cfg.Labor
	mult := 1 - unemployment*lc.UnemploymentWagePenalty +
		shortage*lc.SkillShortagePremium +
		mismatch*lc.EducationMismatchPremium
	mult = econ.Clamp(mult, minMultiplier, maxMultiplier)
	if !econ.Finite(mult) {
		mult = 1
	}
	return mult
}

// EnsureBaseline captures the current wage bands exactly once. A second
// capture attempt is a no-op, not an error.
func (r *Regulator) EnsureBaseline(bands host.WageBandAccessor) {
	if r.baseline.captured || bands == nil {
		return
	}
	for i := range r.baseline.Bands {
		r.baseline.Bands[i] = bands.Wage(i)
	}
	r.baseline.captured = true
	slog.Info("wage baseline captured", "bands", r.baseline.Bands)
}

// Apply sets every wage band to round(baseline * multiplier), floored at
// 1. Without a census snapshot it restores the baseline instead of
// guessing. Returns the multiplier in effect afterwards.
func (r *Regulator) Apply(bands host.WageBandAccessor, stats host.LaborStats, statsOK bool) float64 {
	if bands == nil {
		return r.lastMult
	}
	r.EnsureBaseline(bands)
	if !statsOK {
		r.Restore(bands)
		return r.lastMult
	}

	mult := r.Evaluate(stats)
	for i, base := range r.baseline.Bands {
		wage := econ.RoundInt(float64(base) * mult)
		if wage < 1 {
			wage = 1
		}
		bands.SetWage(i, wage)
	}
	r.lastMult = mult
	return mult
}

// Restore writes the captured baseline back, bit-for-bit. No-op before
// capture.
func (r *Regulator) Restore(bands host.WageBandAccessor) {
	if !r.baseline.captured || bands == nil {
		return
	}
	for i, base := range r.baseline.Bands {
		bands.SetWage(i, base)
	}
	r.lastMult = 1
}

// Reset clears the baseline. Engine teardown calls Restore first, then
// Reset, so a later session captures fresh bands.
func (r *Regulator) Reset() {
	r.baseline = Baseline{}
	r.lastMult = 1
}

// LastMultiplier reports the multiplier currently applied to the bands,
// 1 after a restore.
func (r *Regulator) LastMultiplier() float64 {
	return r.lastMult
}

// BaselineBands returns the captured bands. ok is false while
// uninitialized.
func (r *Regulator) BaselineBands() ([host.WageLevels]int, bool) {
	return r.baseline.Bands, r.baseline.captured
}
