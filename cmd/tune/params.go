package main

import (
	"math"

	"github.com/pthm-cable/agora/config"
)

// ParamSpec describes one tunable regulation knob: where it lives in the
// config tree and the range the search may explore. Bounds are tighter
// than the config's own sanity clamps.
type ParamSpec struct {
	Name    string  // short name for logs and the eval CSV
	Path    string  // config key, e.g. "market.sensitivity"
	Min     float64 // lower search bound
	Max     float64 // upper search bound
	Default float64 // embedded default, shown in the startup table
}

// ParamVector is the ordered set of knobs under search. The optimizer
// works in normalized [0,1] coordinates; Denormalize maps them back to
// config values.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector returns the knobs worth searching. The price band
// bounds are not part of the search.
func NewParamVector() *ParamVector {
	return &ParamVector{Specs: []ParamSpec{
		{"sensitivity", "market.sensitivity", 0.10, 1.00, 0.65},
		{"anchoring", "market.price_anchoring_strength", 0.00, 1.00, 0.10},
		{"smoothing", "market.logistic_smoothing_scale", 0.05, 1.00, 0.50},
		{"tolerance", "market.demand_tolerance", 0.00, 0.50, 0.10},
		{"external-influence", "market.external_price_influence", 0.00, 1.00, 0.00},
		{"wage-penalty", "labor.unemployment_wage_penalty", 0.00, 2.00, 0.60},
		{"shortage-premium", "labor.skill_shortage_premium", 0.00, 2.00, 0.80},
		{"mismatch-premium", "labor.education_mismatch_premium", 0.00, 2.00, 0.50},
		{"utilization-floor", "workforce.minimum_utilization_share", 0.05, 0.60, 0.25},
		{"maintenance-base", "workforce.base_maintenance_per_day", 10.0, 120.0, 45.0},
		{"penalty-multiplier", "workforce.under_utilization_penalty_multiplier", 1.00, 4.00, 2.00},
		{"fee-threshold", "workforce.maintenance_fee_threshold", 50.0, 500.0, 200.0},
	}}
}

// Dim returns the search dimensionality.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// Normalize maps config-space values into [0,1] search coordinates.
func (pv *ParamVector) Normalize(values []float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		n := (values[i] - spec.Min) / (spec.Max - spec.Min)
		out[i] = math.Max(0, math.Min(1, n))
	}
	return out
}

// Denormalize maps search coordinates back into config space. CMA-ES
// samples outside [0,1], so coordinates are clamped before scaling.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		n := math.Max(0, math.Min(1, normalized[i]))
		out[i] = spec.Min + n*(spec.Max-spec.Min)
	}
	return out
}

// Clamp forces config-space values into their spec bounds.
func (pv *ParamVector) Clamp(values []float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		out[i] = math.Max(spec.Min, math.Min(spec.Max, values[i]))
	}
	return out
}

// knobPtr resolves a spec path to its config field.
func knobPtr(cfg *config.Config, path string) *float64 {
	switch path {
	case "market.sensitivity":
		return &cfg.Market.Sensitivity
	case "market.price_anchoring_strength":
		return &cfg.Market.PriceAnchoringStrength
	case "market.logistic_smoothing_scale":
		return &cfg.Market.LogisticSmoothingScale
	case "market.demand_tolerance":
		return &cfg.Market.DemandTolerance
	case "market.external_price_influence":
		return &cfg.Market.ExternalPriceInfluence
	case "labor.unemployment_wage_penalty":
		return &cfg.Labor.UnemploymentWagePenalty
	case "labor.skill_shortage_premium":
		return &cfg.Labor.SkillShortagePremium
	case "labor.education_mismatch_premium":
		return &cfg.Labor.EducationMismatchPremium
	case "workforce.minimum_utilization_share":
		return &cfg.Workforce.MinimumUtilizationShare
	case "workforce.base_maintenance_per_day":
		return &cfg.Workforce.BaseMaintenancePerDay
	case "workforce.under_utilization_penalty_multiplier":
		return &cfg.Workforce.UnderUtilizationPenaltyMultiplier
	case "workforce.maintenance_fee_threshold":
		return &cfg.Workforce.MaintenanceFeeThreshold
	}
	return nil
}

// ApplyToConfig writes config-space values into their knobs, clamping
// to spec bounds first.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)
	for i, spec := range pv.Specs {
		if p := knobPtr(cfg, spec.Path); p != nil {
			*p = clamped[i]
		}
	}
}

// ExtractFromConfig reads the current knob values, so a search can
// start from a hand-tuned config instead of the embedded defaults.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		if p := knobPtr(cfg, spec.Path); p != nil {
			out[i] = *p
		}
	}
	return out
}
