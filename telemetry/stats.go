package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated regulation activity for one stats window.
type WindowStats struct {
	WindowStartTick int64 `csv:"-"`
	WindowEndTick   int64 `csv:"window_end"`
	Day             int   `csv:"day"`

	// Pricing during window
	PricesAdjusted int `csv:"prices_adjusted"`
	PriceFallbacks int `csv:"price_fallbacks"`
	ClampsLow      int `csv:"clamps_low"`
	ClampsHigh     int `csv:"clamps_high"`
	Shortages      int `csv:"shortages"`
	Surpluses      int `csv:"surpluses"`

	// Multiplier distribution (sampled over window rows)
	MultiplierMean float64 `csv:"multiplier_mean"`
	MultiplierStd  float64 `csv:"multiplier_std"`
	MultiplierP10  float64 `csv:"multiplier_p10"`
	MultiplierP50  float64 `csv:"multiplier_p50"`
	MultiplierP90  float64 `csv:"multiplier_p90"`

	// Price deviation from vanilla (final/vanilla ratio)
	DeviationMean float64 `csv:"deviation_mean"`
	DeviationMax  float64 `csv:"deviation_max"`

	// Wages at window end
	WageMultiplier float64 `csv:"wage_multiplier"`
	Unemployment   float64 `csv:"unemployment"`

	// Workforce during window
	MaintenanceCharges int `csv:"maintenance_charges"`
	MaintenanceTotal   int `csv:"maintenance_total"`

	// Taxes during window
	TaxAdjustments int     `csv:"tax_adjustments"`
	TaxNetTotal    float64 `csv:"tax_net_total"`
	TaxAdjTotal    float64 `csv:"tax_adj_total"`
}

// Summary holds the distribution of one sampled series.
type Summary struct {
	Mean float64
	Std  float64
	P10  float64
	P50  float64
	P90  float64
}

// Summarize computes mean, sample standard deviation and empirical
// percentiles. Zero value for an empty series.
func Summarize(values []float64) Summary {
	n := len(values)
	if n == 0 {
		return Summary{}
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	s := Summary{
		Mean: stat.Mean(sorted, nil),
		P10:  stat.Quantile(0.10, stat.Empirical, sorted, nil),
		P50:  stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P90:  stat.Quantile(0.90, stat.Empirical, sorted, nil),
	}
	if n >= 2 {
		s.Std = stat.StdDev(sorted, nil)
	}
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start", s.WindowStartTick),
		slog.Int64("window_end", s.WindowEndTick),
		slog.Int("day", s.Day),
		slog.Int("prices_adjusted", s.PricesAdjusted),
		slog.Int("price_fallbacks", s.PriceFallbacks),
		slog.Int("clamps_low", s.ClampsLow),
		slog.Int("clamps_high", s.ClampsHigh),
		slog.Int("shortages", s.Shortages),
		slog.Int("surpluses", s.Surpluses),
		slog.Float64("multiplier_mean", s.MultiplierMean),
		slog.Float64("multiplier_std", s.MultiplierStd),
		slog.Float64("multiplier_p10", s.MultiplierP10),
		slog.Float64("multiplier_p50", s.MultiplierP50),
		slog.Float64("multiplier_p90", s.MultiplierP90),
		slog.Float64("deviation_mean", s.DeviationMean),
		slog.Float64("deviation_max", s.DeviationMax),
		slog.Float64("wage_multiplier", s.WageMultiplier),
		slog.Float64("unemployment", s.Unemployment),
		slog.Int("maintenance_charges", s.MaintenanceCharges),
		slog.Int("maintenance_total", s.MaintenanceTotal),
		slog.Int("tax_adjustments", s.TaxAdjustments),
		slog.Float64("tax_net_total", s.TaxNetTotal),
		slog.Float64("tax_adj_total", s.TaxAdjTotal),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"day", s.Day,
		"prices_adjusted", s.PricesAdjusted,
		"price_fallbacks", s.PriceFallbacks,
		"clamps_low", s.ClampsLow,
		"clamps_high", s.ClampsHigh,
		"shortages", s.Shortages,
		"surpluses", s.Surpluses,
		"multiplier_mean", s.MultiplierMean,
		"multiplier_p50", s.MultiplierP50,
		"deviation_max", s.DeviationMax,
		"wage_multiplier", s.WageMultiplier,
		"unemployment", s.Unemployment,
		"maintenance_charges", s.MaintenanceCharges,
		"maintenance_total", s.MaintenanceTotal,
		"tax_adjustments", s.TaxAdjustments,
		"tax_net_total", s.TaxNetTotal,
	)
}
