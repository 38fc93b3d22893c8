// Package config provides configuration loading and access for the
// regulation engine.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/agora/econ"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds every tunable knob of the regulation engine. Loaded once
// at engine start; read-only during a tick.
type Config struct {
	Market    MarketConfig    `yaml:"market"`
	Labor     LaborConfig     `yaml:"labor"`
	Workforce WorkforceConfig `yaml:"workforce"`
	Tax       TaxConfig       `yaml:"tax"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	History   HistoryConfig   `yaml:"history"`
	Diag      DiagConfig      `yaml:"diag"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// MarketConfig holds pricing knobs.
type MarketConfig struct {
	Enabled                 bool     `yaml:"enabled"`
	MinPriceMultiplier      float64  `yaml:"min_price_multiplier"`      // > 0, swapped with max if inverted
	MaxPriceMultiplier      float64  `yaml:"max_price_multiplier"`      // > 0
	Sensitivity             float64  `yaml:"sensitivity"`               // [0,1], scales elasticity exponent
	ExternalPriceInfluence  float64  `yaml:"external_price_influence"`  // [0,1], blend back toward vanilla
	DemandTolerance         float64  `yaml:"demand_tolerance"`          // [0,1], balance dead zone
	PriceAnchoringStrength  float64  `yaml:"price_anchoring_strength"`  // [0,1]
	LogisticSmoothingScale  float64  `yaml:"logistic_smoothing_scale"`  // (0,1]
	IndustrialComponentBias float64  `yaml:"industrial_component_bias"` // >= 0
	ServiceComponentBias    float64  `yaml:"service_component_bias"`    // >= 0
	NeutralCategories       []string `yaml:"neutral_categories"`        // forced 50/50 split
}

// LaborConfig holds wage regulation knobs.
type LaborConfig struct {
	Enabled                  bool    `yaml:"enabled"`
	UnemploymentWagePenalty  float64 `yaml:"unemployment_wage_penalty"`  // >= 0
	SkillShortagePremium     float64 `yaml:"skill_shortage_premium"`     // >= 0
	EducationMismatchPremium float64 `yaml:"education_mismatch_premium"` // >= 0
}

// WorkforceConfig holds utilization and maintenance knobs.
type WorkforceConfig struct {
	Enabled                           bool    `yaml:"enabled"`
	MinimumUtilizationShare           float64 `yaml:"minimum_utilization_share"`            // [0.05,0.95]
	BaseMaintenancePerDay             float64 `yaml:"base_maintenance_per_day"`             // >= 0
	MaintenancePerCapacity            float64 `yaml:"maintenance_per_capacity"`             // >= 0
	UnderUtilizationPenaltyMultiplier float64 `yaml:"under_utilization_penalty_multiplier"` // >= 1
	MaintenanceFeeThreshold           float64 `yaml:"maintenance_fee_threshold"`            // >= 1
	ChargeEveryTick                   bool    `yaml:"charge_every_tick"`
}

// TaxConfig holds the profit tax gate.
type TaxConfig struct {
	Enabled bool `yaml:"enabled"`
}

// TelemetryConfig holds trace output parameters.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	OutputDir   string `yaml:"output_dir"`
	StatsWindow int    `yaml:"stats_window"` // ticks per summary window
	PerfWindow  int    `yaml:"perf_window"`  // samples per engine phase
	RecordBook  int    `yaml:"record_book"`  // entries kept per record category
	Archive     bool   `yaml:"archive"`      // compress CSVs on close
}

// HistoryConfig holds the optional sqlite trace store parameters.
type HistoryConfig struct {
	Path      string `yaml:"path"`       // empty disables recording
	BatchSize int    `yaml:"batch_size"` // rows per insert transaction
}

// DiagConfig holds the optional diagnostics server parameters.
type DiagConfig struct {
	Addr string `yaml:"addr"` // empty disables the server
}

// SandboxConfig holds synthetic city parameters for the CLI and
// integration tests.
type SandboxConfig struct {
	Seed              int64   `yaml:"seed"`
	Days              int     `yaml:"days"`
	UpdatesPerDay     int     `yaml:"updates_per_day"`
	RentUpdatesPerDay int     `yaml:"rent_updates_per_day"`
	Households        int     `yaml:"households"`
	Workplaces        int     `yaml:"workplaces"`
	Companies         int     `yaml:"companies"`
	OfficeRate        float64 `yaml:"office_rate"`     // percent
	IndustrialRate    float64 `yaml:"industrial_rate"` // percent
	CommercialRate    float64 `yaml:"commercial_rate"` // percent
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Neutral map[econ.Category]bool // parsed market.neutral_categories
}

// Defaults returns a copy of the embedded default configuration file,
// comments included.
func Defaults() []byte {
	out := make([]byte, len(defaultsYAML))
	copy(out, defaultsYAML)
	return out
}

// Load loads configuration from a YAML file, merging with embedded
// defaults. If path is empty, only embedded defaults are used. A missing
// file is regenerated from defaults; a corrupt file is reported and
// skipped. Neither blocks startup.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			slog.Info("config file missing, writing defaults", "path", path)
			if werr := os.WriteFile(path, Defaults(), 0644); werr != nil {
				slog.Warn("could not write default config", "path", path, "error", werr)
			}
		case err != nil:
			slog.Warn("config file unreadable, using defaults", "path", path, "error", err)
		default:
			// Only overwrites fields present in the file
			if uerr := yaml.Unmarshal(data, cfg); uerr != nil {
				slog.Warn("config file corrupt, using defaults", "path", path, "error", uerr)
			} else {
				for _, u := range UnknownKeys(data) {
					slog.Warn("config: " + u.String())
				}
			}
		}
	}

	for _, note := range cfg.normalize() {
		slog.Warn("config: " + note)
	}

	return cfg, nil
}

// normalize forces every knob into its documented range and resolves the
// neutral category names. Returns one note per adjustment made.
func (c *Config) normalize() []string {
	var notes []string

	clampF := func(name string, v *float64, lo, hi float64) {
		if *v < lo {
			notes = append(notes, fmt.Sprintf("%s %.3g below %.3g, clamped", name, *v, lo))
			*v = lo
		} else if *v > hi {
			notes = append(notes, fmt.Sprintf("%s %.3g above %.3g, clamped", name, *v, hi))
			*v = hi
		}
	}
	floorI := func(name string, v *int, lo int) {
		if *v < lo {
			notes = append(notes, fmt.Sprintf("%s %d below %d, raised", name, *v, lo))
			*v = lo
		}
	}

	m := &c.Market
	const maxMult = 1e6
	clampF("market.min_price_multiplier", &m.MinPriceMultiplier, 0.01, maxMult)
	clampF("market.max_price_multiplier", &m.MaxPriceMultiplier, 0.01, maxMult)
	if m.MinPriceMultiplier > m.MaxPriceMultiplier {
		notes = append(notes, "market price multiplier bounds inverted, swapped")
		m.MinPriceMultiplier, m.MaxPriceMultiplier = m.MaxPriceMultiplier, m.MinPriceMultiplier
	}
	clampF("market.sensitivity", &m.Sensitivity, 0, 1)
	clampF("market.external_price_influence", &m.ExternalPriceInfluence, 0, 1)
	clampF("market.demand_tolerance", &m.DemandTolerance, 0, 1)
	clampF("market.price_anchoring_strength", &m.PriceAnchoringStrength, 0, 1)
	clampF("market.logistic_smoothing_scale", &m.LogisticSmoothingScale, 0.01, 1)
	clampF("market.industrial_component_bias", &m.IndustrialComponentBias, 0, maxMult)
	clampF("market.service_component_bias", &m.ServiceComponentBias, 0, maxMult)

	l := &c.Labor
	clampF("labor.unemployment_wage_penalty", &l.UnemploymentWagePenalty, 0, maxMult)
	clampF("labor.skill_shortage_premium", &l.SkillShortagePremium, 0, maxMult)
	clampF("labor.education_mismatch_premium", &l.EducationMismatchPremium, 0, maxMult)

	w := &c.Workforce
	clampF("workforce.minimum_utilization_share", &w.MinimumUtilizationShare, 0.05, 0.95)
	clampF("workforce.base_maintenance_per_day", &w.BaseMaintenancePerDay, 0, maxMult)
	clampF("workforce.maintenance_per_capacity", &w.MaintenancePerCapacity, 0, maxMult)
	clampF("workforce.under_utilization_penalty_multiplier", &w.UnderUtilizationPenaltyMultiplier, 1, maxMult)
	clampF("workforce.maintenance_fee_threshold", &w.MaintenanceFeeThreshold, 1, maxMult)

	floorI("telemetry.stats_window", &c.Telemetry.StatsWindow, 1)
	floorI("telemetry.perf_window", &c.Telemetry.PerfWindow, 1)
	floorI("telemetry.record_book", &c.Telemetry.RecordBook, 1)
	floorI("history.batch_size", &c.History.BatchSize, 1)
	floorI("sandbox.updates_per_day", &c.Sandbox.UpdatesPerDay, 1)
	floorI("sandbox.rent_updates_per_day", &c.Sandbox.RentUpdatesPerDay, 1)
	floorI("sandbox.households", &c.Sandbox.Households, 1)
	floorI("sandbox.workplaces", &c.Sandbox.Workplaces, 1)
	floorI("sandbox.companies", &c.Sandbox.Companies, 1)

	c.Derived.Neutral = make(map[econ.Category]bool, len(m.NeutralCategories))
	for _, name := range m.NeutralCategories {
		cat, ok := econ.ParseCategory(name)
		if !ok {
			notes = append(notes, fmt.Sprintf("market.neutral_categories: unknown category %q (valid: %v)", name, econ.CategoryNames()))
			continue
		}
		c.Derived.Neutral[cat] = true
	}

	return notes
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
