package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/agora/econ"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if math.Abs(cfg.Market.Sensitivity-0.65) > 1e-9 {
		t.Errorf("default sensitivity = %v, want 0.65", cfg.Market.Sensitivity)
	}
	if cfg.Market.MinPriceMultiplier >= cfg.Market.MaxPriceMultiplier {
		t.Errorf("default multiplier band inverted: [%v, %v]",
			cfg.Market.MinPriceMultiplier, cfg.Market.MaxPriceMultiplier)
	}
	if !cfg.Labor.Enabled || !cfg.Workforce.Enabled || !cfg.Market.Enabled {
		t.Error("sub-engines not enabled by default")
	}
	if !cfg.Derived.Neutral[econ.CategoryCivic] || !cfg.Derived.Neutral[econ.CategoryOffice] {
		t.Errorf("default neutral categories = %v, want civic and office", cfg.Derived.Neutral)
	}
	if cfg.Derived.Neutral[econ.CategoryAgriculture] {
		t.Error("agriculture should not be neutral by default")
	}
}

func TestLoadMergesUserFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agora.yaml")
	content := []byte("market:\n  sensitivity: 0.2\nworkforce:\n  minimum_utilization_share: 0.5\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if math.Abs(cfg.Market.Sensitivity-0.2) > 1e-9 {
		t.Errorf("sensitivity = %v, want override 0.2", cfg.Market.Sensitivity)
	}
	if math.Abs(cfg.Workforce.MinimumUtilizationShare-0.5) > 1e-9 {
		t.Errorf("minimum_utilization_share = %v, want override 0.5", cfg.Workforce.MinimumUtilizationShare)
	}
	// Untouched keys keep their defaults
	if math.Abs(cfg.Market.MaxPriceMultiplier-2.5) > 1e-9 {
		t.Errorf("max_price_multiplier = %v, want default 2.5", cfg.Market.MaxPriceMultiplier)
	}
}

func TestLoadMissingFileRegeneratesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if math.Abs(cfg.Market.Sensitivity-0.65) > 1e-9 {
		t.Errorf("sensitivity = %v, want default 0.65", cfg.Market.Sensitivity)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("defaults not regenerated at %s: %v", path, err)
	}
}

func TestLoadCorruptFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("market: [not a mapping"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("corrupt file should not fail Load, got: %v", err)
	}
	if math.Abs(cfg.Market.Sensitivity-0.65) > 1e-9 {
		t.Errorf("sensitivity = %v, want default 0.65", cfg.Market.Sensitivity)
	}
}

func TestNormalizeClampsRanges(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Market.Sensitivity = 1.7
	cfg.Market.ExternalPriceInfluence = -0.4
	cfg.Market.LogisticSmoothingScale = 0
	cfg.Workforce.MinimumUtilizationShare = 0.99
	cfg.Workforce.UnderUtilizationPenaltyMultiplier = 0.2
	cfg.Workforce.MaintenanceFeeThreshold = 0

	notes := cfg.normalize()
	if len(notes) == 0 {
		t.Fatal("normalize reported no adjustments")
	}
	if cfg.Market.Sensitivity != 1 {
		t.Errorf("sensitivity = %v, want clamp to 1", cfg.Market.Sensitivity)
	}
	if cfg.Market.ExternalPriceInfluence != 0 {
		t.Errorf("external_price_influence = %v, want clamp to 0", cfg.Market.ExternalPriceInfluence)
	}
	if cfg.Market.LogisticSmoothingScale < 0.01 {
		t.Errorf("logistic_smoothing_scale = %v, want floor 0.01", cfg.Market.LogisticSmoothingScale)
	}
	if cfg.Workforce.MinimumUtilizationShare != 0.95 {
		t.Errorf("minimum_utilization_share = %v, want clamp to 0.95", cfg.Workforce.MinimumUtilizationShare)
	}
	if cfg.Workforce.UnderUtilizationPenaltyMultiplier != 1 {
		t.Errorf("penalty multiplier = %v, want floor 1", cfg.Workforce.UnderUtilizationPenaltyMultiplier)
	}
	if cfg.Workforce.MaintenanceFeeThreshold != 1 {
		t.Errorf("fee threshold = %v, want floor 1", cfg.Workforce.MaintenanceFeeThreshold)
	}
}

func TestNormalizeSwapsInvertedBand(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Market.MinPriceMultiplier = 3.0
	cfg.Market.MaxPriceMultiplier = 0.5

	cfg.normalize()
	if cfg.Market.MinPriceMultiplier != 0.5 || cfg.Market.MaxPriceMultiplier != 3.0 {
		t.Errorf("band = [%v, %v], want swapped [0.5, 3.0]",
			cfg.Market.MinPriceMultiplier, cfg.Market.MaxPriceMultiplier)
	}
}

func TestNormalizeRejectsUnknownNeutralCategory(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Market.NeutralCategories = []string{"civic", "banking"}

	notes := cfg.normalize()
	if !cfg.Derived.Neutral[econ.CategoryCivic] {
		t.Error("civic not in neutral set")
	}
	if len(cfg.Derived.Neutral) != 1 {
		t.Errorf("neutral set = %v, want only civic", cfg.Derived.Neutral)
	}
	found := false
	for _, n := range notes {
		if strings.Contains(n, "banking") {
			found = true
		}
	}
	if !found {
		t.Errorf("unknown category produced no note, got %v", notes)
	}
}

func TestUnknownKeysSuggestions(t *testing.T) {
	data := []byte("market:\n  sensitivty: 0.5\nfrobnicate: 1\n")
	unknown := UnknownKeys(data)
	if len(unknown) != 2 {
		t.Fatalf("got %d unknown keys, want 2: %v", len(unknown), unknown)
	}

	byPath := map[string]string{}
	for _, u := range unknown {
		byPath[u.Path] = u.Suggestion
	}
	if got, ok := byPath["market.sensitivty"]; !ok || got != "market.sensitivity" {
		t.Errorf("suggestion for market.sensitivty = %q, want market.sensitivity", got)
	}
	if got := byPath["frobnicate"]; got != "" {
		t.Errorf("frobnicate suggestion = %q, want none", got)
	}
}

func TestUnknownKeysCleanFile(t *testing.T) {
	if unknown := UnknownKeys(Defaults()); len(unknown) != 0 {
		t.Errorf("defaults flagged as unknown: %v", unknown)
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Market.Sensitivity = 0.33
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if math.Abs(loaded.Market.Sensitivity-0.33) > 1e-9 {
		t.Errorf("round-tripped sensitivity = %v, want 0.33", loaded.Market.Sensitivity)
	}
}
