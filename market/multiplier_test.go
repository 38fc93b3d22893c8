package market

import (
	"math"
	"testing"

	"github.com/pthm-cable/agora/econ"
)

func TestRefreshStoresClampedMultiplier(t *testing.T) {
	cfg := ledgerConfig(t)
	l := NewLedger(cfg)
	c := NewMultiplierCache(cfg, l)
	l.BeginTick(3, nil)
	l.RegisterSupply(econ.ResourceFood, 50)
	l.RegisterDemand(econ.ResourceFood, 150)

	mult := c.Refresh(econ.ResourceFood, 3)
	if math.Abs(mult-2.5) > 1e-9 {
		t.Errorf("multiplier = %v, want clamped to 2.5", mult)
	}
	st, ok := c.State(econ.ResourceFood)
	if !ok {
		t.Fatal("no state stored after refresh")
	}
	if st.UpdatedTick != 3 {
		t.Errorf("updated tick = %d, want 3", st.UpdatedTick)
	}

	// Refresh consumed the metrics; the next refresh keeps the cache.
	if _, _, ok := l.SupplyDemand(econ.ResourceFood); ok {
		t.Error("refresh did not consume the metrics")
	}
	if again := c.Refresh(econ.ResourceFood, 4); math.Abs(again-2.5) > 1e-9 {
		t.Errorf("cached multiplier = %v, want 2.5 to survive", again)
	}
}

func TestRefreshUnknownResourceIsNeutral(t *testing.T) {
	cfg := ledgerConfig(t)
	c := NewMultiplierCache(cfg, NewLedger(cfg))

	if mult := c.Refresh(econ.ResourceOre, 1); mult != 1 {
		t.Errorf("multiplier without data = %v, want 1", mult)
	}
	if _, ok := c.State(econ.ResourceOre); ok {
		t.Error("refresh without data created state")
	}
}

func TestRefreshSurplusClampsLow(t *testing.T) {
	cfg := ledgerConfig(t)
	l := NewLedger(cfg)
	c := NewMultiplierCache(cfg, l)
	l.BeginTick(1, nil)
	l.RegisterSupply(econ.ResourceFood, 900)
	l.RegisterDemand(econ.ResourceFood, 100)

	mult := c.Refresh(econ.ResourceFood, 1)
	if mult < cfg.Market.MinPriceMultiplier-1e-9 {
		t.Errorf("multiplier = %v, below band min %v", mult, cfg.Market.MinPriceMultiplier)
	}
	if mult >= 1 {
		t.Errorf("surplus multiplier = %v, want below 1", mult)
	}
}

func TestAdjustComponentPassthrough(t *testing.T) {
	cfg := ledgerConfig(t)
	c := NewMultiplierCache(cfg, NewLedger(cfg))

	tests := []struct {
		name     string
		r        econ.Resource
		ind, svc float64
		sel      Selector
		want     float64
	}{
		{"zero total market", econ.ResourceFood, 0, 0, SelectorMarket, 0},
		{"negative total industrial", econ.ResourceFood, -5, 0, SelectorIndustrial, -5},
		{"negative total service", econ.ResourceFood, -5, 2, SelectorService, 2},
		{"currency market", econ.ResourceCash, 10, 20, SelectorMarket, 30},
		{"currency industrial", econ.ResourceCash, 10, 20, SelectorIndustrial, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.AdjustComponent(tt.r, tt.ind, tt.svc, tt.sel); got != tt.want {
				t.Errorf("AdjustComponent = %v, want passthrough %v", got, tt.want)
			}
		})
	}
}

func TestAdjustComponentAppliesMultiplierAndBias(t *testing.T) {
	cfg := ledgerConfig(t)
	cfg.Market.IndustrialComponentBias = 1.2
	cfg.Market.ServiceComponentBias = 0.8
	l := NewLedger(cfg)
	c := NewMultiplierCache(cfg, l)
	l.BeginTick(1, nil)
	l.RegisterSupply(econ.ResourceFood, 50)
	l.RegisterDemand(econ.ResourceFood, 150)
	c.Refresh(econ.ResourceFood, 1) // multiplier 2.5

	ind := c.AdjustComponent(econ.ResourceFood, 100, 40, SelectorIndustrial)
	if math.Abs(ind-100*2.5*1.2) > 1e-9 {
		t.Errorf("industrial part = %v, want %v", ind, 100*2.5*1.2)
	}
	svc := c.AdjustComponent(econ.ResourceFood, 100, 40, SelectorService)
	if math.Abs(svc-40*2.5*0.8) > 1e-9 {
		t.Errorf("service part = %v, want %v", svc, 40*2.5*0.8)
	}
	total := c.AdjustComponent(econ.ResourceFood, 100, 40, SelectorMarket)
	if math.Abs(total-(ind+svc)) > 1e-9 {
		t.Errorf("market total = %v, want sum of parts %v", total, ind+svc)
	}
}

func TestAdjustComponentNeutralWithoutState(t *testing.T) {
	cfg := ledgerConfig(t)
	c := NewMultiplierCache(cfg, NewLedger(cfg))

	// Never-refreshed resource: multiplier 1, default biases 1.
	if got := c.AdjustComponent(econ.ResourceOre, 100, 40, SelectorMarket); math.Abs(got-140) > 1e-9 {
		t.Errorf("unseeded adjustment = %v, want 140", got)
	}
}

func TestExternalBoundsStored(t *testing.T) {
	cfg := ledgerConfig(t)
	c := NewMultiplierCache(cfg, NewLedger(cfg))
	c.SetExternalBounds(econ.ResourceFood, 800, 1600)

	st, ok := c.State(econ.ResourceFood)
	if !ok {
		t.Fatal("no state after setting bounds")
	}
	if st.ExternalFloor != 800 || st.ExternalCeiling != 1600 {
		t.Errorf("bounds = (%v, %v), want (800, 1600)", st.ExternalFloor, st.ExternalCeiling)
	}
	if st.Multiplier != 1 {
		t.Errorf("fresh state multiplier = %v, want 1", st.Multiplier)
	}
}

func TestResetDropsState(t *testing.T) {
	cfg := ledgerConfig(t)
	l := NewLedger(cfg)
	c := NewMultiplierCache(cfg, l)
	l.BeginTick(1, nil)
	l.RegisterSupply(econ.ResourceFood, 50)
	l.RegisterDemand(econ.ResourceFood, 150)
	c.Refresh(econ.ResourceFood, 1)

	c.Reset()
	if _, ok := c.State(econ.ResourceFood); ok {
		t.Error("state survived reset")
	}
	if c.Multiplier(econ.ResourceFood) != 1 {
		t.Error("multiplier not neutral after reset")
	}
}
