package main

import (
	"testing"

	"github.com/pthm-cable/agora/telemetry"
)

func TestComputeQualityPrefersCalmMarkets(t *testing.T) {
	fe := &FitnessEvaluator{}

	calm := make([]telemetry.WindowStats, 0, 8)
	for i := 0; i < 8; i++ {
		calm = append(calm, telemetry.WindowStats{
			PricesAdjusted: 40,
			ClampsHigh:     1,
			MultiplierMean: 1.02,
			MultiplierStd:  0.05,
			WageMultiplier: 0.99,
		})
	}

	turbulent := make([]telemetry.WindowStats, 0, 8)
	for i := 0; i < 8; i++ {
		w := telemetry.WindowStats{
			PricesAdjusted: 40,
			ClampsLow:      20,
			ClampsHigh:     15,
			PriceFallbacks: 5,
			MultiplierStd:  0.6,
		}
		if i%2 == 0 {
			w.MultiplierMean = 1.8
			w.WageMultiplier = 1.3
		} else {
			w.MultiplierMean = 0.6
			w.WageMultiplier = 0.7
		}
		turbulent = append(turbulent, w)
	}

	calmQ := fe.computeQuality(calm)
	turbQ := fe.computeQuality(turbulent)

	if calmQ < 0.9 || calmQ > 1 {
		t.Errorf("calm quality = %v, want within [0.9, 1]", calmQ)
	}
	if turbQ > 0.3 {
		t.Errorf("turbulent quality = %v, want <= 0.3", turbQ)
	}
	if turbQ >= calmQ {
		t.Errorf("turbulent quality %v not below calm %v", turbQ, calmQ)
	}
}

func TestComputeQualityShortSeries(t *testing.T) {
	fe := &FitnessEvaluator{}

	short := []telemetry.WindowStats{{MultiplierMean: 1}, {MultiplierMean: 1}}
	if q := fe.computeQuality(short); q != 0 {
		t.Errorf("quality = %v for a warmup-only series, want 0", q)
	}
	if q := fe.computeQuality(nil); q != 0 {
		t.Errorf("quality = %v for an empty series, want 0", q)
	}
}
