package main

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/agora/config"
	"github.com/pthm-cable/agora/engine"
	"github.com/pthm-cable/agora/sandbox"
	"github.com/pthm-cable/agora/telemetry"
)

// Quality component weights.
const (
	parityWeight = 0.30 // multipliers centered on vanilla
	steadyWeight = 0.25 // window-to-window drift of prices and wages
	calmWeight   = 0.25 // multiplier spread within a window
	clampWeight  = 0.20 // prices pinned against the band or falling back
)

// warmupWindows is how many opening stats windows are excluded from
// scoring while the sandbox economy and the baselines settle.
const warmupWindows = 2

// FitnessEvaluator runs headless sandbox simulations and scores how
// steadily a knob configuration holds the market.
type FitnessEvaluator struct {
	params  *ParamVector
	baseCfg *config.Config
	days    int
	seeds   []int64

	mu          sync.Mutex
	bestFitness float64
	bestRecords *telemetry.RecordBook
	lastQuality float64
}

// NewFitnessEvaluator builds an evaluator that averages fitness over
// the given seeds, each simulated for the given number of days.
func NewFitnessEvaluator(params *ParamVector, baseCfg *config.Config, days int, seeds []int64) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		baseCfg:     baseCfg,
		days:        days,
		seeds:       seeds,
		bestFitness: math.Inf(1),
	}
}

type seedResult struct {
	fitness float64
	quality float64
	records *telemetry.RecordBook
}

// Evaluate runs one simulation per seed in parallel and returns the
// mean fitness. Lower is better; the floor is -1.
func (fe *FitnessEvaluator) Evaluate(values []float64) float64 {
	results := make([]seedResult, len(fe.seeds))

	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSimulation(values, s)
		}(i, seed)
	}
	wg.Wait()

	var fitnessSum, qualitySum float64
	best := seedResult{fitness: math.Inf(1)}
	for _, r := range results {
		fitnessSum += r.fitness
		qualitySum += r.quality
		if r.fitness < best.fitness {
			best = r
		}
	}
	mean := fitnessSum / float64(len(results))

	fe.mu.Lock()
	fe.lastQuality = qualitySum / float64(len(results))
	if mean < fe.bestFitness {
		fe.bestFitness = mean
		fe.bestRecords = best.records
	}
	fe.mu.Unlock()

	return mean
}

// LastQuality returns the mean quality of the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// BestRecords returns the record book of the best run seen so far.
func (fe *FitnessEvaluator) BestRecords() *telemetry.RecordBook {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestRecords
}

// runSimulation drives one headless city for the configured number of
// days and scores the stats windows the engine emits.
func (fe *FitnessEvaluator) runSimulation(values []float64, seed int64) seedResult {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, values)
	cfg.Sandbox.Seed = seed
	cfg.Sandbox.Days = fe.days

	var windows []telemetry.WindowStats
	city := sandbox.NewCity(cfg)
	eng, err := engine.New(cfg, city, engine.Options{
		OnStats: func(stats telemetry.WindowStats) {
			windows = append(windows, stats)
		},
	})
	if err != nil {
		return seedResult{} // quality 0, the worst score
	}
	city.UsePrices(eng)

	ticks := cfg.Sandbox.Days * cfg.Sandbox.UpdatesPerDay
	for t := 0; t < ticks; t++ {
		city.Step()
		eng.Step()
	}

	records := eng.Records()
	// Close flushes the final partial window into the series.
	_ = eng.Close()

	quality := fe.computeQuality(windows)
	return seedResult{fitness: -quality, quality: quality, records: records}
}

// copyConfig returns a private copy of the base config for one run.
// The two reference fields, the neutral category list and the derived
// set, are read-only after load and stay shared.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseCfg
	cfg.Telemetry.Enabled = false
	return &cfg
}

// computeQuality scores one run's window series in [0,1]. Four
// components: multipliers centered on vanilla, low drift between
// windows, low spread inside each window, and few prices pinned
// against the band or falling back.
func (fe *FitnessEvaluator) computeQuality(windows []telemetry.WindowStats) float64 {
	if len(windows) <= warmupWindows {
		return 0
	}
	windows = windows[warmupWindows:]

	multMeans := make([]float64, 0, len(windows))
	wageMults := make([]float64, 0, len(windows))
	var paritySum, calmSum, clampSum float64
	adjusted := 0
	for _, w := range windows {
		multMeans = append(multMeans, w.MultiplierMean)
		wageMults = append(wageMults, w.WageMultiplier)

		paritySum += math.Exp(-math.Pow((w.MultiplierMean-1)/0.25, 2))
		calmSum += math.Exp(-math.Pow(w.MultiplierStd/0.25, 2))

		if w.PricesAdjusted > 0 {
			pinned := float64(w.ClampsLow + w.ClampsHigh + w.PriceFallbacks)
			clampSum += clamp01(1 - pinned/float64(w.PricesAdjusted))
			adjusted++
		}
	}

	n := float64(len(windows))
	parityScore := paritySum / n
	calmScore := calmSum / n
	steadyScore := math.Exp(-(cv(multMeans) + cv(wageMults)))

	clampScore := 0.0
	if adjusted > 0 {
		clampScore = clampSum / float64(adjusted)
	}

	return clamp01(parityWeight*parityScore +
		steadyWeight*steadyScore +
		calmWeight*calmScore +
		clampWeight*clampScore)
}

// cv returns the coefficient of variation of a series.
func cv(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := stat.Mean(values, nil)
	if mean == 0 {
		return 0
	}
	return stat.StdDev(values, nil) / math.Abs(mean)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
