// Command tune searches the regulation knobs with CMA-ES. Each
// candidate is scored by running headless sandbox cities over a few
// seeds and measuring how steadily the engine holds prices and wages.
// The best knob set is written back out as a ready-to-use config file.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/agora/config"
)

func main() {
	configPath := flag.String("config", "", "config file to start the search from (empty = embedded defaults)")
	days := flag.Int("days", 60, "sandbox days simulated per run")
	numSeeds := flag.Int("seeds", 3, "seeds averaged per evaluation")
	maxEvals := flag.Int("max-evals", 200, "function evaluation budget")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	outputDir := flag.String("output", "tune_results", "directory for the eval log and best config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	pv := NewParamVector()
	dim := pv.Dim()

	seeds := make([]int64, *numSeeds)
	for i := range seeds {
		seeds[i] = int64(i*1000 + 42)
	}
	evaluator := NewFitnessEvaluator(pv, cfg, *days, seeds)

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("creating output dir: %v", err)
	}
	logPath := filepath.Join(*outputDir, "eval_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("creating eval log: %v", err)
	}
	defer logFile.Close()

	writer := csv.NewWriter(logFile)
	header := []string{"eval", "fitness", "quality"}
	for _, spec := range pv.Specs {
		header = append(header, spec.Name)
	}
	if err := writer.Write(header); err != nil {
		log.Fatalf("writing eval log header: %v", err)
	}
	writer.Flush()

	popSize := *population
	if popSize == 0 {
		popSize = 4 + int(3*math.Log(float64(dim)))
	}

	start := pv.ExtractFromConfig(cfg)
	fmt.Printf("tuning %d knobs: %d evals, %d seeds x %d days each, population %d\n",
		dim, *maxEvals, *numSeeds, *days, popSize)
	for i, spec := range pv.Specs {
		fmt.Printf("  %-20s [%g, %g]  start=%-8g default=%g\n",
			spec.Name, spec.Min, spec.Max, start[i], spec.Default)
	}
	fmt.Printf("eval log: %s\n\n", logPath)

	evalCount := 0
	bestFitness := math.Inf(1)
	var bestParams []float64
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			values := pv.Denormalize(x)
			fitness := evaluator.Evaluate(values)
			evalCount++

			row := []string{
				fmt.Sprintf("%d", evalCount),
				fmt.Sprintf("%.6f", fitness),
				fmt.Sprintf("%.4f", evaluator.LastQuality()),
			}
			for _, v := range values {
				row = append(row, fmt.Sprintf("%.6g", v))
			}
			if err := writer.Write(row); err == nil {
				writer.Flush()
			}

			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = values
				fmt.Printf("eval %d: new best fitness %.4f (quality %.3f)\n",
					evalCount, fitness, evaluator.LastQuality())
			}
			if evalCount%10 == 0 {
				elapsed := time.Since(startTime)
				perEval := elapsed / time.Duration(evalCount)
				remaining := time.Duration(*maxEvals-evalCount) * perEval
				fmt.Printf("eval %d/%d: best %.4f | %s elapsed, ~%s left\n",
					evalCount, *maxEvals, bestFitness,
					formatDuration(elapsed), formatDuration(remaining))
			}
			return fitness
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0, // seeds already run in parallel inside Evaluate
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}

	x0 := pv.Normalize(start)
	result, err := optimize.Minimize(problem, x0, settings, method)
	if err != nil {
		fmt.Printf("\nsearch stopped: %v\n", err)
	} else {
		fmt.Printf("\nsearch finished: %v\n", result.Status)
	}
	if bestParams == nil {
		bestParams = pv.Denormalize(result.X)
	}

	fmt.Printf("best fitness %.4f after %d evals in %s\n",
		bestFitness, evalCount, formatDuration(time.Since(startTime)))
	for i, spec := range pv.Specs {
		fmt.Printf("  %-20s %g\n", spec.Name, bestParams[i])
	}

	bestCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("reloading config: %v", err)
	}
	pv.ApplyToConfig(bestCfg, bestParams)
	bestPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(bestPath); err != nil {
		log.Fatalf("writing best config: %v", err)
	}
	fmt.Printf("best config written to %s\n", bestPath)

	if book := evaluator.BestRecords(); book != nil {
		data, err := book.MarshalJSON()
		if err == nil {
			recordsPath := filepath.Join(*outputDir, "records.json")
			if werr := os.WriteFile(recordsPath, data, 0644); werr == nil {
				fmt.Printf("best run records written to %s\n", recordsPath)
			}
		}
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
