// Command agora runs the regulation engine against the built-in sandbox
// city and inspects recorded runs.
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pthm-cable/agora/config"
	"github.com/pthm-cable/agora/diag"
	"github.com/pthm-cable/agora/engine"
	"github.com/pthm-cable/agora/history"
	"github.com/pthm-cable/agora/sandbox"
	"github.com/pthm-cable/agora/telemetry"
)

func main() {
	root := &cobra.Command{
		Use:   "agora",
		Short: "Adaptive market regulation engine",
		Long: `Agora embeds an adaptive regulation engine in a synthetic city:
elastic prices from supply and demand, wage bands that track the labor
market, staffing caps with maintenance charges, and profit-based taxes.`,
		SilenceUsage: true,
	}

	root.AddCommand(runCmd(), reportCmd(), snapshotCmd(), configCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func runCmd() *cobra.Command {
	var (
		configPath  string
		outputDir   string
		historyPath string
		serveAddr   string
		logStats    bool
		seed        int64
		days        int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sandbox city under regulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSandbox(configPath, outputDir, historyPath, serveAddr, logStats, seed, days)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (empty = embedded defaults)")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "override the telemetry output directory")
	cmd.Flags().StringVar(&historyPath, "history", "", "record traces into this sqlite file (empty = config value)")
	cmd.Flags().StringVar(&serveAddr, "serve", "", "serve diagnostics on this address (empty = config value)")
	cmd.Flags().BoolVar(&logStats, "log-stats", false, "emit window and perf stats via slog")
	cmd.Flags().Int64Var(&seed, "seed", 0, "override the sandbox seed (0 = config value)")
	cmd.Flags().IntVar(&days, "days", 0, "override the simulated day count (0 = config value)")
	return cmd
}

func runSandbox(configPath, outputDir, historyPath, serveAddr string, logStats bool, seed int64, days int) error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if seed != 0 {
		cfg.Sandbox.Seed = seed
	}
	if days > 0 {
		cfg.Sandbox.Days = days
	}
	if historyPath != "" {
		cfg.History.Path = historyPath
	}
	if serveAddr != "" {
		cfg.Diag.Addr = serveAddr
	}

	ctx, cancel := signalContext()
	defer cancel()

	var store *history.DB
	opts := engine.Options{
		LogStats:  logStats,
		OutputDir: outputDir,
	}
	if cfg.History.Path != "" {
		store, err = history.Open(cfg.History.Path, cfg)
		if err != nil {
			return fmt.Errorf("opening history store: %w", err)
		}
		defer store.Close()
		opts.Recorder = store
		slog.Info("recording traces", "path", cfg.History.Path, "run", store.RunID())
	}

	city := sandbox.NewCity(cfg)

	// The diag server is built after the engine, so the hook reaches it
	// through this variable. Steps only start once both exist.
	var dsrv *diag.Server
	if cfg.Diag.Addr != "" {
		opts.OnPrices = func(rows []telemetry.PriceTrace) {
			if dsrv != nil {
				dsrv.PushPrices(rows)
			}
		}
	}

	eng, err := engine.New(cfg, city, opts)
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}
	city.UsePrices(eng)

	serveDone := make(chan struct{})
	if cfg.Diag.Addr != "" {
		dsrv = diag.New(eng, city)
		go func() {
			defer close(serveDone)
			if err := dsrv.Serve(ctx, cfg.Diag.Addr); err != nil {
				slog.Error("diagnostics server failed", "error", err)
			}
		}()
	} else {
		close(serveDone)
	}

	updates := cfg.Sandbox.UpdatesPerDay
	total := int64(cfg.Sandbox.Days) * int64(updates)
	slog.Info("sandbox starting",
		"seed", cfg.Sandbox.Seed,
		"days", cfg.Sandbox.Days,
		"ticks", total,
		"households", cfg.Sandbox.Households,
		"workplaces", cfg.Sandbox.Workplaces,
	)

	start := time.Now()
	ticks := int64(0)
loop:
	for ticks < total {
		select {
		case <-ctx.Done():
			slog.Info("interrupted", "tick", ticks)
			break loop
		default:
		}
		city.Step()
		eng.Step()
		ticks++

		if ticks%int64(updates) == 0 {
			slog.Info("day complete",
				"day", ticks/int64(updates),
				"unemployment", city.Unemployment(),
				"sites", city.Sites(),
				"folded", city.Folded(),
				"wage_multiplier", eng.WageMultiplier(),
			)
		}
	}
	elapsed := time.Since(start)

	// Gather before Close: closing restores wages and resets regulator
	// state.
	sum := gatherSummary(city, eng, ticks, elapsed)

	if err := eng.Close(); err != nil {
		slog.Error("closing engine", "error", err)
	}
	if store != nil {
		if err := store.Finish(ticks); err != nil {
			slog.Error("stamping run", "error", err)
		}
	}

	cancel()
	<-serveDone

	printSummary(sum, store)
	return nil
}

// runStats is the end-of-run snapshot printed after the engine closes.
type runStats struct {
	ticks        int64
	elapsed      time.Duration
	ticksPerSec  float64
	unemployment float64
	sites        int
	folded       int
	treasury     float64
	wageMult     float64
	workplaces   int
	companies    int
	movers       []priceMover
}

type priceMover struct {
	name string
	life telemetry.ResourceLife
}

func gatherSummary(city *sandbox.City, eng *engine.Engine, ticks int64, elapsed time.Duration) runStats {
	sum := runStats{
		ticks:        ticks,
		elapsed:      elapsed,
		ticksPerSec:  eng.PerfStats().TicksPerSecond,
		unemployment: city.Unemployment(),
		sites:        city.Sites(),
		folded:       city.Folded(),
		treasury:     city.TreasuryBalance(),
		wageMult:     eng.WageMultiplier(),
		workplaces:   eng.TrackedWorkplaces(),
		companies:    eng.TrackedCompanies(),
	}

	for name, life := range eng.Lifetime().All() {
		sum.movers = append(sum.movers, priceMover{name: name, life: *life})
	}
	sort.Slice(sum.movers, func(i, j int) bool {
		di := math.Abs(sum.movers[i].life.LastMultiplier - 1)
		dj := math.Abs(sum.movers[j].life.LastMultiplier - 1)
		if di != dj {
			return di > dj
		}
		return sum.movers[i].name < sum.movers[j].name
	})
	if len(sum.movers) > 5 {
		sum.movers = sum.movers[:5]
	}
	return sum
}

func printSummary(sum runStats, store *history.DB) {
	title := color.New(color.FgCyan, color.Bold)
	up := color.New(color.FgRed)
	down := color.New(color.FgGreen)

	title.Println("\nRun complete")
	fmt.Printf("  ticks:         %s in %s (%.0f/s)\n",
		humanize.Comma(sum.ticks), sum.elapsed.Round(time.Millisecond), sum.ticksPerSec)
	fmt.Printf("  unemployment:  %.1f%%\n", sum.unemployment*100)
	fmt.Printf("  sites:         %d active, %d folded\n", sum.sites, sum.folded)
	fmt.Printf("  treasury:      %s\n", humanize.Comma(int64(sum.treasury)))
	fmt.Printf("  wage bands:    x%.3f over baseline\n", sum.wageMult)
	fmt.Printf("  regulated:     %d workplaces, %d companies\n", sum.workplaces, sum.companies)

	if len(sum.movers) > 0 {
		fmt.Println("\n  biggest price movers:")
		for _, m := range sum.movers {
			c := up
			if m.life.LastMultiplier < 1 {
				c = down
			}
			clamps := ""
			if n := m.life.ClampsLow + m.life.ClampsHigh; n > 0 {
				clamps = fmt.Sprintf("  (%d clamped)", n)
			}
			c.Printf("    %-14s x%.3f over %s adjustments%s\n",
				m.name, m.life.LastMultiplier, humanize.Comma(int64(m.life.Adjustments)), clamps)
		}
	}

	if store != nil {
		fmt.Printf("\n  recorded as run %s\n", store.RunID())
	}
}
