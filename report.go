package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/pthm-cable/agora/config"
	"github.com/pthm-cable/agora/history"
	"github.com/pthm-cable/agora/telemetry"
)

func reportCmd() *cobra.Command {
	var (
		dbPath string
		runID  string
		traces int
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Inspect runs recorded in a history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := history.OpenRead(dbPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if runID == "" {
				return listRuns(db)
			}
			return showRun(db, runID, traces)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "agora.db", "history database path")
	cmd.Flags().StringVar(&runID, "run", "", "show one run's recent traces (id prefix is enough)")
	cmd.Flags().IntVar(&traces, "traces", 15, "trace rows to show with --run")
	return cmd
}

func listRuns(db *history.DB) error {
	sums, err := db.Summaries()
	if err != nil {
		return err
	}
	if len(sums) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}

	color.New(color.FgCyan, color.Bold).Printf("%d recorded runs\n\n", len(sums))

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Run", "Started", "Status", "Ticks", "Prices", "Wages", "Charges", "Taxes"}),
	)
	for _, s := range sums {
		status := "live"
		if s.FinishedAt != "" {
			status = "finished"
		}
		_ = table.Append([]string{
			s.ID,
			timeAgo(s.StartedAt),
			status,
			humanize.Comma(s.Ticks),
			humanize.Comma(int64(s.Prices)),
			humanize.Comma(int64(s.Wages)),
			humanize.Comma(int64(s.Charges)),
			humanize.Comma(int64(s.Taxes)),
		})
	}
	return table.Render()
}

func showRun(db *history.DB, prefix string, limit int) error {
	sum, err := resolveRun(db, prefix)
	if err != nil {
		return err
	}

	color.New(color.FgCyan, color.Bold).Printf("run %s\n", sum.ID)
	fmt.Printf("  started:  %s\n", timeAgo(sum.StartedAt))
	if sum.FinishedAt != "" {
		fmt.Printf("  finished: %s\n", timeAgo(sum.FinishedAt))
	} else {
		color.Yellow("  still live, no finish stamp")
	}
	fmt.Printf("  ticks:    %s\n", humanize.Comma(sum.Ticks))
	fmt.Printf("  rows:     %s prices, %s wages, %s charges, %s taxes\n",
		humanize.Comma(int64(sum.Prices)), humanize.Comma(int64(sum.Wages)),
		humanize.Comma(int64(sum.Charges)), humanize.Comma(int64(sum.Taxes)))

	rows, err := db.RecentTraces(sum.ID, limit)
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		fmt.Println("\nrecent price traces (newest first)")
		table := tablewriter.NewTable(os.Stdout,
			tablewriter.WithHeader([]string{"Tick", "Resource", "Supply", "Demand", "Mult", "Final", "Clamp"}),
		)
		for _, r := range rows {
			clamp := ""
			switch {
			case r.ClampedLow:
				clamp = "low"
			case r.ClampedHigh:
				clamp = "high"
			}
			if r.Fallback {
				clamp = strings.TrimSpace(clamp + " fallback")
			}
			_ = table.Append([]string{
				fmt.Sprintf("%d", r.Tick),
				r.Resource,
				fmt.Sprintf("%.1f", r.Supply),
				fmt.Sprintf("%.1f", r.Demand),
				fmt.Sprintf("%.3f", r.Multiplier),
				fmt.Sprintf("%.1f", r.Final),
				clamp,
			})
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	wages, err := db.RecentWages(sum.ID, min(limit, 10))
	if err != nil {
		return err
	}
	if len(wages) > 0 {
		fmt.Println("\nrecent wage changes (newest first)")
		table := tablewriter.NewTable(os.Stdout,
			tablewriter.WithHeader([]string{"Tick", "Mult", "Unemployment", "B0", "B1", "B2", "B3", "B4"}),
		)
		for _, w := range wages {
			_ = table.Append([]string{
				fmt.Sprintf("%d", w.Tick),
				fmt.Sprintf("%.3f", w.Multiplier),
				fmt.Sprintf("%.1f%%", w.Unemployment*100),
				fmt.Sprintf("%d", w.Band0),
				fmt.Sprintf("%d", w.Band1),
				fmt.Sprintf("%d", w.Band2),
				fmt.Sprintf("%d", w.Band3),
				fmt.Sprintf("%d", w.Band4),
			})
		}
		if err := table.Render(); err != nil {
			return err
		}
	}
	return nil
}

// resolveRun matches a run by id prefix so report --run can take the
// first few characters shown by the listing.
func resolveRun(db *history.DB, prefix string) (history.Summary, error) {
	sums, err := db.Summaries()
	if err != nil {
		return history.Summary{}, err
	}
	var matches []history.Summary
	for _, s := range sums {
		if strings.HasPrefix(s.ID, prefix) {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 0:
		return history.Summary{}, fmt.Errorf("no run matches %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return history.Summary{}, fmt.Errorf("%d runs match %q, give more of the id", len(matches), prefix)
	}
}

func timeAgo(stamp string) string {
	t, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		return stamp
	}
	return humanize.Time(t)
}

func snapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot <path>",
		Short: "Inspect a saved engine state snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := telemetry.LoadSnapshot(args[0])
			if err != nil {
				return err
			}

			color.New(color.FgCyan, color.Bold).Printf("snapshot at tick %s\n", humanize.Comma(snap.Tick))
			if snap.Bookmark != nil {
				fmt.Printf("  bookmark: %s, %s\n", snap.Bookmark.Type, snap.Bookmark.Description)
			}
			if snap.Disabled {
				color.Yellow("  regulation was disabled")
			}
			fmt.Printf("  wages:    x%.3f over baseline\n", snap.Wages.Multiplier)
			if len(snap.Wages.Bands) > 0 {
				fmt.Printf("  bands:    %v\n", snap.Wages.Bands)
			}
			if len(snap.Wages.Baseline) > 0 {
				fmt.Printf("  baseline: %v\n", snap.Wages.Baseline)
			}
			fmt.Printf("  tracked:  %d workplaces, %d companies\n",
				snap.TrackedWorkplaces, snap.TrackedCompanies)

			if len(snap.Resources) == 0 {
				return nil
			}
			fmt.Println("\nresources")
			table := tablewriter.NewTable(os.Stdout,
				tablewriter.WithHeader([]string{"Resource", "Supply", "Demand", "Mult", "Updated"}),
			)
			for _, r := range snap.Resources {
				mult, updated := "-", "-"
				if r.UpdatedTick > 0 {
					mult = fmt.Sprintf("%.3f", r.Multiplier)
					updated = fmt.Sprintf("%d", r.UpdatedTick)
				}
				_ = table.Append([]string{
					r.Resource,
					fmt.Sprintf("%.1f", r.Supply),
					fmt.Sprintf("%.1f", r.Demand),
					mult,
					updated,
				})
			}
			return table.Render()
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
	}
	cmd.AddCommand(configInitCmd(), configCheckCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the annotated default config",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s exists, use --force to overwrite", path)
			}
			if err := os.WriteFile(path, config.Defaults(), 0644); err != nil {
				return err
			}
			color.Green("wrote %s", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func configCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <path>",
		Short: "Validate a config file and flag unknown keys",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load warns through slog about unknown keys and clamped
			// values; route those to stderr as plain text.
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			unknown := len(config.UnknownKeys(data))

			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			fmt.Printf("market:    enabled=%v band=[%.2f, %.2f] sensitivity=%.2f\n",
				cfg.Market.Enabled, cfg.Market.MinPriceMultiplier, cfg.Market.MaxPriceMultiplier, cfg.Market.Sensitivity)
			fmt.Printf("labor:     enabled=%v penalty=%.2f premiums=%.2f/%.2f\n",
				cfg.Labor.Enabled, cfg.Labor.UnemploymentWagePenalty,
				cfg.Labor.SkillShortagePremium, cfg.Labor.EducationMismatchPremium)
			fmt.Printf("workforce: enabled=%v floor=%.2f charge_every_tick=%v\n",
				cfg.Workforce.Enabled, cfg.Workforce.MinimumUtilizationShare, cfg.Workforce.ChargeEveryTick)
			fmt.Printf("tax:       enabled=%v\n", cfg.Tax.Enabled)
			fmt.Printf("sandbox:   seed=%d days=%d households=%d workplaces=%d\n",
				cfg.Sandbox.Seed, cfg.Sandbox.Days, cfg.Sandbox.Households, cfg.Sandbox.Workplaces)

			if unknown == 0 {
				color.Green("%s OK", path)
			} else {
				color.Yellow("%s loads, %d unknown keys ignored", path, unknown)
			}
			return nil
		},
	}
}
