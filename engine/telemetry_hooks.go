package engine

import (
	"log/slog"
	"path/filepath"

	"github.com/pthm-cable/agora/host"
	"github.com/pthm-cable/agora/telemetry"
)

// flushRows drains the tick's trace buffers into CSV output, the
// recorder and the price hook.
func (e *Engine) flushRows() {
	if e.output != nil {
		if len(e.priceRows) > 0 {
			if err := e.output.WritePrices(e.priceRows); err != nil {
				slog.Error("failed to write price traces", "error", err)
			}
		}
		if e.wageDirty {
			if err := e.output.WriteWage(e.wageRow); err != nil {
				slog.Error("failed to write wage trace", "error", err)
			}
		}
		if len(e.maintenance) > 0 {
			if err := e.output.WriteMaintenance(e.maintenance); err != nil {
				slog.Error("failed to write maintenance charges", "error", err)
			}
		}
		if len(e.taxRows) > 0 {
			if err := e.output.WriteTaxes(e.taxRows); err != nil {
				slog.Error("failed to write tax traces", "error", err)
			}
		}
	}

	if rec := e.opts.Recorder; rec != nil {
		if len(e.priceRows) > 0 {
			if err := rec.RecordPrices(e.priceRows); err != nil {
				slog.Error("failed to record price traces", "error", err)
			}
		}
		if e.wageDirty {
			if err := rec.RecordWage(e.wageRow); err != nil {
				slog.Error("failed to record wage trace", "error", err)
			}
		}
		if len(e.maintenance) > 0 {
			if err := rec.RecordMaintenance(e.maintenance); err != nil {
				slog.Error("failed to record maintenance charges", "error", err)
			}
		}
		if len(e.taxRows) > 0 {
			if err := rec.RecordTaxes(e.taxRows); err != nil {
				slog.Error("failed to record tax traces", "error", err)
			}
		}
	}

	if e.opts.OnPrices != nil && len(e.priceRows) > 0 {
		e.opts.OnPrices(e.priceRows)
	}

	e.priceRows = e.priceRows[:0]
	e.wageDirty = false
	e.maintenance = e.maintenance[:0]
	e.taxRows = e.taxRows[:0]
}

// flushWindow closes the current stats window: summary stats, perf
// stats, bookmark checks and their outputs.
func (e *Engine) flushWindow(info host.TickInfo) {
	stats := e.collector.Flush(info)
	perfStats := e.perf.Stats()

	if e.opts.OnStats != nil {
		e.opts.OnStats(stats)
	}
	if e.opts.LogStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if e.output != nil {
		if err := e.output.WriteStats(stats); err != nil {
			slog.Error("failed to write window stats", "error", err)
		}
		if err := e.output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
			slog.Error("failed to write perf stats", "error", err)
		}
	}

	marks := e.bookmarks.Check(stats)
	if len(marks) == 0 {
		return
	}
	for _, bm := range marks {
		if e.opts.LogStats {
			bm.LogBookmark()
		}
	}
	if e.output != nil {
		if err := e.output.WriteBookmarks(marks); err != nil {
			slog.Error("failed to write bookmarks", "error", err)
		}
		dir := filepath.Join(e.output.Dir(), "snapshots")
		for i := range marks {
			snap := e.Snapshot()
			snap.Bookmark = &marks[i]
			if _, err := telemetry.SaveSnapshot(snap, dir); err != nil {
				slog.Error("failed to save snapshot", "error", err)
			}
		}
	}
}
