package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkShortageWave   BookmarkType = "shortage_wave"
	BookmarkCeilingRide    BookmarkType = "ceiling_ride"
	BookmarkWageDepression BookmarkType = "wage_depression"
	BookmarkFeeWave        BookmarkType = "fee_wave"
	BookmarkStableMarket   BookmarkType = "stable_market"
)

// Bookmark marks an automatically detected notable market moment.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        int64        `csv:"tick"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects notable moments from the window stats stream.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	depressedWindows int // consecutive windows with depressed wages
	stableWindows    int // consecutive windows with a quiet market
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for stable market detection
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.historyFull || bd.historyIdx > 0 {
		// Shortage wave: shortages > 2x rolling average
		if b := bd.checkShortageWave(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Ceiling ride: most adjusted prices pinned at the band top
		if b := bd.checkCeilingRide(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Wage depression: multiplier below 0.85 over 3+ windows
		if b := bd.checkWageDepression(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Fee wave: maintenance charges > 2x rolling average
		if b := bd.checkFeeWave(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Stable market: low multiplier spread over 5+ windows
		if b := bd.checkStableMarket(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	bd.addToHistory(stats)

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) checkShortageWave(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total int
	for _, h := range history {
		total += h.Shortages
	}
	avg := float64(total) / float64(len(history))
	if avg == 0 {
		return nil
	}

	if float64(stats.Shortages) > avg*2.0 && stats.Shortages >= 5 {
		return &Bookmark{
			Type:        BookmarkShortageWave,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%d shortages is %.1fx average (%.1f)", stats.Shortages, float64(stats.Shortages)/avg, avg),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkCeilingRide(stats WindowStats) *Bookmark {
	if stats.PricesAdjusted < 4 {
		return nil
	}

	share := float64(stats.ClampsHigh) / float64(stats.PricesAdjusted)
	if share >= 0.5 {
		return &Bookmark{
			Type:        BookmarkCeilingRide,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%d of %d adjusted prices pinned at band top", stats.ClampsHigh, stats.PricesAdjusted),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkWageDepression(stats WindowStats) *Bookmark {
	if stats.WageMultiplier >= 0.85 || stats.WageMultiplier == 0 {
		bd.depressedWindows = 0
		return nil
	}

	bd.depressedWindows++
	if bd.depressedWindows == 3 { // trigger exactly once at 3 windows
		return &Bookmark{
			Type:        BookmarkWageDepression,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Wage multiplier %.2f below 0.85 over 3+ windows (unemployment %.0f%%)", stats.WageMultiplier, stats.Unemployment*100),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkFeeWave(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total int
	for _, h := range history {
		total += h.MaintenanceCharges
	}
	avg := float64(total) / float64(len(history))
	if avg == 0 {
		return nil
	}

	if float64(stats.MaintenanceCharges) > avg*2.0 && stats.MaintenanceCharges >= 3 {
		return &Bookmark{
			Type:        BookmarkFeeWave,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("%d maintenance charges is %.1fx average (%.1f)", stats.MaintenanceCharges, float64(stats.MaintenanceCharges)/avg, avg),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkStableMarket(stats WindowStats) *Bookmark {
	// Need an active market to call it stable
	if stats.PricesAdjusted < 4 || stats.PriceFallbacks > 0 {
		bd.stableWindows = 0
		return nil
	}

	if stats.MultiplierStd < 0.05 {
		bd.stableWindows++
	} else {
		bd.stableWindows = 0
	}

	if bd.stableWindows == 5 { // trigger exactly once at 5 windows
		return &Bookmark{
			Type:        BookmarkStableMarket,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Multiplier spread %.3f over %d resources stable for 5+ windows", stats.MultiplierStd, stats.PricesAdjusted),
		}
	}

	return nil
}
