package telemetry

import (
	"testing"
)

func hasBookmark(bookmarks []Bookmark, bt BookmarkType) bool {
	for _, b := range bookmarks {
		if b.Type == bt {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_ShortageWave(t *testing.T) {
	bd := NewBookmarkDetector(10)

	// History with a calm shortage count
	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{
			WindowEndTick: int64(i * 100),
			Shortages:     2,
		})
	}

	// Shortages jump past 2x the rolling average
	bookmarks := bd.Check(WindowStats{
		WindowEndTick: 500,
		Shortages:     8,
	})

	if !hasBookmark(bookmarks, BookmarkShortageWave) {
		t.Error("expected shortage_wave bookmark")
	}
}

func TestBookmarkDetector_CeilingRide(t *testing.T) {
	bd := NewBookmarkDetector(10)

	bd.Check(WindowStats{WindowEndTick: 100, PricesAdjusted: 8})

	bookmarks := bd.Check(WindowStats{
		WindowEndTick:  200,
		PricesAdjusted: 8,
		ClampsHigh:     5,
	})

	if !hasBookmark(bookmarks, BookmarkCeilingRide) {
		t.Error("expected ceiling_ride bookmark")
	}
}

func TestBookmarkDetector_WageDepression(t *testing.T) {
	bd := NewBookmarkDetector(10)

	bd.Check(WindowStats{WindowEndTick: 100, WageMultiplier: 1.0})

	var found bool
	for i := 0; i < 4; i++ {
		bookmarks := bd.Check(WindowStats{
			WindowEndTick:  int64(200 + i*100),
			WageMultiplier: 0.7,
			Unemployment:   0.4,
		})
		if hasBookmark(bookmarks, BookmarkWageDepression) {
			if i != 2 {
				t.Errorf("depression triggered on window %d, want the third depressed window", i)
			}
			found = true
		}
	}
	if !found {
		t.Error("expected wage_depression bookmark")
	}
}

func TestBookmarkDetector_WageRecoveryResetsCount(t *testing.T) {
	bd := NewBookmarkDetector(10)

	bd.Check(WindowStats{WindowEndTick: 100, WageMultiplier: 1.0})
	bd.Check(WindowStats{WindowEndTick: 200, WageMultiplier: 0.7})
	bd.Check(WindowStats{WindowEndTick: 300, WageMultiplier: 0.7})
	// Recovery interrupts the streak
	bd.Check(WindowStats{WindowEndTick: 400, WageMultiplier: 1.0})

	bookmarks := bd.Check(WindowStats{WindowEndTick: 500, WageMultiplier: 0.7})
	if hasBookmark(bookmarks, BookmarkWageDepression) {
		t.Error("depression triggered without 3 consecutive depressed windows")
	}
}

func TestBookmarkDetector_FeeWave(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{
			WindowEndTick:      int64(i * 100),
			MaintenanceCharges: 1,
		})
	}

	bookmarks := bd.Check(WindowStats{
		WindowEndTick:      500,
		MaintenanceCharges: 5,
	})

	if !hasBookmark(bookmarks, BookmarkFeeWave) {
		t.Error("expected fee_wave bookmark")
	}
}

func TestBookmarkDetector_StableMarket(t *testing.T) {
	bd := NewBookmarkDetector(10)

	var found bool
	for i := 0; i < 8; i++ {
		bookmarks := bd.Check(WindowStats{
			WindowEndTick:  int64(i * 100),
			PricesAdjusted: 10,
			MultiplierStd:  0.01,
		})
		if hasBookmark(bookmarks, BookmarkStableMarket) {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected stable_market bookmark after 5+ quiet windows")
	}
}

func TestBookmarkDetector_FallbackBreaksStability(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 4; i++ {
		bd.Check(WindowStats{
			WindowEndTick:  int64(i * 100),
			PricesAdjusted: 10,
			MultiplierStd:  0.01,
		})
	}
	// A fallback resets the stable streak
	bd.Check(WindowStats{
		WindowEndTick:  400,
		PricesAdjusted: 10,
		MultiplierStd:  0.01,
		PriceFallbacks: 1,
	})

	bookmarks := bd.Check(WindowStats{
		WindowEndTick:  500,
		PricesAdjusted: 10,
		MultiplierStd:  0.01,
	})
	if hasBookmark(bookmarks, BookmarkStableMarket) {
		t.Error("stable_market triggered through a fallback window")
	}
}
