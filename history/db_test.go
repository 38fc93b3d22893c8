package history

import (
	"path/filepath"
	"testing"

	"github.com/pthm-cable/agora/config"
	"github.com/pthm-cable/agora/engine"
	"github.com/pthm-cable/agora/telemetry"
)

var _ engine.Recorder = (*DB)(nil)

func historyConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("loading defaults: %v", err)
	}
	return cfg
}

func openStore(t *testing.T, cfg *config.Config) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "traces.db"), cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func samplePrices() []telemetry.PriceTrace {
	return []telemetry.PriceTrace{
		{
			Tick: 5, Resource: "steel", Supply: 50, Demand: 150, Ratio: 3,
			Exponent: 2.0375, Vanilla: 1000, Raw: 9378.5, Anchored: 8540.7,
			Elastic: 2499.99, Blended: 2499.99, Final: 2499.99,
			Multiplier: 2.5, ClampedHigh: true,
		},
		{
			Tick: 5, Resource: "food", Supply: 200, Demand: 100, Ratio: 0.387,
			Exponent: 1.5, Vanilla: 100, Raw: 40, Anchored: 46, Elastic: 52,
			Blended: 52, Final: 52, Multiplier: 0.5, ClampedLow: true,
		},
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open("", historyConfig(t)); err == nil {
		t.Error("empty path accepted")
	}
	if _, err := OpenRead(""); err == nil {
		t.Error("empty read path accepted")
	}
}

func TestRecordAndQueryRoundTrip(t *testing.T) {
	db := openStore(t, historyConfig(t))

	if err := db.RecordPrices(samplePrices()); err != nil {
		t.Fatalf("record prices: %v", err)
	}
	wage := telemetry.WageTrace{
		Tick: 5, Multiplier: 0.88, Workforce: 1000, Employed: 800,
		Unemployment: 0.2, Band0: 1056, Band1: 1320, Band2: 1672,
		Band3: 2112, Band4: 2640,
	}
	if err := db.RecordWage(wage); err != nil {
		t.Fatalf("record wage: %v", err)
	}
	if err := db.RecordMaintenance([]telemetry.MaintenanceCharge{
		{Tick: 21, Workplace: 7, Amount: 201, Debt: 201},
	}); err != nil {
		t.Fatalf("record maintenance: %v", err)
	}
	if err := db.RecordTaxes([]telemetry.TaxTrace{
		{Tick: 5, Company: 1, Profit: 100, Rent: 20, Net: 80, Adjustment: 80,
			Area: "industrial", Rate: 11},
	}); err != nil {
		t.Fatalf("record taxes: %v", err)
	}
	if err := db.Finish(720); err != nil {
		t.Fatalf("finish: %v", err)
	}

	sum, err := db.RunSummary(db.RunID())
	if err != nil {
		t.Fatalf("run summary: %v", err)
	}
	if sum.Prices != 2 || sum.Wages != 1 || sum.Charges != 1 || sum.Taxes != 1 {
		t.Errorf("counts = %d/%d/%d/%d, want 2/1/1/1",
			sum.Prices, sum.Wages, sum.Charges, sum.Taxes)
	}
	if sum.Ticks != 720 {
		t.Errorf("ticks = %d, want 720", sum.Ticks)
	}
	if sum.FinishedAt == "" {
		t.Error("finished_at not stamped")
	}

	traces, err := db.RecentTraces(db.RunID(), 10)
	if err != nil {
		t.Fatalf("recent traces: %v", err)
	}
	if len(traces) != 2 {
		t.Fatalf("got %d traces, want 2", len(traces))
	}
	// Newest insert first.
	if traces[0].Resource != "food" || traces[1].Resource != "steel" {
		t.Errorf("trace order = %s, %s; want food, steel",
			traces[0].Resource, traces[1].Resource)
	}
	if traces[1] != samplePrices()[0] {
		t.Errorf("steel trace round trip = %+v, want %+v", traces[1], samplePrices()[0])
	}

	wages, err := db.RecentWages(db.RunID(), 10)
	if err != nil {
		t.Fatalf("recent wages: %v", err)
	}
	if len(wages) != 1 || wages[0] != wage {
		t.Errorf("wage round trip = %+v, want %+v", wages, wage)
	}
}

func TestBatchingSplitsInserts(t *testing.T) {
	cfg := historyConfig(t)
	cfg.History.BatchSize = 1
	db := openStore(t, cfg)

	rows := samplePrices()
	rows = append(rows, telemetry.PriceTrace{Tick: 6, Resource: "grain", Vanilla: 10, Final: 10, Multiplier: 1})
	if err := db.RecordPrices(rows); err != nil {
		t.Fatalf("record prices: %v", err)
	}

	sum, err := db.RunSummary(db.RunID())
	if err != nil {
		t.Fatalf("run summary: %v", err)
	}
	if sum.Prices != 3 {
		t.Errorf("prices = %d, want all 3 across single-row transactions", sum.Prices)
	}
}

func TestClosedStoreRejectsWrites(t *testing.T) {
	db := openStore(t, historyConfig(t))
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := db.RecordWage(telemetry.WageTrace{Tick: 1}); err != ErrClosed {
		t.Errorf("record after close = %v, want ErrClosed", err)
	}
	if _, err := db.Summaries(); err != ErrClosed {
		t.Errorf("query after close = %v, want ErrClosed", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestOpenReadSeesRecordedRuns(t *testing.T) {
	cfg := historyConfig(t)
	path := filepath.Join(t.TempDir(), "traces.db")

	first, err := Open(path, cfg)
	if err != nil {
		t.Fatalf("open first run: %v", err)
	}
	if err := first.RecordPrices(samplePrices()); err != nil {
		t.Fatalf("record prices: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close first run: %v", err)
	}

	second, err := Open(path, cfg)
	if err != nil {
		t.Fatalf("open second run: %v", err)
	}
	if second.RunID() == first.RunID() {
		t.Fatal("runs share an ID")
	}
	if err := second.RecordWage(telemetry.WageTrace{Tick: 1, Multiplier: 1}); err != nil {
		t.Fatalf("record wage: %v", err)
	}
	if err := second.Close(); err != nil {
		t.Fatalf("close second run: %v", err)
	}

	reader, err := OpenRead(path)
	if err != nil {
		t.Fatalf("open read: %v", err)
	}
	defer reader.Close()
	if reader.RunID() != "" {
		t.Errorf("read store run ID = %q, want empty", reader.RunID())
	}

	sums, err := reader.Summaries()
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(sums) != 2 {
		t.Fatalf("got %d runs, want 2", len(sums))
	}
	byID := make(map[string]Summary, len(sums))
	for _, s := range sums {
		byID[s.ID] = s
	}
	if s := byID[first.RunID()]; s.Prices != 2 || s.Wages != 0 {
		t.Errorf("first run counts = %d/%d, want 2/0", s.Prices, s.Wages)
	}
	if s := byID[second.RunID()]; s.Prices != 0 || s.Wages != 1 {
		t.Errorf("second run counts = %d/%d, want 0/1", s.Prices, s.Wages)
	}
}
