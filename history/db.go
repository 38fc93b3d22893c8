// Package history persists run metadata and per-tick trace rows to a
// SQLite database so finished runs can be queried and compared offline.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/pthm-cable/agora/config"
	"github.com/pthm-cable/agora/telemetry"
)

// ErrClosed is returned by every method called after Close.
var ErrClosed = errors.New("history: store closed")

// DB wraps a SQLite connection holding recorded runs. A store opened
// with Open records under a fresh run ID; one opened with OpenRead only
// queries.
type DB struct {
	conn   *sqlx.DB
	runID  string
	batch  int
	closed bool
}

// Open opens or creates a trace store at path and registers a new run
// stamped with the serialized config.
func Open(path string, cfg *config.Config) (*DB, error) {
	db, err := open(path)
	if err != nil {
		return nil, err
	}
	db.runID = uuid.NewString()
	if cfg != nil && cfg.History.BatchSize > 0 {
		db.batch = cfg.History.BatchSize
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		db.conn.Close()
		return nil, fmt.Errorf("serialize config: %w", err)
	}
	_, err = db.conn.Exec(
		"INSERT INTO runs (id, started_at, ticks, config_json) VALUES (?, ?, 0, ?)",
		db.runID, time.Now().UTC().Format(time.RFC3339), string(cfgJSON),
	)
	if err != nil {
		db.conn.Close()
		return nil, fmt.Errorf("register run: %w", err)
	}
	return db, nil
}

// OpenRead opens a store for querying without registering a run.
func OpenRead(path string) (*DB, error) {
	return open(path)
}

func open(path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("history: empty path")
	}
	conn, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// The driver is happiest with a single connection; WAL keeps
	// append-style writers from blocking readers.
	conn.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	db := &DB{conn: conn, batch: 256}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		ticks INTEGER NOT NULL DEFAULT 0,
		config_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS price_traces (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		resource TEXT NOT NULL,
		supply REAL NOT NULL,
		demand REAL NOT NULL,
		ratio REAL NOT NULL,
		exponent REAL NOT NULL,
		vanilla REAL NOT NULL,
		raw REAL NOT NULL,
		anchored REAL NOT NULL,
		elastic REAL NOT NULL,
		blended REAL NOT NULL,
		final REAL NOT NULL,
		multiplier REAL NOT NULL,
		clamped_low INTEGER NOT NULL,
		clamped_high INTEGER NOT NULL,
		fallback INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS wage_changes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		multiplier REAL NOT NULL,
		workforce INTEGER NOT NULL,
		employed INTEGER NOT NULL,
		unemployment REAL NOT NULL,
		band0 INTEGER NOT NULL,
		band1 INTEGER NOT NULL,
		band2 INTEGER NOT NULL,
		band3 INTEGER NOT NULL,
		band4 INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS maintenance_charges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		workplace INTEGER NOT NULL,
		amount INTEGER NOT NULL,
		debt REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tax_adjustments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		company INTEGER NOT NULL,
		profit_per_tick REAL NOT NULL,
		rent_per_tick REAL NOT NULL,
		net_income REAL NOT NULL,
		adjustment REAL NOT NULL,
		area TEXT NOT NULL,
		average_rate REAL NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_price_traces_run_tick ON price_traces(run_id, tick);
	CREATE INDEX IF NOT EXISTS idx_wage_changes_run_tick ON wage_changes(run_id, tick);
	CREATE INDEX IF NOT EXISTS idx_maintenance_run_tick ON maintenance_charges(run_id, tick);
	CREATE INDEX IF NOT EXISTS idx_tax_run_tick ON tax_adjustments(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// RunID returns the run this store records under. Empty for read-only
// stores.
func (db *DB) RunID() string {
	return db.runID
}

// RecordPrices appends a batch of price trace rows to the current run.
func (db *DB) RecordPrices(rows []telemetry.PriceTrace) error {
	if db.closed {
		return ErrClosed
	}
	for start := 0; start < len(rows); start += db.batch {
		end := min(start+db.batch, len(rows))
		if err := db.insertPrices(rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) insertPrices(rows []telemetry.PriceTrace) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO price_traces
		(run_id, tick, resource, supply, demand, ratio, exponent, vanilla,
		 raw, anchored, elastic, blended, final, multiplier,
		 clamped_low, clamped_high, fallback)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.Exec(
			db.runID, r.Tick, r.Resource, r.Supply, r.Demand, r.Ratio,
			r.Exponent, r.Vanilla, r.Raw, r.Anchored, r.Elastic, r.Blended,
			r.Final, r.Multiplier,
			boolInt(r.ClampedLow), boolInt(r.ClampedHigh), boolInt(r.Fallback),
		)
		if err != nil {
			return fmt.Errorf("insert price trace %s@%d: %w", r.Resource, r.Tick, err)
		}
	}
	return tx.Commit()
}

// RecordWage appends one wage change row to the current run.
func (db *DB) RecordWage(row telemetry.WageTrace) error {
	if db.closed {
		return ErrClosed
	}
	_, err := db.conn.Exec(`INSERT INTO wage_changes
		(run_id, tick, multiplier, workforce, employed, unemployment,
		 band0, band1, band2, band3, band4)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		db.runID, row.Tick, row.Multiplier, row.Workforce, row.Employed,
		row.Unemployment, row.Band0, row.Band1, row.Band2, row.Band3, row.Band4,
	)
	return err
}

// RecordMaintenance appends a batch of maintenance charge rows to the
// current run.
func (db *DB) RecordMaintenance(rows []telemetry.MaintenanceCharge) error {
	if db.closed {
		return ErrClosed
	}
	for start := 0; start < len(rows); start += db.batch {
		end := min(start+db.batch, len(rows))
		if err := db.insertMaintenance(rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) insertMaintenance(rows []telemetry.MaintenanceCharge) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO maintenance_charges
		(run_id, tick, workplace, amount, debt)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(db.runID, r.Tick, r.Workplace, r.Amount, r.Debt); err != nil {
			return fmt.Errorf("insert charge %d@%d: %w", r.Workplace, r.Tick, err)
		}
	}
	return tx.Commit()
}

// RecordTaxes appends a batch of tax adjustment rows to the current run.
func (db *DB) RecordTaxes(rows []telemetry.TaxTrace) error {
	if db.closed {
		return ErrClosed
	}
	for start := 0; start < len(rows); start += db.batch {
		end := min(start+db.batch, len(rows))
		if err := db.insertTaxes(rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) insertTaxes(rows []telemetry.TaxTrace) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO tax_adjustments
		(run_id, tick, company, profit_per_tick, rent_per_tick,
		 net_income, adjustment, area, average_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.Exec(
			db.runID, r.Tick, r.Company, r.Profit, r.Rent,
			r.Net, r.Adjustment, r.Area, r.Rate,
		)
		if err != nil {
			return fmt.Errorf("insert tax adjustment %d@%d: %w", r.Company, r.Tick, err)
		}
	}
	return tx.Commit()
}

// Finish stamps the current run with its end time and final tick count.
func (db *DB) Finish(ticks int64) error {
	if db.closed {
		return ErrClosed
	}
	_, err := db.conn.Exec(
		"UPDATE runs SET finished_at = ?, ticks = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), ticks, db.runID,
	)
	return err
}

// Close closes the connection. Safe to call twice.
func (db *DB) Close() error {
	if db.closed {
		return nil
	}
	db.closed = true
	return db.conn.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
