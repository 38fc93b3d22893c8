package history

import (
	"github.com/pthm-cable/agora/telemetry"
)

// Summary aggregates one run's metadata and row counts.
type Summary struct {
	ID         string `db:"id"`
	StartedAt  string `db:"started_at"`
	FinishedAt string `db:"finished_at"` // empty while the run is live
	Ticks      int64  `db:"ticks"`
	Prices     int    `db:"prices"`
	Wages      int    `db:"wages"`
	Charges    int    `db:"charges"`
	Taxes      int    `db:"taxes"`
}

const summaryQuery = `SELECT r.id, r.started_at,
	COALESCE(r.finished_at, '') AS finished_at, r.ticks,
	(SELECT COUNT(*) FROM price_traces p WHERE p.run_id = r.id) AS prices,
	(SELECT COUNT(*) FROM wage_changes w WHERE w.run_id = r.id) AS wages,
	(SELECT COUNT(*) FROM maintenance_charges m WHERE m.run_id = r.id) AS charges,
	(SELECT COUNT(*) FROM tax_adjustments t WHERE t.run_id = r.id) AS taxes
	FROM runs r`

// Summaries returns every recorded run, oldest first.
func (db *DB) Summaries() ([]Summary, error) {
	if db.closed {
		return nil, ErrClosed
	}
	var out []Summary
	err := db.conn.Select(&out, summaryQuery+" ORDER BY r.started_at, r.id")
	return out, err
}

// RunSummary returns the summary for one run.
func (db *DB) RunSummary(runID string) (Summary, error) {
	if db.closed {
		return Summary{}, ErrClosed
	}
	var s Summary
	err := db.conn.Get(&s, summaryQuery+" WHERE r.id = ?", runID)
	return s, err
}

type priceRow struct {
	Tick        int64   `db:"tick"`
	Resource    string  `db:"resource"`
	Supply      float64 `db:"supply"`
	Demand      float64 `db:"demand"`
	Ratio       float64 `db:"ratio"`
	Exponent    float64 `db:"exponent"`
	Vanilla     float64 `db:"vanilla"`
	Raw         float64 `db:"raw"`
	Anchored    float64 `db:"anchored"`
	Elastic     float64 `db:"elastic"`
	Blended     float64 `db:"blended"`
	Final       float64 `db:"final"`
	Multiplier  float64 `db:"multiplier"`
	ClampedLow  int     `db:"clamped_low"`
	ClampedHigh int     `db:"clamped_high"`
	Fallback    int     `db:"fallback"`
}

// RecentTraces returns the newest price traces of a run, newest first.
func (db *DB) RecentTraces(runID string, limit int) ([]telemetry.PriceTrace, error) {
	if db.closed {
		return nil, ErrClosed
	}
	var rows []priceRow
	err := db.conn.Select(&rows, `SELECT tick, resource, supply, demand,
		ratio, exponent, vanilla, raw, anchored, elastic, blended, final,
		multiplier, clamped_low, clamped_high, fallback
		FROM price_traces WHERE run_id = ? ORDER BY id DESC LIMIT ?`,
		runID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]telemetry.PriceTrace, 0, len(rows))
	for _, r := range rows {
		out = append(out, telemetry.PriceTrace{
			Tick:        r.Tick,
			Resource:    r.Resource,
			Supply:      r.Supply,
			Demand:      r.Demand,
			Ratio:       r.Ratio,
			Exponent:    r.Exponent,
			Vanilla:     r.Vanilla,
			Raw:         r.Raw,
			Anchored:    r.Anchored,
			Elastic:     r.Elastic,
			Blended:     r.Blended,
			Final:       r.Final,
			Multiplier:  r.Multiplier,
			ClampedLow:  r.ClampedLow != 0,
			ClampedHigh: r.ClampedHigh != 0,
			Fallback:    r.Fallback != 0,
		})
	}
	return out, nil
}

type wageRow struct {
	Tick         int64   `db:"tick"`
	Multiplier   float64 `db:"multiplier"`
	Workforce    int     `db:"workforce"`
	Employed     int     `db:"employed"`
	Unemployment float64 `db:"unemployment"`
	Band0        int     `db:"band0"`
	Band1        int     `db:"band1"`
	Band2        int     `db:"band2"`
	Band3        int     `db:"band3"`
	Band4        int     `db:"band4"`
}

// RecentWages returns the newest wage changes of a run, newest first.
func (db *DB) RecentWages(runID string, limit int) ([]telemetry.WageTrace, error) {
	if db.closed {
		return nil, ErrClosed
	}
	var rows []wageRow
	err := db.conn.Select(&rows, `SELECT tick, multiplier, workforce,
		employed, unemployment, band0, band1, band2, band3, band4
		FROM wage_changes WHERE run_id = ? ORDER BY id DESC LIMIT ?`,
		runID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]telemetry.WageTrace, 0, len(rows))
	for _, r := range rows {
		out = append(out, telemetry.WageTrace{
			Tick:         r.Tick,
			Multiplier:   r.Multiplier,
			Workforce:    r.Workforce,
			Employed:     r.Employed,
			Unemployment: r.Unemployment,
			Band0:        r.Band0,
			Band1:        r.Band1,
			Band2:        r.Band2,
			Band3:        r.Band3,
			Band4:        r.Band4,
		})
	}
	return out, nil
}
