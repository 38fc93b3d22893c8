package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/agora/config"
)

// streamNames lists the CSV files of a run directory.
var streamNames = []string{
	"prices", "wages", "maintenance", "taxes",
	"stats", "perf", "bookmarks",
}

// csvStream is one CSV output file. The first write emits headers,
// later writes append rows only.
type csvStream struct {
	f             *os.File
	headerWritten bool
}

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir     string
	streams map[string]*csvStream
}

// NewOutputManager creates an output manager and initializes the run
// directory. Returns nil if dir is empty (output disabled); every method
// is safe on a nil receiver.
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{
		dir:     dir,
		streams: make(map[string]*csvStream, len(streamNames)),
	}
	for _, name := range streamNames {
		f, err := os.Create(filepath.Join(dir, name+".csv"))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s.csv: %w", name, err)
		}
		om.streams[name] = &csvStream{f: f}
	}

	return om, nil
}

// WriteConfig saves the effective configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WritePrices appends a tick's price trace rows to prices.csv.
func (om *OutputManager) WritePrices(rows []PriceTrace) error {
	if om == nil || len(rows) == 0 {
		return nil
	}
	return om.write("prices", rows)
}

// WriteWage appends a wage trace row to wages.csv.
func (om *OutputManager) WriteWage(row WageTrace) error {
	if om == nil {
		return nil
	}
	return om.write("wages", []WageTrace{row})
}

// WriteMaintenance appends a tick's charge rows to maintenance.csv.
func (om *OutputManager) WriteMaintenance(rows []MaintenanceCharge) error {
	if om == nil || len(rows) == 0 {
		return nil
	}
	return om.write("maintenance", rows)
}

// WriteTaxes appends a tick's adjustment rows to taxes.csv.
func (om *OutputManager) WriteTaxes(rows []TaxTrace) error {
	if om == nil || len(rows) == 0 {
		return nil
	}
	return om.write("taxes", rows)
}

// WriteStats appends a window stats record to stats.csv.
func (om *OutputManager) WriteStats(stats WindowStats) error {
	if om == nil {
		return nil
	}
	return om.write("stats", []WindowStats{stats})
}

// WritePerf appends a performance record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int64) error {
	if om == nil {
		return nil
	}
	return om.write("perf", []PerfStatsCSV{stats.ToCSV(windowEnd)})
}

// WriteBookmarks appends bookmark records to bookmarks.csv.
func (om *OutputManager) WriteBookmarks(rows []Bookmark) error {
	if om == nil || len(rows) == 0 {
		return nil
	}
	return om.write("bookmarks", rows)
}

// WriteRecords saves the run's record book as indented JSON.
func (om *OutputManager) WriteRecords(book *RecordBook) error {
	if om == nil || book == nil {
		return nil
	}
	data, err := book.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding record book: %w", err)
	}
	return os.WriteFile(filepath.Join(om.dir, "records.json"), data, 0644)
}

func (om *OutputManager) write(name string, rows any) error {
	s := om.streams[name]

	if !s.headerWritten {
		// First write includes headers
		if err := gocsv.Marshal(rows, s.f); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		s.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(rows, s.f); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, s := range om.streams {
		if s == nil || s.f == nil {
			continue
		}
		if err := s.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
