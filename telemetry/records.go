package telemetry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"strconv"
)

// RecordKind selects one record category.
type RecordKind uint8

const (
	// RecordSurge ranks the strongest price rises over vanilla.
	RecordSurge RecordKind = iota
	// RecordCrash ranks the strongest price drops under vanilla.
	RecordCrash
	// RecordCharge ranks the largest maintenance fees.
	RecordCharge
	// RecordTax ranks the largest income adjustments.
	RecordTax

	recordKinds
)

var recordKindNames = [recordKinds]string{"surges", "crashes", "charges", "taxes"}

func (k RecordKind) String() string {
	if k >= recordKinds {
		return "unknown"
	}
	return recordKindNames[k]
}

// recordFloor is the minimum magnitude per kind. Price records need a
// real deviation from vanilla; charge and tax records accept any
// positive amount.
var recordFloor = [recordKinds]float64{0.10, 0.10, 0, 0}

// recordStep is the relative margin a subject's new extreme must clear
// over its previous one to count as a fresh record.
const recordStep = 0.05

// RecordEntry is one record-setting moment. Magnitude ranks entries
// within a category; the context fields depend on the kind. Price
// records carry the resource with its supply and demand, charge and tax
// records carry the entity and its running balance.
type RecordEntry struct {
	Magnitude float64 `json:"magnitude"`
	Tick      int64   `json:"tick"`
	Resource  string  `json:"resource,omitempty"`
	Entity    uint64  `json:"entity,omitempty"`
	Value     float64 `json:"value"`
	Supply    float64 `json:"supply,omitempty"`
	Demand    float64 `json:"demand,omitempty"`
	Balance   float64 `json:"balance,omitempty"`
}

// subject identifies what set the record, for the per-subject best
// tracking.
func (e RecordEntry) subject() string {
	if e.Resource != "" {
		return e.Resource
	}
	return strconv.FormatUint(e.Entity, 10)
}

// RecordBook keeps the most extreme regulation moments of a run, one
// bounded hall per category sorted by magnitude. A subject re-enters a
// hall only when it beats its own previous record, so a resource
// sitting at a high price for a thousand ticks contributes one entry,
// not a thousand. Single-writer; the collector owns it.
type RecordBook struct {
	halls   [recordKinds][]RecordEntry
	best    [recordKinds]map[string]float64
	maxSize int
}

// NewRecordBook creates a record book keeping maxSize entries per
// category.
func NewRecordBook(maxSize int) *RecordBook {
	if maxSize < 1 {
		maxSize = 1
	}
	b := &RecordBook{maxSize: maxSize}
	for k := range b.halls {
		b.halls[k] = make([]RecordEntry, 0, maxSize)
		b.best[k] = make(map[string]float64)
	}
	return b
}

// ConsiderPrice evaluates one price row for the surge and crash halls.
// Returns true if it entered either.
func (b *RecordBook) ConsiderPrice(t PriceTrace) bool {
	if t.Fallback {
		return false
	}

	kind := RecordSurge
	magnitude := t.Multiplier - 1
	if t.Multiplier < 1 {
		kind = RecordCrash
		magnitude = 1 - t.Multiplier
	}

	entry := RecordEntry{
		Magnitude: magnitude,
		Tick:      t.Tick,
		Resource:  t.Resource,
		Value:     t.Multiplier,
		Supply:    t.Supply,
		Demand:    t.Demand,
	}
	return b.consider(kind, entry)
}

// ConsiderCharge evaluates one maintenance fee for the charge hall.
func (b *RecordBook) ConsiderCharge(c MaintenanceCharge) bool {
	entry := RecordEntry{
		Magnitude: float64(c.Amount),
		Tick:      c.Tick,
		Entity:    c.Workplace,
		Value:     float64(c.Amount),
		Balance:   c.Debt,
	}
	return b.consider(RecordCharge, entry)
}

// ConsiderTax evaluates one income adjustment for the tax hall.
func (b *RecordBook) ConsiderTax(t TaxTrace) bool {
	entry := RecordEntry{
		Magnitude: math.Abs(t.Adjustment),
		Tick:      t.Tick,
		Entity:    t.Company,
		Value:     t.Adjustment,
		Balance:   t.Net,
	}
	return b.consider(RecordTax, entry)
}

// consider applies the entry criteria and inserts qualifying entries.
func (b *RecordBook) consider(kind RecordKind, entry RecordEntry) bool {
	if entry.Magnitude <= recordFloor[kind] {
		return false
	}
	key := entry.subject()
	if prev, ok := b.best[kind][key]; ok && entry.Magnitude < prev*(1+recordStep) {
		return false
	}

	b.best[kind][key] = entry.Magnitude
	b.halls[kind] = b.insert(b.halls[kind], entry)
	return true
}

// insert adds an entry to a hall, maintaining sorted order by
// magnitude. If the hall is full, the lowest entry is dropped.
func (b *RecordBook) insert(hall []RecordEntry, entry RecordEntry) []RecordEntry {
	// Insertion point, sorted descending by magnitude
	idx := sort.Search(len(hall), func(i int) bool {
		return hall[i].Magnitude < entry.Magnitude
	})

	// Full hall and the entry would rank below the cutoff
	if len(hall) >= b.maxSize && idx >= b.maxSize {
		return hall
	}

	hall = append(hall, RecordEntry{})
	copy(hall[idx+1:], hall[idx:])
	hall[idx] = entry

	if len(hall) > b.maxSize {
		hall = hall[:b.maxSize]
	}

	return hall
}

// Top returns a copy of a category's hall, strongest first.
func (b *RecordBook) Top(kind RecordKind) []RecordEntry {
	if kind >= recordKinds {
		return nil
	}
	hall := b.halls[kind]
	out := make([]RecordEntry, len(hall))
	copy(out, hall)
	return out
}

// Size returns the number of entries in a category's hall.
func (b *RecordBook) Size(kind RecordKind) int {
	if kind >= recordKinds {
		return 0
	}
	return len(b.halls[kind])
}

// TopMagnitude returns the strongest magnitude in a category, 0 when
// the hall is empty.
func (b *RecordBook) TopMagnitude(kind RecordKind) float64 {
	if kind >= recordKinds || len(b.halls[kind]) == 0 {
		return 0
	}
	return b.halls[kind][0].Magnitude
}

// Stats returns per-category sizes and top magnitudes for logging.
func (b *RecordBook) Stats() (sizes []int, tops []float64) {
	sizes = make([]int, recordKinds)
	tops = make([]float64, recordKinds)
	for k, hall := range b.halls {
		sizes[k] = len(hall)
		if len(hall) > 0 {
			tops[k] = hall[0].Magnitude
		}
	}
	return
}

// MarshalJSON serializes the record book keyed by category name.
func (b *RecordBook) MarshalJSON() ([]byte, error) {
	export := make(map[string][]RecordEntry, recordKinds)
	for k, hall := range b.halls {
		entries := make([]RecordEntry, len(hall))
		copy(entries, hall)
		export[RecordKind(k).String()] = entries
	}
	return json.MarshalIndent(export, "", "  ")
}

// LoadRecordBookFromFile reads a record book JSON file and rebuilds the
// halls and the per-subject bests from it. Capacity is taken from the
// largest hall in the file, with a floor of maxSize.
func LoadRecordBookFromFile(path string, maxSize int) (*RecordBook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading record book: %w", err)
	}

	var raw map[string][]RecordEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing record book JSON: %w", err)
	}

	for _, entries := range raw {
		if len(entries) > maxSize {
			maxSize = len(entries)
		}
	}

	b := NewRecordBook(maxSize)
	for name, entries := range raw {
		kind, ok := recordKindByName(name)
		if !ok {
			slog.Warn("record book load: unknown category, skipping", "category", name)
			continue
		}
		for _, entry := range entries {
			b.halls[kind] = b.insert(b.halls[kind], entry)
			key := entry.subject()
			if entry.Magnitude > b.best[kind][key] {
				b.best[kind][key] = entry.Magnitude
			}
		}
	}

	return b, nil
}

func recordKindByName(name string) (RecordKind, bool) {
	for k, n := range recordKindNames {
		if n == name {
			return RecordKind(k), true
		}
	}
	return 0, false
}
