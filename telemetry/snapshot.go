package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the engine's regulation state at one tick, for offline
// inspection of the moments the bookmark detector flags.
type Snapshot struct {
	Version  int   `json:"version"`
	Tick     int64 `json:"tick"`
	Disabled bool  `json:"disabled,omitempty"`

	Resources []ResourceState `json:"resources"`
	Wages     WageState       `json:"wages"`

	TrackedWorkplaces int `json:"tracked_workplaces"`
	TrackedCompanies  int `json:"tracked_companies"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// ResourceState holds one resource's ledger pair and its multiplier
// state. The multiplier fields stay zero for resources the cache has
// not priced yet.
type ResourceState struct {
	Resource     string  `json:"resource"`
	Supply       float64 `json:"supply"`
	Demand       float64 `json:"demand"`
	TradeBalance float64 `json:"trade_balance,omitempty"`
	TradeWorth   float64 `json:"trade_worth,omitempty"`
	LastTick     int64   `json:"last_tick"`
	Multiplier   float64 `json:"multiplier,omitempty"`
	Floor        float64 `json:"floor,omitempty"`
	Ceiling      float64 `json:"ceiling,omitempty"`
	UpdatedTick  int64   `json:"updated_tick,omitempty"`
}

// WageState holds the wage regulator's multiplier, the captured
// baseline and the bands currently applied to the host.
type WageState struct {
	Multiplier float64 `json:"multiplier"`
	Baseline   []int   `json:"baseline,omitempty"`
	Bands      []int   `json:"bands,omitempty"`
}

// SaveSnapshot writes a snapshot to dir. Bookmark-tagged snapshots
// carry the bookmark type in the filename. Returns the path written.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d", snapshot.Tick)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Tick, sanitized)
	}
	name += ".json"

	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}

	return &snapshot, nil
}
