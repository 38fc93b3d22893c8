package telemetry

// ResourceLife tracks one resource's regulation history over the whole
// run, across window flushes.
type ResourceLife struct {
	FirstTick   int64
	LastTick    int64
	Adjustments int
	Fallbacks   int
	ClampsLow   int
	ClampsHigh  int

	PeakMultiplier float64
	LowMultiplier  float64
	LastMultiplier float64
	LastFinal      float64
	LastVanilla    float64
}

// LifetimeTracker manages per-resource running totals, keyed by resource
// name.
type LifetimeTracker struct {
	stats map[string]*ResourceLife
}

// NewLifetimeTracker creates an empty tracker.
func NewLifetimeTracker() *LifetimeTracker {
	return &LifetimeTracker{
		stats: make(map[string]*ResourceLife),
	}
}

// Observe folds one price trace into the resource's running totals.
func (lt *LifetimeTracker) Observe(t PriceTrace) {
	s, ok := lt.stats[t.Resource]
	if !ok {
		s = &ResourceLife{
			FirstTick:      t.Tick,
			PeakMultiplier: t.Multiplier,
			LowMultiplier:  t.Multiplier,
		}
		lt.stats[t.Resource] = s
	}

	s.LastTick = t.Tick
	s.Adjustments++
	if t.Fallback {
		s.Fallbacks++
	}
	if t.ClampedLow {
		s.ClampsLow++
	}
	if t.ClampedHigh {
		s.ClampsHigh++
	}

	if t.Multiplier > s.PeakMultiplier {
		s.PeakMultiplier = t.Multiplier
	}
	if t.Multiplier < s.LowMultiplier {
		s.LowMultiplier = t.Multiplier
	}
	s.LastMultiplier = t.Multiplier
	s.LastFinal = t.Final
	s.LastVanilla = t.Vanilla
}

// Get returns the running totals for a resource name, or nil if never
// observed.
func (lt *LifetimeTracker) Get(resource string) *ResourceLife {
	return lt.stats[resource]
}

// All returns the tracked totals keyed by resource name.
func (lt *LifetimeTracker) All() map[string]*ResourceLife {
	return lt.stats
}

// Count returns the number of tracked resources.
func (lt *LifetimeTracker) Count() int {
	return len(lt.stats)
}
