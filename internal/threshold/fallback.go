package threshold

import "sync"

// Fallbacks holds the in-memory last-resort threshold per installation.
// Seeded from static configuration at startup, refreshed whenever a dynamic
// value is observed, and mutable through the setThreshold command. Not
// persisted: after a restart the static seed applies again until the store
// yields a dynamic value.
type Fallbacks struct {
	mu     sync.RWMutex
	values map[string]float64
}

// NewFallbacks seeds the registry from static configuration.
func NewFallbacks(seed map[string]float64) *Fallbacks {
	values := make(map[string]float64, len(seed))
	for name, v := range seed {
		values[name] = v
	}
	return &Fallbacks{values: values}
}

// Get returns the fallback threshold for an installation.
func (f *Fallbacks) Get(installation string) (float64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.values[installation]
	return v, ok
}

// Set replaces the fallback threshold for a known installation. Unknown
// names are ignored so a command cannot grow the fixed installation set.
func (f *Fallbacks) Set(installation string, value float64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[installation]; !ok {
		return false
	}
	f.values[installation] = value
	return true
}
