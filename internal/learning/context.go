package learning

import (
	"sync"
	"time"
)

// WorkingContext holds short-lived key/value context shared across one
// orchestration pass. Entries expire after their TTL and are pruned lazily
// on read.
type WorkingContext struct {
	entries map[string]workingEntry
	mu      sync.RWMutex
}

type workingEntry struct {
	value     interface{}
	expiresAt time.Time
}

// DefaultWorkingTTL is how long working context survives without refresh
const DefaultWorkingTTL = 15 * time.Minute

// NewWorkingContext creates an empty working context
func NewWorkingContext() *WorkingContext {
	return &WorkingContext{
		entries: make(map[string]workingEntry),
	}
}

// Set stores a value with a TTL. ttl <= 0 uses DefaultWorkingTTL.
func (w *WorkingContext) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultWorkingTTL
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries[key] = workingEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Get returns the value if present and not expired
func (w *WorkingContext) Get(key string) (interface{}, bool) {
	w.mu.RLock()
	entry, ok := w.entries[key]
	w.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		w.mu.Lock()
		delete(w.entries, key)
		w.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

// Prune drops all expired entries and reports how many were removed
func (w *WorkingContext) Prune() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	removed := 0
	for key, entry := range w.entries {
		if now.After(entry.expiresAt) {
			delete(w.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of live entries without pruning
func (w *WorkingContext) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entries)
}
