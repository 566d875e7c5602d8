package cache

import (
	"sync"
	"time"
)

// TimestampTracker records the most recent write time per table. Cached
// query results are compared against these timestamps so that a cached
// read never predates a tracked write.
type TimestampTracker struct {
	mu      sync.RWMutex
	byTable map[string]time.Time
}

// NewTimestampTracker creates an empty tracker.
func NewTimestampTracker() *TimestampTracker {
	return &TimestampTracker{byTable: make(map[string]time.Time)}
}

// Touch records a write to the given tables at the current time.
func (t *TimestampTracker) Touch(tables ...string) {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, table := range tables {
		t.byTable[table] = now
	}
}

// LastUpdate returns the recorded write time for a table; the zero time
// when the table was never touched.
func (t *TimestampTracker) LastUpdate(table string) time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byTable[table]
}

// WrittenSince reports whether any of the tables was written at or after
// the given instant. Untracked tables count as unwritten.
func (t *TimestampTracker) WrittenSince(tables []string, since time.Time) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, table := range tables {
		if updated, ok := t.byTable[table]; ok && !updated.Before(since) {
			return true
		}
	}
	return false
}
