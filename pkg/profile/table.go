package profile

import (
	"sync"
	"time"
)

// DefaultCapacity bounds the number of distinct (api, caller) pairs a table
// tracks. Observations of new pairs beyond this are dropped.
const DefaultCapacity = 1024

// Entry aggregates runtime statistics for one (api, caller) pair.
type Entry struct {
	// API is the resolved name of the dangerous function that was called.
	API string

	// Caller is the name of the function containing the call site.
	Caller string

	// Count is the number of observed calls. It never decreases.
	Count uint64

	// First and Last carry the monotonic clock readings of the first and most
	// recent observation; First never exceeds Last.
	First time.Time
	Last  time.Time
}

// Table is a fixed-capacity, insertion-ordered aggregation of call
// observations. It is safe for concurrent use: a single mutex serializes each
// operation as a whole, so no partial updates are observable.
//
// Lookup is a linear scan over existing entries, O(distinct pairs) per Record.
// That is the scalability ceiling of this design; the distinct-pair count is
// expected to stay small relative to total call volume.
type Table struct {
	mu       sync.Mutex
	entries  []*Entry
	capacity int
	dropped  uint64

	// now is replaceable for tests.
	now func() time.Time
}

// NewTable creates an empty table holding at most capacity distinct pairs.
// A non-positive capacity selects DefaultCapacity.
func NewTable(capacity int) *Table {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Table{
		capacity: capacity,
		now:      time.Now,
	}
}

// Record notes one call of api from caller.
//
// An existing entry has its count incremented and its last-call timestamp
// refreshed. A new pair creates an entry while the table is below capacity.
// At capacity the observation is dropped without error; data loss under
// sustained high cardinality is the accepted degradation policy.
func (t *Table) Record(api, caller string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for _, e := range t.entries {
		if e.API == api && e.Caller == caller {
			e.Count++
			e.Last = now
			return
		}
	}

	if len(t.entries) >= t.capacity {
		t.dropped++
		return
	}

	t.entries = append(t.entries, &Entry{
		API:    api,
		Caller: caller,
		Count:  1,
		First:  now,
		Last:   now,
	})
}

// Snapshot returns a copy of all entries in insertion order. The copy is
// detached from the table; concurrent Record calls do not affect it.
func (t *Table) Snapshot() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		entries[i] = *e
	}
	return entries
}

// Len returns the number of tracked pairs.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Dropped returns the number of observations discarded because the table was
// at capacity.
func (t *Table) Dropped() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dropped
}
