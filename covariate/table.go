package covariate

import (
	"sort"
	"sync"
)

// Entry is a covariate accumulator entry: the number of bases observed at
// a given key, and the (possibly fractional) number of those bases that
// disagreed with the reference. Mismatches is floating point because the
// fractional-error assignment stage (spec C10) distributes sub-unit error mass
// across neighboring bases rather than incrementing by whole counts.
type Entry struct {
	Observations uint64
	Mismatches   float64
}

// Add accumulates other into e in place.
func (e *Entry) Add(other Entry) {
	e.Observations += other.Observations
	e.Mismatches += other.Mismatches
}

// Table is a covariate accumulator: a mapping from composite Key to Entry.
// Keys() and Range iterate in ascending key order with no duplicate keys,
// matching the spec's requirement that "iteration order is by ascending key".
//
// Table is safe for concurrent use: Observe takes an internal lock, so
// several workers may write into one shared table; Merge folds one table
// into another.
type Table struct {
	mu      sync.Mutex
	kind    ChainKind
	entries map[Key]Entry
}

// NewTable returns an empty Table for the given chain kind.
func NewTable(kind ChainKind) *Table {
	return &Table{kind: kind, entries: make(map[Key]Entry)}
}

// Kind reports which chain this table's keys were packed with.
func (t *Table) Kind() ChainKind { return t.kind }

// Observe adds observations and mismatches (possibly fractional mismatch
// mass) to the entry at key. Safe for concurrent callers.
func (t *Table) Observe(key Key, observations uint64, mismatches float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entries[key]
	e.Observations += observations
	e.Mismatches += mismatches
	t.entries[key] = e
}

// Len returns the number of distinct keys in the table.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Get returns the entry for key and whether it was present.
func (t *Table) Get(key Key) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	return e, ok
}

// Keys returns the table's keys in ascending order. This is the canonical
// iteration order the spec requires (P8 determinism): two tables built
// from the same observations in any order, any batch grouping, produce
// identical Keys()/Entries() sequences.
func (t *Table) Keys() []Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]Key, 0, len(t.entries))
	for k := range t.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Range calls fn once per (key, entry) pair in ascending key order. fn
// must not call back into t.
func (t *Table) Range(fn func(Key, Entry)) {
	for _, k := range t.Keys() {
		e, ok := t.Get(k)
		if ok {
			fn(k, e)
		}
	}
}

// Merge adds every entry of other into t by key (P3: merge is associative
// and commutative since it is pointwise addition over the accumulator
// monoid (uint64 sum, float64 sum)). other is left unmodified.
func (t *Table) Merge(other *Table) {
	other.mu.Lock()
	snapshot := make(map[Key]Entry, len(other.entries))
	for k, v := range other.entries {
		snapshot[k] = v
	}
	other.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	for k, v := range snapshot {
		e := t.entries[k]
		e.Add(v)
		t.entries[k] = e
	}
}

// Clone returns an independent copy of t.
func (t *Table) Clone() *Table {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := NewTable(t.kind)
	for k, v := range t.entries {
		cp.entries[k] = v
	}
	return cp
}

// Snapshot is a gob-encodable projection of a Table, used by bqsr's
// checkpoint writer to persist the global tables between batches without
// exposing the internal mutex.
type Snapshot struct {
	Kind    ChainKind
	Keys    []Key
	Entries []Entry
}

// Snapshot captures t's current contents in canonical key order.
func (t *Table) Snapshot() Snapshot {
	keys := t.Keys()
	s := Snapshot{Kind: t.kind, Keys: keys, Entries: make([]Entry, len(keys))}
	for i, k := range keys {
		e, _ := t.Get(k)
		s.Entries[i] = e
	}
	return s
}

// Restore rebuilds a Table from a Snapshot produced by Snapshot.
func Restore(s Snapshot) *Table {
	t := NewTable(s.Kind)
	for i, k := range s.Keys {
		t.entries[k] = s.Entries[i]
	}
	return t
}
