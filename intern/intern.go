// Package intern implements a process-lifetime string<->uint32 id table, used
// to give read-group and reference-sequence names stable small identifiers
// for the covariate packer (see package covariate).
package intern

import (
	"sync"

	"blainsmith.com/go/seahash"
)

// ID is a stable identifier for an interned string. IDs are assigned in
// insertion order starting at 0, and are never reused.
type ID = uint32

// Table is a string<->ID database. The zero Table is not usable; construct
// one with New. A *Table is safe for concurrent use.
//
// Collisions on the seahash bucket are resolved by linear probing through
// the bucket's stored strings, comparing the full string (see Insert); this
// keeps lookup correct regardless of hash collisions.
type Table struct {
	mu      sync.RWMutex
	strings []string       // index is the ID
	buckets map[uint64][]ID // hash(s) -> candidate IDs
}

// New returns an empty Table.
func New() *Table {
	return &Table{
		buckets: make(map[uint64][]ID),
	}
}

func hashString(s string) uint64 {
	return seahash.Sum64([]byte(s))
}

// IDOf returns the ID of s if it has already been inserted, and ok=false
// otherwise. IDOf does not mutate the table.
func (t *Table) IDOf(s string) (id ID, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.idOfLocked(s)
}

func (t *Table) idOfLocked(s string) (ID, bool) {
	h := hashString(s)
	for _, candidate := range t.buckets[h] {
		if t.strings[candidate] == s {
			return candidate, true
		}
	}
	return 0, false
}

// Insert returns the ID for s, assigning a new one if s has not been seen
// before. Insert is idempotent: repeated calls with the same string return
// the same ID.
func (t *Table) Insert(s string) ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.idOfLocked(s); ok {
		return id
	}
	id := ID(len(t.strings))
	t.strings = append(t.strings, s)
	h := hashString(s)
	t.buckets[h] = append(t.buckets[h], id)
	return id
}

// Name returns the string that was assigned id. It panics if id was never
// issued by this table, since that indicates a programming error in the
// caller (every id used by the pipeline must have come from Insert).
func (t *Table) Name(id ID) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.strings) {
		panic("intern: Name called with an id this table never issued")
	}
	return t.strings[id]
}

// Len returns the number of distinct strings interned so far.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.strings)
}
