// Package variantdb implements the known-variant (SNP) index used by the
// SNP filter stage (spec C4/C8): a sorted, binary-searchable list of variant
// intervals in global genome coordinates.
package variantdb

import "sort"

// Interval is a half-open [Start, End) variant interval in global genome
// coordinates, mirroring from_nvbio::SNPDatabase's genome_start_positions /
// genome_stop_positions fields (see original_source/bqsr/variants.h).
type Interval struct {
	Start int64
	End   int64
}

// Database is a sorted (by Start), binary-searchable sequence of variant
// intervals. Overlaps between intervals are permitted; the database does not
// merge them. A Database is immutable once built and safe for concurrent
// read-only use.
type Database struct {
	intervals []Interval
}

// Builder accumulates intervals before producing an immutable, sorted
// Database.
type Builder struct {
	intervals []Interval
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add inserts a known-variant interval [start, end) in global coordinates.
func (b *Builder) Add(start, end int64) {
	b.intervals = append(b.intervals, Interval{Start: start, End: end})
}

// Build sorts the accumulated intervals by Start and returns the Database.
func (b *Builder) Build() *Database {
	sorted := append([]Interval(nil), b.intervals...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	return &Database{intervals: sorted}
}

// Len returns the number of intervals in the database.
func (db *Database) Len() int { return len(db.intervals) }

// Covers reports whether global position pos is covered by any known
// variant interval.
//
// Lookup binary-searches by interval start, then walks backward over the
// intervals with Start <= pos until one has End > pos.
func (db *Database) Covers(pos int64) bool {
	// lower_bound: first interval with Start > pos. Every interval at index <
	// i therefore has Start <= pos.
	i := sort.Search(len(db.intervals), func(i int) bool { return db.intervals[i].Start > pos })
	// Walk backward over candidates with Start <= pos looking for one that
	// also satisfies End > pos. Overlaps are permitted (database invariant),
	// so more than one candidate may need to be inspected.
	for j := i - 1; j >= 0; j-- {
		if db.intervals[j].End > pos {
			return true
		}
	}
	return false
}
