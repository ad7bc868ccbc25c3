// Package bqsr implements the base-quality-score-recalibration batch
// pipeline: read filtering, CIGAR expansion, known-variant masking, BAQ
// recalibration, fractional-error assignment and covariate gathering.
package bqsr

import "github.com/grailbio/hts/sam"

// AlignedRead is one aligned sequencing read as consumed by the pipeline.
// Batches are immutable once built; all derived, per-run state lives in a
// BatchContext instead.
type AlignedRead struct {
	ReadGroupID   uint32 // interned read group id
	ReadGroupName string
	Platform      string // read group PL tag, e.g. "ILLUMINA", "SOLID"
	RefID         uint32 // reference sequence id, refgenome.Index-relative
	AlignmentStart int   // 0-based, local to RefID's sequence
	Cigar         sam.Cigar
	Bases         []byte // ASCII bases, uppercased, one byte per base
	Qualities     []uint8 // Phred-scaled, one per base
	Flags         sam.Flags
	MapQ          uint8
}

// Len returns the number of bases in the read.
func (r *AlignedRead) Len() int { return len(r.Bases) }

// AlignmentBatch is an immutable batch of reads flowing through the
// pipeline together.
type AlignmentBatch struct {
	Reads []AlignedRead
}

// BatchBuilder accumulates reads before producing an immutable
// AlignmentBatch, mirroring the Builder convention used by refgenome and
// variantdb.
type BatchBuilder struct {
	reads []AlignedRead
}

// NewBatchBuilder returns an empty BatchBuilder.
func NewBatchBuilder() *BatchBuilder { return &BatchBuilder{} }

// Add appends one read to the batch under construction.
func (b *BatchBuilder) Add(r AlignedRead) { b.reads = append(b.reads, r) }

// Len reports how many reads have been added so far.
func (b *BatchBuilder) Len() int { return len(b.reads) }

// Build finalizes the batch.
func (b *BatchBuilder) Build() *AlignmentBatch {
	return &AlignmentBatch{Reads: append([]AlignedRead(nil), b.reads...)}
}
