package refgenome

import (
	"fmt"
	"sort"
)

// Index maps (sequence id, local position) to a global genome coordinate and
// back. Sequences are addressed by the order they were added in; those
// added with AddNamedSequence can also be looked up by name through SeqID
// and listed through SeqNames.
//
// Index is immutable once built (spec §5: "The SNP database and reference
// genome are immutable after load and read-only-shared by all workers").
type Index struct {
	seqs    []PackedSequence
	offsets []int64 // offsets[i] is the global coordinate of local position 0 of seqs[i]; offsets[len(seqs)] is the total genome length.
	names   []string
	byName  map[string]int
}

// Builder accumulates sequences before producing an immutable Index.
type Builder struct {
	seqs  []PackedSequence
	names []string // parallel to seqs; empty string if AddSequence was used instead of AddNamedSequence.
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddSequence appends a packed sequence, returning its sequence id (0-based,
// in insertion order).
func (b *Builder) AddSequence(p PackedSequence) int {
	return b.AddNamedSequence("", p)
}

// AddNamedSequence is AddSequence plus a name, recoverable later through
// Index.SeqNames/SeqID. ioloader.LoadReference uses this to carry FASTA
// sequence names (chromosome names) through to the immutable Index so
// LoadKnownSites and the BAM batch source can translate VCF CHROM columns
// and BAM reference ids against it.
func (b *Builder) AddNamedSequence(name string, p PackedSequence) int {
	b.seqs = append(b.seqs, p)
	b.names = append(b.names, name)
	return len(b.seqs) - 1
}

// Build finalizes the Index.
func (b *Builder) Build() *Index {
	offsets := make([]int64, len(b.seqs)+1)
	var cum int64
	for i, s := range b.seqs {
		offsets[i] = cum
		cum += int64(s.Len())
	}
	offsets[len(b.seqs)] = cum

	byName := make(map[string]int, len(b.names))
	for id, name := range b.names {
		if name != "" {
			byName[name] = id
		}
	}
	return &Index{
		seqs:    append([]PackedSequence(nil), b.seqs...),
		offsets: offsets,
		names:   append([]string(nil), b.names...),
		byName:  byName,
	}
}

// NumSequences returns the number of reference sequences.
func (idx *Index) NumSequences() int { return len(idx.seqs) }

// SequenceLen returns the length of sequence seqID.
func (idx *Index) SequenceLen(seqID int) int {
	return idx.seqs[seqID].Len()
}

// Sequence returns the packed sequence for seqID.
func (idx *Index) Sequence(seqID int) PackedSequence {
	return idx.seqs[seqID]
}

// GlobalPos maps a (seq-id, local-pos) pair to a global genome coordinate.
func (idx *Index) GlobalPos(seqID, localPos int) int64 {
	if seqID < 0 || seqID >= len(idx.seqs) {
		panic(fmt.Sprintf("refgenome: sequence id %d out of range [0, %d)", seqID, len(idx.seqs)))
	}
	return idx.offsets[seqID] + int64(localPos)
}

// Locate maps a global genome coordinate back to (seq-id, local-pos).
func (idx *Index) Locate(globalPos int64) (seqID, localPos int) {
	// offsets is sorted ascending; find the last offset <= globalPos.
	i := sort.Search(len(idx.offsets), func(i int) bool { return idx.offsets[i] > globalPos }) - 1
	if i < 0 || i >= len(idx.seqs) {
		panic(fmt.Sprintf("refgenome: global position %d out of range [0, %d)", globalPos, idx.offsets[len(idx.offsets)-1]))
	}
	return i, int(globalPos - idx.offsets[i])
}

// SeqNames returns the sequence name passed to AddNamedSequence for each
// seqID, in insertion order. A sequence added via the unnamed AddSequence
// reports "" at its index.
func (idx *Index) SeqNames() []string { return idx.names }

// SeqID returns the sequence id that was registered under name via
// AddNamedSequence, or ok=false if no sequence has that name.
func (idx *Index) SeqID(name string) (id int, ok bool) {
	id, ok = idx.byName[name]
	return
}

// GenomeLength returns the total number of bases across all sequences.
func (idx *Index) GenomeLength() int64 {
	return idx.offsets[len(idx.offsets)-1]
}

// GlobalStart is GlobalPos with the bqsr.ReferenceView-compatible uint32
// sequence id bqsr.AlignedRead.RefID carries.
func (idx *Index) GlobalStart(refID uint32, localPos int) int64 {
	return idx.GlobalPos(int(refID), localPos)
}

// BaseAt returns the uppercase ASCII reference base at a global genome
// coordinate, or ok=false if globalPos falls outside every loaded sequence.
// This, together with GlobalStart, is what makes *Index satisfy
// bqsr.ReferenceView.
func (idx *Index) BaseAt(globalPos int64) (byte, bool) {
	if globalPos < 0 || globalPos >= idx.GenomeLength() {
		return 0, false
	}
	seqID, localPos := idx.Locate(globalPos)
	return idx.seqs[seqID].ASCIIAt(localPos), true
}
