package bqsr

import "github.com/grailbio/hts/sam"

// ExpandCIGAR walks each active read's CIGAR string and appends its
// per-base event stream to ctx (spec C7). It records, per active read,
// the alignment window in both global and local-sequence coordinates and
// the reference-relative offset of every base.
//
// globalStart(readIdx) converts a read's local AlignmentStart into a
// global reference coordinate (refgenome.Index.GlobalPos); it is passed
// in rather than threading a refgenome.Index through this package so that
// bqsr stays independent of how reference coordinates are assigned.
func ExpandCIGAR(batch *AlignmentBatch, ctx *BatchContext, globalStart func(readIdx int) int64) {
	for _, readIdx := range ctx.ActiveReadList {
		r := &batch.Reads[readIdx]
		expandOneRead(r, readIdx, ctx, globalStart(readIdx))
	}
}

func expandOneRead(r *AlignedRead, readIdx int, ctx *BatchContext, globalBase int64) {
	ctx.beginRead(readIdx)
	ctx.beginDeletions(readIdx)

	refCursor := 0     // local to the read's reference sequence
	seqRefStart := -1
	seqRefEnd := -1

	for _, op := range r.Cigar {
		n := op.Len()
		switch op.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			for i := 0; i < n; i++ {
				ctx.CigarEvents = append(ctx.CigarEvents, EventMatch)
				ctx.ActiveLocations = append(ctx.ActiveLocations, true)
				ctx.ReadOffsetList = append(ctx.ReadOffsetList, refCursor)
				if seqRefStart < 0 {
					seqRefStart = refCursor
				}
				seqRefEnd = refCursor
				refCursor++
			}
		case sam.CigarInsertion:
			for i := 0; i < n; i++ {
				ctx.CigarEvents = append(ctx.CigarEvents, EventInsertion)
				ctx.ActiveLocations = append(ctx.ActiveLocations, true)
				ctx.ReadOffsetList = append(ctx.ReadOffsetList, refCursor)
			}
		case sam.CigarDeletion, sam.CigarSkipped:
			// Deletions consume reference but produce no read base, so they
			// get no entry in the per-base event stream; instead each
			// deleted reference position is recorded into the parallel
			// reference-event stream C10 uses (spec §4.7).
			for i := 0; i < n; i++ {
				ctx.DeletionRefOffsets = append(ctx.DeletionRefOffsets, refCursor)
				refCursor++
			}
		case sam.CigarSoftClipped:
			for i := 0; i < n; i++ {
				ctx.CigarEvents = append(ctx.CigarEvents, EventSoftClip)
				ctx.ActiveLocations = append(ctx.ActiveLocations, false)
				ctx.ReadOffsetList = append(ctx.ReadOffsetList, refCursor)
			}
		case sam.CigarHardClipped:
			// Hard-clipped bases are absent from r.Bases entirely; nothing to
			// append.
		default:
			// Unexpected op (e.g. padding); treat conservatively as
			// contributing nothing, matching the "never abort the pipeline"
			// policy for per-read oddities.
		}
	}

	ctx.endRead(readIdx)
	ctx.endDeletions(readIdx)

	if seqRefStart < 0 {
		// No Match bases at all: empty alignment window, read stays in
		// ActiveReadList (per spec §4.7, responsibility for removing such a
		// read lies with C6; if one leaks through here it just contributes
		// nothing downstream).
		ctx.SequenceAlignmentWindows[readIdx] = Window{Start: 0, End: -1}
		ctx.AlignmentWindows[readIdx] = Window{Start: 0, End: -1}
		return
	}

	ctx.SequenceAlignmentWindows[readIdx] = Window{Start: r.AlignmentStart + seqRefStart, End: r.AlignmentStart + seqRefEnd}
	ctx.AlignmentWindows[readIdx] = Window{
		Start: int(globalBase) + seqRefStart,
		End:   int(globalBase) + seqRefEnd,
	}
}
