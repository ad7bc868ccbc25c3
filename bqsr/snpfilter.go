package bqsr

import "github.com/grailbio/firepony/variantdb"

// ApplySNPFilter clears ctx.ActiveLocations for every Match/Insertion base
// whose reference position is covered by a known variant (spec C8).
// Masked bases are excluded from covariate accounting and from mismatch
// counting; Deletion and SoftClip events are left untouched since they
// never reach the covariate tables regardless.
//
// globalStart must be the same function passed to ExpandCIGAR, so that a
// base's reference coordinate is computed consistently.
func ApplySNPFilter(batch *AlignmentBatch, ctx *BatchContext, db *variantdb.Database, globalStart func(readIdx int) int64) {
	if db.Len() == 0 {
		return
	}
	for _, readIdx := range ctx.ActiveReadList {
		begin, end := ctx.ReadSlice(readIdx)
		base := globalStart(readIdx)
		for i := begin; i < end; i++ {
			if ctx.CigarEvents[i] != EventMatch && ctx.CigarEvents[i] != EventInsertion {
				continue
			}
			if !ctx.ActiveLocations[i] {
				continue
			}
			pos := base + int64(ctx.ReadOffsetList[i])
			if db.Covers(pos) {
				ctx.ActiveLocations[i] = false
			}
		}
	}
}
