package bqsr

import (
	"strings"

	"github.com/grailbio/hts/sam"

	"github.com/grailbio/firepony/runtimeopts"
)

// excludedFlags mirrors pileup/snp's flagExclude default (0xf00):
// unmapped, secondary, QC-fail, and duplicate reads never contribute to
// recalibration.
const excludedFlags = sam.Unmapped | sam.Secondary | sam.QCFail | sam.Duplicate

// FilterActiveReads builds ctx.ActiveReadList: the strictly increasing
// subset of batch.Reads surviving the active-read filter (spec C6).
// Reads with an excluded flag, an empty CIGAR, a base/quality length
// mismatch, or a mapping quality of zero (unmapped-ish) are dropped; dropped
// reads increment stats.FilteredReads. The CIGAR's read length is not
// compared against the number of bases. SOLiD reads carrying at least one
// no-call base are additionally subject to opts.SolidRecalMode/
// SolidNocallStrategy (see solidReadActive).
func FilterActiveReads(batch *AlignmentBatch, ctx *BatchContext, opts *runtimeopts.Options, stats *PipelineStatistics) {
	ctx.Reset(len(batch.Reads))
	for i := range batch.Reads {
		r := &batch.Reads[i]
		if !readIsActive(r) || !solidReadActive(r, opts, stats) {
			stats.FilteredReads++
			continue
		}
		ctx.ActiveReadList = append(ctx.ActiveReadList, i)
	}
}

func readIsActive(r *AlignedRead) bool {
	if r.Flags&excludedFlags != 0 {
		return false
	}
	if len(r.Cigar) == 0 {
		return false
	}
	if len(r.Bases) != len(r.Qualities) {
		return false
	}
	if r.MapQ == 0 {
		return false
	}
	return true
}

// isSolidNoCall reports whether b is a SOLiD no-call base, written out as
// 'N' in basespace the way grailbio/hts's BAM reader normalizes any
// ambiguity code.
func isSolidNoCall(b byte) bool { return b == 'N' }

// hasNoCall reports whether r carries at least one no-call base.
func hasNoCall(r *AlignedRead) bool {
	for _, b := range r.Bases {
		if isSolidNoCall(b) {
			return true
		}
	}
	return false
}

// isSolidPlatform reports whether r's read group platform is SOLiD,
// matching the RG PL tag's "SOLID" value case-insensitively.
func isSolidPlatform(r *AlignedRead) bool {
	return strings.EqualFold(r.Platform, "SOLID")
}

// solidReadActive resolves the Open Question spec.md §9 leaves open for
// solid_recal_mode/solid_nocall_strategy (see DESIGN.md): it only has an
// opinion about SOLiD reads that carry at least one no-call base, since
// those are the only reads either option can affect.
//
// SolidRecalModeThrow, the default, means this pipeline has no colorspace
// recalibration support at all: any no-call SOLiD read is dropped
// regardless of SolidNocallStrategy. SolidRecalModeMatch/Set both mean
// "colorspace recalibration is in play", at which point
// SolidNocallStrategy decides the individual read's fate: LeaveRead keeps
// it active (its no-call bases flow through the rest of the pipeline as
// ordinary non-ACGT bases), Throw and PurgeRead both drop it -- Throw
// additionally counts the read in stats.SolidNoCallReads, separating "an
// input this strategy refuses to process" from an ordinary filtered read.
func solidReadActive(r *AlignedRead, opts *runtimeopts.Options, stats *PipelineStatistics) bool {
	if !isSolidPlatform(r) || !hasNoCall(r) {
		return true
	}
	if opts.SolidRecalMode == runtimeopts.SolidRecalModeThrow {
		stats.SolidNoCallReads++
		return false
	}
	switch opts.SolidNocallStrategy {
	case runtimeopts.SolidNocallLeaveRead:
		return true
	case runtimeopts.SolidNocallPurgeRead:
		return false
	default: // SolidNocallThrow
		stats.SolidNoCallReads++
		return false
	}
}
