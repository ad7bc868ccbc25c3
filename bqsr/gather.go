package bqsr

import (
	"github.com/grailbio/hts/sam"

	"github.com/grailbio/firepony/covariate"
	"github.com/grailbio/firepony/runtimeopts"
)

// Tables holds one covariate.Table per chain this pipeline tracks: the
// quality chain is always gathered; the cycle and context chains are
// optional (spec: "no_cycle_covariate, no_context_covariate: disable
// optional tables").
type Tables struct {
	Quality *covariate.Table
	Cycle   *covariate.Table
	Context *covariate.Table
}

// NewTables allocates one empty Table per enabled chain.
func NewTables(opts *runtimeopts.Options) *Tables {
	t := &Tables{Quality: covariate.NewTable(covariate.QualityChain)}
	if !opts.NoCycleCovariate {
		t.Cycle = covariate.NewTable(covariate.CycleChain)
	}
	if !opts.NoContextCovariate {
		t.Context = covariate.NewTable(covariate.ContextChain)
	}
	return t
}

// Merge folds other into t in place (pointwise table merge, per chain).
func (t *Tables) Merge(other *Tables) {
	t.Quality.Merge(other.Quality)
	if t.Cycle != nil && other.Cycle != nil {
		t.Cycle.Merge(other.Cycle)
	}
	if t.Context != nil && other.Context != nil {
		t.Context.Merge(other.Context)
	}
}

// cycleOf computes the sequencing-cycle covariate for read base readBaseIdx
// out of readLen, following GATK's convention of counting from the
// 5' end of the original sequenced fragment: for a reverse-strand read
// this is the distance from the read's 3' end instead of its coordinate
// start.
func cycleOf(readBaseIdx, readLen int, reverse bool) int32 {
	if reverse {
		return int32(readLen - 1 - readBaseIdx)
	}
	return int32(readBaseIdx)
}

// contextOf packs the mismatchesContextSize bases immediately preceding
// readBaseIdx (inclusive) into a 2-bit/base context value, matching
// refgenome's nibble convention loosely mapped down to 2 bits/base (A=0,
// C=1, G=2, T=3; any other base yields ok=false and the caller should skip
// the context chain for that position).
func contextOf(bases []byte, readBaseIdx, k int) (uint32, bool) {
	if readBaseIdx-k+1 < 0 {
		return 0, false
	}
	var ctx uint32
	for i := readBaseIdx - k + 1; i <= readBaseIdx; i++ {
		b, ok := baseTo2Bit(bases[i])
		if !ok {
			return 0, false
		}
		ctx = (ctx << 2) | b
	}
	return ctx, true
}

func baseTo2Bit(b byte) (uint32, bool) {
	switch b {
	case 'A', 'a':
		return 0, true
	case 'C', 'c':
		return 1, true
	case 'G', 'g':
		return 2, true
	case 'T', 't':
		return 3, true
	default:
		return 0, false
	}
}

// GatherCovariates walks the active, unmasked Match/Insertion bases of
// batch and emits one observation per chain into tables (spec §4.12 step
// 1; sort/reduce happen implicitly inside covariate.Table.Observe's
// map-based accumulation rather than as a literal external sort, an
// allowed substitution since the spec only requires the resulting
// sorted-unique-key partial table, not a particular sort algorithm).
func GatherCovariates(batch *AlignmentBatch, ctx *BatchContext, tables *Tables, opts *runtimeopts.Options) {
	GatherCovariatesRange(batch, ctx, ctx.ActiveReadList, tables, opts)
}

// GatherCovariatesRange is GatherCovariates restricted to readIndices (a
// subset of ctx.ActiveReadList, or all of it). Every write it makes goes
// through covariate.Table.Observe, which takes its own lock, so
// backend.CPU can call this concurrently across disjoint read-index
// chunks without any further synchronization.
func GatherCovariatesRange(batch *AlignmentBatch, ctx *BatchContext, readIndices []int, tables *Tables, opts *runtimeopts.Options) {
	qc := covariate.ChainFor(covariate.QualityChain)
	var cc, xc *covariate.Chain
	if tables.Cycle != nil {
		cc = covariate.ChainFor(covariate.CycleChain)
	}
	if tables.Context != nil {
		xc = covariate.ChainFor(covariate.ContextChain)
	}

	for _, readIdx := range readIndices {
		r := &batch.Reads[readIdx]
		begin, end := ctx.ReadSlice(readIdx)
		reverse := r.Flags&sam.Reverse != 0

		readCursor := 0
		for i := begin; i < end; i++ {
			ev := ctx.CigarEvents[i]
			if readCursor >= len(r.Bases) {
				break
			}
			baseIdx := readCursor
			readCursor++

			if ev != EventMatch && ev != EventInsertion {
				continue
			}
			if !ctx.ActiveLocations[i] {
				continue
			}
			// Covariates key on the BAQ-capped quality (spec C9->C10->C11,
			// glossary: "BAQ: a per-base cap on quality"): ctx.BAQQualities
			// already equals the reported quality when BAQ is disabled
			// (copyReportedQualities), so this is a strict generalization,
			// not a behavior change, for -no-baq runs.
			quality := ctx.BAQQualities[i]
			if quality > 63 {
				quality = 63
			}
			if int(quality) < opts.LowQualityTail {
				continue
			}
			mismatch := ctx.FractionalErrors[i]

			var covEvent covariate.EventType
			if ev == EventMatch {
				covEvent = covariate.EventMismatch
			} else {
				covEvent = covariate.EventInsertion
			}

			qk := qc.PackQuality(r.ReadGroupID, quality, covEvent)
			tables.Quality.Observe(qk, 1, mismatch)

			if cc != nil {
				cyc := cycleOf(baseIdx, len(r.Bases), reverse)
				ck := cc.PackCycle(r.ReadGroupID, quality, cyc, covEvent)
				tables.Cycle.Observe(ck, 1, mismatch)
			}
			if xc != nil {
				if ctxVal, ok := contextOf(r.Bases, baseIdx, opts.MismatchesContextSize); ok {
					xk := xc.PackContext(r.ReadGroupID, quality, ctxVal, covEvent)
					tables.Context.Observe(xk, 1, mismatch)
				}
			}
		}
	}
}
