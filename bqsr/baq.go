package bqsr

import "math"

// BAQ parameters (spec §4.9 defaults).
const (
	DefaultBandwidth  = 7
	DefaultGapOpen    = 1e-3
	DefaultGapExtend  = 1e-4
	DefaultMinQuality = 6
	minBAQReadLen     = 1
	maxBAQDelta       = 60
)

// BAQParams bundles the pair-HMM's tunable rates so tests can probe
// non-default configurations without touching the package-level
// constants.
type BAQParams struct {
	Bandwidth  int
	GapOpen    float64
	GapExtend  float64
	MinQuality uint8
}

// DefaultBAQParams returns the spec's documented defaults.
func DefaultBAQParams() BAQParams {
	return BAQParams{
		Bandwidth:  DefaultBandwidth,
		GapOpen:    DefaultGapOpen,
		GapExtend:  DefaultGapExtend,
		MinQuality: DefaultMinQuality,
	}
}

// hmmState indexes the three pair-HMM states.
type hmmState int

const (
	stateMatch hmmState = iota
	stateInsertion
	stateDeletion
	numStates
)

var negInf = math.Inf(-1)

func logAdd(a, b float64) float64 {
	if a == negInf {
		return b
	}
	if b == negInf {
		return a
	}
	if a < b {
		a, b = b, a
	}
	return a + math.Log1p(math.Exp(b-a))
}

// baqMatrix is a dense (rows) x (cols) x numStates log-probability table.
// Bandwidth is enforced by only extracting a reference window of
// read-length + 2*bandwidth in the first place (spec §4.9 step 1); the DP
// itself runs unbanded over that already-narrow window.
type baqMatrix struct {
	rows, cols int
	data       []float64 // negInf = impossible
}

func newBAQMatrix(rows, cols int) *baqMatrix {
	m := &baqMatrix{rows: rows, cols: cols, data: make([]float64, rows*cols*int(numStates))}
	for i := range m.data {
		m.data[i] = negInf
	}
	return m
}

func (m *baqMatrix) at(i, j int, s hmmState) float64 {
	return m.data[(i*m.cols+j)*int(numStates)+int(s)]
}

func (m *baqMatrix) set(i, j int, s hmmState, v float64) {
	m.data[(i*m.cols+j)*int(numStates)+int(s)] = v
}

// baqBase is one Match/Insertion base of a read, as seen by the pair-HMM.
type baqBase struct {
	base byte
	qual uint8
}

// RecalibrateBAQ runs the BAQ pair-HMM for every active read with a
// non-empty alignment window and fills ctx.BAQQualities, leaving the
// reported quality untouched (copied through) for any read that is too
// short, has no Match/Insertion events, or whose window falls outside the
// reference (spec: "per-read failure... degrades to keep reported
// quality").
//
// refAt(globalPos) must return the uppercase ASCII reference base at a
// global coordinate, or ok=false if globalPos is out of bounds.
func RecalibrateBAQ(batch *AlignmentBatch, ctx *BatchContext, params BAQParams, refAt func(globalPos int64) (byte, bool), stats *PipelineStatistics) {
	PrepareBAQBuffers(ctx)
	RecalibrateBAQRange(batch, ctx, ctx.ActiveReadList, params, refAt, stats)
}

// PrepareBAQBuffers (re)sizes ctx.BAQQualities to cover every active read's
// slice. It must run once, single-threaded, before any call to
// RecalibrateBAQRange; backend.CPU calls it before fanning the per-read work
// out across goroutines, since every baqOneRead call after this point only
// writes to its own disjoint [begin,end) sub-slice and needs no further
// synchronization.
func PrepareBAQBuffers(ctx *BatchContext) {
	ctx.BAQQualities = ctx.BAQQualities[:0]
	maxIdx := 0
	for _, readIdx := range ctx.ActiveReadList {
		_, end := ctx.ReadSlice(readIdx)
		if end > maxIdx {
			maxIdx = end
		}
	}
	for len(ctx.BAQQualities) < maxIdx {
		ctx.BAQQualities = append(ctx.BAQQualities, 0)
	}
}

// RecalibrateBAQRange runs baqOneRead for exactly the reads named by
// readIndices (a subset of ctx.ActiveReadList, or all of it). Callers that
// want to fan this out across goroutines must call PrepareBAQBuffers once
// up front and give each goroutine its own stats accumulator, merging with
// PipelineStatistics.Add afterward.
func RecalibrateBAQRange(batch *AlignmentBatch, ctx *BatchContext, readIndices []int, params BAQParams, refAt func(globalPos int64) (byte, bool), stats *PipelineStatistics) {
	for _, readIdx := range readIndices {
		begin, end := ctx.ReadSlice(readIdx)
		baqOneRead(batch, ctx, readIdx, begin, end, params, refAt, stats)
	}
}

func baqOneRead(batch *AlignmentBatch, ctx *BatchContext, readIdx, begin, end int, params BAQParams, refAt func(int64) (byte, bool), stats *PipelineStatistics) {
	r := &batch.Reads[readIdx]
	win := ctx.AlignmentWindows[readIdx]

	fallback := func() {
		readCursor := 0
		for i := begin; i < end; i++ {
			if readCursor < len(r.Qualities) {
				ctx.BAQQualities[i] = r.Qualities[readCursor]
				readCursor++
			}
		}
	}

	if win.Empty() {
		fallback()
		return
	}

	// Collect the Match/Insertion bases of this read, in read order, along
	// with the reference column (relative to the extracted window) each
	// Match base aligns to.
	var bases []baqBase
	readCursor := 0
	for i := begin; i < end; i++ {
		ev := ctx.CigarEvents[i]
		if readCursor >= len(r.Bases) {
			break
		}
		b := r.Bases[readCursor]
		q := r.Qualities[readCursor]
		readCursor++
		if ev == EventMatch || ev == EventInsertion {
			bases = append(bases, baqBase{base: b, qual: q})
		}
	}

	if len(bases) < minBAQReadLen {
		fallback()
		return
	}

	bw := params.Bandwidth
	refStart := int64(win.Start) - int64(bw)
	refEnd := int64(win.End) + int64(bw)
	refSeq := make([]byte, 0, refEnd-refStart+1)
	ok := true
	for p := refStart; p <= refEnd; p++ {
		b, got := refAt(p)
		if !got {
			ok = false
			break
		}
		refSeq = append(refSeq, b)
	}
	if !ok {
		stats.BAQFailures++
		fallback()
		return
	}

	deltas := runPairHMM(bases, refSeq, params)
	stats.BAQReads++

	bi := 0
	for i := begin; i < end; i++ {
		ev := ctx.CigarEvents[i]
		if ev != EventMatch && ev != EventInsertion {
			continue
		}
		reported := bases[bi].qual
		delta := deltas[bi]
		bi++
		ctx.BAQQualities[i] = qualityMinusDelta(reported, delta, params.MinQuality)
	}
}

// qualityMinusDelta clamps reported-delta to [minQuality, reported] (spec:
// "clamp the recalibrated quality to max(min_qual, reported - delta)").
func qualityMinusDelta(reported uint8, delta float64, minQuality uint8) uint8 {
	q := float64(reported) - delta
	if q < float64(minQuality) {
		q = float64(minQuality)
	}
	if q > float64(reported) {
		q = float64(reported)
	}
	return uint8(math.Round(q))
}

// runPairHMM runs the forward and backward passes of the 3-state
// Match/Insertion/Deletion pair-HMM and returns, per read base, a BAQ
// delta (in Phred units) derived from the posterior probability that the
// base's alignment column is a true Match.
func runPairHMM(bases []baqBase, ref []byte, params BAQParams) []float64 {
	L := len(bases)
	R := len(ref)

	lGapOpen := math.Log(params.GapOpen)
	lGapExtend := math.Log(params.GapExtend)
	lNoGapOpen := math.Log1p(-2 * params.GapOpen)
	lNoGapExtend := math.Log1p(-params.GapExtend)

	emit := func(i int) (matchLog, mismatchLog float64) {
		errProb := qualToErrorProb(bases[i].qual)
		return math.Log1p(-errProb), math.Log(errProb / 3)
	}

	fwd := newBAQMatrix(L+1, R+1)
	fwd.set(0, 0, stateMatch, 0)
	for i := 0; i <= L; i++ {
		for j := 0; j <= R; j++ {
			if i == 0 && j == 0 {
				continue
			}
			var m, ins, del float64 = negInf, negInf, negInf
			if i > 0 && j > 0 {
				matchLog, mismatchLog := emit(i - 1)
				e := mismatchLog
				if bases[i-1].base == ref[j-1] {
					e = matchLog
				}
				prevM := fwd.at(i-1, j-1, stateMatch) + lNoGapOpen
				prevI := fwd.at(i-1, j-1, stateInsertion) + lNoGapExtend
				prevD := fwd.at(i-1, j-1, stateDeletion) + lNoGapExtend
				m = e + logAdd(logAdd(prevM, prevI), prevD)
			}
			if i > 0 {
				prevM := fwd.at(i-1, j, stateMatch) + lGapOpen
				prevI := fwd.at(i-1, j, stateInsertion) + lGapExtend
				ins = logAdd(prevM, prevI)
			}
			if j > 0 {
				prevM := fwd.at(i, j-1, stateMatch) + lGapOpen
				prevD := fwd.at(i, j-1, stateDeletion) + lGapExtend
				del = logAdd(prevM, prevD)
			}
			fwd.set(i, j, stateMatch, m)
			fwd.set(i, j, stateInsertion, ins)
			fwd.set(i, j, stateDeletion, del)
		}
	}

	bwd := newBAQMatrix(L+1, R+1)
	bwd.set(L, R, stateMatch, 0)
	bwd.set(L, R, stateInsertion, 0)
	bwd.set(L, R, stateDeletion, 0)
	for i := L; i >= 0; i-- {
		for j := R; j >= 0; j-- {
			if i == L && j == R {
				continue
			}
			var m, ins, del float64 = negInf, negInf, negInf
			if i < L && j < R {
				matchLog, mismatchLog := emit(i)
				e := mismatchLog
				if bases[i].base == ref[j] {
					e = matchLog
				}
				nextM := bwd.at(i+1, j+1, stateMatch)
				m = logAdd(m, e+nextM+lNoGapOpen)
			}
			if i < L {
				nextI := bwd.at(i+1, j, stateInsertion)
				ins = logAdd(ins, nextI+lGapExtend)
				m = logAdd(m, nextI+lGapOpen)
			}
			if j < R {
				nextD := bwd.at(i, j+1, stateDeletion)
				del = logAdd(del, nextD+lGapExtend)
				m = logAdd(m, nextD+lGapOpen)
			}
			bwd.set(i, j, stateMatch, m)
			bwd.set(i, j, stateInsertion, ins)
			bwd.set(i, j, stateDeletion, del)
		}
	}

	total := fwd.at(L, R, stateMatch)

	deltas := make([]float64, L)
	for i := 0; i < L; i++ {
		// Posterior mass of passing through a Match state while consuming
		// read base i, summed over every compatible reference column j.
		postMatch := negInf
		for j := 0; j < R; j++ {
			p := fwd.at(i+1, j+1, stateMatch) + bwd.at(i+1, j+1, stateMatch) - total
			postMatch = logAdd(postMatch, p)
		}
		prob := math.Exp(postMatch)
		if prob > 1 {
			prob = 1
		}
		if prob <= 0 {
			deltas[i] = maxBAQDelta
			continue
		}
		deltas[i] = -10 * math.Log10(1-prob+1e-300)
		if deltas[i] < 0 {
			deltas[i] = 0
		}
		if deltas[i] > maxBAQDelta {
			deltas[i] = maxBAQDelta
		}
	}
	return deltas
}

// qualToErrorProb converts a Phred quality to a linear error probability,
// the same function covariate.qualToErrorProb implements; duplicated here
// (rather than exported from covariate) since bqsr must not import
// covariate's internal helpers for a one-line formula.
func qualToErrorProb(phred uint8) float64 {
	return math.Pow(10, float64(phred)/-10.0)
}
