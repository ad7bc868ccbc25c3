package bqsr

// DefaultIndelFlankWidth is the number of Match bases on each side of an
// indel event across which its error mass is spread (spec §4.10: "indels
// distribute 1.0 across the N bases flanking the indel event divided by
// N"); N here is 2*DefaultIndelFlankWidth.
const DefaultIndelFlankWidth = 2

// AssignFractionalErrors fills ctx.FractionalErrors, parallel to
// ctx.CigarEvents (spec C10). Match columns get a 0/1 mismatch indicator
// against the reference; Insertion events get full weight 1.0 at their
// own position (an insertion is unconditionally an error). Both
// Insertion and Deletion events additionally spread 1.0 of error mass
// across the flankWidth nearest Match bases on each side, since an
// indel's exact breakpoint is itself ambiguous and degrades confidence in
// the bases around it; Deletion events have no slot of their own in
// ctx.CigarEvents (spec §4.7), so they are read from the parallel
// ctx.DeletionRefOffsets stream instead.
//
// refAt is the same reference-base accessor RecalibrateBAQ uses.
func AssignFractionalErrors(batch *AlignmentBatch, ctx *BatchContext, flankWidth int, refAt func(globalPos int64) (byte, bool)) {
	n := len(ctx.CigarEvents)
	for len(ctx.FractionalErrors) < n {
		ctx.FractionalErrors = append(ctx.FractionalErrors, 0)
	}
	ctx.FractionalErrors = ctx.FractionalErrors[:n]
	for i := range ctx.FractionalErrors {
		ctx.FractionalErrors[i] = 0
	}

	for _, readIdx := range ctx.ActiveReadList {
		begin, end := ctx.ReadSlice(readIdx)
		win := ctx.AlignmentWindows[readIdx]
		if win.Empty() {
			continue
		}
		base := int64(win.Start) - int64(ctx.ReadOffsetList[begin])

		readCursor := 0
		r := &batch.Reads[readIdx]
		for i := begin; i < end; i++ {
			ev := ctx.CigarEvents[i]
			if readCursor >= len(r.Bases) {
				break
			}
			b := r.Bases[readCursor]
			readCursor++

			switch ev {
			case EventMatch:
				refPos := base + int64(ctx.ReadOffsetList[i])
				refBase, ok := refAt(refPos)
				if ok && refBase != b {
					ctx.FractionalErrors[i] = 1.0
				}
			case EventInsertion:
				ctx.FractionalErrors[i] = 1.0
				spreadFlankingError(ctx, begin, end, i, flankWidth, 1.0/float64(2*flankWidth))
			}
		}

		delBegin, delEnd := ctx.DeletionSlice(readIdx)
		for i := delBegin; i < delEnd; i++ {
			spreadFlankingErrorAtRefOffset(ctx, begin, end, ctx.DeletionRefOffsets[i], flankWidth, 1.0/float64(2*flankWidth))
		}
	}
}

// spreadFlankingError adds weight to the flankWidth nearest Match-event
// slots (active or not) strictly before and strictly after idx, within
// [begin, end).
func spreadFlankingError(ctx *BatchContext, begin, end, idx, flankWidth int, weight float64) {
	left := 0
	for i := idx - 1; i >= begin && left < flankWidth; i-- {
		if ctx.CigarEvents[i] == EventMatch {
			ctx.FractionalErrors[i] += weight
			left++
		}
	}
	right := 0
	for i := idx + 1; i < end && right < flankWidth; i++ {
		if ctx.CigarEvents[i] == EventMatch {
			ctx.FractionalErrors[i] += weight
			right++
		}
	}
}

// spreadFlankingErrorAtRefOffset is spreadFlankingError's counterpart for a
// Deletion event, which has no index into ctx.CigarEvents/ReadOffsetList of
// its own: it locates the flank by reference offset instead, since
// ReadOffsetList is non-decreasing across a read's [begin, end) slice.
func spreadFlankingErrorAtRefOffset(ctx *BatchContext, begin, end, refOffset, flankWidth int, weight float64) {
	split := end
	for i := begin; i < end; i++ {
		if ctx.ReadOffsetList[i] >= refOffset {
			split = i
			break
		}
	}
	left := 0
	for i := split - 1; i >= begin && left < flankWidth; i-- {
		if ctx.CigarEvents[i] == EventMatch {
			ctx.FractionalErrors[i] += weight
			left++
		}
	}
	right := 0
	for i := split; i < end && right < flankWidth; i++ {
		if ctx.CigarEvents[i] == EventMatch {
			ctx.FractionalErrors[i] += weight
			right++
		}
	}
}
