package bqsr

// Event classifies one base (or, for Deletion, one reference position) of
// the expanded CIGAR event stream.
type Event uint8

const (
	EventMatch Event = iota
	EventInsertion
	EventDeletion
	EventSoftClip
)

// ASCII returns the single-character representation of the event, used by
// diagnostics; the covariate key's EventType field uses a narrower
// 3-valued covariate.EventType instead (SoftClip bases never reach the
// covariate tables).
func (e Event) ASCII() byte {
	switch e {
	case EventMatch:
		return 'M'
	case EventInsertion:
		return 'I'
	case EventDeletion:
		return 'D'
	case EventSoftClip:
		return 'S'
	default:
		return '?'
	}
}

// Window is an inclusive [Start, End] interval, used both for global
// reference coordinates (alignment windows) and local, per-sequence
// coordinates.
type Window struct {
	Start int
	End   int
}

// Empty reports whether the window touches no bases at all, the state a
// read with no Match operations is left in.
func (w Window) Empty() bool { return w.End < w.Start }

// perReadSlice delimits one read's contribution to a per-base, batch-wide
// concatenated array by a half-open [Begin, End) range.
type perReadSlice struct {
	Begin, End int
}

// BatchContext is mutable scratch state owned by the pipeline driver for
// one batch. Unlike AlignmentBatch, a BatchContext is reused across
// batches: its slices are truncated to length zero between batches rather
// than reallocated, so steady-state operation does no further allocation
// once buffers have grown to the largest batch seen (spec: "batch
// contexts are reused across batches... buffers grow to the maximum seen
// size then are retained").
type BatchContext struct {
	// ActiveReadList is the sorted, strictly increasing list of read
	// indices surviving the filter stage.
	ActiveReadList []int

	// AlignmentWindows[i] is read i's alignment window in global reference
	// coordinates; only valid for entries in ActiveReadList.
	AlignmentWindows []Window
	// SequenceAlignmentWindows[i] is the same window in local (per-read's
	// reference sequence) coordinates.
	SequenceAlignmentWindows []Window

	// CigarEvents is the concatenated per-base event stream across active
	// reads, delimited per-read by readSlices.
	CigarEvents []Event
	readSlices  []perReadSlice

	// DeletionRefOffsets holds, per active read, the reference-relative
	// offsets of deleted reference bases in increasing order: the "parallel
	// reference-event stream" spec §4.7 calls for, kept separate from
	// CigarEvents because a Deletion consumes no read base and so has no
	// natural slot in the per-read-base stream. AssignFractionalErrors is
	// its only consumer.
	DeletionRefOffsets []int
	deletionSlices     []perReadSlice

	// ActiveLocations marks, in parallel with CigarEvents, whether a base
	// contributes to covariate accounting (false once SNP-masked).
	ActiveLocations []bool

	// ReadOffsetList[i] is the reference-relative offset of CigarEvents[i]
	// within its read's alignment window.
	ReadOffsetList []int

	// BAQQualities holds the recalibrated per-base quality output of the
	// BAQ stage, parallel to CigarEvents.
	BAQQualities []uint8

	// FractionalErrors holds the per-base error mass output of the
	// fractional-error stage, parallel to CigarEvents.
	FractionalErrors []float64
}

// NewBatchContext returns an empty, ready-to-use BatchContext.
func NewBatchContext() *BatchContext { return &BatchContext{} }

// Reset truncates every scratch buffer to length zero and grows
// per-read slices to numReads, ready to process a new batch of that size.
// Capacity from a previous, larger batch is retained.
func (c *BatchContext) Reset(numReads int) {
	c.ActiveReadList = c.ActiveReadList[:0]
	c.CigarEvents = c.CigarEvents[:0]
	c.ActiveLocations = c.ActiveLocations[:0]
	c.ReadOffsetList = c.ReadOffsetList[:0]
	c.BAQQualities = c.BAQQualities[:0]
	c.FractionalErrors = c.FractionalErrors[:0]
	c.DeletionRefOffsets = c.DeletionRefOffsets[:0]

	if cap(c.AlignmentWindows) < numReads {
		c.AlignmentWindows = make([]Window, numReads)
		c.SequenceAlignmentWindows = make([]Window, numReads)
		c.readSlices = make([]perReadSlice, numReads)
		c.deletionSlices = make([]perReadSlice, numReads)
	} else {
		c.AlignmentWindows = c.AlignmentWindows[:numReads]
		c.SequenceAlignmentWindows = c.SequenceAlignmentWindows[:numReads]
		c.readSlices = c.readSlices[:numReads]
		c.deletionSlices = c.deletionSlices[:numReads]
	}
	for i := range c.AlignmentWindows {
		c.AlignmentWindows[i] = Window{Start: 0, End: -1}
		c.SequenceAlignmentWindows[i] = Window{Start: 0, End: -1}
	}
}

// ReadSlice returns the [begin, end) range into CigarEvents/
// ActiveLocations/ReadOffsetList/BAQQualities/FractionalErrors belonging
// to read readIdx.
func (c *BatchContext) ReadSlice(readIdx int) (begin, end int) {
	s := c.readSlices[readIdx]
	return s.Begin, s.End
}

// beginRead records the start of readIdx's slice at the current length of
// CigarEvents, to be closed by endRead once its bases have been appended.
func (c *BatchContext) beginRead(readIdx int) {
	c.readSlices[readIdx].Begin = len(c.CigarEvents)
}

func (c *BatchContext) endRead(readIdx int) {
	c.readSlices[readIdx].End = len(c.CigarEvents)
}

// DeletionSlice returns the [begin, end) range into DeletionRefOffsets
// belonging to read readIdx.
func (c *BatchContext) DeletionSlice(readIdx int) (begin, end int) {
	s := c.deletionSlices[readIdx]
	return s.Begin, s.End
}

func (c *BatchContext) beginDeletions(readIdx int) {
	c.deletionSlices[readIdx].Begin = len(c.DeletionRefOffsets)
}

func (c *BatchContext) endDeletions(readIdx int) {
	c.deletionSlices[readIdx].End = len(c.DeletionRefOffsets)
}
