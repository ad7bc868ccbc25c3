package covariate

// CovariateID names one position in a Chain, used to decode a Key without
// needing to know the chain's shape up front.
type CovariateID int

const (
	ReadGroupID CovariateID = iota
	ContextOrCycleID
	QualityScoreID
	EventTypeID
)

// ChainKind selects one of the three composite key layouts the spec defines.
type ChainKind int

const (
	// QualityChain packs (ReadGroup, QualityScore, EventType), equivalent to
	// GATK's RecalTable1.
	QualityChain ChainKind = iota
	// CycleChain packs (ReadGroup, QualityScore, CycleCovariate, EventType).
	CycleChain
	// ContextChain packs (ReadGroup, QualityScore, ContextCovariate,
	// EventType).
	ContextChain
)

// Chain is a compile-time-constructed bit-field layout: a fixed ordered
// list of field descriptors plus the CovariateID each slot corresponds to.
// Packing and decoding both index into this list, so adding a new chain
// kind only means adding a new Chain value, never new packing code.
type Chain struct {
	kind   ChainKind
	fields []field
	ids    []CovariateID
}

var (
	qualityChain = Chain{
		kind:   QualityChain,
		fields: []field{{"ReadGroup", readGroupBits}, {"QualityScore", qualityBits}, {"EventType", eventBits}},
		ids:    []CovariateID{ReadGroupID, QualityScoreID, EventTypeID},
	}
	cycleChain = Chain{
		kind:   CycleChain,
		fields: []field{{"ReadGroup", readGroupBits}, {"QualityScore", qualityBits}, {"Cycle", cycleBits}, {"EventType", eventBits}},
		ids:    []CovariateID{ReadGroupID, QualityScoreID, ContextOrCycleID, EventTypeID},
	}
	contextChain = Chain{
		kind:   ContextChain,
		fields: []field{{"ReadGroup", readGroupBits}, {"QualityScore", qualityBits}, {"Context", contextBits}, {"EventType", eventBits}},
		ids:    []CovariateID{ReadGroupID, QualityScoreID, ContextOrCycleID, EventTypeID},
	}
)

// ChainFor returns the Chain descriptor for kind.
func ChainFor(kind ChainKind) *Chain {
	switch kind {
	case QualityChain:
		return &qualityChain
	case CycleChain:
		return &cycleChain
	case ContextChain:
		return &contextChain
	default:
		panic("covariate: unknown chain kind")
	}
}

// Kind reports which ChainKind this Chain implements.
func (c *Chain) Kind() ChainKind { return c.kind }

// indexOf returns the field-list position of id, or -1 if the chain does
// not carry that covariate (e.g. QualityChain has no ContextOrCycleID).
func (c *Chain) indexOf(id CovariateID) int {
	for i, v := range c.ids {
		if v == id {
			return i
		}
	}
	return -1
}

// PackQuality builds a Key for the quality chain.
func (c *Chain) PackQuality(readGroup uint32, quality uint8, event EventType) Key {
	if c.kind != QualityChain {
		panic("covariate: PackQuality called on non-quality chain")
	}
	return packFields(c.fields, []uint64{uint64(readGroup), uint64(quality), uint64(event)})
}

// PackCycle builds a Key for the cycle chain. cycle may be negative
// (sequencing cycle relative to read start, GATK convention for read 2).
func (c *Chain) PackCycle(readGroup uint32, quality uint8, cycle int32, event EventType) Key {
	if c.kind != CycleChain {
		panic("covariate: PackCycle called on non-cycle chain")
	}
	return packFields(c.fields, []uint64{uint64(readGroup), uint64(quality), toSignedField(cycle, cycleBits), uint64(event)})
}

// PackContext builds a Key for the context chain. ctx is the 2-bit/base
// packed surrounding sequence context, already masked to contextBits by
// the caller's k-mer size.
func (c *Chain) PackContext(readGroup uint32, quality uint8, ctx uint32, event EventType) Key {
	if c.kind != ContextChain {
		panic("covariate: PackContext called on non-context chain")
	}
	return packFields(c.fields, []uint64{uint64(readGroup), uint64(quality), uint64(ctx), uint64(event)})
}

// Decode extracts the raw covariate value for id out of k. For
// ContextOrCycleID on the cycle chain, the returned value is already
// sign-extended into the low bits of the uint32 (cast back with int32).
func (c *Chain) Decode(k Key, id CovariateID) uint32 {
	idx := c.indexOf(id)
	if idx < 0 {
		panic("covariate: chain does not carry that covariate")
	}
	raw := unpackField(c.fields, k, idx)
	if id == ContextOrCycleID && c.kind == CycleChain {
		return uint32(signExtend(raw, cycleBits))
	}
	return uint32(raw)
}

// ReadGroup decodes the read group id out of k.
func (c *Chain) ReadGroup(k Key) uint32 { return c.Decode(k, ReadGroupID) }

// QualityScore decodes the reported quality score out of k.
func (c *Chain) QualityScore(k Key) uint8 { return uint8(c.Decode(k, QualityScoreID)) }

// Event decodes the event type out of k.
func (c *Chain) Event(k Key) EventType { return EventType(c.Decode(k, EventTypeID)) }

// WithoutTarget returns a copy of k with the target covariate's field
// cleared to zero, collapsing keys that differ only in the target
// covariate; Estimate does not call it. The target
// covariate for every chain this package defines is QualityScore, per the
// chain's own declaration that its reported quality score is what gets
// recalibrated.
func (c *Chain) WithoutTarget(k Key) Key {
	idx := c.indexOf(QualityScoreID)
	if idx < 0 {
		return k
	}
	var shift uint
	for i := idx + 1; i < len(c.fields); i++ {
		shift += c.fields[i].width
	}
	clearMask := c.fields[idx].mask() << shift
	return Key(uint64(k) &^ clearMask)
}
