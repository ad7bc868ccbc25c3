package bqsr

import (
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecalibrateBAQPerfectMatchStaysWithinQualityBounds(t *testing.T) {
	ref := []byte("TTTTTTTACGTACGTATTTTTTTT")
	refAt := func(p int64) (byte, bool) {
		if p < 0 || int(p) >= len(ref) {
			return 0, false
		}
		return ref[p], true
	}

	bases := []byte("ACGTACGTAT")
	batch := &AlignmentBatch{Reads: []AlignedRead{
		{AlignmentStart: 7, Cigar: sam.Cigar{sam.NewCigarOp(sam.CigarMatch, len(bases))}, Bases: bases, Qualities: repeatByte(30, len(bases))},
	}}
	ctx := NewBatchContext()
	ctx.Reset(1)
	ctx.ActiveReadList = []int{0}
	ExpandCIGAR(batch, ctx, func(int) int64 { return 7 })

	stats := &PipelineStatistics{}
	RecalibrateBAQ(batch, ctx, DefaultBAQParams(), refAt, stats)

	begin, end := ctx.ReadSlice(0)
	for i := begin; i < end; i++ {
		assert.GreaterOrEqual(t, ctx.BAQQualities[i], uint8(DefaultMinQuality))
		assert.LessOrEqual(t, ctx.BAQQualities[i], uint8(30))
	}
	assert.Equal(t, uint64(1), stats.BAQReads)
}

func TestRecalibrateBAQOutOfBoundsWindowFallsBack(t *testing.T) {
	refAt := func(p int64) (byte, bool) { return 0, false }

	bases := []byte("ACGTACGTAT")
	batch := &AlignmentBatch{Reads: []AlignedRead{
		{AlignmentStart: 7, Cigar: sam.Cigar{sam.NewCigarOp(sam.CigarMatch, len(bases))}, Bases: bases, Qualities: repeatByte(30, len(bases))},
	}}
	ctx := NewBatchContext()
	ctx.Reset(1)
	ctx.ActiveReadList = []int{0}
	ExpandCIGAR(batch, ctx, func(int) int64 { return 7 })

	stats := &PipelineStatistics{}
	RecalibrateBAQ(batch, ctx, DefaultBAQParams(), refAt, stats)

	begin, end := ctx.ReadSlice(0)
	require.Equal(t, len(bases), end-begin)
	for i := begin; i < end; i++ {
		assert.Equal(t, uint8(30), ctx.BAQQualities[i])
	}
	assert.Equal(t, uint64(1), stats.BAQFailures)
	assert.Equal(t, uint64(0), stats.BAQReads)
}

func TestRecalibrateBAQEmptyWindowKeepsReportedQuality(t *testing.T) {
	refAt := func(p int64) (byte, bool) { return 'A', true }

	bases := []byte("AAA")
	batch := &AlignmentBatch{Reads: []AlignedRead{
		{AlignmentStart: 0, Cigar: sam.Cigar{sam.NewCigarOp(sam.CigarInsertion, len(bases))}, Bases: bases, Qualities: repeatByte(20, len(bases))},
	}}
	ctx := NewBatchContext()
	ctx.Reset(1)
	ctx.ActiveReadList = []int{0}
	ExpandCIGAR(batch, ctx, func(int) int64 { return 0 })

	stats := &PipelineStatistics{}
	RecalibrateBAQ(batch, ctx, DefaultBAQParams(), refAt, stats)

	begin, end := ctx.ReadSlice(0)
	for i := begin; i < end; i++ {
		assert.Equal(t, uint8(20), ctx.BAQQualities[i])
	}
}

func TestQualityMinusDeltaClampsToMinAndReported(t *testing.T) {
	assert.Equal(t, uint8(6), qualityMinusDelta(30, 1000, 6))
	assert.Equal(t, uint8(30), qualityMinusDelta(30, -5, 6))
	assert.Equal(t, uint8(25), qualityMinusDelta(30, 5, 6))
}

func repeatByte(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}
