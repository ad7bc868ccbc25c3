package bqsr

import (
	"testing"

	"github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandCIGARSimpleMatch(t *testing.T) {
	batch := &AlignmentBatch{Reads: []AlignedRead{
		{AlignmentStart: 100, Cigar: sam.Cigar{sam.NewCigarOp(sam.CigarMatch, 5)}, Bases: []byte("ACGTA"), Qualities: []byte{30, 30, 30, 30, 30}},
	}}
	ctx := NewBatchContext()
	ctx.Reset(1)
	ctx.ActiveReadList = []int{0}

	ExpandCIGAR(batch, ctx, func(int) int64 { return 1000 })

	begin, end := ctx.ReadSlice(0)
	require.Equal(t, 5, end-begin)
	for i := begin; i < end; i++ {
		assert.Equal(t, EventMatch, ctx.CigarEvents[i])
		assert.True(t, ctx.ActiveLocations[i])
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, ctx.ReadOffsetList[begin:end])
	assert.Equal(t, Window{Start: 1000, End: 1004}, ctx.AlignmentWindows[0])
	assert.Equal(t, Window{Start: 100, End: 104}, ctx.SequenceAlignmentWindows[0])
}

func TestExpandCIGARInsertionAndDeletion(t *testing.T) {
	// 2M 1I 2M 1D 2M: 7 read bases (2+1+2+2); the deletion consumes no read base.
	batch := &AlignmentBatch{Reads: []AlignedRead{
		{AlignmentStart: 0, Cigar: sam.Cigar{
			sam.NewCigarOp(sam.CigarMatch, 2),
			sam.NewCigarOp(sam.CigarInsertion, 1),
			sam.NewCigarOp(sam.CigarMatch, 2),
			sam.NewCigarOp(sam.CigarDeletion, 1),
			sam.NewCigarOp(sam.CigarMatch, 2),
		}, Bases: []byte("AACCGGT"), Qualities: []byte{30, 30, 30, 30, 30, 30, 30}},
	}}
	ctx := NewBatchContext()
	ctx.Reset(1)
	ctx.ActiveReadList = []int{0}

	ExpandCIGAR(batch, ctx, func(int) int64 { return 0 })

	begin, end := ctx.ReadSlice(0)
	require.Equal(t, 7, end-begin)
	wantEvents := []Event{EventMatch, EventMatch, EventInsertion, EventMatch, EventMatch, EventMatch, EventMatch}
	assert.Equal(t, wantEvents, ctx.CigarEvents[begin:end])

	delBegin, delEnd := ctx.DeletionSlice(0)
	require.Equal(t, 1, delEnd-delBegin)
	assert.Equal(t, 4, ctx.DeletionRefOffsets[delBegin]) // ref offset right after the 4 ref bases consumed by the two 2M ops (the insertion consumes none)
}

func TestExpandCIGARSoftClipExcludedFromActiveLocations(t *testing.T) {
	batch := &AlignmentBatch{Reads: []AlignedRead{
		{AlignmentStart: 10, Cigar: sam.Cigar{
			sam.NewCigarOp(sam.CigarSoftClipped, 2),
			sam.NewCigarOp(sam.CigarMatch, 3),
		}, Bases: []byte("NNACG"), Qualities: []byte{0, 0, 30, 30, 30}},
	}}
	ctx := NewBatchContext()
	ctx.Reset(1)
	ctx.ActiveReadList = []int{0}

	ExpandCIGAR(batch, ctx, func(int) int64 { return 500 })

	begin, end := ctx.ReadSlice(0)
	assert.Equal(t, EventSoftClip, ctx.CigarEvents[begin])
	assert.Equal(t, EventSoftClip, ctx.CigarEvents[begin+1])
	assert.False(t, ctx.ActiveLocations[begin])
	assert.False(t, ctx.ActiveLocations[begin+1])
	assert.Equal(t, EventMatch, ctx.CigarEvents[begin+2])
	assert.True(t, ctx.ActiveLocations[begin+2])
	_ = end
}

func TestExpandCIGARAllInsertionEmptyWindow(t *testing.T) {
	batch := &AlignmentBatch{Reads: []AlignedRead{
		{AlignmentStart: 0, Cigar: sam.Cigar{sam.NewCigarOp(sam.CigarInsertion, 3)}, Bases: []byte("AAA"), Qualities: []byte{30, 30, 30}},
	}}
	ctx := NewBatchContext()
	ctx.Reset(1)
	ctx.ActiveReadList = []int{0}

	ExpandCIGAR(batch, ctx, func(int) int64 { return 0 })

	assert.True(t, ctx.AlignmentWindows[0].Empty())
}
