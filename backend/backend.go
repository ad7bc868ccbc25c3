// Package backend defines the execution surface the BQSR pipeline drives
// its per-batch work through. The only implementation today is CPU, backed
// by github.com/grailbio/base/traverse; an accelerator backend is a future
// collaborator behind the same interface.
package backend

import (
	"context"

	"github.com/grailbio/firepony/bqsr"
	"github.com/grailbio/firepony/runtimeopts"
)

// ReadFilterWork is the input to Backend.Filter: one batch, worked on in
// place. There is exactly one of these per call because FilterActiveReads
// itself decides the active set (via BatchContext.Reset) and nothing
// downstream of it is safe to shard.
type ReadFilterWork struct {
	Batch *bqsr.AlignmentBatch
	Ctx   *bqsr.BatchContext
	Opts  *runtimeopts.Options
	Stats *bqsr.PipelineStatistics
}

// CIGARWork is the input to Backend.ExpandCIGAR. Like ReadFilterWork,
// there is exactly one per call: CIGAR expansion appends to ctx's shared
// per-base slices at each read's current tail, so the append order across
// reads is load-bearing and cannot be sharded.
type CIGARWork struct {
	Batch       *bqsr.AlignmentBatch
	Ctx         *bqsr.BatchContext
	GlobalStart func(readIdx int) int64
}

// BAQWork is one shard of the BAQ stage: ReadIndices names the subset of
// Ctx.ActiveReadList this shard is responsible for. bqsr.PrepareBAQBuffers
// must have already sized Ctx.BAQQualities before any BAQWork item runs.
type BAQWork struct {
	Batch       *bqsr.AlignmentBatch
	Ctx         *bqsr.BatchContext
	ReadIndices []int
	Params      bqsr.BAQParams
	RefAt       func(globalPos int64) (byte, bool)
}

// GatherWork is one shard of the covariate-gathering stage.
type GatherWork struct {
	Batch       *bqsr.AlignmentBatch
	Ctx         *bqsr.BatchContext
	ReadIndices []int
	Tables      *bqsr.Tables
	Opts        *runtimeopts.Options
}

// Backend executes the BQSR pipeline's per-batch stages. Filter and
// ExpandCIGAR each take a single-element work slice (see ReadFilterWork
// and CIGARWork); BAQ and GatherCovariates take one work item per shard
// the backend chooses to split the batch's active reads into, and run
// them however it sees fit -- CPU uses traverse.Each, a future
// accelerator backend might not shard at all.
type Backend interface {
	Filter(ctx context.Context, work []ReadFilterWork) error
	ExpandCIGAR(ctx context.Context, work []CIGARWork) error
	BAQ(ctx context.Context, work []BAQWork, stats *bqsr.PipelineStatistics) error
	GatherCovariates(ctx context.Context, work []GatherWork) error
}
