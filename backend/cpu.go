package backend

import (
	"context"
	"runtime"

	"github.com/grailbio/base/traverse"

	"github.com/grailbio/firepony/bqsr"
	"github.com/grailbio/firepony/runtimeopts"
)

// CPU is the Backend that runs every stage on the local machine's CPUs,
// fanning BAQ and GatherCovariates out across Parallelism goroutines via
// traverse.Each, matching pileup.Pileup's convention of treating
// Parallelism <= 0 as runtime.NumCPU().
type CPU struct {
	Parallelism int
}

// NewCPU returns a CPU backend with the given nominal degree of
// parallelism; 0 or negative means runtime.NumCPU().
func NewCPU(parallelism int) *CPU {
	return &CPU{Parallelism: parallelism}
}

func (c *CPU) degree() int {
	if c.Parallelism > 0 {
		return c.Parallelism
	}
	return runtime.NumCPU()
}

// Shard splits ctx.ActiveReadList into c.degree() roughly-even,
// contiguous chunks, the same shard-division arithmetic pileup.go uses to
// divide shards across traverse.Each jobs. Callers use it to build the
// ReadIndices of a []BAQWork or []GatherWork.
func (c *CPU) Shard(ctx *bqsr.BatchContext) [][]int {
	readList := ctx.ActiveReadList
	n := c.degree()
	if n > len(readList) {
		n = len(readList)
	}
	if n == 0 {
		return nil
	}
	out := make([][]int, n)
	for i := 0; i < n; i++ {
		start := (i * len(readList)) / n
		end := ((i + 1) * len(readList)) / n
		out[i] = readList[start:end]
	}
	return out
}

// Filter runs on the caller's goroutine: see ReadFilterWork for why this
// stage is never sharded.
func (c *CPU) Filter(_ context.Context, work []ReadFilterWork) error {
	for _, w := range work {
		bqsr.FilterActiveReads(w.Batch, w.Ctx, w.Opts, w.Stats)
	}
	return nil
}

// ExpandCIGAR runs on the caller's goroutine: see CIGARWork for why this
// stage is never sharded.
func (c *CPU) ExpandCIGAR(_ context.Context, work []CIGARWork) error {
	for _, w := range work {
		bqsr.ExpandCIGAR(w.Batch, w.Ctx, w.GlobalStart)
	}
	return nil
}

// BAQ runs every work item concurrently: once bqsr.PrepareBAQBuffers has
// sized ctx.BAQQualities, every read's baqOneRead call only touches its
// own disjoint [begin,end) sub-slice, so the shards are independent.
// Per-shard statistics are accumulated locally and merged into stats
// after every shard completes, avoiding a shared counter race.
func (c *CPU) BAQ(ctx context.Context, work []BAQWork, stats *bqsr.PipelineStatistics) error {
	partial := make([]bqsr.PipelineStatistics, len(work))
	err := traverse.Each(len(work), func(i int) error {
		if cerr := ctx.Err(); cerr != nil {
			return nil
		}
		w := work[i]
		bqsr.RecalibrateBAQRange(w.Batch, w.Ctx, w.ReadIndices, w.Params, w.RefAt, &partial[i])
		return nil
	})
	for i := range partial {
		stats.Add(&partial[i])
	}
	return err
}

// GatherCovariates runs every work item concurrently; every write it
// makes lands in covariate.Table.Observe, which locks internally, so no
// partial-result merge is needed.
func (c *CPU) GatherCovariates(ctx context.Context, work []GatherWork) error {
	return traverse.Each(len(work), func(i int) error {
		if cerr := ctx.Err(); cerr != nil {
			return nil
		}
		w := work[i]
		bqsr.GatherCovariatesRange(w.Batch, w.Ctx, w.ReadIndices, w.Tables, w.Opts)
		return nil
	})
}

// RunBAQ satisfies bqsr.ParallelExecutor: it shards batch's active reads
// across c's goroutines and runs BAQ on each shard via c.BAQ. Errors from
// the underlying traverse.Each are dropped, matching bqsr.RecalibrateBAQ's
// own signature, which has no error return -- per-read BAQ failures are
// absorbed into stats.BAQFailures rather than surfaced as an error.
func (c *CPU) RunBAQ(ctx context.Context, batch *bqsr.AlignmentBatch, bctx *bqsr.BatchContext, params bqsr.BAQParams, refAt func(globalPos int64) (byte, bool), stats *bqsr.PipelineStatistics) {
	bqsr.PrepareBAQBuffers(bctx)
	shards := c.Shard(bctx)
	work := make([]BAQWork, len(shards))
	for i, s := range shards {
		work[i] = BAQWork{Batch: batch, Ctx: bctx, ReadIndices: s, Params: params, RefAt: refAt}
	}
	_ = c.BAQ(ctx, work, stats)
}

// RunGatherCovariates satisfies bqsr.ParallelExecutor the same way RunBAQ
// does, sharding across c.GatherCovariates.
func (c *CPU) RunGatherCovariates(ctx context.Context, batch *bqsr.AlignmentBatch, bctx *bqsr.BatchContext, tables *bqsr.Tables, opts *runtimeopts.Options) {
	shards := c.Shard(bctx)
	work := make([]GatherWork, len(shards))
	for i, s := range shards {
		work[i] = GatherWork{Batch: batch, Ctx: bctx, ReadIndices: s, Tables: tables, Opts: opts}
	}
	_ = c.GatherCovariates(ctx, work)
}
