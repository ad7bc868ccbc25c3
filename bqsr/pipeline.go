package bqsr

import (
	"context"
	"time"

	"github.com/grailbio/base/log"

	"github.com/grailbio/firepony/runtimeopts"
	"github.com/grailbio/firepony/variantdb"
)

// TimeSeries accumulates a count and total duration for one pipeline
// stage, enough to report mean latency per batch without carrying every
// individual sample (spec's "time_series measurements for each stage").
type TimeSeries struct {
	Count uint64
	Total time.Duration
}

// Observe records one sample.
func (t *TimeSeries) Observe(d time.Duration) {
	t.Count++
	t.Total += d
}

// Add merges other into t by pointwise addition, matching
// pipeline_statistics::operator+= in the reference implementation.
func (t *TimeSeries) Add(other TimeSeries) {
	t.Count += other.Count
	t.Total += other.Total
}

// Mean returns the average duration per sample, or zero if no samples
// were recorded.
func (t TimeSeries) Mean() time.Duration {
	if t.Count == 0 {
		return 0
	}
	return t.Total / time.Duration(t.Count)
}

// PipelineStatistics mirrors firepony_context::pipeline_statistics: run
// counters plus a time series per stage, merged by pointwise addition.
type PipelineStatistics struct {
	TotalReads       uint64
	FilteredReads    uint64
	BAQReads         uint64
	BAQFailures      uint64
	NumBatches       uint64
	SolidNoCallReads uint64

	IO              TimeSeries
	ReadFilter      TimeSeries
	SNPFilter       TimeSeries
	CigarExpansion  TimeSeries
	BAQ             TimeSeries
	FractionalError TimeSeries
	Covariates      TimeSeries
	Postprocessing  TimeSeries
	Output          TimeSeries
}

// Add merges other into s by pointwise addition.
func (s *PipelineStatistics) Add(other *PipelineStatistics) {
	s.TotalReads += other.TotalReads
	s.FilteredReads += other.FilteredReads
	s.BAQReads += other.BAQReads
	s.BAQFailures += other.BAQFailures
	s.NumBatches += other.NumBatches
	s.SolidNoCallReads += other.SolidNoCallReads

	s.IO.Add(other.IO)
	s.ReadFilter.Add(other.ReadFilter)
	s.SNPFilter.Add(other.SNPFilter)
	s.CigarExpansion.Add(other.CigarExpansion)
	s.BAQ.Add(other.BAQ)
	s.FractionalError.Add(other.FractionalError)
	s.Covariates.Add(other.Covariates)
	s.Postprocessing.Add(other.Postprocessing)
	s.Output.Add(other.Output)
}

// RunStatus reports how a Driver.Run call ended.
type RunStatus int

const (
	StatusCompleted RunStatus = iota
	StatusCancelled
)

// ReferenceView is the read-only surface the pipeline needs from the
// reference genome: global coordinate lookups plus base access, kept
// narrow so bqsr does not need to import refgenome's mmap/index internals
// directly.
type ReferenceView interface {
	GlobalStart(refID uint32, localPos int) int64
	BaseAt(globalPos int64) (byte, bool)
}

// ParallelExecutor is the narrow surface Driver needs to run the BAQ and
// covariate-gathering stages -- the two stages whose per-read work is
// genuinely independent once ctx's shared per-base slices are sized (see
// PrepareBAQBuffers). It exists so package backend's CPU implementation
// can satisfy it structurally, without bqsr importing backend: Driver
// falls back to running both stages on its own goroutine when Executor is
// nil.
type ParallelExecutor interface {
	RunBAQ(ctx context.Context, batch *AlignmentBatch, bctx *BatchContext, params BAQParams, refAt func(globalPos int64) (byte, bool), stats *PipelineStatistics)
	RunGatherCovariates(ctx context.Context, batch *AlignmentBatch, bctx *BatchContext, tables *Tables, opts *runtimeopts.Options)
}

// Driver schedules the per-batch pipeline stages in order and maintains
// the process-global covariate tables and statistics (spec C14).
type Driver struct {
	Opts *runtimeopts.Options
	Ref  ReferenceView
	SNPs *variantdb.Database // nil or empty means "no known sites"

	// Executor, if non-nil, runs the BAQ and covariate-gathering stages;
	// see ParallelExecutor. backend.CPU is the shipped implementation.
	Executor ParallelExecutor

	Global *Tables
	Stats  PipelineStatistics

	ctx *BatchContext

	checkpoint *Checkpointer
}

// NewDriver constructs a Driver ready to process batches.
func NewDriver(opts *runtimeopts.Options, ref ReferenceView, snps *variantdb.Database) *Driver {
	d := &Driver{
		Opts:   opts,
		Ref:    ref,
		SNPs:   snps,
		Global: NewTables(opts),
		ctx:    NewBatchContext(),
	}
	if opts.CheckpointPath != "" && opts.CheckpointInterval > 0 {
		d.checkpoint = NewCheckpointer(opts.CheckpointPath)
	}
	return d
}

// RunBatch runs one batch through stages C6-C12(partial) and merges its
// partial tables into d.Global. It never returns a fatal error for
// per-read or per-batch defects; those are absorbed into d.Stats.
func (d *Driver) RunBatch(batch *AlignmentBatch) {
	d.Stats.TotalReads += uint64(len(batch.Reads))
	d.Stats.NumBatches++

	globalStart := func(readIdx int) int64 {
		r := &batch.Reads[readIdx]
		return d.Ref.GlobalStart(r.RefID, r.AlignmentStart)
	}

	t0 := time.Now()
	FilterActiveReads(batch, d.ctx, d.Opts, &d.Stats)
	d.Stats.ReadFilter.Observe(time.Since(t0))

	t0 = time.Now()
	ExpandCIGAR(batch, d.ctx, globalStart)
	d.Stats.CigarExpansion.Observe(time.Since(t0))

	t0 = time.Now()
	if d.SNPs != nil {
		ApplySNPFilter(batch, d.ctx, d.SNPs, globalStart)
	}
	d.Stats.SNPFilter.Observe(time.Since(t0))

	t0 = time.Now()
	if d.Opts.NoBAQ {
		copyReportedQualities(batch, d.ctx)
	} else if d.Executor != nil {
		d.Executor.RunBAQ(context.Background(), batch, d.ctx, DefaultBAQParams(), d.Ref.BaseAt, &d.Stats)
	} else {
		RecalibrateBAQ(batch, d.ctx, DefaultBAQParams(), d.Ref.BaseAt, &d.Stats)
	}
	d.Stats.BAQ.Observe(time.Since(t0))

	t0 = time.Now()
	AssignFractionalErrors(batch, d.ctx, DefaultIndelFlankWidth, d.Ref.BaseAt)
	d.Stats.FractionalError.Observe(time.Since(t0))

	t0 = time.Now()
	partial := NewTables(d.Opts)
	if d.Executor != nil {
		d.Executor.RunGatherCovariates(context.Background(), batch, d.ctx, partial, d.Opts)
	} else {
		GatherCovariates(batch, d.ctx, partial, d.Opts)
	}
	d.Global.Merge(partial)
	d.Stats.Covariates.Observe(time.Since(t0))

	if d.checkpoint != nil && int(d.Stats.NumBatches)%d.Opts.CheckpointInterval == 0 {
		if err := d.checkpoint.Snapshot(d.Global); err != nil {
			log.Printf("bqsr: checkpoint snapshot failed: %v", err)
		}
	}
}

func copyReportedQualities(batch *AlignmentBatch, ctx *BatchContext) {
	ctx.BAQQualities = ctx.BAQQualities[:0]
	for _, readIdx := range ctx.ActiveReadList {
		begin, end := ctx.ReadSlice(readIdx)
		r := &batch.Reads[readIdx]
		for len(ctx.BAQQualities) < end {
			ctx.BAQQualities = append(ctx.BAQQualities, 0)
		}
		readCursor := 0
		for i := begin; i < end; i++ {
			if readCursor < len(r.Qualities) {
				ctx.BAQQualities[i] = r.Qualities[readCursor]
				readCursor++
			}
		}
	}
}

// Run drains batches from src in order until it is closed or ctx is
// cancelled. Cancellation is cooperative at batch boundaries: the batch
// already in progress finishes, subsequent batches are skipped, and
// postprocess does not run (spec §5 Cancellation).
func (d *Driver) Run(ctx context.Context, src <-chan *AlignmentBatch) RunStatus {
	for {
		select {
		case <-ctx.Done():
			log.Printf("bqsr: cancelled after %d batches", d.Stats.NumBatches)
			return StatusCancelled
		case batch, ok := <-src:
			if !ok {
				return StatusCompleted
			}
			d.RunBatch(batch)
		}
	}
}
