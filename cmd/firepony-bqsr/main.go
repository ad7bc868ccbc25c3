package main

/*
firepony-bqsr recalibrates per-base quality scores in a BAM file against a
reference genome and an optional set of known-variant VCFs, writing the
GATK-format recalibration tables the BaseRecalibrator step of a variant
calling pipeline expects.
*/

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"

	"github.com/grailbio/firepony/backend"
	"github.com/grailbio/firepony/bqsr"
	"github.com/grailbio/firepony/gatktable"
	"github.com/grailbio/firepony/intern"
	"github.com/grailbio/firepony/ioloader"
	"github.com/grailbio/firepony/runtimeopts"
	"github.com/grailbio/firepony/variantdb"
)

var (
	reference          = flag.String("reference", "", "Reference genome FASTA path")
	knownSites         = flag.String("known-sites", "", "Comma-separated list of known-variant VCF paths")
	output             = flag.String("output", "", "Output recalibration table path")
	batchSize          = flag.Int("batch-size", runtimeopts.DefaultOptions.BatchSize, "Number of reads per pipeline batch")
	parallelism        = flag.Int("parallelism", 0, "Data-parallel degree within a batch; 0 = runtime.NumCPU()")
	noBAQ              = flag.Bool("no-baq", runtimeopts.DefaultOptions.NoBAQ, "Disable BAQ recalibration; reported qualities pass through unchanged")
	noCycleCovariate   = flag.Bool("no-cycle-covariate", runtimeopts.DefaultOptions.NoCycleCovariate, "Disable the sequencing-cycle covariate table")
	noContextCovariate = flag.Bool("no-context-covariate", runtimeopts.DefaultOptions.NoContextCovariate, "Disable the sequence-context covariate table")
	lowQualityTail     = flag.Int("low-quality-tail", runtimeopts.DefaultOptions.LowQualityTail, "Bases with a recalibrated quality below this value are excluded from covariate accounting")
	mismatchesContext  = flag.Int("mismatches-context-size", runtimeopts.DefaultOptions.MismatchesContextSize, "k-mer width of the sequence-context covariate, in bases")
	indelsContext      = flag.Int("indels-context-size", runtimeopts.DefaultOptions.IndelsContextSize, "k-mer width for indel context, in bases; validated to [1,6] but not read by covariate accounting, which uses -mismatches-context-size for every event type")
	checkpointPath     = flag.String("checkpoint-path", "", "If set, periodically snapshot the global covariate tables to this path")
	checkpointInterval = flag.Int("checkpoint-interval", 0, "Snapshot the global covariate tables every N batches; 0 disables checkpointing")
)

func firepconyBQSRUsage() {
	fmt.Printf("Usage: %s [OPTIONS] input.bam\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

// errCancelled is returned by run when Driver.Run reports StatusCancelled;
// exitCode gives it its own exit status (4) rather than folding it into the
// generic runtime-error bucket (3).
var errCancelled = fmt.Errorf("firepony-bqsr: run cancelled")

// exitCode maps a fatal error returned from run to one of §6's exit codes:
// 1 usage/config error, 2 malformed input, 3 other runtime error, 4 cancelled.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if err == errCancelled {
		return 4
	}
	var bqErr *bqsr.Error
	for e := err; e != nil; {
		if be, ok := e.(*bqsr.Error); ok {
			bqErr = be
			break
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}
	if bqErr == nil {
		return 3
	}
	switch bqErr.Kind {
	case bqsr.ConfigError:
		return 1
	case bqsr.InputFormatError:
		return 2
	default:
		return 3
	}
}

func main() {
	flag.Usage = firepconyBQSRUsage
	flag.Parse()

	if flag.NArg() != 1 {
		log.Fatalf("exactly one positional argument (input.bam) is required; got %q", strings.Join(flag.Args(), " "))
	}

	opts := runtimeopts.DefaultOptions
	opts.Input = flag.Arg(0)
	opts.Reference = *reference
	opts.Output = *output
	if *knownSites != "" {
		opts.KnownSites = strings.Split(*knownSites, ",")
	}
	opts.BatchSize = *batchSize
	opts.Parallelism = *parallelism
	opts.NoBAQ = *noBAQ
	opts.NoCycleCovariate = *noCycleCovariate
	opts.NoContextCovariate = *noContextCovariate
	opts.LowQualityTail = *lowQualityTail
	opts.MismatchesContextSize = *mismatchesContext
	opts.IndelsContextSize = *indelsContext
	opts.CheckpointPath = *checkpointPath
	opts.CheckpointInterval = *checkpointInterval

	if err := opts.Validate(); err != nil {
		log.Error.Printf("%v", err)
		os.Exit(exitCode(bqsr.NewError(bqsr.ConfigError, err)))
	}

	ctx := vcontext.Background()
	if err := run(ctx, &opts); err != nil {
		log.Error.Printf("%v", err)
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, opts *runtimeopts.Options) error {
	ref, err := ioloader.LoadReference(ctx, opts.Reference)
	if err != nil {
		return err
	}

	var snps *variantdb.Database
	if len(opts.KnownSites) > 0 {
		snps, err = ioloader.LoadKnownSites(ctx, opts.KnownSites, ref)
		if err != nil {
			return err
		}
	}

	rgTable := intern.New()
	src, err := ioloader.NewBAMBatchSource(ctx, opts.Input, opts, ref, rgTable)
	if err != nil {
		return err
	}

	driver := bqsr.NewDriver(opts, ref, snps)
	driver.Executor = backend.NewCPU(opts.Parallelism)

	status := driver.Run(ctx, src.Batches)
	if cerr := src.Close(); cerr != nil {
		return cerr
	}
	if status == bqsr.StatusCancelled {
		return errCancelled
	}

	out, err := os.Create(opts.Output)
	if err != nil {
		return bqsr.NewError(bqsr.IOError, err, fmt.Sprintf("firepony-bqsr: creating output table %s", opts.Output))
	}
	defer func() { _ = out.Close() }()

	tables := gatktable.BuildTables(driver.Global, rgTable, opts)
	if err := gatktable.Write(out, tables...); err != nil {
		return err
	}

	log.Printf(
		"firepony-bqsr: %d batches, %d reads, %d filtered, %d BAQ failures",
		driver.Stats.NumBatches, driver.Stats.TotalReads, driver.Stats.FilteredReads, driver.Stats.BAQFailures,
	)
	return nil
}
