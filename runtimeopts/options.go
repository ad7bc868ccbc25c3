// Package runtimeopts defines the BQSR pipeline's runtime options,
// following the Opts/DefaultOpts convention used throughout this
// codebase's other command packages (see pileup/snp.Opts).
package runtimeopts

import "fmt"

// SolidRecalMode selects how SOLiD no-call bases are treated during
// recalibration. The exact semantics of the upstream SOLiD handling are
// not reconstructible from the retrieved headers alone; these enums
// expose the option surface without claiming fidelity beyond what the
// default (Throw) path exercises. See DESIGN.md for the resolved Open
// Question.
type SolidRecalMode int

const (
	SolidRecalModeThrow SolidRecalMode = iota
	SolidRecalModeMatch
	SolidRecalModeSet
)

// SolidNocallStrategy selects what happens to a SOLiD no-call base.
type SolidNocallStrategy int

const (
	SolidNocallThrow SolidNocallStrategy = iota
	SolidNocallLeaveRead
	SolidNocallPurgeRead
)

// Options holds the full set of BQSR runtime options.
type Options struct {
	Input      string
	Reference  string
	KnownSites []string
	Output     string

	BatchSize int
	// Parallelism is the data-parallel degree backend.CPU uses within a
	// batch; 0 means runtime.NumCPU(), matching pileup.Pileup's
	// convention.
	Parallelism int

	NoBAQ              bool
	NoCycleCovariate   bool
	NoContextCovariate bool

	LowQualityTail int

	MismatchesContextSize int
	IndelsContextSize     int

	SolidRecalMode      SolidRecalMode
	SolidNocallStrategy SolidNocallStrategy

	// CheckpointPath, if non-empty, enables periodic global-table
	// checkpointing to this path (see bqsr/checkpoint.go).
	CheckpointPath string
	// CheckpointInterval, if > 0, spills the global table every N batches.
	// 0 disables checkpointing.
	CheckpointInterval int
}

// DefaultOptions mirrors the spec's documented defaults.
var DefaultOptions = Options{
	BatchSize:             100000,
	Parallelism:           0,
	NoBAQ:                 false,
	NoCycleCovariate:      false,
	NoContextCovariate:    false,
	LowQualityTail:        2,
	MismatchesContextSize: 2,
	IndelsContextSize:     3,
	SolidRecalMode:        SolidRecalModeThrow,
	SolidNocallStrategy:   SolidNocallThrow,
}

// Validate checks option combinations that must be rejected before the
// pipeline starts (spec §7 ConfigError).
func (o *Options) Validate() error {
	if o.Input == "" {
		return fmt.Errorf("runtimeopts: input BAM path is required")
	}
	if o.Reference == "" {
		return fmt.Errorf("runtimeopts: reference FASTA path is required")
	}
	if o.Output == "" {
		return fmt.Errorf("runtimeopts: output table path is required")
	}
	if o.BatchSize <= 0 {
		return fmt.Errorf("runtimeopts: batch_size must be positive, got %d", o.BatchSize)
	}
	if o.LowQualityTail < 0 {
		return fmt.Errorf("runtimeopts: low_quality_tail must be non-negative, got %d", o.LowQualityTail)
	}
	if o.MismatchesContextSize <= 0 || o.MismatchesContextSize > 6 {
		return fmt.Errorf("runtimeopts: mismatches_context_size must be in [1,6], got %d", o.MismatchesContextSize)
	}
	if o.IndelsContextSize <= 0 || o.IndelsContextSize > 6 {
		return fmt.Errorf("runtimeopts: indels_context_size must be in [1,6], got %d", o.IndelsContextSize)
	}
	if o.CheckpointInterval < 0 {
		return fmt.Errorf("runtimeopts: checkpoint_interval must be non-negative, got %d", o.CheckpointInterval)
	}
	return nil
}
