package ioloader

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/grailbio/base/file"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"

	"github.com/grailbio/firepony/bqsr"
	"github.com/grailbio/firepony/intern"
	"github.com/grailbio/firepony/refgenome"
	"github.com/grailbio/firepony/runtimeopts"
)

// nibbleToASCII is the full 16-entry .bam SEQ nibble table (see
// github.com/grailbio/bio/encoding/bam's doublet convention); codes other
// than A/C/G/T/N are ambiguity codes BQSR has no use for and are folded
// into N.
var nibbleToASCII = func() [16]byte {
	var t [16]byte
	for i := range t {
		t[i] = 'N'
	}
	t[1], t[2], t[4], t[8] = 'A', 'C', 'G', 'T'
	return t
}()

// BatchSource produces AlignmentBatches for bqsr.Driver.Run to consume.
// Close releases the underlying file once the channel has been drained.
type BatchSource struct {
	Batches <-chan *bqsr.AlignmentBatch
	closer  func() error
	errc    <-chan error
}

// Close waits for the reader goroutine to finish and returns the first
// error it encountered, if any.
func (s *BatchSource) Close() error {
	err := <-s.errc
	if cerr := s.closer(); err == nil {
		err = cerr
	}
	return err
}

// NewBAMBatchSource opens the BAM file at path and returns a BatchSource
// that buffers opts.BatchSize records at a time into bqsr.AlignmentBatch
// values, converting each sam.Record on the fly. ref gives the reference
// this BAM is expected to align against (built by LoadReference); a read
// whose RefID does not resolve against ref is dropped silently, with no
// error recorded and no counter incremented. Read group names are interned
// into rgTable (shared with the pipeline's covariate gathering so
// read-group ids line up).
func NewBAMBatchSource(ctx context.Context, path string, opts *runtimeopts.Options, ref *refgenome.Index, rgTable *intern.Table) (*BatchSource, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "ioloader: opening %s", path)
	}
	r, err := bam.NewReader(f.Reader(ctx), 1)
	if err != nil {
		_ = f.Close(ctx)
		return nil, errors.Wrapf(err, "ioloader: reading BAM header of %s", path)
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = runtimeopts.DefaultOptions.BatchSize
	}

	seqIDByRef := make([]int, len(r.Header().Refs()))
	for i, hdrRef := range r.Header().Refs() {
		seqID, ok := ref.SeqID(hdrRef.Name())
		if !ok {
			seqID = -1
		}
		seqIDByRef[i] = seqID
	}

	platformByRG := make(map[string]string)
	for _, rg := range r.Header().RGs() {
		platformByRG[rg.Name()] = rg.Get(sam.NewTag("PL"))
	}

	out := make(chan *bqsr.AlignmentBatch)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		errc <- convertBAM(ctx, r, seqIDByRef, batchSize, rgTable, platformByRG, out)
	}()

	return &BatchSource{Batches: out, closer: func() error { return f.Close(ctx) }, errc: errc}, nil
}

func convertBAM(ctx context.Context, r *bam.Reader, seqIDByRef []int, batchSize int, rgTable *intern.Table, platformByRG map[string]string, out chan<- *bqsr.AlignmentBatch) error {
	b := bqsr.NewBatchBuilder()
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return bqsr.NewError(bqsr.IOError, err, "ioloader: reading BAM record")
		}

		read, ok, err := convertRecord(rec, seqIDByRef, rgTable, platformByRG)
		if err != nil {
			if bqErr, isBQ := err.(*bqsr.Error); isBQ && !bqErr.Kind.Fatal() {
				// A per-read defect (e.g. a base/quality length mismatch)
				// is dropped, not fatal (see bqsr.Kind.Fatal).
				continue
			}
			return err
		}
		if !ok {
			continue
		}
		b.Add(read)

		if b.Len() >= batchSize {
			out <- b.Build()
			b = bqsr.NewBatchBuilder()
		}
	}
	if b.Len() > 0 {
		out <- b.Build()
	}
	return nil
}

var rgTag = sam.Tag{'R', 'G'}

func convertRecord(rec *sam.Record, seqIDByRef []int, rgTable *intern.Table, platformByRG map[string]string) (bqsr.AlignedRead, bool, error) {
	if rec.Ref == nil || rec.Flags&sam.Unmapped != 0 {
		return bqsr.AlignedRead{}, false, nil
	}
	refIdx := rec.Ref.ID()
	if refIdx < 0 || refIdx >= len(seqIDByRef) || seqIDByRef[refIdx] < 0 {
		return bqsr.AlignedRead{}, false, nil
	}

	if len(rec.Qual) != rec.Seq.Length {
		return bqsr.AlignedRead{}, false, bqsr.NewError(bqsr.ReadDefect, fmt.Sprintf("ioloader: %s: base/quality length mismatch", rec.Name))
	}

	bases := make([]byte, rec.Seq.Length)
	for i := 0; i < rec.Seq.Length; i++ {
		b := byte(rec.Seq.Seq[i/2])
		if i%2 == 0 {
			bases[i] = nibbleToASCII[b>>4]
		} else {
			bases[i] = nibbleToASCII[b&0xf]
		}
	}

	rgName, _ := readGroupOf(rec)
	rgID := rgTable.Insert(rgName)

	return bqsr.AlignedRead{
		ReadGroupID:    rgID,
		ReadGroupName:  rgName,
		Platform:       platformByRG[rgName],
		RefID:          uint32(seqIDByRef[refIdx]),
		AlignmentStart: rec.Pos,
		Cigar:          rec.Cigar,
		Bases:          bases,
		Qualities:      append([]uint8(nil), rec.Qual...),
		Flags:          rec.Flags,
		MapQ:           rec.MapQ,
	}, true, nil
}

func readGroupOf(rec *sam.Record) (string, bool) {
	aux := rec.AuxFields.Get(rgTag)
	if aux == nil {
		return "", false
	}
	s, ok := aux.Value().(string)
	return s, ok
}
