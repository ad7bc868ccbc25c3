package ioloader

import (
	"bufio"
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/grailbio/base/file"

	"github.com/grailbio/firepony/refgenome"
	"github.com/grailbio/firepony/variantdb"
)

// LoadKnownSites parses one or more VCF files into a variantdb.Database of
// global-coordinate variant intervals, for use by the SNP filter stage
// (spec C4/C8). Only the CHROM, POS and REF columns are consulted: each
// record contributes the interval [globalStart, globalStart+len(REF)), so
// a multi-base REF (e.g. for an indel record) masks every reference base it
// spans. Lines starting with '#' are header lines and are skipped.
//
// ref must have been built by LoadReference (or otherwise carry sequence
// names via AddNamedSequence), since a VCF CHROM column is resolved to a
// seqID through Index.SeqID; a CHROM that does not match any loaded
// sequence name is an error, since a known site the pipeline cannot place
// on the reference would otherwise be silently dropped.
func LoadKnownSites(ctx context.Context, paths []string, ref *refgenome.Index) (*variantdb.Database, error) {
	b := variantdb.NewBuilder()
	for _, path := range paths {
		if err := loadVCF(ctx, path, ref, b); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}

func loadVCF(ctx context.Context, path string, ref *refgenome.Index, b *variantdb.Builder) error {
	f, err := file.Open(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "ioloader: opening known-sites file %s", path)
	}
	defer func() { _ = f.Close(ctx) }()

	scanner := bufio.NewScanner(f.Reader(ctx))
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 4 {
			return errors.Errorf("ioloader: %s:%d: malformed VCF record, want at least 4 tab-separated columns", path, lineNo)
		}
		chrom, posField, ref0 := fields[0], fields[1], fields[3]

		seqID, ok := ref.SeqID(chrom)
		if !ok {
			return errors.Errorf("ioloader: %s:%d: CHROM %q is not a reference sequence", path, lineNo, chrom)
		}
		pos, err := strconv.ParseInt(posField, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "ioloader: %s:%d: malformed POS column", path, lineNo)
		}

		start := ref.GlobalPos(seqID, int(pos-1)) // VCF POS is 1-based
		end := start + int64(len(ref0))
		b.Add(start, end)
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "ioloader: reading known-sites file %s", path)
	}
	return nil
}
