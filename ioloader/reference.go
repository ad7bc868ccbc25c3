// Package ioloader builds the immutable inputs the BQSR pipeline runs
// against -- the packed reference genome, the known-sites database, and the
// batched stream of aligned reads -- following the load-then-hand-off-to-
// immutable-structure convention used throughout this codebase (compare
// pileup.LoadFa and refgenome's own Builder types).
package ioloader

import (
	"bufio"
	"context"

	"github.com/pkg/errors"

	"github.com/grailbio/base/file"

	"github.com/grailbio/firepony/encoding/fasta"
	"github.com/grailbio/firepony/refgenome"
)

// LoadReference parses the FASTA file at path and 4-bit packs every
// sequence it contains into a refgenome.Index, in the order the sequences
// appear in the file. Each sequence's FASTA name is carried into the Index
// (Index.SeqNames/SeqID), so LoadKnownSites and the BAM batch source can
// translate VCF CHROM columns and BAM reference ids against it without a
// second pass over the file.
func LoadReference(ctx context.Context, path string) (*refgenome.Index, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.Wrapf(err, "ioloader: opening reference %s", path)
	}
	defer func() { _ = f.Close(ctx) }()

	fa, err := fasta.New(bufio.NewReader(f.Reader(ctx)))
	if err != nil {
		return nil, errors.Wrapf(err, "ioloader: parsing reference %s", path)
	}

	b := refgenome.NewBuilder()
	for _, name := range fa.SeqNames() {
		length, err := fa.Len(name)
		if err != nil {
			return nil, errors.Wrapf(err, "ioloader: reading length of sequence %s", name)
		}
		seq, err := fa.Get(name, 0, length)
		if err != nil {
			return nil, errors.Wrapf(err, "ioloader: reading sequence %s", name)
		}
		b.AddNamedSequence(name, refgenome.Pack4Bit(seq))
	}
	return b.Build(), nil
}
