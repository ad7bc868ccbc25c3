// Package fasta parses reference-genome FASTA files for the BQSR pipeline.
// FASTA consists of a number of named sequences that may be wrapped across
// multiple lines:
//
// >chr7
// ACGTAC
// GAGGAC
// GCG
// >chr8
// ACGT
//
// A sequence's name is the run of non-space characters immediately after
// '>'; any text after the first space (a description) is discarded. Only
// the whole-file, read-into-memory path is implemented: ioloader.LoadReference
// always needs every base of every sequence to pack into a refgenome.Index,
// so there is no caller left for htslib-style .fai random access.
package fasta

import (
	"bufio"
	"strings"

	"github.com/pkg/errors"
)

// scannerBufferSize bounds a single FASTA line; reference contigs are
// wrapped at a fixed width (60-80 bases is typical), so this only needs to
// be large enough to never truncate a header or body line.
const scannerBufferSize = 1 << 20

// Reference holds every sequence of a FASTA file in memory, keyed by name.
type Reference struct {
	seqs     map[string][]byte
	seqNames []string
}

// New reads every sequence out of r and returns a Reference. Sequence order
// matches the order sequences appear in the file.
func New(r *bufio.Reader) (*Reference, error) {
	ref := &Reference{seqs: make(map[string][]byte)}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, scannerBufferSize)

	var name string
	var body []byte
	flush := func() error {
		if name == "" {
			return nil
		}
		ref.seqs[name] = body
		ref.seqNames = append(ref.seqNames, name)
		return nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if err := flush(); err != nil {
				return nil, err
			}
			name = strings.SplitN(line[1:], " ", 2)[0]
			if name == "" {
				return nil, errors.New("fasta: header line has no sequence name")
			}
			body = nil
			continue
		}
		if name == "" {
			return nil, errors.New("fasta: sequence data before first header")
		}
		body = append(body, line...)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "fasta: reading FASTA data")
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return ref, nil
}

// SeqNames returns every sequence name, in file order.
func (r *Reference) SeqNames() []string {
	return r.seqNames
}

// Len returns the length of the named sequence, in bases.
func (r *Reference) Len(name string) (int, error) {
	seq, ok := r.seqs[name]
	if !ok {
		return 0, errors.Errorf("fasta: sequence not found: %s", name)
	}
	return len(seq), nil
}

// Get returns the half-open base range [start, end) of the named sequence.
// The returned slice aliases the Reference's own storage and must not be
// modified by the caller.
func (r *Reference) Get(name string, start, end int) ([]byte, error) {
	seq, ok := r.seqs[name]
	if !ok {
		return nil, errors.Errorf("fasta: sequence not found: %s", name)
	}
	if end <= start {
		return nil, errors.Errorf("fasta: empty or inverted range [%d, %d)", start, end)
	}
	if start < 0 || end > len(seq) {
		return nil, errors.Errorf("fasta: range [%d, %d) out of bounds for sequence %s of length %d", start, end, name, len(seq))
	}
	return seq[start:end], nil
}
