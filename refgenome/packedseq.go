// Package refgenome implements the packed reference-genome sequence store
// (spec C2) and the per-sequence offset index that maps (seq-id, local-pos)
// to a global coordinate and back (spec C3).
package refgenome

import "fmt"

// Base is a 4-bit nucleotide code. The encoding matches the .bam SEQ nibble
// table used throughout the teacher corpus (biosimd/pileup.Seq8ToEnumTable),
// so packed reference bytes can be compared directly against packed read
// bytes without a translation step.
type Base = byte

const (
	BaseEq Base = 0 // '=' (same as reference; unused by refgenome itself)
	BaseA  Base = 1
	BaseC  Base = 2
	BaseG  Base = 4
	BaseT  Base = 8
	BaseN  Base = 15
)

// asciiToNibble maps an uppercase-or-lowercase ASCII base letter to its
// 4-bit code. Anything not in ACGT is treated as N.
var asciiToNibble = func() [256]Base {
	var t [256]Base
	for i := range t {
		t[i] = BaseN
	}
	t['A'], t['a'] = BaseA, BaseA
	t['C'], t['c'] = BaseC, BaseC
	t['G'], t['g'] = BaseG, BaseG
	t['T'], t['t'] = BaseT, BaseT
	return t
}()

// nibbleToASCII is the inverse of asciiToNibble, used only for debugging and
// for reconstructing reference substrings for the BAQ engine.
var nibbleToASCII = map[Base]byte{
	BaseA: 'A',
	BaseC: 'C',
	BaseG: 'G',
	BaseT: 'T',
	BaseN: 'N',
}

// PackedSequence is a 4-bit-packed DNA sequence with position-indexed access.
// Two bases are packed per byte, high nibble first, matching the .bam SEQ
// convention.
type PackedSequence struct {
	packed []byte
	length int
}

// Pack4Bit packs an ASCII nucleotide sequence into a PackedSequence.
func Pack4Bit(ascii []byte) PackedSequence {
	packed := make([]byte, (len(ascii)+1)/2)
	for i, c := range ascii {
		nib := asciiToNibble[c]
		if i&1 == 0 {
			packed[i>>1] = nib << 4
		} else {
			packed[i>>1] |= nib
		}
	}
	return PackedSequence{packed: packed, length: len(ascii)}
}

// Len returns the number of bases in the sequence.
func (p PackedSequence) Len() int { return p.length }

// At returns the 4-bit code of the base at position pos.
func (p PackedSequence) At(pos int) Base {
	if pos < 0 || pos >= p.length {
		panic(fmt.Sprintf("refgenome: position %d out of range [0, %d)", pos, p.length))
	}
	b := p.packed[pos>>1]
	if pos&1 == 0 {
		return b >> 4
	}
	return b & 0xf
}

// ASCIIAt returns the base at position pos as an upper-case ASCII byte.
func (p PackedSequence) ASCIIAt(pos int) byte {
	return nibbleToASCII[p.At(pos)]
}

// Slice returns the ASCII bases in [start, end), decoded from the packed
// representation. It is used by the BAQ engine (C9) to extract a reference
// window for the pair-HMM.
func (p PackedSequence) Slice(start, end int) []byte {
	if start < 0 || end > p.length || start > end {
		panic(fmt.Sprintf("refgenome: invalid slice [%d, %d) of length %d", start, end, p.length))
	}
	out := make([]byte, end-start)
	for i := range out {
		out[i] = p.ASCIIAt(start + i)
	}
	return out
}
