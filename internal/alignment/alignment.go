// Package alignment holds the multiple-sequence alignment model consumed by
// the frequency engine. Sequences are normalized and validated at
// construction so downstream code can assume a closed symbol alphabet and
// equal column counts.
package alignment

import (
	"errors"
	"fmt"
	"strings"
)

// Gap is the canonical gap symbol. '.' in the input is normalized to Gap.
const Gap = byte('-')

// Type says whether an alignment holds nucleotide or protein sequences.
// It decides which symbols count as ambiguity codes.
type Type int

const (
	Nucleotide Type = iota
	Protein
)

func (t Type) String() string {
	if t == Protein {
		return "protein"
	}
	return "nucleotide"
}

// ErrEmptyAlignment is returned when there are no sequences, or the
// sequences have zero columns.
var ErrEmptyAlignment = errors.New("empty alignment: no sequences or zero-length sequences")

// LengthMismatchError names the first sequence whose length differs from the
// alignment length established by the first sequence.
type LengthMismatchError struct {
	Name   string
	Length int
	Want   int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("alignment length mismatch: sequence %q has %d columns, want %d", e.Name, e.Length, e.Want)
}

// InvalidSymbolError reports a residue outside the accepted alphabet
// (letters, gap, '*').
type InvalidSymbolError struct {
	Name   string
	Column int // 1-based
	Symbol byte
}

func (e *InvalidSymbolError) Error() string {
	return fmt.Sprintf("sequence %q: invalid symbol %q at column %d", e.Name, string(e.Symbol), e.Column)
}

// Sequence is one named, aligned sequence.
type Sequence struct {
	Name     string `json:"name"`
	Residues string `json:"residues"`
}

// Alignment is an ordered set of equal-length sequences.
type Alignment struct {
	seqs   []Sequence
	length int
	typ    Type
}

// New validates and normalizes the given sequences into an Alignment.
// Residues are uppercased and '.' becomes '-'. The first sequence fixes the
// expected column count; any other length fails with *LengthMismatchError.
func New(seqs []Sequence) (*Alignment, error) {
	if len(seqs) == 0 {
		return nil, ErrEmptyAlignment
	}
	want := len(seqs[0].Residues)
	if want == 0 {
		return nil, ErrEmptyAlignment
	}
	out := make([]Sequence, len(seqs))
	for i, s := range seqs {
		if len(s.Residues) != want {
			return nil, &LengthMismatchError{Name: s.Name, Length: len(s.Residues), Want: want}
		}
		norm, err := normalize(s)
		if err != nil {
			return nil, err
		}
		out[i] = Sequence{Name: s.Name, Residues: norm}
	}
	return &Alignment{seqs: out, length: want, typ: detectType(out)}, nil
}

func normalize(s Sequence) (string, error) {
	r := strings.ToUpper(s.Residues)
	b := []byte(r)
	for i, c := range b {
		if c == '.' {
			b[i] = Gap
			continue
		}
		if (c >= 'A' && c <= 'Z') || c == Gap || c == '*' {
			continue
		}
		return "", &InvalidSymbolError{Name: s.Name, Column: i + 1, Symbol: c}
	}
	return string(b), nil
}

// detectType classifies the alignment as nucleotide when at least 90% of the
// non-gap residues are A, C, G, T, U or N. A '*' (stop) forces protein.
func detectType(seqs []Sequence) Type {
	var nuc, total int
	for _, s := range seqs {
		for i := 0; i < len(s.Residues); i++ {
			c := s.Residues[i]
			if c == Gap {
				continue
			}
			if c == '*' {
				return Protein
			}
			total++
			switch c {
			case 'A', 'C', 'G', 'T', 'U', 'N':
				nuc++
			}
		}
	}
	if total == 0 || nuc*10 >= total*9 {
		return Nucleotide
	}
	return Protein
}

// Sequences returns the normalized sequences in input order.
func (a *Alignment) Sequences() []Sequence { return a.seqs }

// NumSequences returns the number of rows.
func (a *Alignment) NumSequences() int { return len(a.seqs) }

// Length returns the number of columns.
func (a *Alignment) Length() int { return a.length }

// Type returns the detected molecule type.
func (a *Alignment) Type() Type { return a.typ }

// Column writes the residues of column i (0-based) into buf, which must have
// room for NumSequences bytes, and returns it.
func (a *Alignment) Column(i int, buf []byte) []byte {
	buf = buf[:0]
	for _, s := range a.seqs {
		buf = append(buf, s.Residues[i])
	}
	return buf
}

// IndexOf finds the sequence whose name matches (or is prefixed by) name.
func (a *Alignment) IndexOf(name string) (int, bool) {
	for i, s := range a.seqs {
		if s.Name == name || strings.HasPrefix(s.Name, name+" ") {
			return i, true
		}
	}
	return 0, false
}

// nucAmbiguous are the IUPAC nucleotide ambiguity codes, plus X as a generic
// unknown. Protein ambiguity is limited to X, B, Z and J; the other IUPAC
// letters are ordinary amino acids there.
var nucAmbiguous = map[byte]bool{
	'N': true, 'X': true,
	'R': true, 'Y': true, 'S': true, 'W': true, 'K': true, 'M': true,
	'B': true, 'D': true, 'H': true, 'V': true,
}

var protAmbiguous = map[byte]bool{'X': true, 'B': true, 'Z': true, 'J': true}

// Ambiguous reports whether sym is an ambiguity code for molecule type t.
// The gap symbol is not an ambiguity code; callers treat it separately.
func Ambiguous(t Type, sym byte) bool {
	if t == Protein {
		return protAmbiguous[sym]
	}
	return nucAmbiguous[sym]
}
