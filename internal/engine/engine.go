// Package engine computes per-position mutation frequency statistics over a
// validated alignment. It is a pure function of (alignment, options): no
// I/O, no logging, and either a complete result or an error.
package engine

import (
	"fmt"

	"mutfreq/internal/alignment"
)

// DefaultChunkSize is the number of columns processed per chunk. Chunking
// bounds peak memory on very large alignments; it never changes the output.
const DefaultChunkSize = 1000

// Options configure one analysis run.
type Options struct {
	// Reference is the index of the comparison-baseline sequence.
	Reference int
	// DropGaps removes the gap symbol from counts and from the frequency
	// denominator. The default keeps gaps as an ordinary symbol.
	DropGaps bool
	// ExcludeAmbiguous removes ambiguity symbols (N/X/IUPAC codes for
	// nucleotides, X/B/Z/J for proteins) from the frequency map and
	// denominator. They still drive the confidence flag.
	ExcludeAmbiguous bool
	// ChunkSize overrides DefaultChunkSize when > 0.
	ChunkSize int
}

// Analyze walks every column of a and emits one PositionRecord per column,
// in ascending position order, plus summary counts and navigation lists.
func Analyze(a *alignment.Alignment, opts Options) (*Result, error) {
	if a == nil || a.NumSequences() == 0 || a.Length() == 0 {
		return nil, alignment.ErrEmptyAlignment
	}
	if opts.Reference < 0 || opts.Reference >= a.NumSequences() {
		return nil, fmt.Errorf("reference index %d out of range (%d sequences)", opts.Reference, a.NumSequences())
	}
	chunk := opts.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	length := a.Length()
	ref := a.Sequences()[opts.Reference].Residues
	res := &Result{
		TotalPositions: length,
		Positions:      make([]PositionRecord, 0, length),
	}

	// One column buffer reused across the whole run keeps the per-chunk
	// allocation profile flat regardless of alignment size.
	col := make([]byte, 0, a.NumSequences())
	for start := 0; start < length; start += chunk {
		end := start + chunk
		if end > length {
			end = length
		}
		for i := start; i < end; i++ {
			col = a.Column(i, col)
			rec := analyzeColumn(col, ref[i], i+1, a.Type(), opts)
			if rec.Classification == Mutated {
				res.MutatedPositions = append(res.MutatedPositions, rec.Position)
			}
			if rec.Confidence == LowConfidence {
				res.LowConfPositions = append(res.LowConfPositions, rec.Position)
			}
			res.Positions = append(res.Positions, rec)
		}
	}

	res.MutationCount = len(res.MutatedPositions)
	res.ConservedCount = res.TotalPositions - res.MutationCount
	return res, nil
}

// analyzeColumn computes the record for one column. Classification and
// confidence always look at the raw column; the gap/ambiguity policies only
// shape the reported counts and frequencies.
func analyzeColumn(col []byte, refSym byte, pos int, typ alignment.Type, opts Options) PositionRecord {
	class := Conserved
	conf := HighConfidence
	raw := make(map[byte]int, 4)
	for _, sym := range col {
		raw[sym]++
		if sym != refSym {
			class = Mutated
		}
		if sym == alignment.Gap || alignment.Ambiguous(typ, sym) {
			conf = LowConfidence
		}
	}

	counts := make(map[string]int, len(raw))
	for sym, n := range raw {
		if opts.DropGaps && sym == alignment.Gap {
			continue
		}
		counts[string(sym)] = n
	}

	denom := 0
	for sym := range counts {
		if opts.ExcludeAmbiguous && alignment.Ambiguous(typ, sym[0]) {
			continue
		}
		denom += counts[sym]
	}
	freqs := make(map[string]float64, len(counts))
	if denom > 0 {
		for sym, n := range counts {
			if opts.ExcludeAmbiguous && alignment.Ambiguous(typ, sym[0]) {
				continue
			}
			freqs[sym] = round2(float64(n) * 100 / float64(denom))
		}
	}

	ref := string(refSym)
	return PositionRecord{
		Position:       pos,
		Reference:      ref,
		Counts:         counts,
		Frequencies:    freqs,
		Classification: class,
		Confidence:     conf,
		Representation: representation(ref, pos, class, freqs),
	}
}
