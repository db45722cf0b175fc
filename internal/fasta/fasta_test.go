package fasta

import (
	"errors"
	"strings"
	"testing"

	"mutfreq/internal/alignment"
)

func TestParseFastaSimple(t *testing.T) {
	input := ">seq1\nATGC\n>seq2 desc\nGGTT\n"
	recs, err := ParseFasta(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseFasta failed: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[0].Header != "seq1" || recs[0].Sequence != "ATGC" {
		t.Fatalf("unexpected first record: %+v", recs[0])
	}
	if recs[1].Header != "seq2 desc" || recs[1].Sequence != "GGTT" {
		t.Fatalf("unexpected second record: %+v", recs[1])
	}
}

func TestParseFastaMultiline(t *testing.T) {
	input := ">seq1\nATG\nC-A\n"
	recs, err := ParseFasta(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseFasta failed: %v", err)
	}
	if recs[0].Sequence != "ATGC-A" {
		t.Fatalf("sequence lines not concatenated: %q", recs[0].Sequence)
	}
}

func TestParseFastaEmpty(t *testing.T) {
	_, err := ParseFasta(strings.NewReader("no header here\n"))
	if !errors.Is(err, ErrUnparsableInput) {
		t.Fatalf("expected ErrUnparsableInput, got %v", err)
	}
}

func TestParseDelimited(t *testing.T) {
	input := "ref,ACGTA\niso1\tACCTA\nACGTA\n"
	recs, err := ParseDelimited(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseDelimited failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if recs[0].Header != "ref" || recs[0].Sequence != "ACGTA" {
		t.Fatalf("unexpected comma record: %+v", recs[0])
	}
	if recs[1].Header != "iso1" || recs[1].Sequence != "ACCTA" {
		t.Fatalf("unexpected tab record: %+v", recs[1])
	}
	if recs[2].Header != "seq3" {
		t.Fatalf("expected synthesized name seq3, got %q", recs[2].Header)
	}
}

func TestParseAlignmentFasta(t *testing.T) {
	input := ">ref\nACGTA\n>iso\nAC-TA\n"
	a, err := ParseAlignment(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseAlignment failed: %v", err)
	}
	if a.NumSequences() != 2 || a.Length() != 5 {
		t.Fatalf("unexpected dimensions: %dx%d", a.NumSequences(), a.Length())
	}
}

func TestParseAlignmentLengthMismatch(t *testing.T) {
	input := ">ref\nACGTA\n>short\nACGT\n"
	_, err := ParseAlignment(strings.NewReader(input))
	var lm *alignment.LengthMismatchError
	if !errors.As(err, &lm) {
		t.Fatalf("expected LengthMismatchError to surface unchanged, got %v", err)
	}
}

func TestParseAlignmentBadSymbol(t *testing.T) {
	input := ">ref\nAC%TA\n"
	_, err := ParseAlignment(strings.NewReader(input))
	if !errors.Is(err, ErrUnparsableInput) {
		t.Fatalf("expected ErrUnparsableInput for bad symbol, got %v", err)
	}
}
