package alignment

import (
	"errors"
	"testing"
)

func TestNewValidAlignment(t *testing.T) {
	a, err := New([]Sequence{
		{Name: "ref", Residues: "acgta"},
		{Name: "s2", Residues: "ACG.A"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a.Length() != 5 || a.NumSequences() != 2 {
		t.Fatalf("unexpected dimensions: %dx%d", a.NumSequences(), a.Length())
	}
	if a.Sequences()[0].Residues != "ACGTA" {
		t.Fatalf("expected uppercased residues, got %q", a.Sequences()[0].Residues)
	}
	if a.Sequences()[1].Residues != "ACG-A" {
		t.Fatalf("expected '.' normalized to '-', got %q", a.Sequences()[1].Residues)
	}
	if a.Type() != Nucleotide {
		t.Fatalf("expected nucleotide type, got %v", a.Type())
	}
}

func TestNewEmpty(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrEmptyAlignment) {
		t.Fatalf("expected ErrEmptyAlignment for no sequences, got %v", err)
	}
	if _, err := New([]Sequence{{Name: "a", Residues: ""}}); !errors.Is(err, ErrEmptyAlignment) {
		t.Fatalf("expected ErrEmptyAlignment for zero-length, got %v", err)
	}
}

func TestNewLengthMismatch(t *testing.T) {
	_, err := New([]Sequence{
		{Name: "ref", Residues: "ACGTA"},
		{Name: "short", Residues: "ACGT"},
	})
	var lm *LengthMismatchError
	if !errors.As(err, &lm) {
		t.Fatalf("expected LengthMismatchError, got %v", err)
	}
	if lm.Name != "short" || lm.Length != 4 || lm.Want != 5 {
		t.Fatalf("unexpected mismatch details: %+v", lm)
	}
}

func TestNewInvalidSymbol(t *testing.T) {
	_, err := New([]Sequence{{Name: "bad", Residues: "AC1TA"}})
	var inv *InvalidSymbolError
	if !errors.As(err, &inv) {
		t.Fatalf("expected InvalidSymbolError, got %v", err)
	}
	if inv.Column != 3 || inv.Symbol != '1' {
		t.Fatalf("unexpected symbol details: %+v", inv)
	}
}

func TestDetectTypeProtein(t *testing.T) {
	a, err := New([]Sequence{
		{Name: "p1", Residues: "MKVLFEQPS"},
		{Name: "p2", Residues: "MKVLFEQPS"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a.Type() != Protein {
		t.Fatalf("expected protein type, got %v", a.Type())
	}
}

func TestColumn(t *testing.T) {
	a, err := New([]Sequence{
		{Name: "s1", Residues: "ACGTA"},
		{Name: "s2", Residues: "ACCTA"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	buf := make([]byte, 0, a.NumSequences())
	col := a.Column(2, buf)
	if string(col) != "GC" {
		t.Fatalf("unexpected column: %q", string(col))
	}
}

func TestAmbiguous(t *testing.T) {
	if !Ambiguous(Nucleotide, 'N') || !Ambiguous(Nucleotide, 'R') {
		t.Fatal("N and R should be ambiguous for nucleotides")
	}
	if Ambiguous(Protein, 'N') {
		t.Fatal("N is asparagine for proteins, not ambiguous")
	}
	if !Ambiguous(Protein, 'X') || !Ambiguous(Protein, 'Z') {
		t.Fatal("X and Z should be ambiguous for proteins")
	}
}

func TestIndexOf(t *testing.T) {
	a, err := New([]Sequence{
		{Name: "NC_001477.1 Dengue virus 1, complete genome", Residues: "ACGT"},
		{Name: "isolate-7", Residues: "ACGT"},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if i, ok := a.IndexOf("isolate-7"); !ok || i != 1 {
		t.Fatalf("exact name lookup failed: %d %v", i, ok)
	}
	if i, ok := a.IndexOf("NC_001477.1"); !ok || i != 0 {
		t.Fatalf("accession prefix lookup failed: %d %v", i, ok)
	}
}
