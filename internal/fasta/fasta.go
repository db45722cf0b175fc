// Package fasta contains minimal helpers to parse the alignment input
// formats accepted by the project: FASTA-family files and delimited text
// (one "name,sequence" or "name<TAB>sequence" pair per line, or bare
// sequence lines). It intentionally keeps parsing simple and conservative.
package fasta

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"mutfreq/internal/alignment"
)

// ErrUnparsableInput is returned when the input yields no usable records.
// Parse errors from the alignment layer are wrapped with it so callers can
// treat every format-level failure uniformly.
var ErrUnparsableInput = errors.New("unparsable input")

// Record represents a single FASTA record (header and sequence).
type Record struct {
	Header   string
	Sequence string
}

// ParseFasta reads FASTA records from r and returns a slice of Record.
// Lines beginning with '>' denote headers; sequence lines are concatenated.
func ParseFasta(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	var records []Record
	var current Record
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.HasPrefix(line, ">") {
			if current.Header != "" {
				records = append(records, current)
			}
			current = Record{Header: strings.TrimSpace(line[1:])}
		} else {
			current.Sequence += strings.TrimSpace(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsableInput, err)
	}
	if current.Header != "" {
		records = append(records, current)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no FASTA records found", ErrUnparsableInput)
	}
	return records, nil
}

// ParseDelimited reads one sequence per line. A line may be
// "name,sequence", "name<TAB>sequence" or a bare sequence, in which case a
// name is synthesized from the line number.
func ParseDelimited(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	var records []Record
	n := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		n++
		var name, seq string
		switch {
		case strings.ContainsRune(line, '\t'):
			parts := strings.SplitN(line, "\t", 2)
			name, seq = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		case strings.ContainsRune(line, ','):
			parts := strings.SplitN(line, ",", 2)
			name, seq = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		default:
			name, seq = fmt.Sprintf("seq%d", n), line
		}
		if seq == "" {
			return nil, fmt.Errorf("%w: line %d has no sequence", ErrUnparsableInput, n)
		}
		records = append(records, Record{Header: name, Sequence: seq})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsableInput, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no sequences found", ErrUnparsableInput)
	}
	return records, nil
}

// ParseAlignment sniffs the format (FASTA when the first non-blank byte is
// '>', delimited otherwise) and builds a validated Alignment. Symbol
// validation failures are reported as unparsable input; length mismatches
// and empty alignments surface unchanged from the alignment layer.
func ParseAlignment(r io.Reader) (*alignment.Alignment, error) {
	br := bufio.NewReader(r)
	var records []Record
	var err error
	if isFasta(br) {
		records, err = ParseFasta(br)
	} else {
		records, err = ParseDelimited(br)
	}
	if err != nil {
		return nil, err
	}
	seqs := make([]alignment.Sequence, len(records))
	for i, rec := range records {
		seqs[i] = alignment.Sequence{Name: rec.Header, Residues: rec.Sequence}
	}
	a, err := alignment.New(seqs)
	if err != nil {
		var inv *alignment.InvalidSymbolError
		if errors.As(err, &inv) {
			return nil, fmt.Errorf("%w: %v", ErrUnparsableInput, err)
		}
		return nil, err
	}
	return a, nil
}

func isFasta(br *bufio.Reader) bool {
	for {
		b, err := br.Peek(1)
		if err != nil {
			return false
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			_, _ = br.ReadByte()
		case '>':
			return true
		default:
			return false
		}
	}
}
