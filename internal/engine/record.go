package engine

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Classification says whether a column agrees with the reference residue in
// every sequence.
type Classification int

const (
	Conserved Classification = iota
	Mutated
)

func (c Classification) String() string {
	if c == Mutated {
		return "Mutated"
	}
	return "Conserved"
}

// Color returns the dashboard color code for the classification.
func (c Classification) Color() string {
	if c == Mutated {
		return "Red"
	}
	return "Green"
}

func (c Classification) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Classification) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Conserved":
		*c = Conserved
	case "Mutated":
		*c = Mutated
	default:
		return fmt.Errorf("unknown classification %q", string(b))
	}
	return nil
}

// Confidence flags columns that contain gap or ambiguity symbols.
type Confidence int

const (
	HighConfidence Confidence = iota
	LowConfidence
)

func (c Confidence) String() string {
	if c == LowConfidence {
		return "Low-confidence"
	}
	return "High-confidence"
}

func (c Confidence) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Confidence) UnmarshalText(b []byte) error {
	switch string(b) {
	case "High-confidence":
		*c = HighConfidence
	case "Low-confidence":
		*c = LowConfidence
	default:
		return fmt.Errorf("unknown confidence %q", string(b))
	}
	return nil
}

// PositionRecord holds the statistics for one alignment column. Position is
// 1-based. Counts and Frequencies are keyed by single-character residue
// symbols (gap included, depending on the configured policy).
type PositionRecord struct {
	Position       int                `json:"position"`
	Reference      string             `json:"reference"`
	Counts         map[string]int     `json:"counts"`
	Frequencies    map[string]float64 `json:"frequencies"`
	Classification Classification     `json:"classification"`
	Confidence     Confidence         `json:"confidence"`
	Representation string             `json:"representation"`
}

// Result is the complete output of one analysis run.
type Result struct {
	TotalPositions   int              `json:"total_positions"`
	MutationCount    int              `json:"mutation_count"`
	ConservedCount   int              `json:"conserved_count"`
	MutatedPositions []int            `json:"mutated_positions"`
	LowConfPositions []int            `json:"low_conf_positions"`
	Positions        []PositionRecord `json:"positions"`
}

// round2 rounds to 2 decimals, half to even, so repeated runs and chunked
// runs agree bit for bit.
func round2(x float64) float64 {
	return math.RoundToEven(x*100) / 100
}

// FormatPercent renders a rounded frequency without trailing zeros
// (66.67, 100, 33.3).
func FormatPercent(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// variant is a non-reference residue with its frequency, used while
// building the representation string.
type variant struct {
	sym  string
	freq float64
}

// sortVariants orders by descending frequency, ties by symbol.
func sortVariants(vs []variant) {
	sort.Slice(vs, func(i, j int) bool {
		if vs[i].freq != vs[j].freq {
			return vs[i].freq > vs[j].freq
		}
		return vs[i].sym < vs[j].sym
	})
}

// representation builds the human-readable summary for a column, e.g.
// "G (66.67%)" for a conserved column or
// "G (66.67%) | G3C (33.33%)" for a mutated one.
func representation(ref string, pos int, class Classification, freqs map[string]float64) string {
	refFreq, haveRef := freqs[ref]
	if class == Conserved {
		if !haveRef {
			// All residues agree with the reference but the policy dropped
			// them from the frequency map (e.g. an all-gap column).
			refFreq = 100
		}
		return fmt.Sprintf("%s (%s%%)", ref, FormatPercent(refFreq))
	}

	vs := make([]variant, 0, len(freqs))
	for sym, f := range freqs {
		if sym == ref {
			continue
		}
		vs = append(vs, variant{sym: sym, freq: f})
	}
	sortVariants(vs)

	parts := make([]string, 0, len(vs))
	for _, v := range vs {
		parts = append(parts, fmt.Sprintf("%s%d%s (%s%%)", ref, pos, v.sym, FormatPercent(v.freq)))
	}
	if len(parts) == 0 {
		// Mutated only by symbols the policy excluded from frequencies.
		return fmt.Sprintf("%s (%s%%)", ref, FormatPercent(refFreq))
	}
	if haveRef && refFreq > 0 {
		return fmt.Sprintf("%s (%s%%) | %s", ref, FormatPercent(refFreq), strings.Join(parts, ", "))
	}
	return strings.Join(parts, ", ")
}
