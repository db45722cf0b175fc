// Package report serializes analysis results for the presentation layer:
// CSV for download and JSON for durable storage. The CSV column set and
// ordering is a contract the dashboard depends on; do not reorder.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"mutfreq/internal/engine"
)

// csvHeader is the fixed download column contract.
var csvHeader = []string{
	"Position",
	"Reference",
	"Color",
	"Mutation Representation",
	"Ambiguity",
	"Counts",
	"Frequencies (%)",
}

// WriteCSV writes one row per position in ascending position order.
func WriteCSV(w io.Writer, res *engine.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, p := range res.Positions {
		row := []string{
			fmt.Sprintf("%d", p.Position),
			p.Reference,
			p.Classification.Color(),
			p.Representation,
			p.Confidence.String(),
			FormatCounts(p.Counts),
			FormatFrequencies(p.Frequencies),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON stores the full result, indented, for the web and TUI layers
// to read back.
func WriteJSON(w io.Writer, res *engine.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// ReadJSON loads a result previously written with WriteJSON.
func ReadJSON(r io.Reader) (*engine.Result, error) {
	var res engine.Result
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

// FormatCounts renders a counts map deterministically: symbols sorted by
// descending count, ties by symbol, e.g. "G:2,C:1".
func FormatCounts(m map[string]int) string {
	syms := make([]string, 0, len(m))
	for s := range m {
		syms = append(syms, s)
	}
	sort.Slice(syms, func(i, j int) bool {
		if m[syms[i]] != m[syms[j]] {
			return m[syms[i]] > m[syms[j]]
		}
		return syms[i] < syms[j]
	})
	parts := make([]string, len(syms))
	for i, s := range syms {
		parts[i] = fmt.Sprintf("%s:%d", s, m[s])
	}
	return strings.Join(parts, ",")
}

// FormatFrequencies renders a frequency map deterministically: symbols
// sorted by descending frequency, ties by symbol, e.g. "G:66.67,C:33.33".
func FormatFrequencies(m map[string]float64) string {
	syms := make([]string, 0, len(m))
	for s := range m {
		syms = append(syms, s)
	}
	sort.Slice(syms, func(i, j int) bool {
		if m[syms[i]] != m[syms[j]] {
			return m[syms[i]] > m[syms[j]]
		}
		return syms[i] < syms[j]
	})
	parts := make([]string, len(syms))
	for i, s := range syms {
		parts[i] = fmt.Sprintf("%s:%s", s, engine.FormatPercent(m[s]))
	}
	return strings.Join(parts, ",")
}
