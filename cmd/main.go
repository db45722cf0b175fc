package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"mutfreq/internal/alignment"
	"mutfreq/internal/config"
	"mutfreq/internal/engine"
	"mutfreq/internal/fasta"
	"mutfreq/internal/report"

	"github.com/charmbracelet/log"
)

// version is the program version. It can be overridden at build time with -ldflags "-X main.version=..."
var version = "0.1.0"

// timestampWriter prefixes each flushed line with an RFC3339 timestamp.
type timestampWriter struct {
	w   io.Writer
	buf bytes.Buffer
	mu  sync.Mutex
}

// Write buffers bytes until a newline is found; for each full line, write a timestamped
// line to the underlying writer. Partial lines are kept in the buffer.
func (t *timestampWriter) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, _ := t.buf.Write(p)
	total := n
	for {
		line, err := t.buf.ReadString('\n')
		if err != nil {
			break
		}
		ts := time.Now().Format(time.RFC3339)
		if _, err := t.w.Write([]byte(ts + " " + line)); err != nil {
			return total, err
		}
	}
	return total, nil
}

// terminalWriter wraps an io.Writer and exposes an Fd method so libraries that
// inspect the file descriptor (for TTY detection) can work with wrapped writers.
type terminalWriter struct {
	w  io.Writer
	fd uintptr
}

func (tw *terminalWriter) Write(p []byte) (int, error) { return tw.w.Write(p) }

// Fd exposes the underlying file descriptor (e.g., os.Stderr.Fd()).
func (tw *terminalWriter) Fd() uintptr { return tw.fd }

func main() {
	// CLI flags
	inputFlag := flag.String("in", "alignment.fasta", "input alignment file (FASTA or delimited text)")
	jsonFlag := flag.String("json", "results.json", "output JSON file path")
	csvFlag := flag.String("csv", "mutation_analysis_results.csv", "output CSV file path")
	configFlag := flag.String("config", "", "path to config.json (optional)")
	refFlag := flag.String("ref", "", "reference sequence name or accession (default: first sequence)")
	dropGaps := flag.Bool("drop-gaps", false, "exclude gaps from residue counts and frequency denominators")
	exclAmbig := flag.Bool("exclude-ambiguous", false, "exclude ambiguity codes from frequency denominators")
	chunkFlag := flag.Int("chunk", 0, "columns per processing chunk (0 = default)")
	dryRun := flag.Bool("dry-run", false, "compute but do not write outputs")
	verbose := flag.Bool("verbose", false, "enable verbose (debug) logging")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println("mutfreq", version)
		return
	}

	// load config (optional file)
	cfg, _ := config.LoadConfig(*configFlag)

	// merge CLI flags into config (flags override config when provided)
	if *inputFlag != "" {
		cfg.InputFile = *inputFlag
	}
	if *jsonFlag != "" {
		cfg.OutputJSON = *jsonFlag
	}
	if *csvFlag != "" {
		cfg.OutputCSV = *csvFlag
	}
	if *refFlag != "" {
		cfg.Reference = *refFlag
	}
	if *dropGaps {
		cfg.DropGaps = true
	}
	if *exclAmbig {
		cfg.ExcludeAmbiguous = true
	}
	if *chunkFlag > 0 {
		cfg.ChunkSize = *chunkFlag
	}

	// configure logger output
	var loggerOut io.Writer = os.Stderr
	if cfg.LogFile != "" {
		if f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			// write to both stderr and file so running interactively still shows logs
			loggerOut = io.MultiWriter(os.Stderr, f)
			defer func() { _ = f.Close() }()
		}
	}
	// If stderr is a terminal-like device, force colors for libraries that honor FORCE_COLOR.
	if fi, err := os.Stderr.Stat(); err == nil {
		if fi.Mode()&os.ModeCharDevice != 0 {
			_ = os.Setenv("FORCE_COLOR", "1")
		}
	}
	// create logger backed by the timestamping writer and expose Fd so charm.log can detect TTY
	tw := &timestampWriter{w: loggerOut}
	termW := &terminalWriter{w: tw, fd: os.Stderr.Fd()}
	logger := log.New(termW)

	// apply log level from flags/config (flags override config)
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	} else {
		switch strings.ToLower(cfg.LogLevel) {
		case "debug":
			logger.SetLevel(log.DebugLevel)
		case "info", "":
			logger.SetLevel(log.InfoLevel)
		case "warn", "warning":
			logger.SetLevel(log.WarnLevel)
		case "error":
			logger.SetLevel(log.ErrorLevel)
		default:
			logger.SetLevel(log.InfoLevel)
			logger.Warn("unknown log_level in config.json, defaulting to info", "provided", cfg.LogLevel)
		}
	}

	logger.Info("starting mutfreq", "input", cfg.InputFile, "output_json", cfg.OutputJSON, "output_csv", cfg.OutputCSV, "drop_gaps", cfg.DropGaps, "exclude_ambiguous", cfg.ExcludeAmbiguous)

	f, err := os.Open(cfg.InputFile)
	if err != nil {
		logger.Fatal("failed to open input file", "path", cfg.InputFile, "err", err)
	}
	if fi, err := f.Stat(); err == nil {
		logger.Debug("input size", "bytes", fi.Size())
	}

	start := time.Now()
	aln, err := fasta.ParseAlignment(f)
	f.Close()
	if err != nil {
		var lm *alignment.LengthMismatchError
		switch {
		case errors.As(err, &lm):
			logger.Fatal("alignment length mismatch", "sequence", lm.Name, "length", lm.Length, "want", lm.Want)
		case errors.Is(err, alignment.ErrEmptyAlignment):
			logger.Fatal("empty alignment", "path", cfg.InputFile)
		default:
			logger.Fatal("failed to parse input", "path", cfg.InputFile, "err", err)
		}
	}
	logger.Info("parsed alignment", "sequences", aln.NumSequences(), "positions", aln.Length(), "type", aln.Type().String())

	refIdx := 0
	if cfg.Reference != "" {
		idx, ok := aln.IndexOf(cfg.Reference)
		if !ok {
			logger.Fatal("reference sequence not found", "name", cfg.Reference)
		}
		refIdx = idx
	}
	logger.Debug("reference selected", "index", refIdx, "name", aln.Sequences()[refIdx].Name)

	res, err := engine.Analyze(aln, engine.Options{
		Reference:        refIdx,
		DropGaps:         cfg.DropGaps,
		ExcludeAmbiguous: cfg.ExcludeAmbiguous,
		ChunkSize:        cfg.ChunkSize,
	})
	if err != nil {
		logger.Fatal("analysis failed", "err", err)
	}
	logger.Info("analysis complete",
		"positions", res.TotalPositions,
		"mutated", res.MutationCount,
		"conserved", res.ConservedCount,
		"low_confidence", len(res.LowConfPositions),
		"duration_ms", time.Since(start).Milliseconds())

	if *dryRun {
		logger.Info("dry-run: would write outputs", "json", cfg.OutputJSON, "csv", cfg.OutputCSV)
		return
	}

	if cfg.OutputJSON != "" {
		out, err := os.Create(cfg.OutputJSON)
		if err != nil {
			logger.Fatal("failed to create output JSON", "path", cfg.OutputJSON, "err", err)
		}
		if err := report.WriteJSON(out, res); err != nil {
			out.Close()
			logger.Fatal("failed to write output JSON", "path", cfg.OutputJSON, "err", err)
		}
		out.Close()
		logger.Info("wrote output JSON", "path", cfg.OutputJSON)
	}

	if cfg.OutputCSV != "" {
		out, err := os.Create(cfg.OutputCSV)
		if err != nil {
			logger.Fatal("failed to create output CSV", "path", cfg.OutputCSV, "err", err)
		}
		if err := report.WriteCSV(out, res); err != nil {
			out.Close()
			logger.Fatal("failed to write output CSV", "path", cfg.OutputCSV, "err", err)
		}
		out.Close()
		logger.Info("wrote output CSV", "path", cfg.OutputCSV)
	}
}
