package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mutfreq/internal/alignment"
	"mutfreq/internal/engine"
	"mutfreq/internal/fasta"
	"mutfreq/internal/report"
	"mutfreq/internal/store"

	"github.com/google/uuid"
)

// allowedExtensions mirrors the upload formats the dashboard accepts.
var allowedExtensions = map[string]bool{
	"fasta": true, "fa": true, "txt": true, "csv": true, "fas": true,
	"aln": true, "seq": true, "msa": true, "phylip": true, "phy": true,
	"nex": true, "nexus": true,
}

func allowedFile(name string) bool {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return false
	}
	return allowedExtensions[strings.ToLower(name[i+1:])]
}

// secureFilename reduces an uploaded name to a flat, shell-safe basename.
func secureFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
	if name == "" || name == "." || name == ".." {
		name = "uploaded_file"
	}
	return name
}

// handleUpload accepts POST /upload/{workspace}: saves the multipart file,
// runs the analysis, persists results JSON + CSV and records the history
// entry. The uploaded file itself is removed after processing.
func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 3 || !validWorkspace(parts[2]) {
		writeError(w, http.StatusBadRequest, "Invalid workspace")
		return
	}
	ws := parts[2]
	if !s.checkKeyword(r) {
		writeError(w, http.StatusUnauthorized, "Invalid access keyword")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadMB*1024*1024)

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}
	defer file.Close()
	if hdr.Filename == "" {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}
	if !allowedFile(hdr.Filename) {
		writeError(w, http.StatusBadRequest, "Invalid file format. Supported formats: FASTA, FA, TXT, CSV, FAS, ALN, SEQ, MSA, PHYLIP, PHY, NEX, NEXUS")
		return
	}

	id := uuid.NewString()
	filename := secureFilename(hdr.Filename)
	uploadPath := filepath.Join(s.cfg.UploadDir, id+"_"+filename)
	dst, err := os.Create(uploadPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(uploadPath)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	dst.Close()
	defer os.Remove(uploadPath)

	entry, err := s.analyzeUpload(id, filename, hdr.Filename, ws, uploadPath)
	if err != nil {
		status := http.StatusInternalServerError
		var lm *alignment.LengthMismatchError
		if errors.Is(err, fasta.ErrUnparsableInput) ||
			errors.Is(err, alignment.ErrEmptyAlignment) ||
			errors.As(err, &lm) {
			status = http.StatusBadRequest
		}
		writeError(w, status, fmt.Sprintf("Error processing file: %v", err))
		return
	}

	pruned, err := s.st.AddEntry(entry)
	if err != nil {
		removeResultFiles(s.cfg.UploadDir, entry)
		writeError(w, http.StatusInternalServerError, "failed to record upload")
		return
	}
	for _, e := range pruned {
		removeResultFiles(s.cfg.UploadDir, e)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"file_id":  id,
		"filename": filename,
		"message":  fmt.Sprintf("File processed successfully. Found %d mutations in %d positions.", entry.MutationCount, entry.TotalPositions),
	})
}

// analyzeUpload parses the saved file, runs the engine with the configured
// options and writes the results JSON and downloadable CSV next to it.
func (s *server) analyzeUpload(id, filename, original, ws, uploadPath string) (store.FileEntry, error) {
	f, err := os.Open(uploadPath)
	if err != nil {
		return store.FileEntry{}, err
	}
	aln, err := fasta.ParseAlignment(f)
	f.Close()
	if err != nil {
		return store.FileEntry{}, err
	}

	res, err := engine.Analyze(aln, engine.Options{
		DropGaps:         s.cfg.DropGaps,
		ExcludeAmbiguous: s.cfg.ExcludeAmbiguous,
		ChunkSize:        s.cfg.ChunkSize,
	})
	if err != nil {
		return store.FileEntry{}, err
	}

	resultsFile := "results_" + id + ".json"
	jf, err := os.Create(filepath.Join(s.cfg.UploadDir, resultsFile))
	if err != nil {
		return store.FileEntry{}, err
	}
	if err := report.WriteJSON(jf, res); err != nil {
		jf.Close()
		return store.FileEntry{}, err
	}
	jf.Close()

	outputFile := "mutation_analysis_" + id + ".csv"
	cf, err := os.Create(filepath.Join(s.cfg.UploadDir, outputFile))
	if err != nil {
		return store.FileEntry{}, err
	}
	if err := report.WriteCSV(cf, res); err != nil {
		cf.Close()
		return store.FileEntry{}, err
	}
	cf.Close()

	return store.FileEntry{
		ID:               id,
		Filename:         filename,
		OriginalFilename: original,
		Workspace:        ws,
		Keyword:          s.cfg.AccessKeyword,
		UploadTime:       time.Now().UTC(),
		ResultsFile:      resultsFile,
		OutputFile:       outputFile,
		TotalPositions:   res.TotalPositions,
		MutationCount:    res.MutationCount,
		ConservedCount:   res.ConservedCount,
		MutatedPositions: res.MutatedPositions,
		LowConfPositions: res.LowConfPositions,
	}, nil
}
