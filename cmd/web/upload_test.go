package main

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mutfreq/internal/config"
	"mutfreq/internal/store"
)

func newTestServer(t *testing.T) (*server, *http.ServeMux) {
	t.Helper()
	uploads := t.TempDir()
	st, err := store.Open("json", filepath.Join(uploads, "history.json"), 0)
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	cfg := &config.Config{UploadDir: uploads, MaxUploadMB: 16}
	srv := newServer(cfg, st)
	return srv, srv.routes()
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("writing form file failed: %v", err)
	}
	mw.Close()
	return buf, mw.FormDataContentType()
}

func TestUploadProcessAndHistory(t *testing.T) {
	srv, mux := newTestServer(t)
	body, ctype := multipartUpload(t, "aln.fasta", ">ref\nACGTA\n>s2\nACGTA\n>s3\nACCTA\n")

	req := httptest.NewRequest(http.MethodPost, "/upload/denv", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool   `json:"success"`
		FileID  string `json:"file_id"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad upload response: %v", err)
	}
	if !resp.Success || resp.FileID == "" {
		t.Fatalf("unexpected upload response: %+v", resp)
	}
	if !strings.Contains(resp.Message, "Found 1 mutations in 5 positions") {
		t.Fatalf("unexpected message: %q", resp.Message)
	}

	// results JSON and CSV persisted, raw upload removed
	if _, err := os.Stat(filepath.Join(srv.cfg.UploadDir, "results_"+resp.FileID+".json")); err != nil {
		t.Fatalf("results file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(srv.cfg.UploadDir, "mutation_analysis_"+resp.FileID+".csv")); err != nil {
		t.Fatalf("csv file missing: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(srv.cfg.UploadDir, resp.FileID+"_*"))
	if len(matches) != 0 {
		t.Fatalf("raw upload should be removed, found %v", matches)
	}

	// history shows the entry
	req = httptest.NewRequest(http.MethodGet, "/api/denv/history", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var hist struct {
		Success bool              `json:"success"`
		History []store.FileEntry `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &hist); err != nil {
		t.Fatalf("bad history response: %v", err)
	}
	if len(hist.History) != 1 || hist.History[0].MutationCount != 1 {
		t.Fatalf("unexpected history: %+v", hist.History)
	}

	// file data includes the full position records
	req = httptest.NewRequest(http.MethodGet, "/api/denv/file/"+resp.FileID, nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("file data returned %d: %s", rec.Code, rec.Body.String())
	}
	var fd struct {
		Success  bool `json:"success"`
		FileData struct {
			TotalPositions int `json:"total_positions"`
			Results        struct {
				Positions []struct {
					Position       int    `json:"position"`
					Classification string `json:"classification"`
				} `json:"positions"`
			} `json:"results"`
		} `json:"file_data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &fd); err != nil {
		t.Fatalf("bad file data response: %v", err)
	}
	if fd.FileData.TotalPositions != 5 || len(fd.FileData.Results.Positions) != 5 {
		t.Fatalf("unexpected file data: %+v", fd.FileData)
	}
	if fd.FileData.Results.Positions[2].Classification != "Mutated" {
		t.Fatalf("expected position 3 mutated: %+v", fd.FileData.Results.Positions[2])
	}
}

func TestUploadRejections(t *testing.T) {
	_, mux := newTestServer(t)

	// unknown workspace
	body, ctype := multipartUpload(t, "aln.fasta", ">a\nACGT\n")
	req := httptest.NewRequest(http.MethodPost, "/upload/zika", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown workspace, got %d", rec.Code)
	}

	// disallowed extension
	body, ctype = multipartUpload(t, "aln.exe", ">a\nACGT\n")
	req = httptest.NewRequest(http.MethodPost, "/upload/denv", body)
	req.Header.Set("Content-Type", ctype)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad extension, got %d", rec.Code)
	}

	// mismatched sequence lengths abort with no history entry
	body, ctype = multipartUpload(t, "aln.fasta", ">a\nACGTA\n>b\nACGT\n")
	req = httptest.NewRequest(http.MethodPost, "/upload/denv", body)
	req.Header.Set("Content-Type", ctype)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for length mismatch, got %d", rec.Code)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/denv/history", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var hist struct {
		History []store.FileEntry `json:"history"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &hist)
	if len(hist.History) != 0 {
		t.Fatalf("failed uploads must not enter history: %+v", hist.History)
	}
}

func TestAccessKeyword(t *testing.T) {
	srv, mux := newTestServer(t)
	srv.cfg.AccessKeyword = "sesame"

	req := httptest.NewRequest(http.MethodGet, "/api/denv/history", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without keyword, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/denv/history", nil)
	req.Header.Set("X-Access-Keyword", "sesame")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with keyword, got %d", rec.Code)
	}
}

func TestPreferencesAndActivityAPI(t *testing.T) {
	_, mux := newTestServer(t)

	payload := `{"session_id":"sess1","key":"table_sort","value":"frequency"}`
	req := httptest.NewRequest(http.MethodPost, "/api/denv/preferences", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("set preference returned %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/denv/preferences?session_id=sess1&key=table_sort", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var pref struct {
		Success bool            `json:"success"`
		Found   bool            `json:"found"`
		Value   json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &pref); err != nil {
		t.Fatalf("bad preference response: %v", err)
	}
	if !pref.Found || string(pref.Value) != `"frequency"` {
		t.Fatalf("unexpected preference: %+v", pref)
	}

	act := `{"session_id":"sess1","type":"position_jump","data":{"position":3}}`
	req = httptest.NewRequest(http.MethodPost, "/api/denv/activity", strings.NewReader(act))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("activity returned %d: %s", rec.Code, rec.Body.String())
	}
}

func TestClearHistoryRemovesFiles(t *testing.T) {
	srv, mux := newTestServer(t)
	body, ctype := multipartUpload(t, "aln.fasta", ">ref\nACGTA\n>s2\nACCTA\n")
	req := httptest.NewRequest(http.MethodPost, "/upload/chikv", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload returned %d: %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/chikv/clear-history", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear-history returned %d", rec.Code)
	}
	left, _ := filepath.Glob(filepath.Join(srv.cfg.UploadDir, "results_*.json"))
	if len(left) != 0 {
		t.Fatalf("result files should be removed on clear: %v", left)
	}
}

func TestSecureFilename(t *testing.T) {
	cases := map[string]string{
		"aln.fasta":          "aln.fasta",
		"../../etc/passwd":   "passwd",
		"my file (2).fasta":  "my_file__2_.fasta",
		"..\\..\\evil.fasta": "evil.fasta",
		"":                   "uploaded_file",
	}
	for in, want := range cases {
		if got := secureFilename(in); got != want {
			t.Fatalf("secureFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
