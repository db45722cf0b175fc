package main

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mutfreq/internal/config"
	"mutfreq/internal/engine"
	"mutfreq/internal/report"
	"mutfreq/internal/store"
)

// server bundles the explicit dependencies the handlers need; the store
// handle lives here for the process lifetime instead of in a package global.
type server struct {
	cfg *config.Config
	st  *store.Store
}

func newServer(cfg *config.Config, st *store.Store) *server {
	return &server{cfg: cfg, st: st}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	fs := http.FileServer(http.Dir("web/static"))
	mux.Handle("/static/", http.StripPrefix("/static/", fs))
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/workspace/", s.handleWorkspace)
	mux.HandleFunc("/upload/", s.handleUpload)
	mux.HandleFunc("/download/", s.handleDownload)
	mux.HandleFunc("/api/", s.handleAPI)
	return mux
}

func validWorkspace(ws string) bool { return ws == "denv" || ws == "chikv" }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// checkKeyword enforces the optional access keyword (header or form field).
func (s *server) checkKeyword(r *http.Request) bool {
	if s.cfg.AccessKeyword == "" {
		return true
	}
	if r.Header.Get("X-Access-Keyword") == s.cfg.AccessKeyword {
		return true
	}
	return r.URL.Query().Get("keyword") == s.cfg.AccessKeyword
}

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if err := templates.ExecuteTemplate(w, "index.html", nil); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type workspacePage struct {
	Workspace string
	History   []store.FileEntry
}

func (s *server) handleWorkspace(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 3 || !validWorkspace(parts[2]) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	ws := parts[2]
	history, err := s.st.History(ws)
	if err != nil {
		http.Error(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	if err := templates.ExecuteTemplate(w, "workspace.html", workspacePage{Workspace: ws, History: history}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *server) handleDownload(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 3 || parts[2] == "" {
		writeError(w, http.StatusBadRequest, "missing filename")
		return
	}
	// basename only: the upload dir is flat and this blocks traversal
	name := filepath.Base(parts[2])
	path := filepath.Join(s.cfg.UploadDir, name)
	if _, err := os.Stat(path); err != nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}
	w.Header().Set("Content-Disposition", "attachment; filename=\""+name+"\"")
	http.ServeFile(w, r, path)
}

// handleAPI dispatches /api/{workspace}/{verb}[/{id}].
func (s *server) handleAPI(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 4 || !validWorkspace(parts[2]) {
		writeError(w, http.StatusBadRequest, "Invalid workspace")
		return
	}
	if !s.checkKeyword(r) {
		writeError(w, http.StatusUnauthorized, "Invalid access keyword")
		return
	}
	ws, verb := parts[2], parts[3]
	switch {
	case verb == "history" && r.Method == http.MethodGet:
		s.apiHistory(w, ws)
	case verb == "file" && len(parts) >= 5 && r.Method == http.MethodGet:
		s.apiFileData(w, ws, parts[4])
	case verb == "clear-history" && r.Method == http.MethodPost:
		s.apiClearHistory(w, ws)
	case verb == "preferences" && r.Method == http.MethodGet:
		s.apiGetPreference(w, r, ws)
	case verb == "preferences" && r.Method == http.MethodPost:
		s.apiSetPreference(w, r, ws)
	case verb == "activity" && r.Method == http.MethodPost:
		s.apiLogActivity(w, r, ws)
	default:
		writeError(w, http.StatusNotFound, "unknown API endpoint")
	}
}

func (s *server) apiHistory(w http.ResponseWriter, ws string) {
	history, err := s.st.History(ws)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	if history == nil {
		history = []store.FileEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "history": history})
}

// fileData is a history entry plus the full position records loaded from
// the results file.
type fileData struct {
	store.FileEntry
	Results *engine.Result `json:"results"`
}

func (s *server) apiFileData(w http.ResponseWriter, ws, id string) {
	entry, ok, err := s.st.Entry(ws, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "File not found in history")
		return
	}
	f, err := os.Open(filepath.Join(s.cfg.UploadDir, entry.ResultsFile))
	if err != nil {
		writeError(w, http.StatusNotFound, "Results file not found on disk")
		return
	}
	defer f.Close()
	res, err := report.ReadJSON(f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load results data")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"file_data": fileData{FileEntry: entry, Results: res},
	})
}

func (s *server) apiClearHistory(w http.ResponseWriter, ws string) {
	removed, err := s.st.ClearHistory(ws)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	for _, e := range removed {
		removeResultFiles(s.cfg.UploadDir, e)
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "History cleared"})
}

func removeResultFiles(dir string, e store.FileEntry) {
	if e.ResultsFile != "" {
		_ = os.Remove(filepath.Join(dir, e.ResultsFile))
	}
	if e.OutputFile != "" {
		_ = os.Remove(filepath.Join(dir, e.OutputFile))
	}
}

func (s *server) apiGetPreference(w http.ResponseWriter, r *http.Request, ws string) {
	sessionID := r.URL.Query().Get("session_id")
	key := r.URL.Query().Get("key")
	if sessionID == "" || key == "" {
		writeError(w, http.StatusBadRequest, "session_id and key are required")
		return
	}
	value, found, err := s.st.GetPreference(sessionID, ws, key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read preference")
		return
	}
	resp := map[string]any{"success": true, "found": found}
	if found {
		resp["value"] = value
	}
	writeJSON(w, http.StatusOK, resp)
}

type preferenceRequest struct {
	SessionID string          `json:"session_id"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
}

func (s *server) apiSetPreference(w http.ResponseWriter, r *http.Request, ws string) {
	var req preferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" || req.Key == "" {
		writeError(w, http.StatusBadRequest, "invalid preference payload")
		return
	}
	if err := s.st.SetPreference(req.SessionID, ws, req.Key, req.Value); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store preference")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type activityRequest struct {
	SessionID string          `json:"session_id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	FileID    string          `json:"file_id"`
}

func (s *server) apiLogActivity(w http.ResponseWriter, r *http.Request, ws string) {
	var req activityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" || req.Type == "" {
		writeError(w, http.StatusBadRequest, "invalid activity payload")
		return
	}
	err := s.st.LogActivity(store.Activity{
		SessionID: req.SessionID,
		Workspace: ws,
		Type:      req.Type,
		Data:      req.Data,
		FileID:    req.FileID,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to log activity")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
