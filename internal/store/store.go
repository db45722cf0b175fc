// Package store persists upload history, adaptive UI preferences and the
// activity log behind an explicit handle. Two backends are supported: a
// single JSON file (simple read-modify-write) and SQLite via database/sql.
// The handle is opened once at startup and closed on shutdown; there is no
// package-global state.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultHistoryLimit caps the number of retained files per workspace.
const DefaultHistoryLimit = 25

// FileEntry is one processed upload kept in workspace history.
type FileEntry struct {
	ID               string    `json:"id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	Workspace        string    `json:"workspace"`
	Keyword          string    `json:"keyword,omitempty"`
	UploadTime       time.Time `json:"upload_time"`
	ResultsFile      string    `json:"results_file"`
	OutputFile       string    `json:"output_file"`
	TotalPositions   int       `json:"total_positions"`
	MutationCount    int       `json:"mutation_count"`
	ConservedCount   int       `json:"conserved_count"`
	MutatedPositions []int     `json:"mutated_positions"`
	LowConfPositions []int     `json:"low_conf_positions"`
}

// Preference is one adaptive-UI setting scoped to a browser session and
// workspace. Value is opaque JSON owned by the presentation layer.
type Preference struct {
	SessionID   string          `json:"session_id"`
	Workspace   string          `json:"workspace"`
	Key         string          `json:"key"`
	Value       json.RawMessage `json:"value"`
	UsageCount  int             `json:"usage_count"`
	LastUpdated time.Time       `json:"last_updated"`
}

// Activity is one logged user action, consumed by the adaptive UI.
type Activity struct {
	SessionID string          `json:"session_id"`
	Workspace string          `json:"workspace"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	FileID    string          `json:"file_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Store is the persistence handle.
type Store struct {
	backend string
	path    string
	limit   int

	mu   sync.Mutex
	data fileData // json backend only
	db   *sql.DB  // sqlite backend only
}

type fileData struct {
	Files       []FileEntry  `json:"files"`
	Preferences []Preference `json:"preferences"`
	Activities  []Activity   `json:"activities"`
}

// Open creates a Store. backend is "json" or "sqlite"; path is the JSON
// file or SQLite database path. limit <= 0 means DefaultHistoryLimit.
func Open(backend, path string, limit int) (*Store, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	s := &Store{backend: backend, path: path, limit: limit}
	switch backend {
	case "json":
		if err := s.loadJSON(); err != nil {
			return nil, err
		}
	case "sqlite":
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, err
		}
		if err := initSchema(db); err != nil {
			db.Close()
			return nil, err
		}
		s.db = db
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
	return s, nil
}

// Close releases the underlying database handle, if any.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS uploaded_files (
			id TEXT PRIMARY KEY,
			filename TEXT,
			original_filename TEXT,
			workspace TEXT,
			keyword TEXT,
			upload_time TEXT,
			results_file TEXT,
			output_file TEXT,
			total_positions INTEGER,
			mutation_count INTEGER,
			conserved_count INTEGER,
			mutated_positions TEXT,
			low_conf_positions TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS user_preferences (
			session_id TEXT,
			workspace TEXT,
			pref_key TEXT,
			pref_value TEXT,
			usage_count INTEGER,
			last_updated TEXT,
			PRIMARY KEY (session_id, workspace, pref_key)
		)`,
		`CREATE TABLE IF NOT EXISTS user_activities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT,
			workspace TEXT,
			activity_type TEXT,
			activity_data TEXT,
			file_id TEXT,
			timestamp TEXT
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadJSON() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(b, &s.data)
}

// saveJSON writes the whole state atomically (temp file + rename).
func (s *Store) saveJSON() error {
	b, err := json.MarshalIndent(&s.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// AddEntry records a processed upload and trims the workspace history to
// the configured limit, newest first. Pruned entries are returned so the
// caller can delete their result files.
func (s *Store) AddEntry(e FileEntry) ([]FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.addEntrySQL(e)
	}
	s.data.Files = append(s.data.Files, e)
	ws := filterWorkspace(s.data.Files, e.Workspace)
	var pruned []FileEntry
	if len(ws) > s.limit {
		sortNewestFirst(ws)
		pruned = ws[s.limit:]
		drop := map[string]bool{}
		for _, p := range pruned {
			drop[p.ID] = true
		}
		kept := s.data.Files[:0]
		for _, f := range s.data.Files {
			if !drop[f.ID] {
				kept = append(kept, f)
			}
		}
		s.data.Files = kept
	}
	if err := s.saveJSON(); err != nil {
		return nil, err
	}
	return pruned, nil
}

func (s *Store) addEntrySQL(e FileEntry) ([]FileEntry, error) {
	mp, _ := json.Marshal(e.MutatedPositions)
	lp, _ := json.Marshal(e.LowConfPositions)
	_, err := s.db.Exec(`INSERT INTO uploaded_files
		(id, filename, original_filename, workspace, keyword, upload_time,
		 results_file, output_file, total_positions, mutation_count,
		 conserved_count, mutated_positions, low_conf_positions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Filename, e.OriginalFilename, e.Workspace, e.Keyword,
		e.UploadTime.UTC().Format(time.RFC3339), e.ResultsFile, e.OutputFile,
		e.TotalPositions, e.MutationCount, e.ConservedCount, string(mp), string(lp))
	if err != nil {
		return nil, err
	}
	ws, err := s.historySQL(e.Workspace)
	if err != nil {
		return nil, err
	}
	if len(ws) <= s.limit {
		return nil, nil
	}
	pruned := ws[s.limit:]
	for _, p := range pruned {
		if _, err := s.db.Exec(`DELETE FROM uploaded_files WHERE id = ?`, p.ID); err != nil {
			return nil, err
		}
	}
	return pruned, nil
}

// History returns the workspace's entries, newest first.
func (s *Store) History(workspace string) ([]FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.historySQL(workspace)
	}
	ws := filterWorkspace(s.data.Files, workspace)
	sortNewestFirst(ws)
	return ws, nil
}

func (s *Store) historySQL(workspace string) ([]FileEntry, error) {
	rows, err := s.db.Query(`SELECT id, filename, original_filename, workspace,
		keyword, upload_time, results_file, output_file, total_positions,
		mutation_count, conserved_count, mutated_positions, low_conf_positions
		FROM uploaded_files WHERE workspace = ? ORDER BY upload_time DESC`, workspace)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FileEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (FileEntry, error) {
	var e FileEntry
	var ts, mp, lp string
	err := r.Scan(&e.ID, &e.Filename, &e.OriginalFilename, &e.Workspace,
		&e.Keyword, &ts, &e.ResultsFile, &e.OutputFile, &e.TotalPositions,
		&e.MutationCount, &e.ConservedCount, &mp, &lp)
	if err != nil {
		return e, err
	}
	e.UploadTime, _ = time.Parse(time.RFC3339, ts)
	_ = json.Unmarshal([]byte(mp), &e.MutatedPositions)
	_ = json.Unmarshal([]byte(lp), &e.LowConfPositions)
	return e, nil
}

// Entry looks up a single file by workspace and id.
func (s *Store) Entry(workspace, id string) (FileEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		row := s.db.QueryRow(`SELECT id, filename, original_filename, workspace,
			keyword, upload_time, results_file, output_file, total_positions,
			mutation_count, conserved_count, mutated_positions, low_conf_positions
			FROM uploaded_files WHERE workspace = ? AND id = ?`, workspace, id)
		e, err := scanEntry(row)
		if err == sql.ErrNoRows {
			return FileEntry{}, false, nil
		}
		if err != nil {
			return FileEntry{}, false, err
		}
		return e, true, nil
	}
	for _, f := range s.data.Files {
		if f.Workspace == workspace && f.ID == id {
			return f, true, nil
		}
	}
	return FileEntry{}, false, nil
}

// ClearHistory removes every entry of the workspace and returns them so the
// caller can delete the associated result files.
func (s *Store) ClearHistory(workspace string) ([]FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		removed, err := s.historySQL(workspace)
		if err != nil {
			return nil, err
		}
		if _, err := s.db.Exec(`DELETE FROM uploaded_files WHERE workspace = ?`, workspace); err != nil {
			return nil, err
		}
		return removed, nil
	}
	removed := filterWorkspace(s.data.Files, workspace)
	kept := s.data.Files[:0]
	for _, f := range s.data.Files {
		if f.Workspace != workspace {
			kept = append(kept, f)
		}
	}
	s.data.Files = kept
	if err := s.saveJSON(); err != nil {
		return nil, err
	}
	return removed, nil
}

// GetPreference returns the stored value for (session, workspace, key).
func (s *Store) GetPreference(sessionID, workspace, key string) (json.RawMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		var v string
		err := s.db.QueryRow(`SELECT pref_value FROM user_preferences
			WHERE session_id = ? AND workspace = ? AND pref_key = ?`,
			sessionID, workspace, key).Scan(&v)
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		return json.RawMessage(v), true, nil
	}
	for _, p := range s.data.Preferences {
		if p.SessionID == sessionID && p.Workspace == workspace && p.Key == key {
			return p.Value, true, nil
		}
	}
	return nil, false, nil
}

// SetPreference upserts a preference and bumps its usage count.
func (s *Store) SetPreference(sessionID, workspace, key string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if s.db != nil {
		_, err := s.db.Exec(`INSERT INTO user_preferences
			(session_id, workspace, pref_key, pref_value, usage_count, last_updated)
			VALUES (?, ?, ?, ?, 1, ?)
			ON CONFLICT(session_id, workspace, pref_key) DO UPDATE SET
			pref_value = excluded.pref_value,
			usage_count = user_preferences.usage_count + 1,
			last_updated = excluded.last_updated`,
			sessionID, workspace, key, string(value), now.Format(time.RFC3339))
		return err
	}
	for i := range s.data.Preferences {
		p := &s.data.Preferences[i]
		if p.SessionID == sessionID && p.Workspace == workspace && p.Key == key {
			p.Value = value
			p.UsageCount++
			p.LastUpdated = now
			return s.saveJSON()
		}
	}
	s.data.Preferences = append(s.data.Preferences, Preference{
		SessionID: sessionID, Workspace: workspace, Key: key,
		Value: value, UsageCount: 1, LastUpdated: now,
	})
	return s.saveJSON()
}

// LogActivity appends one activity record.
func (s *Store) LogActivity(a Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	if s.db != nil {
		_, err := s.db.Exec(`INSERT INTO user_activities
			(session_id, workspace, activity_type, activity_data, file_id, timestamp)
			VALUES (?, ?, ?, ?, ?, ?)`,
			a.SessionID, a.Workspace, a.Type, string(a.Data), a.FileID,
			a.Timestamp.Format(time.RFC3339))
		return err
	}
	s.data.Activities = append(s.data.Activities, a)
	return s.saveJSON()
}

// RecentActivities returns the session's activities in the workspace since
// the given time, newest first. activityType "" matches everything.
func (s *Store) RecentActivities(sessionID, workspace, activityType string, since time.Time) ([]Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		q := `SELECT session_id, workspace, activity_type, activity_data, file_id, timestamp
			FROM user_activities
			WHERE session_id = ? AND workspace = ? AND timestamp >= ?`
		args := []any{sessionID, workspace, since.UTC().Format(time.RFC3339)}
		if activityType != "" {
			q += ` AND activity_type = ?`
			args = append(args, activityType)
		}
		q += ` ORDER BY timestamp DESC`
		rows, err := s.db.Query(q, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()
		var out []Activity
		for rows.Next() {
			var a Activity
			var data, ts string
			if err := rows.Scan(&a.SessionID, &a.Workspace, &a.Type, &data, &a.FileID, &ts); err != nil {
				return nil, err
			}
			if data != "" {
				a.Data = json.RawMessage(data)
			}
			a.Timestamp, _ = time.Parse(time.RFC3339, ts)
			out = append(out, a)
		}
		return out, rows.Err()
	}
	var out []Activity
	for _, a := range s.data.Activities {
		if a.SessionID != sessionID || a.Workspace != workspace {
			continue
		}
		if activityType != "" && a.Type != activityType {
			continue
		}
		if a.Timestamp.Before(since) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// Integrity reconciles history against the upload directory: entries whose
// results file is missing are dropped, and results files with no entry are
// deleted. Returns (entries removed, orphan files removed).
func (s *Store) Integrity(uploadDir string) (int, int, error) {
	entries, err := s.allEntries()
	if err != nil {
		return 0, 0, err
	}
	referenced := map[string]bool{}
	removedEntries := 0
	for _, e := range entries {
		p := filepath.Join(uploadDir, e.ResultsFile)
		if _, err := os.Stat(p); os.IsNotExist(err) {
			if err := s.removeEntry(e); err != nil {
				return removedEntries, 0, err
			}
			removedEntries++
			continue
		}
		referenced[e.ResultsFile] = true
		if e.OutputFile != "" {
			referenced[e.OutputFile] = true
		}
	}

	removedFiles := 0
	glob, err := filepath.Glob(filepath.Join(uploadDir, "results_*.json"))
	if err != nil {
		return removedEntries, 0, err
	}
	csvs, _ := filepath.Glob(filepath.Join(uploadDir, "mutation_analysis_*.csv"))
	for _, p := range append(glob, csvs...) {
		if !referenced[filepath.Base(p)] {
			if err := os.Remove(p); err == nil {
				removedFiles++
			}
		}
	}
	return removedEntries, removedFiles, nil
}

func (s *Store) allEntries() ([]FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		out := make([]FileEntry, len(s.data.Files))
		copy(out, s.data.Files)
		return out, nil
	}
	rows, err := s.db.Query(`SELECT id, filename, original_filename, workspace,
		keyword, upload_time, results_file, output_file, total_positions,
		mutation_count, conserved_count, mutated_positions, low_conf_positions
		FROM uploaded_files`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FileEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) removeEntry(e FileEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		_, err := s.db.Exec(`DELETE FROM uploaded_files WHERE id = ?`, e.ID)
		return err
	}
	kept := s.data.Files[:0]
	for _, f := range s.data.Files {
		if f.ID != e.ID {
			kept = append(kept, f)
		}
	}
	s.data.Files = kept
	return s.saveJSON()
}

func filterWorkspace(files []FileEntry, workspace string) []FileEntry {
	out := make([]FileEntry, 0, len(files))
	for _, f := range files {
		if f.Workspace == workspace {
			out = append(out, f)
		}
	}
	return out
}

func sortNewestFirst(files []FileEntry) {
	sort.SliceStable(files, func(i, j int) bool {
		if !files[i].UploadTime.Equal(files[j].UploadTime) {
			return files[i].UploadTime.After(files[j].UploadTime)
		}
		return strings.Compare(files[i].ID, files[j].ID) < 0
	})
}
