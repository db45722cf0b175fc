package main

import (
	"flag"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mutfreq/internal/config"
	"mutfreq/internal/store"
)

var templates *template.Template

func loadTemplates(dir string) error {
	t := template.New("")
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".html") {
			if _, err := t.ParseFiles(path); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	templates = t
	return nil
}

// statusResponseWriter captures status and bytes written for logging
type statusResponseWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

// loggingMiddleware logs each request with method, path, status, size and duration
func loggingMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusResponseWriter{ResponseWriter: w}
		next.ServeHTTP(srw, r)
		if srw.status == 0 {
			srw.status = http.StatusOK
		}
		duration := time.Since(start)
		logger.Printf("%s - %s %s %d %dB %s %q",
			r.RemoteAddr, r.Method, r.URL.RequestURI(), srw.status, srw.written, duration, r.UserAgent())
	})
}

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	configFlag := flag.String("config", "", "path to config.json (optional)")
	templatesDir := flag.String("templates", "web/templates", "directory with HTML templates")
	uploadDir := flag.String("uploads", "uploads", "directory for uploaded files and results")
	storeBackend := flag.String("store", "json", "history store backend: json or sqlite")
	storePath := flag.String("store-path", "", "history store path (default: <uploads>/history.json or .db)")
	keyword := flag.String("keyword", "", "access keyword required for uploads and API calls (optional)")
	logFile := flag.String("log", "", "path to write access logs (optional). If empty, logs go to stdout only")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFlag)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Addr == "" {
		cfg.Addr = *addr
	}
	if cfg.TemplatesDir == "" {
		cfg.TemplatesDir = *templatesDir
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = *uploadDir
	}
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = *storeBackend
	}
	if cfg.StorePath == "" {
		cfg.StorePath = *storePath
	}
	if cfg.AccessKeyword == "" {
		cfg.AccessKeyword = *keyword
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 3 * 1024 // 3GB for very large genomic datasets
	}
	if cfg.StorePath == "" {
		ext := "json"
		if cfg.StoreBackend == "sqlite" {
			ext = "db"
		}
		cfg.StorePath = filepath.Join(cfg.UploadDir, "history."+ext)
	}

	if err := loadTemplates(cfg.TemplatesDir); err != nil {
		log.Fatalf("failed to load templates: %v", err)
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("failed to create upload dir: %v", err)
	}

	st, err := store.Open(cfg.StoreBackend, cfg.StorePath, cfg.HistoryLimit)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer st.Close()

	// reconcile history with what is actually on disk before serving
	if entries, orphans, err := st.Integrity(cfg.UploadDir); err != nil {
		log.Printf("warning: integrity sweep failed: %v", err)
	} else if entries > 0 || orphans > 0 {
		log.Printf("integrity sweep: removed %d dangling entries, %d orphaned files", entries, orphans)
	}

	srv := newServer(cfg, st)
	mux := srv.routes()

	// configure logger
	var out io.Writer = os.Stdout
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.Fatalf("failed to open log file: %v", err)
		}
		out = io.MultiWriter(os.Stdout, f)
	}
	logger := log.New(out, "mutfreq: ", log.LstdFlags)

	handler := loggingMiddleware(logger, mux)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// no body read timeout: alignment uploads can run to gigabytes
	}
	fmt.Printf("serving mutation dashboard at http://%s/ (uploads=%s store=%s)\n", cfg.Addr, cfg.UploadDir, cfg.StoreBackend)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
