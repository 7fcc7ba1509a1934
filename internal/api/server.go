package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/canopy.report/internal/fsutil"
	"github.com/banshee-data/canopy.report/internal/httputil"
	"github.com/banshee-data/canopy.report/internal/runs"
	"github.com/banshee-data/canopy.report/internal/security"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// defaultListLimit caps /api/runs when no limit is given.
const defaultListLimit = 50

// Server exposes the run history over HTTP.
type Server struct {
	store      *runs.Store
	fs         fsutil.FileSystem
	reportDirs []string
}

// NewServer returns a Server reading runs from store and report files
// from fsys. A nil fsys uses the OS filesystem.
func NewServer(store *runs.Store, fsys fsutil.FileSystem) *Server {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &Server{store: store, fs: fsys}
}

// AllowReportDirs restricts /runs/{id}/report to report files within dirs.
// With no directories configured any recorded report path is served.
func (s *Server) AllowReportDirs(dirs ...string) {
	s.reportDirs = dirs
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the API routes.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/runs", s.listRuns)
	mux.HandleFunc("/api/runs/{id}", s.getRun)
	mux.HandleFunc("/runs/{id}/report", s.showReport)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"status":    "ok",
		"service":   "canopy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := s.store.ListRuns(limit)
	if err != nil {
		httputil.InternalServerError(w, "failed to list runs")
		log.Printf("[api] list runs: %v", err)
		return
	}
	if list == nil {
		list = []*runs.Run{}
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"runs":  list,
		"count": len(list),
	})
}

// lookup resolves the {id} path value, writing the error response itself
// when the run cannot be returned.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*runs.Run, bool) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return nil, false
	}
	id := r.PathValue("id")
	run, err := s.store.GetRun(id)
	if errors.Is(err, runs.ErrNotFound) {
		httputil.NotFound(w, "run not found")
		return nil, false
	}
	if err != nil {
		httputil.InternalServerError(w, "failed to load run")
		log.Printf("[api] get run %s: %v", id, err)
		return nil, false
	}
	return run, true
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	httputil.WriteJSONOK(w, run)
}

func (s *Server) showReport(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if run.ReportPath == "" {
		httputil.NotFound(w, "run has no HTML report")
		return
	}
	if len(s.reportDirs) > 0 {
		if err := security.ValidatePathWithinAllowedDirs(run.ReportPath, s.reportDirs); err != nil {
			httputil.Forbidden(w, "report is outside the served directories")
			log.Printf("[api] refused report %s: %v", run.ReportPath, err)
			return
		}
	}
	data, err := s.fs.ReadFile(run.ReportPath)
	if err != nil {
		httputil.NotFound(w, "report file is no longer available")
		log.Printf("[api] read report %s: %v", run.ReportPath, err)
		return
	}
	httputil.WriteHTML(w, data)
}

// Start serves handler on address until ctx is cancelled.
func Start(ctx context.Context, address string, handler http.Handler) error {
	server := &http.Server{
		Addr:    address,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting HTTP server on %s", address)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
	return nil
}
