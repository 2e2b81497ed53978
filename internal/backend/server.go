package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MaxImageSize bounds an uploaded image.
const MaxImageSize = 256 << 20

// stateFile holds the configured path inside the data directory.
const stateFile = "server.json"

// serverState is persisted so the configured path survives restarts.
type serverState struct {
	Path *string `json:"path"`
}

// Server is a reference implementation of the remote backend contract.
// Images are stored on local disk at the configured path; relative paths
// resolve against the data directory.
type Server struct {
	dataDir    string
	mu         sync.RWMutex
	state      serverState
	httpServer *http.Server
	handler    http.Handler
	startTime  time.Time
	metrics    *serverMetrics
}

// serverMetrics counts requests served, by route and status.
type serverMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)
	return &serverMetrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cyclelog_server_requests_total",
				Help: "Total backend server requests",
			},
			[]string{"method", "path", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cyclelog_server_request_duration_seconds",
				Help:    "Backend server request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// NewServer creates a server rooted at dataDir, loading any saved path.
// When reg is non-nil the server records request metrics in it and exposes
// it on /metrics.
func NewServer(addr, dataDir string, reg *prometheus.Registry) (*Server, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("new server: data dir is empty")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("new server: create data dir: %w", err)
	}

	s := &Server{dataDir: dataDir, startTime: time.Now()}
	if err := s.loadState(); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /db", s.getImageHandler)
	mux.HandleFunc("POST /db", s.putImageHandler)
	mux.HandleFunc("GET /db/path", s.getPathHandler)
	mux.HandleFunc("POST /db/path", s.setPathHandler)
	mux.HandleFunc("DELETE /db/path", s.clearPathHandler)
	mux.HandleFunc("GET /db/info", s.infoHandler)
	if reg != nil {
		s.metrics = newServerMetrics(reg)
		mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	s.handler = s.logRequests(mux)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the HTTP handler, for mounting in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("backend server starting", "addr", s.httpServer.Addr, "data_dir", s.dataDir)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) loadState() error {
	data, err := os.ReadFile(filepath.Join(s.dataDir, stateFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load server state: %w", err)
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		return fmt.Errorf("load server state: %w", err)
	}
	return nil
}

// saveState must be called with mu held for writing.
func (s *Server) saveState() error {
	data, err := json.Marshal(s.state)
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.dataDir, stateFile), data, 0o600)
}

// imagePath returns the configured path, or "" when none.
func (s *Server) imagePath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Path == nil {
		return ""
	}
	return *s.state.Path
}

func (s *Server) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(s.dataDir, path)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) getImageHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/octet-stream")
	path := s.imagePath()
	if path == "" {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.mu.RLock()
	data, err := os.ReadFile(path)
	s.mu.RUnlock()
	if os.IsNotExist(err) {
		w.WriteHeader(http.StatusOK)
		return
	}
	if err != nil {
		slog.Error("read image", "path", path, "error", err)
		http.Error(w, "read image failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) putImageHandler(w http.ResponseWriter, r *http.Request) {
	path := s.imagePath()
	if path == "" {
		http.Error(w, "no database path configured", http.StatusConflict)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxImageSize))
	if err != nil {
		http.Error(w, "read body failed", http.StatusRequestEntityTooLarge)
		return
	}

	s.mu.Lock()
	err = writeFileAtomic(path, data, 0o600)
	s.mu.Unlock()
	if err != nil {
		slog.Error("write image", "path", path, "error", err)
		http.Error(w, "write image failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"bytes": len(data)})
}

func (s *Server) getPathHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	body := pathBody{Path: s.state.Path}
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) setPathHandler(w http.ResponseWriter, r *http.Request) {
	var body pathBody
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&body); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if body.Path == nil || *body.Path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}
	resolved := s.resolve(*body.Path)

	s.mu.Lock()
	s.state.Path = &resolved
	err := s.saveState()
	s.mu.Unlock()
	if err != nil {
		slog.Error("save server state", "error", err)
		http.Error(w, "save state failed", http.StatusInternalServerError)
		return
	}
	slog.Info("database path configured", "path", resolved)
	writeJSON(w, http.StatusOK, pathBody{Path: &resolved})
}

func (s *Server) clearPathHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.state.Path = nil
	err := s.saveState()
	s.mu.Unlock()
	if err != nil {
		slog.Error("save server state", "error", err)
		http.Error(w, "save state failed", http.StatusInternalServerError)
		return
	}
	slog.Info("database path cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) infoHandler(w http.ResponseWriter, r *http.Request) {
	path := s.imagePath()
	info := Info{Configured: path != "", Path: path}
	if path != "" {
		s.mu.RLock()
		st, err := os.Stat(path)
		s.mu.RUnlock()
		if err == nil {
			modified := st.ModTime().UTC()
			info.ModifiedAt = &modified
		}
	}
	writeJSON(w, http.StatusOK, info)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if s.metrics != nil {
			path := r.URL.Path
			if rec.status == http.StatusNotFound {
				path = "other"
			}
			s.metrics.requests.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
			s.metrics.duration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		}
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"request_id", r.Header.Get(RequestIDHeader),
			"duration", time.Since(start),
		)
	})
}
