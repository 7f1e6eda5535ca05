package server

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/sitesense/sitesense/internal/auditor"
	"github.com/sitesense/sitesense/internal/crawler"
	"github.com/sitesense/sitesense/internal/logging"
	"github.com/sitesense/sitesense/internal/orchestrator"
	"github.com/sitesense/sitesense/internal/registry"
	"github.com/sitesense/sitesense/internal/snapshot"
	"github.com/sitesense/sitesense/internal/utils"
	"github.com/sitesense/sitesense/internal/webclient"

	_ "github.com/sitesense/sitesense/docs/swagger" // generated API docs
	_ "modernc.org/sqlite"                          // SQLite driver
)

// Server is the HTTP + WebSocket API surface for SiteSense.
type Server struct {
	cfg          Config
	orchestrator *orchestrator.Orchestrator
	store        registry.Store
	wc           webclient.WebClient
	router       chi.Router
	upgrader     websocket.Upgrader
	logger       logging.Logger
}

// NewServer creates a new Server with its own Orchestrator.
func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}

	if cfg.StorageRoot == "" {
		cfg.StorageRoot = "sitesense-data"
	}

	// Make sure storage root exists
	storageRoot, err := expandPath(cfg.StorageRoot)
	if err != nil {
		return nil, fmt.Errorf("expanding storage root path: %w", err)
	}
	cfg.StorageRoot = storageRoot

	snapshots, err := snapshot.NewStore(cfg.StorageRoot)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot store: %w", err)
	}

	var store registry.Store
	if cfg.Persist {
		db, err := sql.Open("sqlite", filepath.Join(cfg.StorageRoot, "scans.db"))
		if err != nil {
			return nil, fmt.Errorf("opening registry database: %w", err)
		}
		store, err = registry.NewSQLiteStore(db, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("creating registry: %w", err)
		}
	} else {
		store = registry.NewMemoryStore()
	}

	s := &Server{
		cfg:    cfg,
		store:  store,
		router: chi.NewRouter(),
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: tighten for production
				return true
			},
		},
	}

	adapters := cfg.Adapters
	if adapters == nil {
		wc, err := webclient.New(cfg.WebClient, logger)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("creating webclient: %w", err)
		}
		s.wc = wc
		adapters = &orchestrator.Adapters{
			Crawler:       crawler.NewSpider(wc, 10, logger),
			Performance:   auditor.NewPerformanceAuditor(wc, logger),
			Accessibility: auditor.NewAccessibilityAuditor(wc, logger),
			Security:      auditor.NewSecurityAuditor(nil, logger),
		}
	}

	s.orchestrator = orchestrator.New(cfg.ScanConfig, store, snapshots, *adapters, logger)

	s.routes()
	return s, nil
}

// Orchestrator returns the underlying orchestrator for advanced use (tests, etc.).
func (s *Server) Orchestrator() *orchestrator.Orchestrator {
	return s.orchestrator
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/scan", s.optionsHandler("POST"))
	r.Options("/scan/{scanID}", s.optionsHandler("GET"))
	r.Options("/scan/{scanID}/compare/{otherID}", s.optionsHandler("GET"))
	r.Options("/scans", s.optionsHandler("GET"))
	r.Options("/health", s.optionsHandler("GET"))

	r.Post("/scan", s.handleStartScan)
	r.Get("/scan/{scanID}", s.handleGetScan)
	r.Get("/scan/{scanID}/compare/{otherID}", s.handleCompareScans)
	r.Get("/scans", s.handleListScans)
	r.Get("/health", s.handleHealth)

	// WebSocket for scan progress
	r.Get("/ws/scan/{scanID}", s.handleScanWS)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler. Every request gets a generated id
// echoed in the X-Request-ID response header and attached to its logs.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.New().String()
	}
	w.Header().Set("X-Request-ID", requestID)

	fields := []logging.Field{
		{Key: "request_id", Value: requestID},
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
		if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			fields = append(fields, logging.Field{Key: "body", Value: string(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// Close shuts down the orchestrator and underlying resources.
func (s *Server) Close() {
	if s.orchestrator != nil {
		s.orchestrator.Close()
	}
	if s.wc != nil {
		s.wc.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // allow streaming
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func scanIDParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// --- HTTP handlers ---

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	var body StartScanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	url, err := utils.ValidateScanURL(body.URL)
	if err != nil {
		s.logger.Warn("rejecting scan target", logging.Field{Key: "url", Value: body.URL}, logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.orchestrator.StartScan(r.Context(), url)
	if err != nil {
		s.logger.Warn("starting scan", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("started scan", logging.Field{Key: "scan_id", Value: rec.ID}, logging.Field{Key: "url", Value: url})
	writeJSON(w, http.StatusAccepted, StartScanResponse{
		ScanID:  rec.ID,
		Status:  string(rec.Status),
		Message: "Scan started for " + url,
	})
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	id, err := scanIDParam(r, "scanID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid scan id")
		return
	}

	rec, err := s.orchestrator.GetScan(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		s.logger.Warn("getting scan", logging.Field{Key: "scan_id", Value: id}, logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	scans, err := s.orchestrator.ListScans(r.Context())
	if err != nil {
		s.logger.Warn("listing scans", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("listed scans", logging.Field{Key: "count", Value: len(scans)})
	writeJSON(w, http.StatusOK, scans)
}

func (s *Server) handleCompareScans(w http.ResponseWriter, r *http.Request) {
	baseID, err := scanIDParam(r, "scanID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid scan id")
		return
	}
	headID, err := scanIDParam(r, "otherID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid scan id")
		return
	}

	diff, err := s.orchestrator.CompareScans(r.Context(), baseID, headID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		s.logger.Warn("comparing scans", logging.Field{Key: "error", Value: err.Error()})
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Timestamp: time.Now()})
}

// --- WebSockets ---

func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	id, err := scanIDParam(r, "scanID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid scan id")
		return
	}

	events, cancel, err := s.orchestrator.Subscribe(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	// Send the current record first so late subscribers see where the
	// scan stands before the event stream resumes.
	if rec, err := s.orchestrator.GetScan(r.Context(), id); err == nil {
		_ = conn.WriteJSON(rec)
	}

	for ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			// Assume client disconnected
			return
		}
	}

	// Channel closed: the scan is terminal. Send the final record.
	if rec, err := s.orchestrator.GetScan(r.Context(), id); err == nil {
		_ = conn.WriteJSON(rec)
	}
}

func expandPath(p string) (string, error) {
	if len(p) > 0 && p[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, p[1:]), nil
	}
	return p, nil
}
