// Package api provides the HTTP server and handlers.
package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/fruitsalade/docbrowser/internal/catalog"
	"github.com/fruitsalade/docbrowser/internal/events"
	"github.com/fruitsalade/docbrowser/internal/logging"
	"github.com/fruitsalade/docbrowser/internal/metrics"
	"github.com/fruitsalade/docbrowser/internal/pathsafe"
	"github.com/fruitsalade/docbrowser/internal/render"
	"github.com/fruitsalade/docbrowser/internal/search"
	"github.com/fruitsalade/docbrowser/internal/upload"
	"github.com/fruitsalade/docbrowser/pkg/protocol"
)

// maxSearchLimit caps the limit query parameter of /api/search.
const maxSearchLimit = 100

// TreeNotifier is told about tree changes made through the API.
type TreeNotifier interface {
	TreeChanged()
}

// Config holds the server settings.
type Config struct {
	ProjectsDir      string
	MaxUploadSize    int64
	SearchMaxResults int
	WebappDir        string
}

// Deps bundles the components the server exposes.
type Deps struct {
	Scanner     *catalog.Scanner
	Index       *search.Index
	Renderer    *render.Renderer
	Writer      *upload.Writer
	Broadcaster *events.Broadcaster
	Notifier    TreeNotifier
}

// Server is the HTTP server.
type Server struct {
	root          string
	maxUploadSize int64
	searchMax     int
	webappDir     string

	scanner     *catalog.Scanner
	index       *search.Index
	renderer    *render.Renderer
	writer      *upload.Writer
	broadcaster *events.Broadcaster
	notifier    TreeNotifier

	started time.Time
}

// NewServer creates a new server.
func NewServer(cfg Config, deps Deps) *Server {
	searchMax := cfg.SearchMaxResults
	if searchMax <= 0 {
		searchMax = search.DefaultMaxResults
	}
	return &Server{
		root:          cfg.ProjectsDir,
		maxUploadSize: cfg.MaxUploadSize,
		searchMax:     searchMax,
		webappDir:     cfg.WebappDir,
		scanner:       deps.Scanner,
		index:         deps.Index,
		renderer:      deps.Renderer,
		writer:        deps.Writer,
		broadcaster:   deps.Broadcaster,
		notifier:      deps.Notifier,
		started:       time.Now(),
	}
}

// Handler returns the HTTP handler with logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	// Documents
	mux.HandleFunc("GET /api/projects", s.handleProjects)
	mux.HandleFunc("GET /api/render/{project}/{path...}", s.handleRender)
	mux.HandleFunc("GET /api/raw/{project}/{path...}", s.handleRaw)
	mux.HandleFunc("GET /api/file/{project}/{path...}", s.handleFile)
	mux.HandleFunc("GET /api/search", s.handleSearch)

	// Uploads
	mux.HandleFunc("POST /api/upload/{project}", s.handleUpload)
	mux.HandleFunc("POST /api/upload/{project}/{folder...}", s.handleUpload)

	// Live reload
	mux.HandleFunc("GET /ws", s.handleLive)

	// UI
	mux.HandleFunc("GET /assets/highlight.css", s.handleHighlightCSS)
	mux.Handle("GET /", s.appHandler())

	return logging.Middleware(metrics.Middleware(mux))
}

// ─── Health ─────────────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"documents":     s.index.Len(),
		"indexBuiltAt":  s.index.BuiltAt(),
		"liveClients":   s.broadcaster.Count(),
		"uptimeSeconds": int64(time.Since(s.started).Seconds()),
	})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (s *Server) sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) sendData(w http.ResponseWriter, data any) {
	s.sendJSON(w, http.StatusOK, protocol.DataResponse{Data: data})
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	s.sendJSON(w, code, protocol.ErrorResponse{Error: message})
}

// sendErr maps err to a status and a client-safe message. Server errors are
// logged with the request's logger; their details never reach the client.
func (s *Server) sendErr(w http.ResponseWriter, r *http.Request, err error) {
	code, message := statusFor(err)
	if code >= http.StatusInternalServerError {
		logging.WithContext(r.Context()).Error("request failed",
			logging.String("path", r.URL.Path),
			logging.Err(err))
	}
	s.sendError(w, code, message)
}

// statusFor is the single mapping from errors to HTTP responses.
func statusFor(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, pathsafe.ErrRejected):
		return http.StatusBadRequest, "Invalid path"
	case errors.Is(err, upload.ErrInvalidName):
		return http.StatusBadRequest, "Invalid file name"
	case errors.Is(err, upload.ErrTooManyConflicts):
		return http.StatusInternalServerError, "Too many naming conflicts"
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "Upload too large"
	case errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound, "Not found"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
