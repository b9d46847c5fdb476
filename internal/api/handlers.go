package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/fruitsalade/docbrowser/internal/logging"
	"github.com/fruitsalade/docbrowser/internal/pathsafe"
	"github.com/fruitsalade/docbrowser/internal/upload"
	"github.com/fruitsalade/docbrowser/pkg/models"
	"github.com/fruitsalade/docbrowser/pkg/protocol"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to temporary files.
const multipartMemory = 32 << 20

// ─── Projects ───────────────────────────────────────────────────────────────

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	s.sendData(w, s.scanner.Discover(s.root))
}

// ─── Documents ──────────────────────────────────────────────────────────────

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	path, err := pathsafe.ResolveReadPath(s.root, r.PathValue("project"), r.PathValue("path"))
	if err != nil {
		s.sendErr(w, r, err)
		return
	}

	res, err := s.renderer.RenderFile(path)
	if err != nil {
		s.sendErr(w, r, err)
		return
	}
	s.sendData(w, protocol.RenderResponse{HTML: res.HTML, TOC: res.TOC})
}

func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	path, err := pathsafe.ResolveReadPath(s.root, r.PathValue("project"), r.PathValue("path"))
	if err != nil {
		s.sendErr(w, r, err)
		return
	}

	f, err := openFile(path)
	if err != nil {
		s.sendErr(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := io.Copy(w, f); err != nil {
		logging.WithContext(r.Context()).Warn("raw transfer error", logging.Err(err))
	}
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	path, err := pathsafe.ResolveAssetPath(s.root, r.PathValue("project"), r.PathValue("path"))
	if err != nil {
		s.sendErr(w, r, err)
		return
	}

	f, err := openFile(path)
	if err != nil {
		s.sendErr(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.sendErr(w, r, err)
		return
	}

	w.Header().Set("Content-Type", models.ContentTypeFor(path))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// openFile opens a regular file; directories count as missing.
func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory: %w", info.Name(), os.ErrNotExist)
	}
	return f, nil
}

// ─── Search ─────────────────────────────────────────────────────────────────

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := s.searchMax
	if v := query.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = min(max(n, 1), maxSearchLimit)
		}
	}
	s.sendData(w, s.index.Search(query.Get("q"), limit))
}

// ─── Upload ─────────────────────────────────────────────────────────────────

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	folder := r.PathValue("folder")

	dir, err := pathsafe.ResolveUploadDir(s.root, project, folder)
	if err != nil {
		s.sendErr(w, r, err)
		return
	}
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		s.sendError(w, http.StatusNotFound, "Folder not found")
		return
	}
	if err != nil {
		s.sendErr(w, r, err)
		return
	}
	if !info.IsDir() {
		s.sendError(w, http.StatusBadRequest, "Target is not a directory")
		return
	}

	if r.ContentLength > s.maxUploadSize {
		s.sendError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Upload too large: max %d bytes", s.maxUploadSize))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			s.sendErr(w, r, err)
			return
		}
		s.sendError(w, http.StatusBadRequest, "Expected multipart form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.sendError(w, http.StatusBadRequest, "No files provided")
		return
	}

	projectDir, err := pathsafe.ProjectDir(s.root, project)
	if err != nil {
		s.sendErr(w, r, err)
		return
	}
	target := upload.Target{
		Project: project,
		Dir:     dir,
		RelDir:  pathsafe.RelSlash(projectDir, dir),
	}

	results := make([]models.UploadResult, 0, len(files))
	var writeErr error
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeErr = err
			break
		}
		res, err := s.writer.Write(r.Context(), target, fh.Filename, f)
		f.Close()
		if err != nil {
			writeErr = err
			break
		}
		results = append(results, res)
	}

	if len(results) > 0 && s.notifier != nil {
		s.notifier.TreeChanged()
	}
	if writeErr != nil {
		s.sendErr(w, r, writeErr)
		return
	}
	s.sendData(w, results)
}

// ─── UI ─────────────────────────────────────────────────────────────────────

func (s *Server) handleHighlightCSS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(s.renderer.Stylesheet())
}
