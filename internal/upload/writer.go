// Package upload writes uploaded files into project folders without ever
// overwriting an existing entry.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/fruitsalade/docbrowser/internal/logging"
	"github.com/fruitsalade/docbrowser/internal/metrics"
	"github.com/fruitsalade/docbrowser/pkg/models"
)

// MaxConflictProbes is how many numbered alternatives are tried before
// giving up.
const MaxConflictProbes = 100

var (
	// ErrInvalidName is returned when the original name has no basename.
	ErrInvalidName = errors.New("invalid file name")
	// ErrTooManyConflicts is returned when every candidate name is taken.
	ErrTooManyConflicts = errors.New("too many naming conflicts")
)

// Target is a resolved upload folder.
type Target struct {
	Project string
	Dir     string // absolute, already validated
	RelDir  string // relative to the project root, forward slashes
}

// Archiver receives a copy of every saved file.
type Archiver interface {
	Put(ctx context.Context, key, path string) error
}

// Writer saves uploads. Writes into the same directory are serialized.
type Writer struct {
	archiver Archiver

	mu    sync.Mutex
	locks map[string]*dirLock
}

type dirLock struct {
	mu   sync.Mutex
	refs int
}

// NewWriter creates a writer. archiver may be nil.
func NewWriter(archiver Archiver) *Writer {
	return &Writer{
		archiver: archiver,
		locks:    make(map[string]*dirLock),
	}
}

// Write saves r into target.Dir under originalName's basename, or under the
// first free name-N variant if that is taken.
func (w *Writer) Write(ctx context.Context, target Target, originalName string, r io.Reader) (models.UploadResult, error) {
	base := Basename(originalName)
	if base == "" {
		return models.UploadResult{}, ErrInvalidName
	}

	unlock := w.lock(target.Dir)
	saved, size, err := writeUnique(target.Dir, base, r)
	unlock()
	metrics.RecordUpload(size, err == nil)
	if err != nil {
		return models.UploadResult{}, err
	}

	result := models.UploadResult{
		OriginalName: base,
		SavedName:    saved,
		Path:         path.Join(target.RelDir, saved),
	}
	logging.Info("upload saved",
		logging.String("project", target.Project),
		logging.String("path", result.Path),
		logging.Int64("size", size))

	if w.archiver != nil {
		key := path.Join(target.Project, result.Path)
		if err := w.archiver.Put(ctx, key, filepath.Join(target.Dir, saved)); err != nil {
			logging.Warn("upload archive failed", logging.String("key", key), logging.Err(err))
		}
	}
	return result, nil
}

// Basename strips any directory components, with either separator.
func Basename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSpace(name)
	if name == "." || name == ".." || strings.ContainsRune(name, 0) {
		return ""
	}
	return name
}

// Candidate returns the name tried at probe n: the basename itself for 0,
// stem-n.ext otherwise.
func Candidate(base string, n int) string {
	if n == 0 {
		return base
	}
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		// Dotfile such as ".env": treat the whole name as the stem.
		stem, ext = base, ""
	}
	return stem + "-" + strconv.Itoa(n) + ext
}

// writeUnique creates the first free candidate exclusively and copies r
// into it. An entry created by someone else between probes just moves on to
// the next candidate.
func writeUnique(dir, base string, r io.Reader) (string, int64, error) {
	for n := 0; n <= MaxConflictProbes; n++ {
		name := Candidate(base, n)
		full := filepath.Join(dir, name)
		f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", 0, fmt.Errorf("create %s: %w", name, err)
		}

		size, err := io.Copy(f, r)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(full)
			return "", 0, fmt.Errorf("write %s: %w", name, err)
		}
		return name, size, nil
	}
	return "", 0, ErrTooManyConflicts
}

// lock acquires the per-directory mutex and returns its release func.
func (w *Writer) lock(dir string) func() {
	w.mu.Lock()
	l, ok := w.locks[dir]
	if !ok {
		l = &dirLock{}
		w.locks[dir] = l
	}
	l.refs++
	w.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		w.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(w.locks, dir)
		}
		w.mu.Unlock()
	}
}
