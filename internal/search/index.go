// Package search implements the in-memory full-text index over markdown
// documents.
package search

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/fruitsalade/docbrowser/internal/catalog"
	"github.com/fruitsalade/docbrowser/internal/logging"
	"github.com/fruitsalade/docbrowser/internal/metrics"
	"github.com/fruitsalade/docbrowser/pkg/models"
)

const (
	// MinQueryLength is the shortest query that is searched at all.
	MinQueryLength = 2
	// DefaultMaxResults bounds the results of a search.
	DefaultMaxResults = 20
	// snippetRadius is the number of characters kept on each side of a match.
	snippetRadius = 50
	ellipsis      = "..."
)

// Entry is one indexed document.
type Entry struct {
	Project  string
	Path     string // relative to the project root
	Filename string
	Content  string // lowercased
}

// snapshot is an immutable index generation.
type snapshot struct {
	entries []Entry
	builtAt time.Time
}

// Index holds the current snapshot. Readers load it without locking;
// Rebuild builds a new snapshot and swaps it in.
type Index struct {
	root    string
	scanner *catalog.Scanner

	current   atomic.Pointer[snapshot]
	rebuildMu sync.Mutex
}

// NewIndex creates an empty index over the projects under root.
func NewIndex(root string, scanner *catalog.Scanner) *Index {
	idx := &Index{root: root, scanner: scanner}
	idx.current.Store(&snapshot{})
	return idx
}

// Rebuild re-reads every markdown document and atomically replaces the
// index. Unreadable files are skipped. Concurrent calls are serialized so an
// older generation never replaces a newer one. It returns ctx.Err() if
// cancelled, leaving the previous snapshot in place.
func (idx *Index) Rebuild(ctx context.Context) error {
	idx.rebuildMu.Lock()
	defer idx.rebuildMu.Unlock()

	start := time.Now()
	var entries []Entry
	for _, p := range idx.scanner.Projects(idx.root) {
		if err := ctx.Err(); err != nil {
			return err
		}
		tree := idx.scanner.BuildTree(p.Dir, p.Dir)
		models.Walk(tree, func(n *models.FileNode) {
			if n.IsFolder() || n.IsAsset {
				return
			}
			data, err := os.ReadFile(filepath.Join(p.Dir, filepath.FromSlash(n.Path)))
			if err != nil {
				logging.Debug("search: skipped unreadable document",
					logging.String("project", p.Name),
					logging.String("path", n.Path),
					logging.Err(err))
				return
			}
			entries = append(entries, Entry{
				Project:  p.Name,
				Path:     n.Path,
				Filename: n.Name,
				Content:  strings.ToLower(string(data)),
			})
		})
	}

	idx.current.Store(&snapshot{entries: entries, builtAt: time.Now()})

	elapsed := time.Since(start)
	metrics.RecordSearchRebuild(elapsed)
	metrics.SetSearchIndexSize(len(entries))
	logging.Info("search index rebuilt",
		logging.Int("documents", len(entries)),
		logging.Duration("duration", elapsed))
	return nil
}

// Search returns up to maxResults documents containing query, in index
// order. Queries shorter than MinQueryLength characters after trimming
// yield no results. A non-positive maxResults means DefaultMaxResults.
func (idx *Index) Search(query string, maxResults int) []models.SearchResult {
	results := make([]models.SearchResult, 0)
	q := strings.ToLower(strings.TrimSpace(query))
	if utf8.RuneCountInString(q) < MinQueryLength {
		return results
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	metrics.RecordSearchQuery()

	snap := idx.current.Load()
	for _, e := range snap.entries {
		pos := strings.Index(e.Content, q)
		if pos < 0 {
			continue
		}
		results = append(results, models.SearchResult{
			Project:  e.Project,
			Path:     e.Path,
			Filename: e.Filename,
			Snippet:  Snippet(e.Content, pos, len(q)),
		})
		if len(results) >= maxResults {
			break
		}
	}
	return results
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	return len(idx.current.Load().entries)
}

// BuiltAt returns when the current snapshot was built; zero before the
// first rebuild.
func (idx *Index) BuiltAt() time.Time {
	return idx.current.Load().builtAt
}

// Snippet cuts a window of snippetRadius characters around the match at
// byte offset pos with byte length n. Newlines become spaces, the window is
// trimmed, and ellipses mark sides that were cut short of the content.
func Snippet(content string, pos, n int) string {
	start := pos
	for i := 0; i < snippetRadius && start > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(content[:start])
		start -= size
	}
	end := pos + n
	for i := 0; i < snippetRadius && end < len(content); i++ {
		_, size := utf8.DecodeRuneInString(content[end:])
		end += size
	}

	window := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(content[start:end])
	window = strings.TrimSpace(window)
	if start > 0 {
		window = ellipsis + window
	}
	if end < len(content) {
		window += ellipsis
	}
	return window
}
