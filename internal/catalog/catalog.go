// Package catalog builds project file trees from the projects directory.
package catalog

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/fruitsalade/docbrowser/internal/logging"
	"github.com/fruitsalade/docbrowser/internal/metrics"
	"github.com/fruitsalade/docbrowser/internal/pathsafe"
	"github.com/fruitsalade/docbrowser/pkg/models"
)

// SkipReason explains why a directory entry was left out of a tree.
type SkipReason string

const (
	SkipHidden     SkipReason = "hidden"
	SkipExcluded   SkipReason = "excluded"
	SkipStat       SkipReason = "stat"
	SkipEmpty      SkipReason = "empty"
	SkipUnreadable SkipReason = "unreadable"
	SkipCycle      SkipReason = "cycle"
	SkipOutside    SkipReason = "outside"
)

// visit is the per-entry outcome of a walk: either a node or a skip reason.
type visit struct {
	node *models.FileNode
	skip SkipReason
	err  error
}

// Project is a top-level project directory.
type Project struct {
	Name string
	Dir  string
}

// Scanner walks project directories applying the exclusion rules.
// It holds no mutable state and is safe for concurrent use.
type Scanner struct {
	exclude map[string]struct{}
}

// NewScanner creates a scanner that skips directories named in exclude.
func NewScanner(exclude []string) *Scanner {
	s := &Scanner{exclude: make(map[string]struct{}, len(exclude))}
	for _, name := range exclude {
		s.exclude[name] = struct{}{}
	}
	return s
}

// Ignored reports whether a directory with this name is never walked.
func (s *Scanner) Ignored(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := s.exclude[name]
	return ok
}

// Projects lists the project directories directly under root, sorted by name.
// An unreadable root yields no projects.
func (s *Scanner) Projects(root string) []Project {
	entries, err := os.ReadDir(root)
	if err != nil {
		logging.Debug("catalog: projects root unreadable", logging.String("root", root), logging.Err(err))
		return nil
	}
	boundary := canonical(root)

	var projects []Project
	for _, entry := range entries {
		name := entry.Name()
		if s.Ignored(name) {
			continue
		}
		dir := filepath.Join(root, name)
		info, err := os.Stat(dir)
		if err != nil {
			logSkip(name, SkipStat, err)
			continue
		}
		if !info.IsDir() {
			continue
		}
		if target := canonical(dir); target == boundary || !pathsafe.Contains(boundary, target) {
			logSkip(name, SkipOutside, nil)
			continue
		}
		projects = append(projects, Project{Name: name, Dir: dir})
	}
	return projects
}

// Discover returns every project under root whose tree is non-empty.
func (s *Scanner) Discover(root string) []models.ProjectInfo {
	projects := make([]models.ProjectInfo, 0)
	for _, p := range s.Projects(root) {
		tree := s.BuildTree(p.Dir, p.Dir)
		if len(tree) == 0 {
			continue
		}
		projects = append(projects, models.ProjectInfo{
			Name:          p.Name,
			HasDocsFolder: isDir(filepath.Join(p.Dir, "docs")),
			Tree:          tree,
		})
	}
	metrics.SetProjectsDiscovered(len(projects))
	return projects
}

// BuildTree walks dir and returns its qualifying entries. Node paths are
// relative to projectRoot, which also bounds where symlinks may point.
// Entries that cannot be read are skipped; the walk never fails as a whole.
func (s *Scanner) BuildTree(dir, projectRoot string) []*models.FileNode {
	w := &walker{
		scanner:  s,
		boundary: canonical(projectRoot),
	}
	rel := pathsafe.RelSlash(projectRoot, dir)
	info, err := os.Stat(dir)
	if err != nil {
		logSkip(rel, SkipStat, err)
		return []*models.FileNode{}
	}
	w.ancestors = []os.FileInfo{info}
	return w.children(dir, rel)
}

type walker struct {
	scanner   *Scanner
	boundary  string
	ancestors []os.FileInfo
}

// children lists dir in byte-wise name order (os.ReadDir sorts by filename)
// and keeps whatever entries qualify.
func (w *walker) children(dir, rel string) []*models.FileNode {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logSkip(rel, SkipUnreadable, err)
		return []*models.FileNode{}
	}

	nodes := make([]*models.FileNode, 0, len(entries))
	for _, entry := range entries {
		v := w.visit(dir, rel, entry)
		if v.node == nil {
			if v.skip != SkipHidden {
				logSkip(path.Join(rel, entry.Name()), v.skip, v.err)
			}
			continue
		}
		nodes = append(nodes, v.node)
	}
	return nodes
}

func (w *walker) visit(dir, rel string, entry fs.DirEntry) visit {
	name := entry.Name()
	if strings.HasPrefix(name, ".") {
		return visit{skip: SkipHidden}
	}

	full := filepath.Join(dir, name)
	info, err := os.Stat(full)
	if err != nil {
		return visit{skip: SkipStat, err: err}
	}
	if entry.Type()&fs.ModeSymlink != 0 {
		if target := canonical(full); !pathsafe.Contains(w.boundary, target) {
			return visit{skip: SkipOutside}
		}
	}

	childRel := path.Join(rel, name)

	if info.IsDir() {
		if w.scanner.Ignored(name) {
			return visit{skip: SkipExcluded}
		}
		for _, anc := range w.ancestors {
			if os.SameFile(anc, info) {
				return visit{skip: SkipCycle}
			}
		}
		w.ancestors = append(w.ancestors, info)
		children := w.children(full, childRel)
		w.ancestors = w.ancestors[:len(w.ancestors)-1]
		if len(children) == 0 {
			return visit{skip: SkipEmpty}
		}
		return visit{node: &models.FileNode{
			Name:     name,
			Path:     childRel,
			Type:     models.TypeFolder,
			Children: children,
		}}
	}

	if !info.Mode().IsRegular() {
		return visit{skip: SkipStat}
	}
	if info.Size() == 0 {
		return visit{skip: SkipEmpty}
	}
	return visit{node: &models.FileNode{
		Name:    name,
		Path:    childRel,
		Type:    models.TypeFile,
		IsAsset: !models.IsMarkdown(name),
	}}
}

func logSkip(rel string, reason SkipReason, err error) {
	if err != nil {
		logging.Debug("catalog: skipped entry",
			logging.String("path", rel),
			logging.String("reason", string(reason)),
			logging.Err(err))
		return
	}
	logging.Debug("catalog: skipped entry",
		logging.String("path", rel),
		logging.String("reason", string(reason)))
}

// canonical returns path with symlinks evaluated, or the cleaned absolute
// path when evaluation fails.
func canonical(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return filepath.Clean(p)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
