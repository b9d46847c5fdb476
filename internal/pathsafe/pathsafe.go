// Package pathsafe resolves client-supplied project paths to absolute paths
// that are guaranteed to stay inside the project directory.
//
// Every check compares canonical paths: absolute, cleaned and with symlinks
// in the existing portion of the path evaluated. A path that does not exist
// yet is not rejected; the caller decides whether that means 404.
package pathsafe

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/fruitsalade/docbrowser/pkg/models"
)

// ErrRejected marks a path that fails validation (traversal, bad project
// name, wrong file type). Callers map it to a client error.
var ErrRejected = errors.New("invalid path")

// ResolveReadPath resolves a markdown document for the render and raw
// endpoints.
func ResolveReadPath(root, project, rel string) (string, error) {
	target, err := resolve(root, project, rel)
	if err != nil {
		return "", err
	}
	if !models.IsMarkdown(target) {
		return "", fmt.Errorf("%w: not a markdown file", ErrRejected)
	}
	return target, nil
}

// ResolveUploadDir resolves an upload target folder. An empty folder means
// the project directory itself.
func ResolveUploadDir(root, project, folder string) (string, error) {
	return resolve(root, project, folder)
}

// ResolveAssetPath resolves any file inside a project.
func ResolveAssetPath(root, project, rel string) (string, error) {
	return resolve(root, project, rel)
}

// ProjectDir resolves the directory of a project. The project must be a
// single non-hidden path segment naming a strict child of root.
func ProjectDir(root, project string) (string, error) {
	if !validSegment(project) {
		return "", fmt.Errorf("%w: bad project name", ErrRejected)
	}
	rootCanon, err := canonicalize(root)
	if err != nil {
		return "", err
	}
	dir, err := canonicalize(filepath.Join(rootCanon, project))
	if err != nil {
		return "", err
	}
	if dir == rootCanon || !Contains(rootCanon, dir) {
		return "", fmt.Errorf("%w: project outside root", ErrRejected)
	}
	return dir, nil
}

// Contains reports whether path equals boundary or lies beneath it. Both
// arguments are cleaned but not otherwise canonicalized.
func Contains(boundary, path string) bool {
	path = filepath.Clean(path)
	boundary = filepath.Clean(boundary)
	if runtime.GOOS == "windows" {
		path = strings.ToLower(path)
		boundary = strings.ToLower(boundary)
	}
	if path == boundary {
		return true
	}
	sep := string(os.PathSeparator)
	if !strings.HasSuffix(boundary, sep) {
		boundary += sep
	}
	return strings.HasPrefix(path, boundary)
}

// RelSlash returns path relative to base with forward slashes. It assumes
// Contains(base, path).
func RelSlash(base, path string) string {
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

func resolve(root, project, rel string) (string, error) {
	dir, err := ProjectDir(root, project)
	if err != nil {
		return "", err
	}
	if strings.ContainsRune(rel, 0) {
		return "", fmt.Errorf("%w: NUL in path", ErrRejected)
	}
	native := filepath.FromSlash(rel)
	if filepath.IsAbs(native) || strings.HasPrefix(rel, "/") || filepath.VolumeName(native) != "" {
		return "", fmt.Errorf("%w: absolute path", ErrRejected)
	}

	// Lexical guard first, so ".." never reaches the filesystem.
	joined := filepath.Join(dir, native)
	if !Contains(dir, joined) {
		return "", fmt.Errorf("%w: outside project", ErrRejected)
	}

	target, err := canonicalize(joined)
	if err != nil {
		return "", err
	}
	if !Contains(dir, target) {
		return "", fmt.Errorf("%w: outside project", ErrRejected)
	}
	return target, nil
}

func validSegment(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

// canonicalize makes path absolute and evaluates symlinks in its longest
// existing prefix. Missing trailing components are appended unchanged.
func canonicalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	existing := abs
	var missing []string
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, syscall.ENOTDIR) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		missing = append(missing, filepath.Base(existing))
		existing = parent
	}
}
