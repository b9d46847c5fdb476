// Package models contains the data types shared by the catalog, search index,
// upload writer and API.
package models

import (
	"path/filepath"
	"strings"
)

// Node types.
const (
	TypeFile   = "file"
	TypeFolder = "folder"
)

// FileNode represents a file or folder in a project tree.
type FileNode struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"` // relative to the project root, forward slashes
	Type     string      `json:"type"`
	Children []*FileNode `json:"children,omitempty"`
	IsAsset  bool        `json:"isAsset,omitempty"`
}

// IsFolder reports whether the node is a folder.
func (n *FileNode) IsFolder() bool {
	return n.Type == TypeFolder
}

// ProjectInfo is one discoverable project.
type ProjectInfo struct {
	Name          string      `json:"name"`
	HasDocsFolder bool        `json:"hasDocsFolder"`
	Tree          []*FileNode `json:"tree"`
}

// SearchResult is one search hit.
type SearchResult struct {
	Project  string `json:"project"`
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Snippet  string `json:"snippet"`
}

// UploadResult is the outcome of writing one uploaded file.
type UploadResult struct {
	OriginalName string `json:"originalName"`
	SavedName    string `json:"savedName"`
	Path         string `json:"path"` // relative to the project root
}

// TocEntry is one heading of a rendered document.
type TocEntry struct {
	Level int    `json:"level"`
	ID    string `json:"id"`
	Text  string `json:"text"`
}

// IsMarkdown reports whether name is a markdown document (.md or .markdown,
// case-insensitive). Everything else in a project tree is an asset.
func IsMarkdown(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// CountNodes counts all nodes in a forest.
func CountNodes(nodes []*FileNode) int {
	count := 0
	for _, n := range nodes {
		count++
		count += CountNodes(n.Children)
	}
	return count
}

// Walk calls fn for every node in depth-first, tree order.
func Walk(nodes []*FileNode, fn func(*FileNode)) {
	for _, n := range nodes {
		fn(n)
		Walk(n.Children, fn)
	}
}
