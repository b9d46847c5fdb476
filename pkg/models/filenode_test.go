package models

import "testing"

func TestIsMarkdown(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"README.md", true},
		{"guide.markdown", true},
		{"NOTES.MD", true},
		{"logo.png", false},
		{"notes.txt", false},
		{"md", false},
		{"archive.md.bak", false},
		{".md", true},
	}

	for _, tt := range tests {
		if got := IsMarkdown(tt.name); got != tt.want {
			t.Errorf("IsMarkdown(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCountNodesAndWalk(t *testing.T) {
	tree := []*FileNode{
		{Name: "a.md", Path: "a.md", Type: TypeFile},
		{Name: "docs", Path: "docs", Type: TypeFolder, Children: []*FileNode{
			{Name: "b.md", Path: "docs/b.md", Type: TypeFile},
		}},
	}

	if got := CountNodes(tree); got != 3 {
		t.Fatalf("CountNodes = %d, want 3", got)
	}

	var paths []string
	Walk(tree, func(n *FileNode) { paths = append(paths, n.Path) })
	want := []string{"a.md", "docs", "docs/b.md"}
	if len(paths) != len(want) {
		t.Fatalf("Walk visited %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("Walk[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"logo.png", "image/png"},
		{"PHOTO.JPG", "image/jpeg"},
		{"docs/guide.md", "text/markdown; charset=utf-8"},
		{"notes.txt", "text/plain; charset=utf-8"},
		{"diagram.svg", "image/svg+xml"},
		{"data.xyz", DefaultContentType},
		{"Makefile", DefaultContentType},
	}
	for _, tt := range tests {
		if got := ContentTypeFor(tt.name); got != tt.want {
			t.Errorf("ContentTypeFor(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}
