// Package render converts markdown documents to HTML with a table of
// contents, syntax highlighting and mermaid diagram passthrough.
package render

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/fruitsalade/docbrowser/internal/metrics"
	"github.com/fruitsalade/docbrowser/pkg/models"
)

const (
	lightStyle = "github"
	darkStyle  = "github-dark"
	// maxTocLevel is the deepest heading level listed in the TOC.
	maxTocLevel = 3
)

// Result is a rendered document.
type Result struct {
	HTML string
	TOC  []models.TocEntry
}

type cacheKey struct {
	path  string
	size  int64
	mtime int64
}

// Renderer renders markdown. It is safe for concurrent use.
type Renderer struct {
	md    goldmark.Markdown
	cache *lru.Cache[cacheKey, Result]
	css   []byte
}

// New creates a renderer whose file cache holds up to cacheSize documents.
func New(cacheSize int) (*Renderer, error) {
	cache, err := lru.New[cacheKey, Result](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create render cache: %w", err)
	}
	css, err := stylesheet()
	if err != nil {
		return nil, fmt.Errorf("build highlight stylesheet: %w", err)
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
				highlighting.WithGuessLanguage(false),
			),
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(util.Prioritized(mermaidTransformer{}, 100)),
		),
		goldmark.WithRendererOptions(
			html.WithUnsafe(),
			renderer.WithNodeRenderers(util.Prioritized(mermaidRenderer{}, 100)),
		),
	)

	return &Renderer{md: md, cache: cache, css: css}, nil
}

// Render converts markdown source to HTML and collects the TOC.
func (r *Renderer) Render(source []byte) (Result, error) {
	doc := r.md.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, source, doc); err != nil {
		return Result{}, fmt.Errorf("render markdown: %w", err)
	}
	return Result{HTML: buf.String(), TOC: collectTOC(doc, source)}, nil
}

// RenderFile renders the document at path, reusing the cached result while
// the file's size and modification time are unchanged.
func (r *Renderer) RenderFile(path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, err
	}
	if info.IsDir() {
		return Result{}, fmt.Errorf("render %s: %w", info.Name(), os.ErrNotExist)
	}
	key := cacheKey{path: path, size: info.Size(), mtime: info.ModTime().UnixNano()}
	if res, ok := r.cache.Get(key); ok {
		metrics.RecordRenderCache(true)
		return res, nil
	}
	metrics.RecordRenderCache(false)

	source, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	res, err := r.Render(source)
	if err != nil {
		return Result{}, err
	}
	r.cache.Add(key, res)
	return res, nil
}

// CacheLen returns the number of cached documents.
func (r *Renderer) CacheLen() int {
	return r.cache.Len()
}

// Stylesheet returns the code highlighting CSS: the light theme by default
// and the dark theme under prefers-color-scheme: dark.
func (r *Renderer) Stylesheet() []byte {
	return r.css
}

func stylesheet() ([]byte, error) {
	formatter := chromahtml.New(chromahtml.WithClasses(true))

	var buf bytes.Buffer
	if err := formatter.WriteCSS(&buf, styles.Get(lightStyle)); err != nil {
		return nil, err
	}
	buf.WriteString("\n@media (prefers-color-scheme: dark) {\n")
	if err := formatter.WriteCSS(&buf, styles.Get(darkStyle)); err != nil {
		return nil, err
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// collectTOC lists headings up to maxTocLevel in document order.
func collectTOC(doc ast.Node, source []byte) []models.TocEntry {
	toc := make([]models.TocEntry, 0)
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		if h.Level <= maxTocLevel {
			var id string
			if v, ok := h.AttributeString("id"); ok {
				if b, ok := v.([]byte); ok {
					id = string(b)
				}
			}
			toc = append(toc, models.TocEntry{Level: h.Level, ID: id, Text: plainText(h, source)})
		}
		return ast.WalkSkipChildren, nil
	})
	return toc
}

func plainText(n ast.Node, source []byte) string {
	var b strings.Builder
	ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
