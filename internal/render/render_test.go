package render

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fruitsalade/docbrowser/pkg/models"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := New(8)
	require.NoError(t, err)
	return r
}

func TestRenderHeadingsAndTOC(t *testing.T) {
	r := newRenderer(t)
	src := "# Getting Started\n\nIntro.\n\n## Install `cli`\n\n### Step *one*\n\n#### Too deep\n\n## Install `cli`\n"

	res, err := r.Render([]byte(src))
	require.NoError(t, err)

	assert.Contains(t, res.HTML, `<h1 id="getting-started">Getting Started</h1>`)
	assert.Contains(t, res.HTML, `<h4 id="too-deep">`)
	assert.Equal(t, []models.TocEntry{
		{Level: 1, ID: "getting-started", Text: "Getting Started"},
		{Level: 2, ID: "install-cli", Text: "Install cli"},
		{Level: 3, ID: "step-one", Text: "Step one"},
		{Level: 2, ID: "install-cli-1", Text: "Install cli"},
	}, res.TOC)
}

func TestRenderEmptyTOC(t *testing.T) {
	r := newRenderer(t)
	res, err := r.Render([]byte("just text"))
	require.NoError(t, err)
	assert.NotNil(t, res.TOC)
	assert.Empty(t, res.TOC)
	assert.Contains(t, res.HTML, "<p>just text</p>")
}

func TestRenderGFM(t *testing.T) {
	r := newRenderer(t)
	src := "| a | b |\n|---|---|\n| 1 | 2 |\n\n- [x] done\n\n~~gone~~ https://example.com\n"

	res, err := r.Render([]byte(src))
	require.NoError(t, err)
	assert.Contains(t, res.HTML, "<table>")
	assert.Contains(t, res.HTML, `type="checkbox"`)
	assert.Contains(t, res.HTML, "<del>gone</del>")
	assert.Contains(t, res.HTML, `<a href="https://example.com">`)
}

func TestRenderRawHTMLPassthrough(t *testing.T) {
	r := newRenderer(t)
	res, err := r.Render([]byte("<details><summary>More</summary>\n\nhidden\n\n</details>\n"))
	require.NoError(t, err)
	assert.Contains(t, res.HTML, "<details><summary>More</summary>")
}

func TestRenderHighlightsCode(t *testing.T) {
	r := newRenderer(t)
	res, err := r.Render([]byte("```go\nfunc main() {}\n```\n"))
	require.NoError(t, err)
	assert.Contains(t, res.HTML, `class="chroma"`)
	assert.Contains(t, res.HTML, "main")

	res, err = r.Render([]byte("```nosuchlanguage\nplain <text>\n```\n"))
	require.NoError(t, err)
	assert.Contains(t, res.HTML, "plain &lt;text&gt;")
}

func TestRenderMermaid(t *testing.T) {
	r := newRenderer(t)
	src := "# Flow\n\n```mermaid\ngraph TD\n  A --> B<script>\n```\n\nafter\n"

	res, err := r.Render([]byte(src))
	require.NoError(t, err)
	assert.Contains(t, res.HTML, "<div class=\"mermaid\">graph TD\n  A --&gt; B&lt;script&gt;\n</div>")
	assert.NotContains(t, res.HTML, "<script>")
	assert.NotContains(t, res.HTML, `class="chroma"`)
	assert.Contains(t, res.HTML, "<p>after</p>")
}

func TestRenderFileCache(t *testing.T) {
	r := newRenderer(t)
	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("# One\n"), 0644))

	first, err := r.RenderFile(path)
	require.NoError(t, err)
	assert.Contains(t, first.HTML, "One")
	assert.Equal(t, 1, r.CacheLen())

	again, err := r.RenderFile(path)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 1, r.CacheLen())

	require.NoError(t, os.WriteFile(path, []byte("# Two, longer\n"), 0644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	changed, err := r.RenderFile(path)
	require.NoError(t, err)
	assert.Contains(t, changed.HTML, "Two, longer")
}

func TestRenderFileMissing(t *testing.T) {
	r := newRenderer(t)
	_, err := r.RenderFile(filepath.Join(t.TempDir(), "missing.md"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = r.RenderFile(t.TempDir())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestStylesheet(t *testing.T) {
	r := newRenderer(t)
	css := string(r.Stylesheet())
	assert.Contains(t, css, ".chroma")
	assert.Contains(t, css, "@media (prefers-color-scheme: dark)")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(css), "}"))
}
