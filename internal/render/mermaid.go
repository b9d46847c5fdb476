package render

import (
	"bytes"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// KindMermaid is the node kind of a mermaid diagram block.
var KindMermaid = ast.NewNodeKind("Mermaid")

// mermaidBlock holds the raw diagram description of a ```mermaid fence.
type mermaidBlock struct {
	ast.BaseBlock
	diagram []byte
}

func (n *mermaidBlock) Kind() ast.NodeKind { return KindMermaid }

func (n *mermaidBlock) IsRaw() bool { return true }

func (n *mermaidBlock) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Diagram": string(n.diagram)}, nil)
}

// mermaidTransformer swaps mermaid fenced code blocks for mermaidBlock nodes
// before the highlighter sees them.
type mermaidTransformer struct{}

func (mermaidTransformer) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	source := reader.Source()

	var fences []*ast.FencedCodeBlock
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if fcb, ok := n.(*ast.FencedCodeBlock); ok && isMermaid(fcb.Language(source)) {
			fences = append(fences, fcb)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	for _, fcb := range fences {
		var buf bytes.Buffer
		lines := fcb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			buf.Write(seg.Value(source))
		}
		block := &mermaidBlock{diagram: buf.Bytes()}
		fcb.Parent().ReplaceChild(fcb.Parent(), fcb, block)
	}
}

func isMermaid(lang []byte) bool {
	return bytes.EqualFold(lang, []byte("mermaid"))
}

// mermaidRenderer writes the diagram into a container the client-side
// mermaid library picks up.
type mermaidRenderer struct{}

func (r mermaidRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindMermaid, r.render)
}

func (mermaidRenderer) render(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	block := n.(*mermaidBlock)
	w.WriteString(`<div class="mermaid">`)
	w.Write(util.EscapeHTML(block.diagram))
	w.WriteString("</div>\n")
	return ast.WalkSkipChildren, nil
}
