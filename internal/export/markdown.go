package export

import (
	"bytes"
	"html"
	"io"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(
		renderer.WithNodeRenderers(util.Prioritized(newCodeRenderer("github"), 100)),
	),
)

// RenderMarkdown writes message Markdown as HTML. Raw HTML in the source is
// not passed through.
func RenderMarkdown(w io.Writer, source string) error {
	return md.Convert([]byte(source), w)
}

// codeRenderer replaces the default fenced code block output with chroma
// highlighted, inline-styled HTML.
type codeRenderer struct {
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

func newCodeRenderer(style string) *codeRenderer {
	return &codeRenderer{
		style:     styles.Get(style),
		formatter: chromahtml.New(chromahtml.WithClasses(false), chromahtml.TabWidth(4)),
	}
}

func (r *codeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCode)
}

func (r *codeRenderer) renderFencedCode(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)
	var code bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}

	lexer := lexers.Get(string(n.Language(source)))
	if lexer == nil {
		lexer = lexers.Analyse(code.String())
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	it, err := chroma.Coalesce(lexer).Tokenise(nil, code.String())
	if err == nil {
		err = r.formatter.Format(w, r.style, it)
	}
	if err != nil {
		_, _ = w.WriteString("<pre><code>")
		_, _ = w.WriteString(html.EscapeString(code.String()))
		_, _ = w.WriteString("</code></pre>\n")
	}
	return ast.WalkSkipChildren, nil
}
