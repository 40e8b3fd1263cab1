// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"html"
	"strings"

	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/util"
)

// =============================================================================
// FENCED CODE BLOCK RENDERER
// =============================================================================

// codeIDAttr is the AST attribute carrying the generated element id.
const codeIDAttr = "id"

// fallbackLanguage is shown in the header when a fence has no info string.
const fallbackLanguage = "text"

// codeBlockRenderer replaces goldmark's fenced code output with a block
// that has a language header, a copy button and highlighted code.
type codeBlockRenderer struct {
	highlighter *Highlighter
}

// RegisterFuncs implements renderer.NodeRenderer.
func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
}

func (r *codeBlockRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)

	language := string(n.Language(source))
	display := language
	if display == "" {
		display = fallbackLanguage
	}
	id := codeID(n)
	code := fencedCode(n, source)

	class := "hljs"
	if language != "" {
		class += " " + language
	}

	_, _ = w.WriteString(`<pre class="chroma"><div class="code-block-header"><span class="code-language">`)
	_, _ = w.WriteString(html.EscapeString(display))
	_, _ = w.WriteString(`</span><button class="code-copy-btn" type="button" data-action="`)
	_, _ = w.WriteString(string(ActionCopyCode))
	_, _ = w.WriteString(`" data-target="`)
	_, _ = w.WriteString(html.EscapeString(id))
	_, _ = w.WriteString(`" title="Copy code">` + CodeCopyLabel + `</button></div><code id="`)
	_, _ = w.WriteString(html.EscapeString(id))
	_, _ = w.WriteString(`" class="`)
	_, _ = w.WriteString(html.EscapeString(class))
	_, _ = w.WriteString(`">`)
	_, _ = w.WriteString(r.highlighter.Highlight(code, language))
	_, _ = w.WriteString("</code></pre>\n")

	return ast.WalkSkipChildren, nil
}

// fencedCode returns the raw code of a fenced block without the final newline.
func fencedCode(n *ast.FencedCodeBlock, source []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		sb.Write(line.Value(source))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func codeID(n ast.Node) string {
	v, ok := n.AttributeString(codeIDAttr)
	if !ok {
		return ""
	}
	switch id := v.(type) {
	case []byte:
		return string(id)
	case string:
		return id
	}
	return ""
}
