// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"bytes"
	"fmt"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/jeranaias/llama-chat/internal/logging"
	"github.com/jeranaias/llama-chat/internal/model"
)

// =============================================================================
// RENDERER
// =============================================================================

// DefaultCodeStyle is the chroma style used when none is configured.
const DefaultCodeStyle = "github-dark"

// Renderer converts message text to HTML fragments. A Renderer is safe for
// concurrent use once constructed.
type Renderer struct {
	md          goldmark.Markdown
	inline      goldmark.Markdown
	policy      *bluemonday.Policy
	highlighter *Highlighter

	caps  model.Capabilities
	newID IDFunc
	now   func() time.Time
	loc   *time.Location
	log   *logrus.Entry
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithCapabilities sets the backend capabilities used for model labels.
func WithCapabilities(caps model.Capabilities) Option {
	return func(r *Renderer) { r.caps = caps }
}

// WithCodeStyle selects the chroma style for highlighted code.
func WithCodeStyle(name string) Option {
	return func(r *Renderer) { r.highlighter = NewHighlighter(name) }
}

// WithIDGenerator replaces the random id token source.
func WithIDGenerator(fn IDFunc) Option {
	return func(r *Renderer) {
		if fn != nil {
			r.newID = fn
		}
	}
}

// WithClock sets the time source for messages without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLocation sets the time zone used for message times.
func WithLocation(loc *time.Location) Option {
	return func(r *Renderer) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithLogger sets the log entry for conversion failures.
func WithLogger(entry *logrus.Entry) Option {
	return func(r *Renderer) {
		if entry != nil {
			r.log = entry
		}
	}
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		policy:      newPolicy(),
		highlighter: NewHighlighter(DefaultCodeStyle),
		newID:       RandomID,
		now:         time.Now,
		loc:         time.Local,
		log:         logging.For("render"),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
			gmhtml.WithUnsafe(),
			renderer.WithNodeRenderers(
				util.Prioritized(&codeBlockRenderer{highlighter: r.highlighter}, 100),
				util.Prioritized(&rawHTMLRenderer{}, 100),
			),
		),
	)

	// Thinking bodies are inline only: the paragraph parser is the sole
	// block parser so headings, lists and fences stay literal text.
	r.inline = goldmark.New(
		goldmark.WithParser(parser.NewParser(
			parser.WithBlockParsers(
				util.Prioritized(parser.NewParagraphParser(), 1000),
			),
			parser.WithInlineParsers(parser.DefaultInlineParsers()...),
			parser.WithParagraphTransformers(parser.DefaultParagraphTransformers()...),
		)),
		goldmark.WithExtensions(extension.Strikethrough),
		goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
	)

	return r
}

// Highlighter returns the renderer's code highlighter.
func (r *Renderer) Highlighter() *Highlighter {
	return r.highlighter
}

// Capabilities returns the capabilities used for model labels.
func (r *Renderer) Capabilities() model.Capabilities {
	return r.caps
}

// =============================================================================
// CONTENT PIPELINE
// =============================================================================

// RenderContent runs the full assistant pipeline on text. It never fails:
// any error or panic yields the escaped original text with <br> breaks.
func (r *Renderer) RenderContent(content string) (frag Fragment) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.WithField("panic", fmt.Sprint(rec)).Warn("markdown conversion panicked, using plain text")
			frag = fallbackFragment(content)
		}
	}()

	source := []byte(r.ExtractThinking(content))
	doc := r.md.Parser().Parse(text.NewReader(source))
	ids, code := r.assignCodeIDs(doc, source)

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, source, doc); err != nil {
		r.log.WithError(err).Warn("markdown conversion failed, using plain text")
		return fallbackFragment(content)
	}

	frag = Fragment{
		HTML: r.policy.Sanitize(buf.String()),
		Code: code,
	}
	for _, id := range ids {
		frag.Bindings = append(frag.Bindings, Binding{ElementID: id, Action: ActionCopyCode})
	}
	return frag
}

// assignCodeIDs gives every fenced code block a fresh id and records its
// source. Ids are returned in document order.
func (r *Renderer) assignCodeIDs(doc ast.Node, source []byte) ([]string, map[string]string) {
	var ids []string
	code := make(map[string]string)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		id := "code-" + r.newID()
		block.SetAttributeString(codeIDAttr, []byte(id))
		ids = append(ids, id)
		code[id] = fencedCode(block, source)
		return ast.WalkSkipChildren, nil
	})
	return ids, code
}

// fallbackFragment escapes the original text exactly once.
func fallbackFragment(content string) Fragment {
	return Fragment{HTML: escapeWithBreaks(content)}
}

// =============================================================================
// RAW HTML
// =============================================================================

// rawHTMLRenderer passes raw HTML through like goldmark's unsafe mode, but
// escapes thinking markers left unpaired by extraction so they show as
// text. Code spans and code blocks never reach it and stay byte-exact.
type rawHTMLRenderer struct{}

// RegisterFuncs implements renderer.NodeRenderer.
func (r *rawHTMLRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindRawHTML, r.renderRawHTML)
	reg.Register(ast.KindHTMLBlock, r.renderHTMLBlock)
}

func (r *rawHTMLRenderer) renderRawHTML(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkSkipChildren, nil
	}
	n := node.(*ast.RawHTML)
	for i := 0; i < n.Segments.Len(); i++ {
		segment := n.Segments.At(i)
		_, _ = w.Write(escapeStrayMarkers(segment.Value(source)))
	}
	return ast.WalkSkipChildren, nil
}

func (r *rawHTMLRenderer) renderHTMLBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	n := node.(*ast.HTMLBlock)
	if entering {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			_, _ = w.Write(escapeStrayMarkers(line.Value(source)))
		}
		return ast.WalkContinue, nil
	}
	if n.HasClosure() {
		_, _ = w.Write(escapeStrayMarkers(n.ClosureLine.Value(source)))
	}
	return ast.WalkContinue, nil
}
