// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/llama-chat/internal/logging"
	"github.com/jeranaias/llama-chat/internal/model"
)

// sequenceIDs returns an id generator yielding id000000001, id000000002...
func sequenceIDs() IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id%07d", n)
	}
}

func newTestRenderer(opts ...Option) *Renderer {
	base := []Option{
		WithIDGenerator(sequenceIDs()),
		WithLocation(time.UTC),
		WithLogger(logging.Discard()),
	}
	return New(append(base, opts...)...)
}

// =============================================================================
// THINKING
// =============================================================================

func TestExtractThinking_InlineSpan(t *testing.T) {
	r := newTestRenderer()
	got := r.ExtractThinking("Hello <think>because X</think> world")
	assert.Equal(t, `Hello <div class="thinking-content" data-thinking="true">because X</div> world`, got)
}

func TestExtractThinking_EverySpanReplaced(t *testing.T) {
	r := newTestRenderer()
	for n := 0; n <= 4; n++ {
		var sb strings.Builder
		for i := 0; i < n; i++ {
			fmt.Fprintf(&sb, "para %d <think>reason %d</think>\n", i, i)
		}
		got := r.ExtractThinking(sb.String())
		assert.Equal(t, n, strings.Count(got, `class="thinking-content"`), "n=%d", n)
		assert.NotContains(t, got, "<think>")
		assert.NotContains(t, got, "</think>")
	}
}

func TestExtractThinking_CaseInsensitiveMultiline(t *testing.T) {
	r := newTestRenderer()
	got := r.ExtractThinking("<THINK>\nline one\n\nline *two*\n</Think>after")
	assert.Equal(t, `<div class="thinking-content" data-thinking="true">line one<br><br>line <em>two</em></div>after`, got)
}

func TestExtractThinking_EmptyAndStray(t *testing.T) {
	r := newTestRenderer()
	assert.Equal(t, `<div class="thinking-content" data-thinking="true"></div>`, r.ExtractThinking("<think>  </think>"))
	assert.Equal(t, "no markers here", r.ExtractThinking("no markers here"))
	assert.Equal(t, "<think>unclosed", r.ExtractThinking("<think>unclosed"))
}

func TestExtractThinking_BlockSyntaxStaysInline(t *testing.T) {
	r := newTestRenderer()
	got := r.ExtractThinking("<think># not a heading</think>")
	assert.NotContains(t, got, "<h1>")
	assert.Contains(t, got, "# not a heading")
}

func TestSplitThinking(t *testing.T) {
	segments := SplitThinking("a<think> x </think>b<think>y</think>")
	require.Len(t, segments, 4)
	assert.Equal(t, Segment{Text: "a"}, segments[0])
	assert.Equal(t, Segment{Text: "x", Thinking: true}, segments[1])
	assert.Equal(t, Segment{Text: "b"}, segments[2])
	assert.Equal(t, Segment{Text: "y", Thinking: true}, segments[3])

	segments = SplitThinking("a<think>q")
	require.Len(t, segments, 1)
	assert.Equal(t, Segment{Text: "a<think>q"}, segments[0])
}

// =============================================================================
// MARKDOWN AND CODE
// =============================================================================

func TestRenderContent_ThinkingInsideParagraph(t *testing.T) {
	r := newTestRenderer()
	frag := r.RenderContent("Hello <think>because X</think> world")
	assert.Contains(t, frag.HTML, `<div class="thinking-content" data-thinking="true">because X</div>`)
	assert.Contains(t, frag.HTML, "Hello ")
	assert.Contains(t, frag.HTML, " world")
}

func TestRenderContent_StrayMarkerShownLiterally(t *testing.T) {
	r := newTestRenderer()
	frag := r.RenderContent("<think>never closed")
	assert.Contains(t, frag.HTML, "&lt;think&gt;never closed")
	assert.NotContains(t, frag.HTML, "thinking-content")
}

func TestRenderContent_StrayMarkerInCodeIsExact(t *testing.T) {
	r := newTestRenderer()
	frag := r.RenderContent("Use `</think>` to close:\n\n```html\n<think>\n```\n")

	assert.Contains(t, frag.HTML, "<code>&lt;/think&gt;</code>")
	assert.NotContains(t, frag.HTML, "&amp;lt;")
	assert.NotContains(t, frag.HTML, "thinking-content")

	code, err := frag.CodeText("code-id0000001")
	require.NoError(t, err)
	assert.Equal(t, "<think>", code)

	text, err := MessageText(frag.HTML)
	require.NoError(t, err)
	assert.Contains(t, text, "Use </think> to close:")
}

func TestRenderContent_StrayMarkerInHTMLBlock(t *testing.T) {
	r := newTestRenderer()
	frag := r.RenderContent("</think>\nleftover")
	assert.Contains(t, frag.HTML, "&lt;/think&gt;")
	assert.Contains(t, frag.HTML, "leftover")
}

// A thinking block opening a line is an HTML block, so markdown on the
// following line stays literal until a blank line.
func TestRenderContent_LineLeadingThinkingBlock(t *testing.T) {
	r := newTestRenderer()

	frag := r.RenderContent("<think>plan</think>\nAnswer is **bold**")
	assert.Contains(t, frag.HTML, "Answer is **bold**")

	frag = r.RenderContent("<think>plan</think>\n\nAnswer is **bold**")
	assert.Contains(t, frag.HTML, "Answer is <strong>bold</strong>")
}

func TestRenderContent_FencedCodeBlock(t *testing.T) {
	r := newTestRenderer()
	frag := r.RenderContent("Look:\n\n```python\nprint('hi')\n```\n")

	assert.Contains(t, frag.HTML, `<div class="code-block-header"><span class="code-language">python</span>`)
	assert.Contains(t, frag.HTML, `data-action="copy-code"`)
	assert.Contains(t, frag.HTML, `data-target="code-id0000001"`)
	assert.Contains(t, frag.HTML, `<code id="code-id0000001" class="hljs python">`)
	assert.Contains(t, frag.HTML, CodeCopyLabel)
	assert.NotContains(t, frag.HTML, "```")

	require.Len(t, frag.Bindings, 1)
	assert.Equal(t, Binding{ElementID: "code-id0000001", Action: ActionCopyCode}, frag.Bindings[0])

	code, err := frag.CodeText("code-id0000001")
	require.NoError(t, err)
	assert.Equal(t, "print('hi')", code)
}

func TestRenderContent_RandomCodeIDs(t *testing.T) {
	r := New(WithLogger(logging.Discard()))
	frag := r.RenderContent("```go\nfmt.Println(1)\n```\n\n```\nplain\n```")

	require.Len(t, frag.Bindings, 2)
	idPattern := regexp.MustCompile(`^code-[a-z0-9]{9}$`)
	for _, b := range frag.Bindings {
		assert.Regexp(t, idPattern, b.ElementID)
	}
	assert.NotEqual(t, frag.Bindings[0].ElementID, frag.Bindings[1].ElementID)
	assert.Contains(t, frag.HTML, `<span class="code-language">text</span>`)
}

func TestRenderContent_GFM(t *testing.T) {
	r := newTestRenderer()
	frag := r.RenderContent("# Title\n\n- one\n- two\n\n~~gone~~ and **bold**\nnext line")
	assert.Contains(t, frag.HTML, "<h1")
	assert.Contains(t, frag.HTML, "<li>one</li>")
	assert.Contains(t, frag.HTML, "<del>gone</del>")
	assert.Contains(t, frag.HTML, "<strong>bold</strong>")
	assert.Contains(t, frag.HTML, "<br")
}

func TestRenderContent_Sanitized(t *testing.T) {
	r := newTestRenderer()
	frag := r.RenderContent("hi <script>alert(1)</script> <img src=x onerror=alert(1)>")
	assert.NotContains(t, frag.HTML, "<script")
	assert.NotContains(t, frag.HTML, "onerror")
}

func TestRenderContent_PanicFallsBackToEscapedText(t *testing.T) {
	r := New(
		WithLogger(logging.Discard()),
		WithIDGenerator(func() string { panic("id source exhausted") }),
	)
	frag := r.RenderContent("a < b & c\n```go\nx\n```")
	assert.Equal(t, "a &lt; b &amp; c<br>```go<br>x<br>```", frag.HTML)
	assert.NotContains(t, frag.HTML, "&amp;lt;")
	assert.Empty(t, frag.Bindings)
}

func TestFragmentCodeText_Missing(t *testing.T) {
	frag := Fragment{Code: map[string]string{"code-a": "   \n"}}
	_, err := frag.CodeText("code-a")
	assert.ErrorIs(t, err, ErrNoCode)
	_, err = frag.CodeText("code-b")
	assert.ErrorIs(t, err, ErrNoCode)
}

func TestHighlighter(t *testing.T) {
	h := NewHighlighter("github-dark")
	out := h.Highlight("def f():\n    return 1\n", "python")
	assert.Contains(t, out, "<span")
	assert.NotContains(t, out, "<pre")

	var css strings.Builder
	require.NoError(t, h.WriteCSS(&css))
	assert.Contains(t, css.String(), ".chroma")
}

// =============================================================================
// MESSAGE BLOCKS
// =============================================================================

func TestFormatStats(t *testing.T) {
	tests := []struct {
		ms     int64
		tokens int
		want   string
	}{
		{2000, 50, "2.0s • ~50 tokens • 25.0 tok/s"},
		{1500, 0, "1.5s"},
		{0, 50, "~50 tokens"},
		{0, 0, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatStats(tt.ms, tt.tokens), "ms=%d tokens=%d", tt.ms, tt.tokens)
	}
}

func TestRenderMessage_User(t *testing.T) {
	r := newTestRenderer()
	msg := model.Message{
		Role:      model.RoleUser,
		Content:   "a <b>\n**c**",
		Model:     "llama",
		Timestamp: model.NewTimestamp(time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)),
	}
	frag := r.RenderMessage(msg)

	assert.Equal(t, "msg-id0000001", frag.ID)
	assert.True(t, strings.HasPrefix(frag.HTML, `<div class="message user" id="msg-id0000001">`))
	assert.Contains(t, frag.HTML, "a &lt;b&gt;<br>**c**")
	assert.Contains(t, frag.HTML, `<span class="meta-time">3:04:05 PM</span>`)
	assert.NotContains(t, frag.HTML, "llama")
	assert.NotContains(t, frag.HTML, "meta-stats")
	require.Len(t, frag.Bindings, 1)
	assert.Equal(t, Binding{ElementID: "msg-id0000001", Action: ActionCopyMessage}, frag.Bindings[0])
}

func TestRenderMessage_AssistantMeta(t *testing.T) {
	r := newTestRenderer()
	msg := model.Message{
		Role:            model.RoleAssistant,
		Content:         "Answer",
		Model:           "llama-3",
		Timestamp:       model.NewTimestamp(time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC)),
		ResponseTimeMs:  2000,
		EstimatedTokens: 50,
	}
	frag := r.RenderMessage(msg)

	assert.Contains(t, frag.HTML, `class="message assistant"`)
	assert.Contains(t, frag.HTML, `<span class="meta-time">9:30:00 AM • llama-3</span> • <span class="meta-stats">2.0s • ~50 tokens • 25.0 tok/s</span>`)
	assert.Contains(t, frag.HTML, `<button class="copy-btn" type="button" data-action="copy-message" data-target="`+frag.ID+`"`)
}

func TestRenderMessage_NoTimestampUsesClock(t *testing.T) {
	now := time.Date(2025, 6, 1, 23, 59, 1, 0, time.UTC)
	r := newTestRenderer(WithClock(func() time.Time { return now }))
	frag := r.RenderMessage(model.Message{Role: model.RoleUser, Content: "x"})
	assert.Contains(t, frag.HTML, "11:59:01 PM")
}

func TestMessageText_ExcludesChrome(t *testing.T) {
	r := newTestRenderer()
	msg := model.Message{
		Role:            model.RoleAssistant,
		Content:         "<think>plan quietly</think>\n\nHere is code:\n\n```python\nprint('hi')\n```",
		Model:           "secret-model",
		ResponseTimeMs:  1000,
		EstimatedTokens: 10,
	}
	frag := r.RenderMessage(msg)

	text, err := MessageText(frag.HTML)
	require.NoError(t, err)
	assert.Contains(t, text, "Here is code:")
	assert.Contains(t, text, "print('hi')")
	assert.NotContains(t, text, "plan quietly")
	assert.NotContains(t, text, "Copy")
	assert.NotContains(t, text, "📋")
	assert.NotContains(t, text, "secret-model")
	assert.NotContains(t, text, "tok/s")

	// the fragment itself is untouched
	assert.Contains(t, frag.HTML, "plan quietly")
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func TestTranscript(t *testing.T) {
	r := newTestRenderer()
	tr := NewTranscript()
	assert.Equal(t, "", tr.Anchor())

	first := tr.Append(model.RoleUser, r.RenderMessage(model.Message{Role: model.RoleUser, Content: "hi"}))
	second := tr.Append(model.RoleAssistant, r.RenderMessage(model.Message{
		Role:    model.RoleAssistant,
		Content: "```sh\necho ok\n```",
	}))

	assert.Equal(t, 2, tr.Len())
	assert.Equal(t, second.ID(), tr.Anchor())

	blocks := tr.Blocks()
	require.Len(t, blocks, 2)
	assert.Equal(t, first.ID(), blocks[0].ID())
	assert.Equal(t, model.RoleAssistant, blocks[1].Role)
	assert.True(t, strings.HasPrefix(tr.HTML(), first.Fragment.HTML))

	require.NotEmpty(t, second.Fragment.Bindings)
	code, err := tr.CodeText(second.Fragment.Bindings[0].ElementID)
	require.NoError(t, err)
	assert.Equal(t, "echo ok", code)

	text, err := tr.MessageText(first.ID())
	require.NoError(t, err)
	assert.Equal(t, "hi", text)

	_, err = tr.MessageText("msg-missing")
	assert.ErrorIs(t, err, ErrBlockNotFound)

	tr.Reset()
	assert.Equal(t, 0, tr.Len())
	_, err = tr.CodeText(second.Fragment.Bindings[0].ElementID)
	assert.ErrorIs(t, err, ErrNoCode)
}
