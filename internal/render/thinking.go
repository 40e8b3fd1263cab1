// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"bytes"
	"html"
	"regexp"
	"strings"
)

// =============================================================================
// THINKING EXTRACTION
// =============================================================================

// thinkingPattern matches a complete thinking span, case-insensitively and
// across lines. The lazy body pairs each opener with the nearest closer.
var thinkingPattern = regexp.MustCompile(`(?is)<think>(.*?)</think>`)

// strayMarkerPattern matches markers left over after extraction.
var strayMarkerPattern = regexp.MustCompile(`(?i)</?think>`)

// Segment is one piece of a message split on thinking spans.
type Segment struct {
	Text     string
	Thinking bool
}

// SplitThinking splits text into alternating prose and thinking segments.
// Thinking segment text is trimmed. Unpaired markers stay in the prose.
func SplitThinking(text string) []Segment {
	var segments []Segment
	last := 0
	for _, loc := range thinkingPattern.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] > last {
			segments = append(segments, Segment{Text: text[last:loc[0]]})
		}
		segments = append(segments, Segment{
			Text:     strings.TrimSpace(text[loc[2]:loc[3]]),
			Thinking: true,
		})
		last = loc[1]
	}
	if last < len(text) {
		segments = append(segments, Segment{Text: text[last:]})
	}
	return segments
}

// ExtractThinking replaces every thinking span with a thinking-content
// block. Text outside the spans is left untouched. The block body is the
// trimmed inner text rendered as inline markdown, or escaped text with
// <br> line breaks if inline rendering fails.
func (r *Renderer) ExtractThinking(text string) string {
	return thinkingPattern.ReplaceAllStringFunc(text, func(match string) string {
		inner := strings.TrimSpace(thinkingPattern.FindStringSubmatch(match)[1])
		return thinkingBlock(r.renderThinkingBody(inner))
	})
}

func thinkingBlock(body string) string {
	return `<div class="thinking-content" data-thinking="true">` + body + `</div>`
}

// renderThinkingBody renders inner thinking text as one line of inline HTML.
// Paragraph breaks become <br><br>. Newlines are dropped so the block stays
// on a single line and cannot end a surrounding paragraph or HTML block.
func (r *Renderer) renderThinkingBody(inner string) string {
	if inner == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.inline.Convert([]byte(inner), &buf); err != nil {
		r.log.WithError(err).Debug("inline thinking render failed")
		return escapeWithBreaks(inner)
	}

	out := strings.TrimSpace(buf.String())
	out = strings.ReplaceAll(out, "</p>\n<p>", "<br><br>")
	out = strings.TrimPrefix(out, "<p>")
	out = strings.TrimSuffix(out, "</p>")
	return strings.ReplaceAll(out, "\n", "")
}

// escapeStrayMarkers makes unpaired markers in raw HTML display literally.
func escapeStrayMarkers(raw []byte) []byte {
	return strayMarkerPattern.ReplaceAllFunc(raw, func(marker []byte) []byte {
		return []byte(html.EscapeString(string(marker)))
	})
}

// escapeWithBreaks escapes text once and turns newlines into <br>.
func escapeWithBreaks(text string) string {
	return strings.ReplaceAll(html.EscapeString(text), "\n", "<br>")
}
