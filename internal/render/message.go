// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"html"
	"strings"

	"github.com/jeranaias/llama-chat/internal/model"
)

// =============================================================================
// MESSAGE BLOCKS
// =============================================================================

// Copy button labels in their idle state.
const (
	CodeCopyLabel    = "📋 Copy"
	MessageCopyLabel = "📋"
)

// TimeLayout is the clock format of the meta line.
const TimeLayout = "3:04:05 PM"

// metaSeparator joins items on the meta line.
const metaSeparator = " • "

// RenderMessage assembles a complete message block: role container, content,
// meta line and copy button. Assistant content goes through RenderContent.
// User content is escaped with <br> line breaks.
func (r *Renderer) RenderMessage(msg model.Message) Fragment {
	var content Fragment
	if msg.IsAssistant() {
		content = r.RenderContent(msg.Content)
	} else {
		content = Fragment{HTML: escapeWithBreaks(msg.Content)}
	}

	id := "msg-" + r.newID()
	role := html.EscapeString(msg.Role.String())

	var sb strings.Builder
	sb.WriteString(`<div class="message `)
	sb.WriteString(role)
	sb.WriteString(`" id="`)
	sb.WriteString(id)
	sb.WriteString(`"><div class="message-content">`)
	sb.WriteString(content.HTML)
	sb.WriteString(`<div class="message-meta">`)
	sb.WriteString(r.metaLine(msg))
	sb.WriteString(`</div><button class="copy-btn" type="button" data-action="`)
	sb.WriteString(string(ActionCopyMessage))
	sb.WriteString(`" data-target="`)
	sb.WriteString(id)
	sb.WriteString(`" title="Copy message">` + MessageCopyLabel + `</button></div></div>`)

	bindings := append([]Binding(nil), content.Bindings...)
	bindings = append(bindings, Binding{ElementID: id, Action: ActionCopyMessage})

	return Fragment{
		ID:       id,
		HTML:     sb.String(),
		Code:     content.Code,
		Bindings: bindings,
	}
}

// metaLine builds the time, model and statistics line. The model is shown
// for assistant messages only; statistics only when present.
func (r *Renderer) metaLine(msg model.Message) string {
	ts := msg.Timestamp.Time
	if ts.IsZero() {
		ts = r.now()
	}

	label := ts.In(r.loc).Format(TimeLayout)
	if msg.IsAssistant() {
		if name := msg.DisplayModel(r.caps); name != "" {
			label += metaSeparator + name
		}
	}
	meta := `<span class="meta-time">` + html.EscapeString(label) + `</span>`

	if stats := FormatStats(msg.ResponseTimeMs, msg.EstimatedTokens); stats != "" {
		meta += metaSeparator + `<span class="meta-stats">` + html.EscapeString(stats) + `</span>`
	}
	return meta
}

// FormatStats renders response time and token statistics, for example
// "2.0s • ~50 tokens • 25.0 tok/s". Zero values count as absent and the
// rate appears only when both are present.
func FormatStats(responseTimeMs int64, tokens int) string {
	var parts []string
	if responseTimeMs > 0 {
		parts = append(parts, fmt.Sprintf("%.1fs", float64(responseTimeMs)/1000))
	}
	if tokens > 0 {
		parts = append(parts, fmt.Sprintf("~%d tokens", tokens))
		if responseTimeMs > 0 {
			rate := float64(tokens) / (float64(responseTimeMs) / 1000)
			parts = append(parts, fmt.Sprintf("%.1f tok/s", rate))
		}
	}
	return strings.Join(parts, metaSeparator)
}
