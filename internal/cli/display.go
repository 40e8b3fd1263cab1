// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// display.go - Terminal rendering of conversation messages.
//
// Markdown goes through glamour. Reasoning spans are split out first and
// shown in ThinkingStyle so they read as separate from the answer.
package cli

import (
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/llama-chat/internal/model"
	"github.com/jeranaias/llama-chat/internal/render"
)

// Display renders messages for the terminal.
type Display struct {
	md    *glamour.TermRenderer
	width int
	caps  model.Capabilities
	loc   *time.Location
	now   func() time.Time
}

// DisplayOption configures a Display.
type DisplayOption func(*Display)

// WithDisplayWidth sets the wrap width.
func WithDisplayWidth(width int) DisplayOption {
	return func(d *Display) { d.width = width }
}

// WithDisplayCapabilities sets the backend mode used for model names.
func WithDisplayCapabilities(caps model.Capabilities) DisplayOption {
	return func(d *Display) { d.caps = caps }
}

// WithDisplayLocation sets the zone timestamps are shown in.
func WithDisplayLocation(loc *time.Location) DisplayOption {
	return func(d *Display) { d.loc = loc }
}

// WithDisplayClock sets the time used for messages without a timestamp.
func WithDisplayClock(now func() time.Time) DisplayOption {
	return func(d *Display) { d.now = now }
}

// NewDisplay creates a Display. style is a glamour standard style name;
// empty picks one from the terminal.
func NewDisplay(style string, opts ...DisplayOption) *Display {
	d := &Display{
		width: GetTerminalWidth(),
		loc:   time.Local,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if style == "" {
		style = markdownStyle()
	}

	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(d.width-4),
	)
	if err == nil {
		d.md = md
	}
	return d
}

// Markdown renders text, returning it wrapped but otherwise unchanged
// when glamour fails.
func (d *Display) Markdown(text string) string {
	if d.md != nil {
		if out, err := d.md.Render(text); err == nil {
			return strings.TrimRight(out, "\n")
		}
	}
	return WrapText(text, d.width)
}

// Header renders the role, time and model line of msg.
func (d *Display) Header(msg model.Message) string {
	ts := msg.Timestamp.Time
	if ts.IsZero() {
		ts = d.now()
	}

	header := RoleStyle(msg.Role).Render(msg.Role.DisplayName())
	meta := ts.In(d.loc).Format(render.TimeLayout)
	if msg.IsAssistant() {
		if name := msg.DisplayModel(d.caps); name != "" {
			meta += " • " + name
		}
	}
	return header + "  " + MetaStyle.Render(meta)
}

// Body renders the content of msg. User text is wrapped verbatim.
func (d *Display) Body(msg model.Message) string {
	if !msg.IsAssistant() {
		return WrapText(msg.Content, d.width)
	}

	var parts []string
	for _, seg := range render.SplitThinking(msg.Content) {
		if seg.Thinking {
			if seg.Text == "" {
				continue
			}
			parts = append(parts, ThinkingStyle.Render(WrapText("💭 "+seg.Text, d.width-4)))
			continue
		}
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		parts = append(parts, d.Markdown(seg.Text))
	}
	return strings.Join(parts, "\n")
}

// Message renders a full message: header, body and stats line.
func (d *Display) Message(msg model.Message) string {
	var sb strings.Builder
	sb.WriteString(d.Header(msg))
	sb.WriteString("\n")
	sb.WriteString(d.Body(msg))
	if stats := render.FormatStats(msg.ResponseTimeMs, msg.EstimatedTokens); stats != "" {
		sb.WriteString("\n")
		sb.WriteString(MetaStyle.Render(stats))
	}
	sb.WriteString("\n")
	return sb.String()
}
