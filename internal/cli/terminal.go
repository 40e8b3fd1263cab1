// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// terminal.go - Terminal detection, widths and color decisions.
//
// Piped output gets no colors and no prompts. NO_COLOR always wins,
// FORCE_COLOR turns colors on without a TTY.
package cli

import (
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const (
	// DefaultTerminalWidth is used when the width cannot be detected.
	DefaultTerminalWidth = 80

	// MinTerminalWidth is the narrowest width text is wrapped to.
	MinTerminalWidth = 40
)

// IsTTY reports whether stdin is a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// IsStdoutTTY reports whether stdout is a terminal.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// GetTerminalWidth returns the width of stdout, clamped to
// MinTerminalWidth, or DefaultTerminalWidth when it is not a terminal.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	switch {
	case err != nil || width <= 0:
		return DefaultTerminalWidth
	case width < MinTerminalWidth:
		return MinTerminalWidth
	}
	return width
}

// =============================================================================
// TEXT LAYOUT
// =============================================================================

// WrapText wraps each line of text at word boundaries to width display
// cells. Words wider than width are split. Existing newlines are kept.
// A width of 0 means the terminal width.
func WrapText(text string, width int) string {
	if width <= 0 {
		width = GetTerminalWidth()
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if runewidth.StringWidth(line) > width {
			lines[i] = wrapLine(line, width)
		}
	}
	return strings.Join(lines, "\n")
}

func wrapLine(line string, width int) string {
	var (
		out  []string
		cur  strings.Builder
		used int
	)
	flush := func() {
		out = append(out, cur.String())
		cur.Reset()
		used = 0
	}
	for _, word := range strings.Fields(line) {
		w := runewidth.StringWidth(word)
		if used > 0 && used+1+w > width {
			flush()
		}
		for w > width {
			head := runewidth.Truncate(word, width, "")
			if head == "" {
				// A single rune wider than width still has to go somewhere.
				_, size := utf8.DecodeRuneInString(word)
				head = word[:size]
			}
			if used > 0 {
				flush()
			}
			out = append(out, head)
			word = word[len(head):]
			w = runewidth.StringWidth(word)
		}
		if used > 0 {
			cur.WriteByte(' ')
			used++
		}
		cur.WriteString(word)
		used += w
	}
	if used > 0 {
		flush()
	}
	return strings.Join(out, "\n")
}

// Truncate shortens s to at most width display cells, ending in "...".
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "...")
}

// PadRight pads s with spaces to width display cells.
func PadRight(s string, width int) string {
	return runewidth.FillRight(s, width)
}

// =============================================================================
// COLORS
// =============================================================================

var (
	colorsOnce sync.Once
	colorsOn   bool
)

// ColorsEnabled reports whether output should be colored.
func ColorsEnabled() bool {
	colorsOnce.Do(func() {
		switch {
		case os.Getenv("NO_COLOR") != "":
			colorsOn = false
		case os.Getenv("FORCE_COLOR") != "":
			colorsOn = true
		default:
			colorsOn = IsStdoutTTY()
		}
	})
	return colorsOn
}

// ForceColorsEnabled overrides detection. Used by tests.
func ForceColorsEnabled(enabled bool) {
	colorsOnce = sync.Once{}
	colorsOnce.Do(func() { colorsOn = enabled })
}

// GetColorProfile returns Ascii when colors are off, else the terminal's
// own profile.
func GetColorProfile() termenv.Profile {
	if !ColorsEnabled() {
		return termenv.Ascii
	}
	return termenv.ColorProfile()
}

// markdownStyle picks the glamour standard style for the terminal.
func markdownStyle() string {
	switch {
	case !ColorsEnabled():
		return "notty"
	case termenv.HasDarkBackground():
		return "dark"
	default:
		return "light"
	}
}

// TTYRequiredError is returned when an operation needs an interactive
// terminal on stdin.
type TTYRequiredError struct {
	Operation string
}

func (e *TTYRequiredError) Error() string {
	if e.Operation == "" {
		return "stdin is not a terminal; interactive input not available"
	}
	return "stdin is not a terminal; cannot " + e.Operation + " interactively"
}
