// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package clipboard

import (
	"errors"
	"io"
	"os"

	"github.com/atotto/clipboard"
	"github.com/aymanbagabas/go-osc52/v2"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/llama-chat/internal/logging"
)

// ErrUnavailable is returned by a writer that cannot reach a clipboard.
var ErrUnavailable = errors.New("clipboard unavailable")

// Writer puts text on a clipboard.
type Writer interface {
	WriteText(text string) error
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(text string) error

// WriteText implements Writer.
func (f WriterFunc) WriteText(text string) error { return f(text) }

// SystemWriter uses the platform clipboard utility.
type SystemWriter struct{}

// WriteText implements Writer.
func (SystemWriter) WriteText(text string) error {
	if clipboard.Unsupported {
		return ErrUnavailable
	}
	return clipboard.WriteAll(text)
}

// OSC52Writer emits an OSC 52 sequence that asks the terminal to set its
// clipboard. Tmux and Screen need the sequence wrapped.
type OSC52Writer struct {
	Out    io.Writer
	Tmux   bool
	Screen bool
}

// NewOSC52Writer returns a writer for stderr with wrapping detected from
// the environment.
func NewOSC52Writer() *OSC52Writer {
	return &OSC52Writer{
		Out:    os.Stderr,
		Tmux:   os.Getenv("TMUX") != "",
		Screen: os.Getenv("STY") != "",
	}
}

// WriteText implements Writer.
func (w *OSC52Writer) WriteText(text string) error {
	if w.Out == nil {
		return ErrUnavailable
	}
	seq := osc52.New(text)
	switch {
	case w.Tmux:
		seq = seq.Tmux()
	case w.Screen:
		seq = seq.Screen()
	}
	_, err := seq.WriteTo(w.Out)
	return err
}

// =============================================================================
// COPIER
// =============================================================================

// Copier writes text through a primary writer and a legacy fallback.
type Copier struct {
	primary  Writer
	fallback Writer
	log      *logrus.Entry
}

// Option configures a Copier.
type Option func(*Copier)

// WithPrimary replaces the native clipboard writer.
func WithPrimary(w Writer) Option {
	return func(c *Copier) { c.primary = w }
}

// WithFallback replaces the OSC 52 writer. Nil disables the fallback.
func WithFallback(w Writer) Option {
	return func(c *Copier) { c.fallback = w }
}

// WithLogger sets the log entry for copy failures.
func WithLogger(entry *logrus.Entry) Option {
	return func(c *Copier) { c.log = entry }
}

// NewCopier creates a Copier using the system clipboard with OSC 52 fallback.
func NewCopier(opts ...Option) *Copier {
	c := &Copier{
		primary:  SystemWriter{},
		fallback: NewOSC52Writer(),
		log:      logging.For("clipboard"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Copy writes text and reports whether any writer accepted it.
func (c *Copier) Copy(text string) bool {
	if c.primary != nil {
		err := c.primary.WriteText(text)
		if err == nil {
			return true
		}
		c.log.WithError(err).Debug("native clipboard write failed, trying fallback")
	}

	if c.fallback == nil {
		c.log.Warn("copy failed: no clipboard available")
		return false
	}
	if err := c.fallback.WriteText(text); err != nil {
		c.log.WithError(err).Warn("copy failed")
		return false
	}
	return true
}
