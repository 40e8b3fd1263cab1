// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package clipboard

import (
	"sync"
	"time"
)

// DefaultRestoreDelay is how long a success or failure label stays visible.
const DefaultRestoreDelay = 2 * time.Second

// Kind selects the label set of a button.
type Kind int

const (
	// KindCode is a code block copy button.
	KindCode Kind = iota
	// KindMessage is a message copy button.
	KindMessage
)

// Labels holds the three states of a copy button.
type Labels struct {
	Idle    string
	Success string
	Failure string
}

// LabelsFor returns the label set for kind.
func LabelsFor(kind Kind) Labels {
	if kind == KindMessage {
		return Labels{Idle: "📋", Success: "✓", Failure: "❌"}
	}
	return Labels{Idle: "📋 Copy", Success: "✓ Copied", Failure: "❌ Failed"}
}

// Label returns the label for the outcome of a copy.
func (l Labels) Label(ok bool) string {
	if ok {
		return l.Success
	}
	return l.Failure
}

// Timer is the part of *time.Timer that Feedback uses.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules fn after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, fn func()) Timer

func realAfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// ChangeFunc is called with a button id and its new label.
type ChangeFunc func(id, label string)

type buttonState struct {
	kind  Kind
	label string
	timer Timer
	gen   uint64
}

// Feedback tracks the displayed labels of copy buttons.
type Feedback struct {
	mu       sync.Mutex
	buttons  map[string]*buttonState
	gen      uint64
	delay    time.Duration
	after    AfterFunc
	onChange ChangeFunc
}

// FeedbackOption configures Feedback.
type FeedbackOption func(*Feedback)

// WithDelay sets the restore delay.
func WithDelay(d time.Duration) FeedbackOption {
	return func(f *Feedback) { f.delay = d }
}

// WithAfterFunc replaces the timer source.
func WithAfterFunc(after AfterFunc) FeedbackOption {
	return func(f *Feedback) { f.after = after }
}

// WithOnChange registers a callback for every label change.
func WithOnChange(fn ChangeFunc) FeedbackOption {
	return func(f *Feedback) { f.onChange = fn }
}

// NewFeedback creates a Feedback tracker.
func NewFeedback(opts ...FeedbackOption) *Feedback {
	f := &Feedback{
		buttons: make(map[string]*buttonState),
		delay:   DefaultRestoreDelay,
		after:   realAfterFunc,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Delay returns the restore delay.
func (f *Feedback) Delay() time.Duration {
	return f.delay
}

// Trigger shows the outcome label on button id and schedules the restore.
// It returns the label now shown.
func (f *Feedback) Trigger(id string, kind Kind, ok bool) string {
	labels := LabelsFor(kind)
	label := labels.Label(ok)

	f.mu.Lock()
	state, exists := f.buttons[id]
	if !exists {
		state = &buttonState{kind: kind}
		f.buttons[id] = state
	}
	if state.timer != nil {
		state.timer.Stop()
	}
	state.kind = kind
	state.label = label

	f.gen++
	gen := f.gen
	state.gen = gen
	state.timer = f.after(f.delay, func() { f.restore(id, gen) })
	f.mu.Unlock()

	f.notify(id, label)
	return label
}

// Label returns the label currently shown on button id.
func (f *Feedback) Label(id string, kind Kind) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if state, ok := f.buttons[id]; ok {
		return state.label
	}
	return LabelsFor(kind).Idle
}

// restore resets the label unless a later trigger owns the button.
func (f *Feedback) restore(id string, gen uint64) {
	f.mu.Lock()
	state, ok := f.buttons[id]
	if !ok || state.gen != gen {
		f.mu.Unlock()
		return
	}
	idle := LabelsFor(state.kind).Idle
	delete(f.buttons, id)
	f.mu.Unlock()

	f.notify(id, idle)
}

// Stop cancels pending restores and forgets all buttons.
func (f *Feedback) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, state := range f.buttons {
		if state.timer != nil {
			state.timer.Stop()
		}
		delete(f.buttons, id)
	}
}

func (f *Feedback) notify(id, label string) {
	if f.onChange != nil {
		f.onChange(id, label)
	}
}
