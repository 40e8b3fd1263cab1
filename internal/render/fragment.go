// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// =============================================================================
// FRAGMENT TYPES
// =============================================================================

// Action names what a bound element does when activated.
type Action string

const (
	// ActionCopyCode copies the code element with the bound id.
	ActionCopyCode Action = "copy-code"
	// ActionCopyMessage copies the visible prose of the bound message block.
	ActionCopyMessage Action = "copy-message"
)

// Binding associates an element id with the action its button triggers.
// Buttons carry data-action and data-target attributes matching the binding.
type Binding struct {
	ElementID string `json:"element_id"`
	Action    Action `json:"action"`
}

// Fragment is rendered HTML plus what the host needs to wire it up.
type Fragment struct {
	// ID is the id of the outermost element, set for message blocks.
	ID string `json:"id,omitempty"`

	// HTML is the sanitized markup.
	HTML string `json:"html"`

	// Code maps code element ids to their raw source.
	Code map[string]string `json:"code,omitempty"`

	// Bindings lists the copy actions in document order.
	Bindings []Binding `json:"bindings,omitempty"`
}

// ErrNoCode is returned when a code copy target is unknown or empty.
var ErrNoCode = errors.New("no code content found to copy")

// CodeText returns the trimmed source of the code block with the given id.
func (f Fragment) CodeText(id string) (string, error) {
	code, ok := f.Code[id]
	if !ok {
		return "", ErrNoCode
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrNoCode
	}
	return code, nil
}

// =============================================================================
// ID GENERATION
// =============================================================================

// IDFunc returns a fresh 9-character token of [a-z0-9].
type IDFunc func() string

// RandomID returns the first nine hex digits of a random UUID.
func RandomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}
