// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"errors"
	"strings"
	"sync"

	"github.com/jeranaias/llama-chat/internal/model"
)

// ErrBlockNotFound is returned for an unknown message block id.
var ErrBlockNotFound = errors.New("message block not found")

// Block is one message block in a transcript.
type Block struct {
	Role     model.Role
	Fragment Fragment
}

// ID returns the block's element id.
func (b Block) ID() string {
	return b.Fragment.ID
}

// Transcript is the ordered, append-only list of rendered message blocks
// of the active conversation. It is safe for concurrent use.
type Transcript struct {
	mu     sync.RWMutex
	blocks []Block
	index  map[string]int
	code   map[string]string
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{
		index: make(map[string]int),
		code:  make(map[string]string),
	}
}

// Append adds a block at the end. Earlier blocks are never modified.
func (t *Transcript) Append(role model.Role, frag Fragment) Block {
	t.mu.Lock()
	defer t.mu.Unlock()

	block := Block{Role: role, Fragment: frag}
	t.index[frag.ID] = len(t.blocks)
	t.blocks = append(t.blocks, block)
	for id, code := range frag.Code {
		t.code[id] = code
	}
	return block
}

// Len returns the number of blocks.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.blocks)
}

// Blocks returns a copy of the blocks in insertion order.
func (t *Transcript) Blocks() []Block {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Block, len(t.blocks))
	copy(out, t.blocks)
	return out
}

// Anchor returns the id of the newest block, the scroll target after an
// append. It is empty for an empty transcript.
func (t *Transcript) Anchor() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.blocks) == 0 {
		return ""
	}
	return t.blocks[len(t.blocks)-1].ID()
}

// Block returns the block with the given id.
func (t *Transcript) Block(id string) (Block, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.index[id]
	if !ok {
		return Block{}, false
	}
	return t.blocks[i], true
}

// HTML returns the concatenated markup of all blocks.
func (t *Transcript) HTML() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var sb strings.Builder
	for _, b := range t.blocks {
		sb.WriteString(b.Fragment.HTML)
	}
	return sb.String()
}

// CodeText returns the trimmed source of a code block anywhere in the
// transcript.
func (t *Transcript) CodeText(id string) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Fragment{Code: t.code}.CodeText(id)
}

// MessageText returns the copy text of the message block with the given id.
func (t *Transcript) MessageText(id string) (string, error) {
	block, ok := t.Block(id)
	if !ok {
		return "", ErrBlockNotFound
	}
	return MessageText(block.Fragment.HTML)
}

// Reset removes all blocks, as when switching conversations.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.blocks = nil
	t.index = make(map[string]int)
	t.code = make(map[string]string)
}
