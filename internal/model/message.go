// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"unicode/utf8"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the roles the backend stores.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single message in a conversation as returned by the backend.
type Message struct {
	ID             int64     `json:"id,omitempty"`
	ConversationID int64     `json:"conversation_id,omitempty"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Model          string    `json:"model,omitempty"`
	ModelFile      string    `json:"model_file,omitempty"`
	Timestamp      Timestamp `json:"timestamp,omitempty"`

	// Performance metrics (assistant messages only)
	ResponseTimeMs  int64 `json:"response_time_ms,omitempty"`
	EstimatedTokens int   `json:"estimated_tokens,omitempty"`
}

// IsAssistant reports whether the message was produced by the model.
func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

// DisplayModel returns the model label shown in the metadata line.
// The enhanced backend records model files, shown without the .gguf suffix.
func (m Message) DisplayModel(caps Capabilities) string {
	if caps.Enhanced && m.ModelFile != "" {
		return strings.TrimSuffix(m.ModelFile, ".gguf")
	}
	return m.Model
}

// TokensPerSecond returns the generation speed, or 0 when either metric is missing.
func (m Message) TokensPerSecond() float64 {
	if m.ResponseTimeMs <= 0 || m.EstimatedTokens <= 0 {
		return 0
	}
	return float64(m.EstimatedTokens) / (float64(m.ResponseTimeMs) / 1000)
}

// EstimateTokens approximates the token count of text at four characters per token.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}
